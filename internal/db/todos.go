package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/viewlink/internal/model"
)

const todoColumns = `id, title, description, completed, due_date, assignee, created_at, updated_at`

// CreateTodo inserts a new todo item and returns it with its generated id.
func (db *DB) CreateTodo(ctx context.Context, in model.NewTodo) (*model.Todo, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("todo title is required")
	}

	now := time.Now().UTC()
	todo := &model.Todo{
		ID:          model.GenerateID(model.ViewTodo),
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		DueDate:     in.DueDate,
		Assignee:    in.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO todos (`+todoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.Title, todo.Description, todo.Completed, formatTimePtr(todo.DueDate),
		todo.Assignee, formatTime(todo.CreatedAt), formatTime(todo.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

// GetTodo retrieves a todo by ID.
func (db *DB) GetTodo(ctx context.Context, id string) (*model.Todo, error) {
	todo, err := scanTodo(db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ?`, id))
	if err != nil {
		return nil, wrapNotFound(err, "todo", id)
	}
	return todo, nil
}

// ListTodos returns all todos, oldest first.
func (db *DB) ListTodos(ctx context.Context) ([]model.Todo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var todos []model.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

// SetTodoCompleted marks a todo complete or incomplete.
func (db *DB) SetTodoCompleted(ctx context.Context, id string, completed bool) error {
	result, err := db.ExecContext(ctx, `
		UPDATE todos SET completed = ?, updated_at = ? WHERE id = ?`,
		completed, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return checkAffected(result, "todo", id)
}

// UpdateTodoFields writes the fields a mirrored change carries into a todo:
// title and due date. Completion is left alone.
func (db *DB) UpdateTodoFields(ctx context.Context, id string, in model.NewTodo) error {
	result, err := db.ExecContext(ctx, `
		UPDATE todos SET title = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		in.Title, formatTimePtr(in.DueDate), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return checkAffected(result, "todo", id)
}

// DeleteTodo removes a todo.
func (db *DB) DeleteTodo(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return checkAffected(result, "todo", id)
}

func scanTodo(row rowScanner) (*model.Todo, error) {
	var todo model.Todo
	var due sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &todo.Completed, &due,
		&todo.Assignee, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if todo.DueDate, err = parseNullTime(due); err != nil {
		return nil, err
	}
	if todo.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if todo.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &todo, nil
}
