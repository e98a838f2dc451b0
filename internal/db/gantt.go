package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/viewlink/internal/model"
)

const ganttColumns = `id, name, start_date, end_date, progress, assignee, created_at, updated_at`

// CreateGanttTask inserts a gantt bar. End must not precede start.
func (db *DB) CreateGanttTask(ctx context.Context, in model.NewGanttTask) (*model.GanttTask, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("gantt task name is required")
	}
	if err := validateGanttSpan(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &model.GanttTask{
		ID:        model.GenerateID(model.ViewGantt),
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Progress:  in.Progress,
		Assignee:  in.Assignee,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO gantt_tasks (`+ganttColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Name, formatTime(task.StartDate), formatTime(task.EndDate), task.Progress,
		task.Assignee, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gantt task: %w", err)
	}
	return task, nil
}

// GetGanttTask retrieves a gantt bar by ID.
func (db *DB) GetGanttTask(ctx context.Context, id string) (*model.GanttTask, error) {
	task, err := scanGanttTask(db.QueryRowContext(ctx,
		`SELECT `+ganttColumns+` FROM gantt_tasks WHERE id = ?`, id))
	if err != nil {
		return nil, wrapNotFound(err, "gantt task", id)
	}
	return task, nil
}

// ListGanttTasks returns all bars ordered by start date.
func (db *DB) ListGanttTasks(ctx context.Context) ([]model.GanttTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+ganttColumns+` FROM gantt_tasks ORDER BY start_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gantt tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.GanttTask
	for rows.Next() {
		task, err := scanGanttTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gantt task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateGanttFields writes name, dates and progress of a bar.
func (db *DB) UpdateGanttFields(ctx context.Context, id string, in model.NewGanttTask) error {
	if err := validateGanttSpan(in); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `
		UPDATE gantt_tasks
		SET name = ?, start_date = ?, end_date = ?, progress = ?, updated_at = ?
		WHERE id = ?`,
		in.Name, formatTime(in.StartDate), formatTime(in.EndDate), in.Progress,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update gantt task: %w", err)
	}
	return checkAffected(result, "gantt task", id)
}

// DeleteGanttTask removes a bar and its dependency edges.
func (db *DB) DeleteGanttTask(ctx context.Context, id string) error {
	return db.RunInTx(ctx, func(q Querier) error {
		// Delete dependencies (both directions)
		if _, err := q.ExecContext(ctx, `DELETE FROM gantt_deps WHERE task_id = ? OR depends_on = ?`, id, id); err != nil {
			return fmt.Errorf("failed to delete gantt dependencies: %w", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM gantt_tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete gantt task: %w", err)
		}
		return checkAffected(result, "gantt task", id)
	})
}

// AddGanttDep records that taskID cannot start before dependsOnID finishes.
func (db *DB) AddGanttDep(ctx context.Context, taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return fmt.Errorf("gantt task %s cannot depend on itself", taskID)
	}

	// Verify both tasks exist
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gantt_tasks WHERE id IN (?, ?)`, taskID, dependsOnID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to verify gantt tasks: %w", err)
	}
	if count != 2 {
		return fmt.Errorf("one or both gantt tasks not found: %s, %s: %w", taskID, dependsOnID, ErrNotFound)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO gantt_deps (task_id, depends_on) VALUES (?, ?)`,
		taskID, dependsOnID)
	if err != nil {
		return fmt.Errorf("failed to add gantt dependency: %w", err)
	}
	return nil
}

// GetGanttDeps returns the IDs of bars the given bar depends on.
func (db *DB) GetGanttDeps(ctx context.Context, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT depends_on FROM gantt_deps WHERE task_id = ? ORDER BY depends_on`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gantt dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deps []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan gantt dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	return deps, rows.Err()
}

func validateGanttSpan(in model.NewGanttTask) error {
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("gantt task needs both start and end dates")
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("gantt task ends (%s) before it starts (%s)",
			in.EndDate.Format(time.DateOnly), in.StartDate.Format(time.DateOnly))
	}
	if in.Progress < 0 || in.Progress > 100 {
		return fmt.Errorf("invalid progress: %d (want 0-100)", in.Progress)
	}
	return nil
}

func scanGanttTask(row rowScanner) (*model.GanttTask, error) {
	var task model.GanttTask
	var start, end, createdAt, updatedAt string
	if err := row.Scan(&task.ID, &task.Name, &start, &end, &task.Progress, &task.Assignee,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if task.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if task.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
