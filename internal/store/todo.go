package store

import (
	"context"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
)

type TodoStore struct {
	db    *db.DB
	todos collection[model.Todo]
}

func NewTodoStore(d *db.DB) *TodoStore {
	return &TodoStore{db: d}
}

func (s *TodoStore) View() model.ViewType { return model.ViewTodo }

func (s *TodoStore) Fetch(ctx context.Context) error {
	todos, err := s.db.ListTodos(ctx)
	if err != nil {
		return err
	}
	s.todos.set(todos)
	return nil
}

// Todos returns the collection as of the last Fetch.
func (s *TodoStore) Todos() []model.Todo {
	return s.todos.snapshot()
}

func (s *TodoStore) Get(ctx context.Context, id string) (model.Record, error) {
	todo, err := s.db.GetTodo(ctx, id)
	if err != nil {
		return nil, err
	}
	return *todo, nil
}

func (s *TodoStore) Create(ctx context.Context, d model.Draft) (model.Record, error) {
	in, ok := d.(model.NewTodo)
	if !ok {
		return nil, wrongDraft(s.View(), d)
	}
	todo, err := s.db.CreateTodo(ctx, in)
	if err != nil {
		return nil, err
	}
	return *todo, nil
}

func (s *TodoStore) Apply(ctx context.Context, id string, d model.Draft) error {
	in, ok := d.(model.NewTodo)
	if !ok {
		return wrongDraft(s.View(), d)
	}
	return s.db.UpdateTodoFields(ctx, id, in)
}

func (s *TodoStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteTodo(ctx, id)
}

// SetCompleted toggles a todo's completion.
func (s *TodoStore) SetCompleted(ctx context.Context, id string, completed bool) error {
	return s.db.SetTodoCompleted(ctx, id, completed)
}
