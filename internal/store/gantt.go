package store

import (
	"context"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
)

type GanttStore struct {
	db    *db.DB
	tasks collection[model.GanttTask]
}

func NewGanttStore(d *db.DB) *GanttStore {
	return &GanttStore{db: d}
}

func (s *GanttStore) View() model.ViewType { return model.ViewGantt }

func (s *GanttStore) Fetch(ctx context.Context) error {
	tasks, err := s.db.ListGanttTasks(ctx)
	if err != nil {
		return err
	}
	s.tasks.set(tasks)
	return nil
}

func (s *GanttStore) Tasks() []model.GanttTask {
	return s.tasks.snapshot()
}

func (s *GanttStore) Get(ctx context.Context, id string) (model.Record, error) {
	task, err := s.db.GetGanttTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return *task, nil
}

func (s *GanttStore) Create(ctx context.Context, d model.Draft) (model.Record, error) {
	in, ok := d.(model.NewGanttTask)
	if !ok {
		return nil, wrongDraft(s.View(), d)
	}
	task, err := s.db.CreateGanttTask(ctx, in)
	if err != nil {
		return nil, err
	}
	return *task, nil
}

func (s *GanttStore) Apply(ctx context.Context, id string, d model.Draft) error {
	in, ok := d.(model.NewGanttTask)
	if !ok {
		return wrongDraft(s.View(), d)
	}
	return s.db.UpdateGanttFields(ctx, id, in)
}

func (s *GanttStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteGanttTask(ctx, id)
}

// AddDep records a finish-to-start dependency between two bars.
func (s *GanttStore) AddDep(ctx context.Context, taskID, dependsOnID string) error {
	return s.db.AddGanttDep(ctx, taskID, dependsOnID)
}

func (s *GanttStore) Deps(ctx context.Context, taskID string) ([]string, error) {
	return s.db.GetGanttDeps(ctx, taskID)
}
