package store

import (
	"context"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
)

type WBSStore struct {
	db    *db.DB
	tasks collection[model.WBSTask]
}

func NewWBSStore(d *db.DB) *WBSStore {
	return &WBSStore{db: d}
}

func (s *WBSStore) View() model.ViewType { return model.ViewWBS }

func (s *WBSStore) Fetch(ctx context.Context) error {
	tasks, err := s.db.ListWBSTasks(ctx)
	if err != nil {
		return err
	}
	s.tasks.set(tasks)
	return nil
}

// Tasks returns the tree nodes as of the last Fetch.
func (s *WBSStore) Tasks() []model.WBSTask {
	return s.tasks.snapshot()
}

func (s *WBSStore) Get(ctx context.Context, id string) (model.Record, error) {
	task, err := s.db.GetWBSTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return *task, nil
}

func (s *WBSStore) Create(ctx context.Context, d model.Draft) (model.Record, error) {
	in, ok := d.(model.NewWBSTask)
	if !ok {
		return nil, wrongDraft(s.View(), d)
	}
	task, err := s.db.CreateWBSTask(ctx, in)
	if err != nil {
		return nil, err
	}
	return *task, nil
}

func (s *WBSStore) Apply(ctx context.Context, id string, d model.Draft) error {
	in, ok := d.(model.NewWBSTask)
	if !ok {
		return wrongDraft(s.View(), d)
	}
	return s.db.UpdateWBSFields(ctx, id, in)
}

func (s *WBSStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteWBSTask(ctx, id)
}

// SetProgress updates a node's progress; status follows from it.
func (s *WBSStore) SetProgress(ctx context.Context, id string, progress int) error {
	return s.db.SetWBSProgress(ctx, id, progress)
}
