package store

import (
	"context"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
)

type KanbanStore struct {
	db    *db.DB
	lanes collection[model.KanbanLane]
	cards collection[model.KanbanCard]
}

func NewKanbanStore(d *db.DB) *KanbanStore {
	return &KanbanStore{db: d}
}

func (s *KanbanStore) View() model.ViewType { return model.ViewKanban }

// Fetch refreshes both lanes and cards.
func (s *KanbanStore) Fetch(ctx context.Context) error {
	lanes, err := s.db.ListLanes(ctx)
	if err != nil {
		return err
	}
	cards, err := s.db.ListCards(ctx)
	if err != nil {
		return err
	}
	s.lanes.set(lanes)
	s.cards.set(cards)
	return nil
}

func (s *KanbanStore) Lanes() []model.KanbanLane {
	return s.lanes.snapshot()
}

func (s *KanbanStore) Cards() []model.KanbanCard {
	return s.cards.snapshot()
}

// ListLanes reads lanes from persisted state rather than the last Fetch.
func (s *KanbanStore) ListLanes(ctx context.Context) ([]model.KanbanLane, error) {
	return s.db.ListLanes(ctx)
}

func (s *KanbanStore) CreateLane(ctx context.Context, lane model.KanbanLane) error {
	return s.db.CreateLane(ctx, lane)
}

func (s *KanbanStore) Get(ctx context.Context, id string) (model.Record, error) {
	card, err := s.db.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	return *card, nil
}

func (s *KanbanStore) Create(ctx context.Context, d model.Draft) (model.Record, error) {
	in, ok := d.(model.NewKanbanCard)
	if !ok {
		return nil, wrongDraft(s.View(), d)
	}
	card, err := s.db.CreateCard(ctx, in)
	if err != nil {
		return nil, err
	}
	return *card, nil
}

func (s *KanbanStore) Apply(ctx context.Context, id string, d model.Draft) error {
	in, ok := d.(model.NewKanbanCard)
	if !ok {
		return wrongDraft(s.View(), d)
	}
	return s.db.UpdateCardFields(ctx, id, in)
}

func (s *KanbanStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteCard(ctx, id)
}

// Move puts a card at the bottom of another lane.
func (s *KanbanStore) Move(ctx context.Context, id, laneID string) error {
	return s.db.MoveCard(ctx, id, laneID)
}
