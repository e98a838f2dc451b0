// Package propagate mirrors field changes between linked view-native records.
//
// Only four ordered view pairs have a mapping: todo->wbs, wbs->todo,
// todo->kanban and kanban->wbs. Every other pair is unsupported and is never
// synced.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/viewlink/internal/model"
)

// ErrUnsupportedPair is returned for view pairs without a mapping.
var ErrUnsupportedPair = errors.New("no field mapping between views")

// LaneNotFoundError means a card cannot be placed because its lane is missing.
// It points at board setup the user has to fix, so it is never skipped.
type LaneNotFoundError struct {
	LaneID string
}

func (e *LaneNotFoundError) Error() string {
	return fmt.Sprintf("kanban lane %q not found; create it before sending tasks to the board", e.LaneID)
}

type pair struct {
	from, to model.ViewType
}

var supportedPairs = []pair{
	{model.ViewTodo, model.ViewWBS},
	{model.ViewWBS, model.ViewTodo},
	{model.ViewTodo, model.ViewKanban},
	{model.ViewKanban, model.ViewWBS},
}

// Supports reports whether changes in from can be mirrored into to.
func Supports(from, to model.ViewType) bool {
	for _, p := range supportedPairs {
		if p.from == from && p.to == to {
			return true
		}
	}
	return false
}

// TodoToWBS maps a todo onto a WBS node: completion drives both status and
// progress, and the due date becomes the whole span.
func TodoToWBS(t model.Todo) model.NewWBSTask {
	status, progress := model.WBSNotStarted, 0
	if t.Completed {
		status, progress = model.WBSCompleted, 100
	}
	return model.NewWBSTask{
		Name:      t.Title,
		Status:    status,
		Progress:  progress,
		StartDate: copyTime(t.DueDate),
		EndDate:   copyTime(t.DueDate),
	}
}

// WBSToTodo carries the name and end date; completion is not mapped.
func WBSToTodo(w model.WBSTask) model.NewTodo {
	return model.NewTodo{
		Title:   w.Name,
		DueDate: copyTime(w.EndDate),
	}
}

// TodoToKanban places the todo in the "todo" lane, which must exist.
func TodoToKanban(t model.Todo, lanes []model.KanbanLane) (model.NewKanbanCard, error) {
	if !hasLane(lanes, model.DefaultKanbanLane) {
		return model.NewKanbanCard{}, &LaneNotFoundError{LaneID: model.DefaultKanbanLane}
	}
	return model.NewKanbanCard{
		LaneID:  model.DefaultKanbanLane,
		Title:   t.Title,
		DueDate: copyTime(t.DueDate),
	}, nil
}

// KanbanToWBS always yields a not-started node; lane position is not read as
// progress.
func KanbanToWBS(c model.KanbanCard) model.NewWBSTask {
	return model.NewWBSTask{
		Name:      c.Title,
		Status:    model.WBSNotStarted,
		Progress:  0,
		StartDate: copyTime(c.DueDate),
		EndDate:   copyTime(c.DueDate),
	}
}

// LaneSource reads the board's current lanes.
type LaneSource interface {
	ListLanes(ctx context.Context) ([]model.KanbanLane, error)
}

// Mapper dispatches a record to the mapping for its (source, target) pair.
type Mapper struct {
	lanes LaneSource
}

func NewMapper(lanes LaneSource) *Mapper {
	return &Mapper{lanes: lanes}
}

// Convert maps src into the creation draft of view to. Returns
// ErrUnsupportedPair when no mapping exists.
func (m *Mapper) Convert(ctx context.Context, src model.Record, to model.ViewType) (model.Draft, error) {
	switch rec := src.(type) {
	case model.Todo:
		switch to {
		case model.ViewWBS:
			return TodoToWBS(rec), nil
		case model.ViewKanban:
			lanes, err := m.lanes.ListLanes(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read kanban lanes: %w", err)
			}
			card, err := TodoToKanban(rec, lanes)
			if err != nil {
				return nil, err
			}
			return card, nil
		}
	case model.WBSTask:
		if to == model.ViewTodo {
			return WBSToTodo(rec), nil
		}
	case model.KanbanCard:
		if to == model.ViewWBS {
			return KanbanToWBS(rec), nil
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, src.View(), to)
}

// RequireLane checks that laneID exists on the board the mapper reads.
func (m *Mapper) RequireLane(ctx context.Context, laneID string) error {
	return RequireLane(ctx, m.lanes, laneID)
}

// RequireLane checks that laneID exists on the board.
func RequireLane(ctx context.Context, lanes LaneSource, laneID string) error {
	list, err := lanes.ListLanes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read kanban lanes: %w", err)
	}
	if !hasLane(list, laneID) {
		return &LaneNotFoundError{LaneID: laneID}
	}
	return nil
}

func hasLane(lanes []model.KanbanLane, id string) bool {
	for _, l := range lanes {
		if l.ID == id {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
