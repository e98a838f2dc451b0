package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/propagate"
)

// carried is the view-neutral subset of a record that survives a transfer.
type carried struct {
	title       string
	description string
	assignee    string
	progress    int
	start, end  *time.Time
}

func carryOf(rec model.Record) (carried, error) {
	switch r := rec.(type) {
	case model.Todo:
		c := carried{title: r.Title, description: r.Description, assignee: r.Assignee, end: r.DueDate}
		if r.Completed {
			c.progress = 100
		}
		return c, nil
	case model.WBSTask:
		return carried{
			title:       r.Name,
			description: r.Description,
			assignee:    r.Assignee,
			progress:    r.Progress,
			start:       r.StartDate,
			end:         r.EndDate,
		}, nil
	case model.KanbanCard:
		return carried{title: r.Title, description: r.Description, assignee: r.Assignee, end: r.DueDate}, nil
	case model.GanttTask:
		start, end := r.StartDate, r.EndDate
		return carried{title: r.Name, assignee: r.Assignee, progress: r.Progress, start: &start, end: &end}, nil
	}
	return carried{}, fmt.Errorf("unknown record type %T", rec)
}

// translate builds the creation draft for a copy of src in view to. Pairs
// with a sync mapping use it so a transferred copy matches what later syncs
// write; other pairs carry the common fields over.
func (s *Service) translate(ctx context.Context, src model.Record, to model.ViewType) (model.Draft, error) {
	if propagate.Supports(src.View(), to) {
		return s.mapper.Convert(ctx, src, to)
	}

	c, err := carryOf(src)
	if err != nil {
		return nil, err
	}

	switch to {
	case model.ViewTodo:
		return model.NewTodo{
			Title:       c.title,
			Description: c.description,
			Completed:   c.progress >= 100,
			DueDate:     c.end,
			Assignee:    c.assignee,
		}, nil
	case model.ViewWBS:
		return model.NewWBSTask{
			Name:        c.title,
			Description: c.description,
			Status:      model.StatusForProgress(c.progress),
			Progress:    c.progress,
			StartDate:   c.start,
			EndDate:     c.end,
			Assignee:    c.assignee,
		}, nil
	case model.ViewKanban:
		if err := s.mapper.RequireLane(ctx, model.DefaultKanbanLane); err != nil {
			return nil, err
		}
		return model.NewKanbanCard{
			LaneID:      model.DefaultKanbanLane,
			Title:       c.title,
			Description: c.description,
			DueDate:     c.end,
			Assignee:    c.assignee,
		}, nil
	case model.ViewGantt:
		start, end := ganttSpan(c, s.now())
		return model.NewGanttTask{
			Name:      c.title,
			StartDate: start,
			EndDate:   end,
			Progress:  c.progress,
			Assignee:  c.assignee,
		}, nil
	}
	return nil, fmt.Errorf("invalid target view: %s", to)
}

// ganttSpan fills whichever end of the bar is missing from the other, and
// falls back to a one-day bar on today's date.
func ganttSpan(c carried, now time.Time) (time.Time, time.Time) {
	switch {
	case c.start != nil && c.end != nil:
		return *c.start, *c.end
	case c.start != nil:
		return *c.start, *c.start
	case c.end != nil:
		return *c.end, *c.end
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today, today
}
