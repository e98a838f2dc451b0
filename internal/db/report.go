package db

import (
	"context"
	"fmt"

	"github.com/baiirun/viewlink/internal/model"
)

// ViewLinkCount is the per-view slice of a LinkReport.
type ViewLinkCount struct {
	Records     int // view-native records in the view
	Linked      int // records that belong to a link group
	SyncEnabled int // linked records with sync on
}

// LinkReport contains aggregated link registry status.
type LinkReport struct {
	Groups int
	Links  int
	ByView map[model.ViewType]ViewLinkCount
}

var viewTables = map[model.ViewType]string{
	model.ViewTodo:   "todos",
	model.ViewWBS:    "wbs_tasks",
	model.ViewKanban: "kanban_cards",
	model.ViewGantt:  "gantt_tasks",
}

// LinkReport returns counts of groups and links, broken down per view.
func (db *DB) LinkReport(ctx context.Context) (*LinkReport, error) {
	report := &LinkReport{ByView: make(map[model.ViewType]ViewLinkCount)}

	err := db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT unifiedId), COUNT(*) FROM task_links`).Scan(&report.Groups, &report.Links)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	// Count by view
	rows, err := db.QueryContext(ctx, `
		SELECT viewType, COUNT(*), COALESCE(SUM(syncEnabled), 0)
		FROM task_links GROUP BY viewType`)
	if err != nil {
		return nil, fmt.Errorf("failed to count links by view: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var view model.ViewType
		var c ViewLinkCount
		if err := rows.Scan(&view, &c.Linked, &c.SyncEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan link count: %w", err)
		}
		report.ByView[view] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, view := range model.AllViews {
		c := report.ByView[view]
		// Table names come from a fixed map, never from input.
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+viewTables[view]).Scan(&c.Records); err != nil {
			return nil, fmt.Errorf("failed to count %s records: %w", view, err)
		}
		report.ByView[view] = c
	}

	return report, nil
}
