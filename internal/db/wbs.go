package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/viewlink/internal/model"
)

const wbsColumns = `id, name, description, parent_id, position, status, progress, start_date, end_date, assignee, created_at, updated_at`

// CreateWBSTask inserts a WBS node. Without a parent and position it is
// appended as the next top-level sibling.
func (db *DB) CreateWBSTask(ctx context.Context, in model.NewWBSTask) (*model.WBSTask, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("wbs task name is required")
	}
	status := in.Status
	if status == "" {
		status = model.WBSNotStarted
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid wbs status: %s", status)
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, fmt.Errorf("invalid progress: %d (want 0-100)", in.Progress)
	}

	now := time.Now().UTC()
	task := &model.WBSTask{
		ID:          model.GenerateID(model.ViewWBS),
		Name:        in.Name,
		Description: in.Description,
		ParentID:    in.ParentID,
		Position:    in.Position,
		Status:      status,
		Progress:    in.Progress,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Assignee:    in.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := db.RunInTx(ctx, func(q Querier) error {
		if task.Position == 0 {
			// Next sibling under the same parent (roots when parent is NULL).
			err := q.QueryRowContext(ctx, `
				SELECT COALESCE(MAX(position), 0) + 1 FROM wbs_tasks
				WHERE parent_id IS ?`, task.ParentID).Scan(&task.Position)
			if err != nil {
				return fmt.Errorf("failed to compute wbs position: %w", err)
			}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO wbs_tasks (`+wbsColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.Name, task.Description, task.ParentID, task.Position, task.Status,
			task.Progress, formatTimePtr(task.StartDate), formatTimePtr(task.EndDate),
			task.Assignee, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create wbs task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetWBSTask retrieves a WBS node by ID.
func (db *DB) GetWBSTask(ctx context.Context, id string) (*model.WBSTask, error) {
	task, err := scanWBSTask(db.QueryRowContext(ctx,
		`SELECT `+wbsColumns+` FROM wbs_tasks WHERE id = ?`, id))
	if err != nil {
		return nil, wrapNotFound(err, "wbs task", id)
	}
	return task, nil
}

// ListWBSTasks returns all WBS nodes, roots before children, siblings by position.
func (db *DB) ListWBSTasks(ctx context.Context) ([]model.WBSTask, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+wbsColumns+` FROM wbs_tasks
		ORDER BY parent_id IS NOT NULL, parent_id, position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wbs tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.WBSTask
	for rows.Next() {
		task, err := scanWBSTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wbs task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// SetWBSProgress updates progress and derives status from it:
// 0 is not_started, 100 is completed, anything between is in_progress.
func (db *DB) SetWBSProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("invalid progress: %d (want 0-100)", progress)
	}
	status := model.StatusForProgress(progress)

	result, err := db.ExecContext(ctx, `
		UPDATE wbs_tasks SET progress = ?, status = ?, updated_at = ? WHERE id = ?`,
		progress, status, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update wbs task: %w", err)
	}
	return checkAffected(result, "wbs task", id)
}

// UpdateWBSFields writes the mirrored fields of a WBS node: name, status,
// progress and dates. Tree placement (parent, position) is left alone.
func (db *DB) UpdateWBSFields(ctx context.Context, id string, in model.NewWBSTask) error {
	status := in.Status
	if status == "" {
		status = model.WBSNotStarted
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid wbs status: %s", status)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE wbs_tasks
		SET name = ?, status = ?, progress = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		in.Name, status, in.Progress, formatTimePtr(in.StartDate), formatTimePtr(in.EndDate),
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update wbs task: %w", err)
	}
	return checkAffected(result, "wbs task", id)
}

// DeleteWBSTask removes a WBS node. Nodes with children cannot be deleted.
func (db *DB) DeleteWBSTask(ctx context.Context, id string) error {
	var children int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wbs_tasks WHERE parent_id = ?`, id).Scan(&children)
	if err != nil {
		return fmt.Errorf("failed to check wbs children: %w", err)
	}
	if children > 0 {
		return fmt.Errorf("wbs task %s has %d children; delete them first", id, children)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM wbs_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wbs task: %w", err)
	}
	return checkAffected(result, "wbs task", id)
}

func scanWBSTask(row rowScanner) (*model.WBSTask, error) {
	var task model.WBSTask
	var parentID, start, end sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&task.ID, &task.Name, &task.Description, &parentID, &task.Position,
		&task.Status, &task.Progress, &start, &end, &task.Assignee, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		task.ParentID = &parentID.String
	}
	var err error
	if task.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if task.EndDate, err = parseNullTime(end); err != nil {
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
