package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/viewlink/internal/model"
)

const linkColumns = `id, unifiedId, viewType, originalId, syncEnabled, createdAt, lastSyncedAt`

// CreateLink inserts one link row. It fails with ErrConstraintViolation when
// the (view, original id) pair is already linked or the group already has a
// link for that view.
func (db *DB) CreateLink(ctx context.Context, in model.NewLink) (*model.TaskLink, error) {
	return createLink(ctx, db.DB, in, time.Now())
}

func createLink(ctx context.Context, q Querier, in model.NewLink, now time.Time) (*model.TaskLink, error) {
	if !in.ViewType.IsValid() {
		return nil, fmt.Errorf("invalid view type: %s", in.ViewType)
	}
	if in.OriginalID == "" {
		return nil, fmt.Errorf("original id is required")
	}
	if in.UnifiedID == "" {
		return nil, fmt.Errorf("unified id is required")
	}

	link := &model.TaskLink{
		ID:           model.GenerateLinkID(),
		UnifiedID:    in.UnifiedID,
		ViewType:     in.ViewType,
		OriginalID:   in.OriginalID,
		SyncEnabled:  in.SyncEnabled,
		CreatedAt:    now.UTC(),
		LastSyncedAt: now.UTC(),
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO task_links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.UnifiedID, link.ViewType, link.OriginalID, link.SyncEnabled,
		formatTime(link.CreatedAt), formatTime(link.LastSyncedAt),
	)
	if isConstraintErr(err) {
		return nil, fmt.Errorf("%w: %s %s is already linked (group %s)",
			ErrConstraintViolation, in.ViewType, in.OriginalID, in.UnifiedID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return link, nil
}

// FindLinksByUnifiedID returns a group's links, oldest (normally the origin)
// first. An unknown id yields an empty result, not an error.
func (db *DB) FindLinksByUnifiedID(ctx context.Context, id model.UnifiedID) ([]model.TaskLink, error) {
	return findLinksByUnifiedID(ctx, db.DB, id)
}

func findLinksByUnifiedID(ctx context.Context, q Querier, id model.UnifiedID) ([]model.TaskLink, error) {
	// rowid breaks ties between links created within one clock tick.
	return queryLinks(ctx, q, `
		SELECT `+linkColumns+` FROM task_links
		WHERE unifiedId = ?
		ORDER BY createdAt ASC, rowid ASC`, id)
}

// FindGroup returns the aggregate view of a unified id's links.
func (db *DB) FindGroup(ctx context.Context, id model.UnifiedID) (model.TaskLinkGroup, error) {
	links, err := db.FindLinksByUnifiedID(ctx, id)
	if err != nil {
		return model.TaskLinkGroup{}, err
	}
	return model.NewTaskLinkGroup(id, links), nil
}

// FindLinkByViewAndOriginalID returns the link for a concrete record.
// Returns nil if the record is not linked, not an error.
func (db *DB) FindLinkByViewAndOriginalID(ctx context.Context, view model.ViewType, originalID string) (*model.TaskLink, error) {
	link, err := scanLink(db.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM task_links
		WHERE viewType = ? AND originalId = ?`, view, originalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return link, nil
}

// GetLink returns a link by its row id, or nil if absent.
func (db *DB) GetLink(ctx context.Context, id string) (*model.TaskLink, error) {
	link, err := scanLink(db.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM task_links WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// UpdateLink applies a partial update to syncEnabled and/or lastSyncedAt.
// Returns nil when the update is empty or the link does not exist; no other
// column is ever written.
func (db *DB) UpdateLink(ctx context.Context, id string, upd model.LinkUpdate) (*model.TaskLink, error) {
	if upd.IsEmpty() {
		return nil, nil
	}

	var sets []string
	var args []any
	if upd.SyncEnabled != nil {
		sets = append(sets, "syncEnabled = ?")
		args = append(args, *upd.SyncEnabled)
	}
	if upd.LastSyncedAt != nil {
		sets = append(sets, "lastSyncedAt = ?")
		args = append(args, formatTime(*upd.LastSyncedAt))
	}
	args = append(args, id)

	result, err := db.ExecContext(ctx,
		`UPDATE task_links SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}
	return db.GetLink(ctx, id)
}

// UpdateSyncStatus sets syncEnabled on every link of a group in one statement.
// Returns the number of links touched.
func (db *DB) UpdateSyncStatus(ctx context.Context, id model.UnifiedID, enabled bool) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE task_links SET syncEnabled = ? WHERE unifiedId = ?`, enabled, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update sync status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows, nil
}

// DeleteLink removes one link row.
func (db *DB) DeleteLink(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM task_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return checkAffected(result, "link", id)
}

// RestoreLink writes back a link row exactly as it was read, keeping its id
// and timestamps. Used to undo an unlink whose follow-up step failed.
func (db *DB) RestoreLink(ctx context.Context, link model.TaskLink) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.UnifiedID, link.ViewType, link.OriginalID, link.SyncEnabled,
		formatTime(link.CreatedAt), formatTime(link.LastSyncedAt),
	)
	if isConstraintErr(err) {
		return fmt.Errorf("%w: %s %s is already linked", ErrConstraintViolation, link.ViewType, link.OriginalID)
	}
	if err != nil {
		return fmt.Errorf("failed to restore link: %w", err)
	}
	return nil
}

// DeleteLinkByRef removes the link of a concrete record, if any. Used when the
// view-native record itself is deleted. Returns whether a link was removed.
func (db *DB) DeleteLinkByRef(ctx context.Context, view model.ViewType, originalID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM task_links WHERE viewType = ? AND originalId = ?`, view, originalID)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeleteLinksByUnifiedID removes every link of a group and returns how many
// were removed, so callers can assert the expected fan-out.
func (db *DB) DeleteLinksByUnifiedID(ctx context.Context, id model.UnifiedID) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM task_links WHERE unifiedId = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete link group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows, nil
}

// CreateLinkGroup registers origin and its copies as one unified task group.
//
// The self-link for origin is written first; it defines the group's unified
// id. Targets in origin's own view are skipped. The whole sequence runs in one
// transaction: if any link fails (e.g. ErrConstraintViolation) nothing from
// this call is persisted.
func (db *DB) CreateLinkGroup(ctx context.Context, origin model.LinkRef, targets []model.LinkRef, syncEnabled bool) (*model.TaskLinkGroup, error) {
	unifiedID := model.NewUnifiedID(origin.ViewType, origin.OriginalID)

	var group model.TaskLinkGroup
	err := db.RunInTx(ctx, func(q Querier) error {
		now := time.Now()
		if _, err := createLink(ctx, q, model.NewLink{
			UnifiedID:   unifiedID,
			ViewType:    origin.ViewType,
			OriginalID:  origin.OriginalID,
			SyncEnabled: syncEnabled,
		}, now); err != nil {
			return err
		}

		skip := map[model.ViewType]bool{origin.ViewType: true}
		if err := createTargetLinks(ctx, q, unifiedID, skip, targets, syncEnabled, now); err != nil {
			return err
		}

		links, err := findLinksByUnifiedID(ctx, q, unifiedID)
		if err != nil {
			return err
		}
		group = model.NewTaskLinkGroup(unifiedID, links)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ExtendLinkGroup atomically adds target links to an existing group. A
// target in a view the group already covers fails with ErrConstraintViolation
// and nothing from this call is persisted. A view the group no longer covers,
// including the origin's after its link was removed, can be linked again. It
// fails with ErrNotFound if the group has no links.
func (db *DB) ExtendLinkGroup(ctx context.Context, id model.UnifiedID, targets []model.LinkRef, syncEnabled bool) (*model.TaskLinkGroup, error) {
	if _, _, err := model.ParseUnifiedID(id.String()); err != nil {
		return nil, err
	}

	var group model.TaskLinkGroup
	err := db.RunInTx(ctx, func(q Querier) error {
		existing, err := findLinksByUnifiedID(ctx, q, id)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return fmt.Errorf("link group not found: %s: %w", id, ErrNotFound)
		}

		if err := createTargetLinks(ctx, q, id, nil, targets, syncEnabled, time.Now()); err != nil {
			return err
		}

		links, err := findLinksByUnifiedID(ctx, q, id)
		if err != nil {
			return err
		}
		group = model.NewTaskLinkGroup(id, links)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func createTargetLinks(ctx context.Context, q Querier, id model.UnifiedID, skip map[model.ViewType]bool, targets []model.LinkRef, syncEnabled bool, now time.Time) error {
	for _, t := range targets {
		if skip[t.ViewType] {
			continue
		}
		if _, err := createLink(ctx, q, model.NewLink{
			UnifiedID:   id,
			ViewType:    t.ViewType,
			OriginalID:  t.OriginalID,
			SyncEnabled: syncEnabled,
		}, now); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*model.TaskLink, error) {
	var link model.TaskLink
	var createdAt, lastSyncedAt string
	if err := row.Scan(&link.ID, &link.UnifiedID, &link.ViewType, &link.OriginalID,
		&link.SyncEnabled, &createdAt, &lastSyncedAt); err != nil {
		return nil, err
	}
	var err error
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if link.LastSyncedAt, err = parseTime(lastSyncedAt); err != nil {
		return nil, err
	}
	return &link, nil
}

func queryLinks(ctx context.Context, q Querier, query string, args ...any) ([]model.TaskLink, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := []model.TaskLink{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}
