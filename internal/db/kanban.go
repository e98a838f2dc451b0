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

const cardColumns = `id, lane_id, title, description, position, due_date, assignee, created_at, updated_at`

// CreateLane inserts a kanban lane with a caller-chosen id (e.g. "todo").
// Position 0 appends it after the existing lanes.
func (db *DB) CreateLane(ctx context.Context, lane model.KanbanLane) error {
	if strings.TrimSpace(lane.ID) == "" || strings.TrimSpace(lane.Title) == "" {
		return fmt.Errorf("lane id and title are required")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO kanban_lanes (id, title, position)
		VALUES (?, ?, CASE WHEN ? > 0 THEN ? ELSE (SELECT COALESCE(MAX(position), 0) + 1 FROM kanban_lanes) END)`,
		lane.ID, lane.Title, lane.Position, lane.Position)
	if isConstraintErr(err) {
		return fmt.Errorf("%w: lane %s already exists", ErrConstraintViolation, lane.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create lane: %w", err)
	}
	return nil
}

// EnsureLane creates a lane if it doesn't exist.
func (db *DB) EnsureLane(ctx context.Context, lane model.KanbanLane) error {
	err := db.CreateLane(ctx, lane)
	if errors.Is(err, ErrConstraintViolation) {
		return nil
	}
	return err
}

// ListLanes returns all lanes in board order.
func (db *DB) ListLanes(ctx context.Context) ([]model.KanbanLane, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, position FROM kanban_lanes ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lanes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lanes []model.KanbanLane
	for rows.Next() {
		var l model.KanbanLane
		if err := rows.Scan(&l.ID, &l.Title, &l.Position); err != nil {
			return nil, fmt.Errorf("failed to scan lane: %w", err)
		}
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

// CreateCard inserts a card at the bottom of its lane.
func (db *DB) CreateCard(ctx context.Context, in model.NewKanbanCard) (*model.KanbanCard, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("card title is required")
	}

	now := time.Now().UTC()
	card := &model.KanbanCard{
		ID:          model.GenerateID(model.ViewKanban),
		LaneID:      in.LaneID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Assignee:    in.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := db.RunInTx(ctx, func(q Querier) error {
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM kanban_lanes WHERE id = ?`, in.LaneID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check lane: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("lane not found: %s: %w", in.LaneID, ErrNotFound)
		}
		if err := q.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) + 1 FROM kanban_cards WHERE lane_id = ?`,
			in.LaneID).Scan(&card.Position); err != nil {
			return fmt.Errorf("failed to compute card position: %w", err)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO kanban_cards (`+cardColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			card.ID, card.LaneID, card.Title, card.Description, card.Position,
			formatTimePtr(card.DueDate), card.Assignee, formatTime(card.CreatedAt), formatTime(card.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// GetCard retrieves a card by ID.
func (db *DB) GetCard(ctx context.Context, id string) (*model.KanbanCard, error) {
	card, err := scanCard(db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM kanban_cards WHERE id = ?`, id))
	if err != nil {
		return nil, wrapNotFound(err, "card", id)
	}
	return card, nil
}

// ListCards returns all cards ordered by lane then position.
func (db *DB) ListCards(ctx context.Context) ([]model.KanbanCard, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", cardColumns)+`
		FROM kanban_cards c
		JOIN kanban_lanes l ON l.id = c.lane_id
		ORDER BY l.position, c.position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []model.KanbanCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// UpdateCardFields writes the mirrored fields of a card: title and due date.
// The card stays in its lane.
func (db *DB) UpdateCardFields(ctx context.Context, id string, in model.NewKanbanCard) error {
	result, err := db.ExecContext(ctx, `
		UPDATE kanban_cards SET title = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		in.Title, formatTimePtr(in.DueDate), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return checkAffected(result, "card", id)
}

// MoveCard moves a card to the bottom of another lane.
func (db *DB) MoveCard(ctx context.Context, id, laneID string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE kanban_cards
		SET lane_id = ?,
		    position = (SELECT COALESCE(MAX(position), 0) + 1 FROM kanban_cards WHERE lane_id = ?),
		    updated_at = ?
		WHERE id = ?`,
		laneID, laneID, formatTime(time.Now()), id)
	if isConstraintErr(err) {
		return fmt.Errorf("lane not found: %s: %w", laneID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to move card: %w", err)
	}
	return checkAffected(result, "card", id)
}

// DeleteCard removes a card.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM kanban_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return checkAffected(result, "card", id)
}

func scanCard(row rowScanner) (*model.KanbanCard, error) {
	var card model.KanbanCard
	var due sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&card.ID, &card.LaneID, &card.Title, &card.Description, &card.Position,
		&due, &card.Assignee, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if card.DueDate, err = parseNullTime(due); err != nil {
		return nil, err
	}
	if card.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if card.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &card, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
