package store

import (
	"context"
	"database/sql"
	"fmt"

	"dublett/internal/models"
)

// ActionExists checks whether a resolution action exists by id.
func (s *Store) ActionExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM resolution_actions WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAction appends a resolution action outside a group transaction.
// Resolutions use ResolveGroup instead so the action commits with the state
// change.
func (s *Store) CreateAction(ctx context.Context, action *models.ResolutionAction) error {
	if action == nil {
		return fmt.Errorf("action is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = insertAction(ctx, tx, action); err != nil {
		return err
	}
	return tx.Commit()
}

// ListActions returns the audit trail of a group, oldest first.
func (s *Store) ListActions(ctx context.Context, groupID string) ([]models.ResolutionAction, error) {
	rows, err := s.db.QueryContext(ctx, actionSelect+" WHERE group_id = ? ORDER BY created_at ASC, id ASC", groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.ResolutionAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *action)
	}
	return actions, rows.Err()
}

// LatestAction returns the most recent action of a group, or nil when the
// group has never been resolved.
func (s *Store) LatestAction(ctx context.Context, groupID string) (*models.ResolutionAction, error) {
	row := s.db.QueryRowContext(ctx, actionSelect+" WHERE group_id = ? ORDER BY created_at DESC, id DESC LIMIT 1", groupID)
	return scanAction(row)
}

const actionSelect = `SELECT id, group_id, tenant_id, strategy, actor, outcome,
	deleted_count, reclaimed_bytes, instruction_digest, note, created_at FROM resolution_actions`

func scanAction(scanner interface {
	Scan(dest ...any) error
}) (*models.ResolutionAction, error) {
	var action models.ResolutionAction
	var strategy, outcome string
	var digest, note sql.NullString
	var createdAt string

	if err := scanner.Scan(
		&action.ID,
		&action.GroupID,
		&action.TenantID,
		&strategy,
		&action.Actor,
		&outcome,
		&action.DeletedCount,
		&action.ReclaimedBytes,
		&digest,
		&note,
		&createdAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	action.Strategy = models.ResolutionStrategy(strategy)
	action.Outcome = models.ResolutionStatus(outcome)
	action.InstructionDigest = digest.String
	action.Note = note.String

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	action.CreatedAt = parsed

	return &action, nil
}

func insertAction(ctx context.Context, tx *sql.Tx, action *models.ResolutionAction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO resolution_actions (
			id, group_id, tenant_id, strategy, actor, outcome,
			deleted_count, reclaimed_bytes, instruction_digest, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		action.ID,
		action.GroupID,
		action.TenantID,
		action.Strategy,
		action.Actor,
		action.Outcome,
		action.DeletedCount,
		action.ReclaimedBytes,
		nullIfEmpty(action.InstructionDigest),
		nullIfEmpty(action.Note),
		formatTime(action.CreatedAt),
	)
	return err
}
