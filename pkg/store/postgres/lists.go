package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aomanu/cidrd/pkg/models"
)

const listColumns = "id, user_id, list_type, enabled, tags, description, created_at, updated_at"

func scanList(row pgx.Row) (*models.List, error) {
	var l models.List
	err := row.Scan(&l.ID, &l.UserID, &l.ListType, &l.Enabled, &l.Tags, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateList inserts a new list. List ids are unique across all users;
// a collision returns models.ErrDuplicateList without touching the row.
func (s *Store) CreateList(ctx context.Context, list *models.List) error {
	query := `
		INSERT INTO list (id, user_id, list_type, enabled, tags, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		list.ID, list.UserID, list.ListType, list.Enabled, list.Tags, list.Description,
	).Scan(&list.CreatedAt, &list.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrDuplicateList
	}
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	return nil
}

// GetList fetches one list owned by userID.
func (s *Store) GetList(ctx context.Context, id string, userID uuid.UUID) (*models.List, error) {
	query := `SELECT ` + listColumns + ` FROM list WHERE id = $1 AND user_id = $2`
	list, err := scanList(s.pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return list, nil
}

// ListLists returns every list owned by userID.
func (s *Store) ListLists(ctx context.Context, userID uuid.UUID) ([]models.List, error) {
	query := `SELECT ` + listColumns + ` FROM list WHERE user_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	var lists []models.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

// UpdateList writes the full list record back. When job is non-nil it is
// enqueued in the same transaction, so a SAFE enable transition and its
// cleanup job commit atomically.
func (s *Store) UpdateList(ctx context.Context, list *models.List, job *models.CidrJob) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE list
			SET list_type = $3, enabled = $4, tags = $5, description = $6, updated_at = now()
			WHERE id = $1 AND user_id = $2
			RETURNING updated_at
		`
		err := tx.QueryRow(ctx, query,
			list.ID, list.UserID, list.ListType, list.Enabled, list.Tags, list.Description,
		).Scan(&list.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrListNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update list: %w", err)
		}

		if job != nil {
			if err := enqueueJobTx(ctx, tx, job); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteList removes a list; its cidr rows go with it via ON DELETE CASCADE.
func (s *Store) DeleteList(ctx context.Context, id string, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM list WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrListNotFound
	}
	return nil
}

// GetListCidrs returns the stored rows of one list owned by userID.
func (s *Store) GetListCidrs(ctx context.Context, id string, userID uuid.UUID) ([]models.Cidr, error) {
	if _, err := s.GetList(ctx, id, userID); err != nil {
		return nil, err
	}
	query := `
		SELECT ` + cidrColumns + `
		FROM cidr
		WHERE list_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get list cidrs: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}
