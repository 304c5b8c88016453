package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aomanu/cidrd/pkg/models"
)

const cidrColumns = "id, address::text, list_id, expires_at, created_at, updated_at"

func collectCidrs(rows pgx.Rows) ([]models.Cidr, error) {
	var cidrs []models.Cidr
	for rows.Next() {
		var c models.Cidr
		if err := rows.Scan(&c.ID, &c.Address, &c.ListID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cidr: %w", err)
		}
		cidrs = append(cidrs, c)
	}
	return cidrs, rows.Err()
}

// QueryCidrs returns the stored rows visible through the user's enabled
// lists of one type. When filter.ListID is set the tag filter is ignored;
// otherwise a non-empty tag set matches lists whose tags overlap it.
func (s *Store) QueryCidrs(ctx context.Context, filter models.CidrFilter) ([]models.Cidr, error) {
	query := `
		SELECT c.id, c.address::text, c.list_id, c.expires_at, c.created_at, c.updated_at
		FROM cidr c
		JOIN list l ON l.id = c.list_id
		WHERE l.user_id = $1 AND l.enabled AND l.list_type = $2
	`
	args := []any{filter.UserID, filter.ListType}
	switch {
	case filter.ListID != "":
		query += ` AND l.id = $3`
		args = append(args, filter.ListID)
	case len(filter.Tags) > 0:
		query += ` AND l.tags && $3::text[]`
		args = append(args, filter.Tags)
	}
	query += ` ORDER BY c.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cidrs: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}

// QueryCidrsPage returns one page of a list's rows, newest first. beforeID
// is the cursor from the previous page; zero means start from the top.
func (s *Store) QueryCidrsPage(ctx context.Context, listID string, beforeID int64, limit int32) ([]models.Cidr, error) {
	query := `SELECT ` + cidrColumns + ` FROM cidr WHERE list_id = $1`
	args := []any{listID}
	if beforeID > 0 {
		query += ` AND id < $2 ORDER BY id DESC LIMIT $3`
		args = append(args, beforeID, limit)
	} else {
		query += ` ORDER BY id DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cidr page: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}

// UpsertCidrsTx inserts addresses into a list, refreshing expires_at on
// rows that already exist.
func (s *Store) UpsertCidrsTx(ctx context.Context, tx pgx.Tx, listID string, addrs []string, expiresAt *time.Time) error {
	if len(addrs) == 0 {
		return nil
	}
	query := `
		INSERT INTO cidr (address, list_id, expires_at)
		SELECT unnest($1::cidr[]), $2, $3
		ON CONFLICT (address, list_id)
		DO UPDATE SET expires_at = EXCLUDED.expires_at, updated_at = now()
	`
	if _, err := tx.Exec(ctx, query, addrs, listID, expiresAt); err != nil {
		return fmt.Errorf("failed to upsert cidrs: %w", err)
	}
	return nil
}

// DeleteCidrsTx removes the given addresses from a list.
func (s *Store) DeleteCidrsTx(ctx context.Context, tx pgx.Tx, listID string, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	query := `DELETE FROM cidr WHERE list_id = $1 AND address = ANY($2::cidr[])`
	if _, err := tx.Exec(ctx, query, listID, addrs); err != nil {
		return fmt.Errorf("failed to delete cidrs: %w", err)
	}
	return nil
}

// SelectEnabledCidrsByListTypeTx returns the rows of every enabled list of
// one type owned by userID.
func (s *Store) SelectEnabledCidrsByListTypeTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, listType models.ListType) ([]models.Cidr, error) {
	query := `
		SELECT c.id, c.address::text, c.list_id, c.expires_at, c.created_at, c.updated_at
		FROM cidr c
		JOIN list l ON l.id = c.list_id
		WHERE l.user_id = $1 AND l.enabled AND l.list_type = $2
		ORDER BY c.id
	`
	rows, err := tx.Query(ctx, query, userID, listType)
	if err != nil {
		return nil, fmt.Errorf("failed to select cidrs by list type: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}

// SelectEnabledCidrsByListIDTx returns the rows of one list, or nothing
// when the list is disabled.
func (s *Store) SelectEnabledCidrsByListIDTx(ctx context.Context, tx pgx.Tx, listID string) ([]models.Cidr, error) {
	query := `
		SELECT ` + cidrColumns + `
		FROM cidr
		WHERE list_id = (SELECT id FROM list WHERE enabled AND id = $1)
		ORDER BY id
	`
	rows, err := tx.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to select cidrs by enabled list id: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}

// SelectCidrsByListIDTx returns every row of one list.
func (s *Store) SelectCidrsByListIDTx(ctx context.Context, tx pgx.Tx, listID string) ([]models.Cidr, error) {
	query := `SELECT ` + cidrColumns + ` FROM cidr WHERE list_id = $1 ORDER BY id`
	rows, err := tx.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to select cidrs by list id: %w", err)
	}
	defer rows.Close()
	return collectCidrs(rows)
}

// DeleteExpiredCidrs removes every row whose TTL has elapsed. Returns the
// number of rows reaped.
func (s *Store) DeleteExpiredCidrs(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cidr WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cidrs: %w", err)
	}
	return tag.RowsAffected(), nil
}
