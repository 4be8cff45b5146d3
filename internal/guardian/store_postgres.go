package guardian

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// PostgresStore persists guardian links. Uniqueness of active pairs is
// enforced by a partial unique index on (guardian_id, resident_id) WHERE
// status = 'active', not only by application checks, because concurrent
// requests can interleave between an existence check and the insert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed link store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, link *Link) error {
	query := `
		INSERT INTO guardian_links (
			id, guardian_id, resident_id, relationship, linked_by,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(link.ID),
		uuid.UUID(link.GuardianID),
		uuid.UUID(link.ResidentID),
		link.Relationship,
		uuid.UUID(link.LinkedBy),
		string(link.Status),
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active link exists for pair: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert guardian link: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActive(ctx context.Context, guardianID, residentID id.UserID) (*Link, error) {
	query := selectLinks + `
		WHERE guardian_id = $1 AND resident_id = $2 AND status = 'active'
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(guardianID), uuid.UUID(residentID))
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("guardian link not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find guardian link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, guardianID, residentID id.UserID, at time.Time) error {
	query := `
		UPDATE guardian_links
		SET status = 'inactive', updated_at = $3
		WHERE guardian_id = $1 AND resident_id = $2 AND status = 'active'
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(guardianID), uuid.UUID(residentID), at)
	if err != nil {
		return fmt.Errorf("deactivate guardian link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate guardian link: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("guardian link not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListActiveByGuardian(ctx context.Context, guardianID id.UserID) ([]*Link, error) {
	query := selectLinks + `
		WHERE guardian_id = $1 AND status = 'active'
		ORDER BY created_at
	`
	return s.list(ctx, query, uuid.UUID(guardianID))
}

func (s *PostgresStore) ListActiveByResident(ctx context.Context, residentID id.UserID) ([]*Link, error) {
	query := selectLinks + `
		WHERE resident_id = $1 AND status = 'active'
		ORDER BY created_at
	`
	return s.list(ctx, query, uuid.UUID(residentID))
}

const selectLinks = `
	SELECT id, guardian_id, resident_id, relationship, linked_by,
	       status, created_at, updated_at
	FROM guardian_links
`

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query guardian links: %w", err)
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guardian link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guardian links: %w", err)
	}
	return links, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*Link, error) {
	var (
		link       Link
		linkID     uuid.UUID
		guardianID uuid.UUID
		residentID uuid.UUID
		linkedBy   uuid.UUID
		status     string
	)
	err := row.Scan(
		&linkID,
		&guardianID,
		&residentID,
		&link.Relationship,
		&linkedBy,
		&status,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.ID = id.LinkID(linkID)
	link.GuardianID = id.UserID(guardianID)
	link.ResidentID = id.UserID(residentID)
	link.LinkedBy = id.UserID(linkedBy)
	link.Status = LinkStatus(status)
	return &link, nil
}
