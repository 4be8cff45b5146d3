package pass

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

// PostgresStore persists gate passes. Every transition carries its status
// precondition in the WHERE clause so two concurrent actions cannot both
// succeed; the sparse unique index on qr_token is the authority on token
// uniqueness.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pass store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectPass = `
	SELECT id, resident_id, reason, from_date, to_date, status, qr_token,
	       guardian_acted_by, guardian_acted_at, guardian_reason,
	       supervisor_acted_by, supervisor_acted_at, supervisor_reason,
	       validated_by, validated_at,
	       exit_at, exit_recorded_by, entry_at, entry_recorded_by,
	       created_at, updated_at
	FROM gate_passes
`

func (s *PostgresStore) Create(ctx context.Context, pass *GatePass) error {
	query := `
		INSERT INTO gate_passes (
			id, resident_id, reason, from_date, to_date, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(pass.ID),
		uuid.UUID(pass.ResidentID),
		pass.Reason,
		pass.FromDate,
		pass.ToDate,
		string(pass.Status),
		pass.CreatedAt,
		pass.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("gate pass %s: %w", pass.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert gate pass: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, passID id.PassID) (*GatePass, error) {
	row := s.db.QueryRowContext(ctx, selectPass+` WHERE id = $1`, uuid.UUID(passID))
	pass, err := scanPass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query gate pass: %w", err)
	}
	return pass, nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*GatePass, error) {
	row := s.db.QueryRowContext(ctx, selectPass+` WHERE qr_token = $1`, token)
	pass, err := scanPass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gate pass token: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query gate pass by token: %w", err)
	}
	return pass, nil
}

func (s *PostgresStore) CountPending(ctx context.Context, residentID id.UserID) (int, error) {
	query := `
		SELECT COUNT(*) FROM gate_passes
		WHERE resident_id = $1 AND status IN ('PENDING_GUARDIAN', 'PENDING_SUPERVISOR')
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(residentID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending passes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) HasOverlapping(ctx context.Context, residentID id.UserID, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM gate_passes
			WHERE resident_id = $1
			  AND status IN ('PENDING_GUARDIAN', 'PENDING_SUPERVISOR', 'APPROVED')
			  AND from_date < $3 AND $2 < to_date
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(residentID), from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlapping passes: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GuardianApprove(ctx context.Context, passID id.PassID, guardianID id.UserID, at time.Time) error {
	query := `
		UPDATE gate_passes
		SET status = 'PENDING_SUPERVISOR', guardian_acted_by = $2, guardian_acted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'PENDING_GUARDIAN'
	`
	return s.conditionalUpdate(ctx, passID, query, uuid.UUID(passID), uuid.UUID(guardianID), at)
}

func (s *PostgresStore) GuardianReject(ctx context.Context, passID id.PassID, guardianID id.UserID, reason string, at time.Time) error {
	query := `
		UPDATE gate_passes
		SET status = 'REJECTED', guardian_acted_by = $2, guardian_acted_at = $3,
		    guardian_reason = $4, updated_at = $3
		WHERE id = $1 AND status = 'PENDING_GUARDIAN'
	`
	return s.conditionalUpdate(ctx, passID, query, uuid.UUID(passID), uuid.UUID(guardianID), at, reason)
}

func (s *PostgresStore) SupervisorApprove(ctx context.Context, passID id.PassID, supervisorID id.UserID, token string, at time.Time, allowedFrom []Status) error {
	query := `
		UPDATE gate_passes
		SET status = 'APPROVED', qr_token = $2, supervisor_acted_by = $3,
		    supervisor_acted_at = $4, updated_at = $4
		WHERE id = $1 AND status = ANY($5::text[])
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(passID), token, uuid.UUID(supervisorID), at, pq.Array(statusStrings(allowedFrom)))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("gate pass token: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("approve gate pass: %w", err)
	}
	return s.requireRowHit(ctx, result, passID)
}

func (s *PostgresStore) SupervisorReject(ctx context.Context, passID id.PassID, supervisorID id.UserID, reason string, at time.Time, allowedFrom []Status) error {
	query := `
		UPDATE gate_passes
		SET status = 'REJECTED', supervisor_acted_by = $2, supervisor_acted_at = $3,
		    supervisor_reason = $4, updated_at = $3
		WHERE id = $1 AND status = ANY($5::text[])
	`
	return s.conditionalUpdate(ctx, passID, query,
		uuid.UUID(passID), uuid.UUID(supervisorID), at, reason, pq.Array(statusStrings(allowedFrom)))
}

func (s *PostgresStore) StampValidation(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	query := `
		UPDATE gate_passes
		SET validated_by = $2, validated_at = $3
		WHERE id = $1 AND status = 'APPROVED'
	`
	return s.conditionalUpdate(ctx, passID, query, uuid.UUID(passID), uuid.UUID(actorID), at)
}

func (s *PostgresStore) RecordExit(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	// A fresh exit clears the previous entry: re-exit within the validity
	// window starts a new outside period.
	query := `
		UPDATE gate_passes
		SET exit_at = $3, exit_recorded_by = $2, entry_at = NULL, entry_recorded_by = NULL, updated_at = $3
		WHERE id = $1 AND status = 'APPROVED'
		  AND (exit_at IS NULL OR entry_at IS NOT NULL)
	`
	return s.conditionalUpdate(ctx, passID, query, uuid.UUID(passID), uuid.UUID(actorID), at)
}

func (s *PostgresStore) RecordEntry(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	query := `
		UPDATE gate_passes
		SET entry_at = $3, entry_recorded_by = $2, updated_at = $3
		WHERE id = $1 AND exit_at IS NOT NULL AND entry_at IS NULL
	`
	return s.conditionalUpdate(ctx, passID, query, uuid.UUID(passID), uuid.UUID(actorID), at)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, page Page) ([]*GatePass, error) {
	query := selectPass + `
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`
	return s.queryPasses(ctx, query, string(status), normalizeOffset(page), normalizeLimit(page))
}

func (s *PostgresStore) ListPendingForResidents(ctx context.Context, residentIDs []id.UserID) ([]*GatePass, error) {
	ids := make([]uuid.UUID, 0, len(residentIDs))
	for _, residentID := range residentIDs {
		ids = append(ids, uuid.UUID(residentID))
	}
	query := selectPass + `
		WHERE resident_id = ANY($1::uuid[])
		  AND status IN ('PENDING_GUARDIAN', 'PENDING_SUPERVISOR')
		ORDER BY created_at DESC, id DESC
	`
	return s.queryPasses(ctx, query, pq.Array(ids))
}

func (s *PostgresStore) ListByResident(ctx context.Context, residentID id.UserID, page Page) ([]*GatePass, error) {
	query := selectPass + `
		WHERE resident_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`
	return s.queryPasses(ctx, query, uuid.UUID(residentID), normalizeOffset(page), normalizeLimit(page))
}

func (s *PostgresStore) ListHistory(ctx context.Context, page Page) ([]*GatePass, error) {
	query := selectPass + `
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`
	return s.queryPasses(ctx, query, normalizeOffset(page), normalizeLimit(page))
}

func (s *PostgresStore) ListCurrentlyOutside(ctx context.Context) ([]*GatePass, error) {
	query := selectPass + `
		WHERE exit_at IS NOT NULL AND entry_at IS NULL
		ORDER BY exit_at
	`
	return s.queryPasses(ctx, query)
}

func (s *PostgresStore) ListEntriesSince(ctx context.Context, since time.Time) ([]*GatePass, error) {
	query := selectPass + `
		WHERE entry_at >= $1
		ORDER BY entry_at DESC
	`
	return s.queryPasses(ctx, query, since)
}

func (s *PostgresStore) conditionalUpdate(ctx context.Context, passID id.PassID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update gate pass: %w", err)
	}
	return s.requireRowHit(ctx, result, passID)
}

// requireRowHit distinguishes "pass missing" from "pass exists but its state
// no longer permits the transition" after a zero-row conditional update.
func (s *PostgresStore) requireRowHit(ctx context.Context, result sql.Result, passID id.PassID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update gate pass: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM gate_passes WHERE id = $1)`, uuid.UUID(passID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check gate pass existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) queryPasses(ctx context.Context, query string, args ...any) ([]*GatePass, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query gate passes: %w", err)
	}
	defer rows.Close()

	var passes []*GatePass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gate pass: %w", err)
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate passes: %w", err)
	}
	return passes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (*GatePass, error) {
	var (
		pass              GatePass
		passID            uuid.UUID
		residentID        uuid.UUID
		status            string
		qrToken           sql.NullString
		guardianActedBy   uuid.NullUUID
		guardianActedAt   sql.NullTime
		guardianReason    sql.NullString
		supervisorActedBy uuid.NullUUID
		supervisorActedAt sql.NullTime
		supervisorReason  sql.NullString
		validatedBy       uuid.NullUUID
		validatedAt       sql.NullTime
		exitAt            sql.NullTime
		exitRecordedBy    uuid.NullUUID
		entryAt           sql.NullTime
		entryRecordedBy   uuid.NullUUID
	)
	err := row.Scan(
		&passID, &residentID, &pass.Reason, &pass.FromDate, &pass.ToDate, &status, &qrToken,
		&guardianActedBy, &guardianActedAt, &guardianReason,
		&supervisorActedBy, &supervisorActedAt, &supervisorReason,
		&validatedBy, &validatedAt,
		&exitAt, &exitRecordedBy, &entryAt, &entryRecordedBy,
		&pass.CreatedAt, &pass.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pass.ID = id.PassID(passID)
	pass.ResidentID = id.UserID(residentID)
	pass.Status = Status(status)
	pass.QRToken = qrToken.String
	pass.GuardianReason = guardianReason.String
	pass.SupervisorReason = supervisorReason.String
	pass.GuardianActedBy = nullableUser(guardianActedBy)
	pass.GuardianActedAt = nullableTime(guardianActedAt)
	pass.SupervisorActedBy = nullableUser(supervisorActedBy)
	pass.SupervisorActedAt = nullableTime(supervisorActedAt)
	pass.ValidatedBy = nullableUser(validatedBy)
	pass.ValidatedAt = nullableTime(validatedAt)
	pass.ExitAt = nullableTime(exitAt)
	pass.ExitRecordedBy = nullableUser(exitRecordedBy)
	pass.EntryAt = nullableTime(entryAt)
	pass.EntryRecordedBy = nullableUser(entryRecordedBy)
	return &pass, nil
}

func nullableUser(v uuid.NullUUID) *id.UserID {
	if !v.Valid {
		return nil
	}
	converted := id.UserID(v.UUID)
	return &converted
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func normalizeOffset(page Page) int {
	if page.Offset < 0 {
		return 0
	}
	return page.Offset
}

func normalizeLimit(page Page) int {
	if page.Limit <= 0 {
		return 20
	}
	return page.Limit
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
