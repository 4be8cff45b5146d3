package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// PostgresStore persists attendance records. The (resident_id, day) unique
// index is the authority on one-mark-per-day; the service treats the
// resulting conflict as a normal "already marked" outcome.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed attendance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record Record) error {
	query := `
		INSERT INTO attendance_records (
			id, resident_id, day, marked_at, latitude, longitude, distance_meters, manual
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		uuid.UUID(record.ResidentID),
		record.Day,
		record.MarkedAt,
		record.Latitude,
		record.Longitude,
		record.DistanceMeters,
		record.Manual,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("attendance record for day %s: %w", record.Day, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByResidentAndDay(ctx context.Context, residentID id.UserID, day string) (Record, error) {
	query := `
		SELECT id, resident_id, day, marked_at, latitude, longitude, distance_meters, manual
		FROM attendance_records
		WHERE resident_id = $1 AND day = $2
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, uuid.UUID(residentID), day))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("attendance record for day %s: %w", day, sentinel.ErrNotFound)
		}
		return Record{}, fmt.Errorf("query attendance record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByDay(ctx context.Context, day string) ([]Record, error) {
	query := `
		SELECT id, resident_id, day, marked_at, latitude, longitude, distance_meters, manual
		FROM attendance_records
		WHERE day = $1
		ORDER BY marked_at
	`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		record     Record
		residentID uuid.UUID
	)
	err := row.Scan(
		&record.ID,
		&residentID,
		&record.Day,
		&record.MarkedAt,
		&record.Latitude,
		&record.Longitude,
		&record.DistanceMeters,
		&record.Manual,
	)
	if err != nil {
		return Record{}, err
	}
	record.ResidentID = id.UserID(residentID)
	return record, nil
}
