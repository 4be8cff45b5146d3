package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "passgate/pkg/domain"
)

// PostgresStore persists ledger events. Inserts are append-only; there is no
// update path by design.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO gate_pass_events (
			id, pass_id, resident_id, action, timestamp, actor_id, late, note
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.PassID),
		uuid.UUID(event.ResidentID),
		string(event.Action),
		event.Timestamp,
		uuid.UUID(event.ActorID),
		event.Late,
		event.Note,
	)
	if err != nil {
		return fmt.Errorf("insert gate pass event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, page Page) ([]Event, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	query := `
		SELECT id, pass_id, resident_id, action, timestamp, actor_id, late, note
		FROM gate_pass_events
		WHERE ($1::uuid IS NULL OR resident_id = $1)
		  AND (cardinality($2::text[]) = 0 OR action = ANY($2))
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		  AND ($4::timestamptz IS NULL OR timestamp < $4)
		ORDER BY timestamp DESC, id DESC
		OFFSET $5 LIMIT $6
	`

	var residentArg any
	if !filter.ResidentID.IsNil() {
		residentArg = uuid.UUID(filter.ResidentID)
	}
	actions := make([]string, 0, len(filter.Actions))
	for _, action := range filter.Actions {
		actions = append(actions, string(action))
	}
	var fromArg, toArg any
	if !filter.From.IsZero() {
		fromArg = filter.From
	}
	if !filter.To.IsZero() {
		toArg = filter.To
	}

	rows, err := s.db.QueryContext(ctx, query,
		residentArg, pq.Array(actions), fromArg, toArg, page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("query gate pass events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) ListByPass(ctx context.Context, passID id.PassID) ([]Event, error) {
	query := `
		SELECT id, pass_id, resident_id, action, timestamp, actor_id, late, note
		FROM gate_pass_events
		WHERE pass_id = $1
		ORDER BY timestamp
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(passID))
	if err != nil {
		return nil, fmt.Errorf("query gate pass events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event      Event
			eventID    uuid.UUID
			passID     uuid.UUID
			residentID uuid.UUID
			actorID    uuid.UUID
			action     string
		)
		err := rows.Scan(
			&eventID,
			&passID,
			&residentID,
			&action,
			&event.Timestamp,
			&actorID,
			&event.Late,
			&event.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gate pass event: %w", err)
		}
		event.ID = id.EventID(eventID)
		event.PassID = id.PassID(passID)
		event.ResidentID = id.UserID(residentID)
		event.ActorID = id.UserID(actorID)
		event.Action = Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate pass events: %w", err)
	}
	return events, nil
}
