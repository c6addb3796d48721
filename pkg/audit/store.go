package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Logger records activity events.
type Logger interface {
	Log(ctx context.Context, userID *int64, eventType EventType, status EventStatus, detail map[string]interface{})
}

// Store is the DB-backed activity logger. Logging failures are reported
// to the structured log but never fail the operation being recorded.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a new activity log store
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Log inserts one activity row.
func (s *Store) Log(ctx context.Context, userID *int64, eventType EventType, status EventStatus, detail map[string]interface{}) {
	payload, err := json.Marshal(detail)
	if err != nil {
		s.logger.Error("failed to marshal activity detail", "error", err, "event_type", eventType)
		payload = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, event_type, status, detail) VALUES ($1, $2, $3, $4)`,
		userID, eventType, status, payload,
	)
	if err != nil {
		s.logger.Error("failed to record activity event",
			"error", err,
			"event_type", eventType,
			"status", status,
		)
	}
}

// Recent returns the newest events, optionally filtered by acting user.
func (s *Store) Recent(ctx context.Context, userID *int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if userID != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, user_id, event_type, status, detail, created_at
			FROM activity_logs
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, *userID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, user_id, event_type, status, detail, created_at
			FROM activity_logs
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var actor sql.NullInt64
		var detail []byte
		if err := rows.Scan(&event.ID, &actor, &event.Type, &event.Status, &detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		if actor.Valid {
			id := actor.Int64
			event.UserID = &id
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode activity detail: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity events: %w", err)
	}
	return events, nil
}
