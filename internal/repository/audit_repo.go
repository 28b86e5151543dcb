package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"finrep-server/internal/event"
)

// AuditRepository persists auth events for after-the-fact review.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, e event.Event) error {
	var details []byte
	if len(e.Details) > 0 {
		encoded, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		details = encoded
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_events (id, event_type, user_id, client_ip, details, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Type), nullable(e.UserID), nullable(e.ClientIP), details, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]event.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, event_type, user_id, client_ip, details, occurred_at
		 FROM auth_events ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var (
			e        event.Event
			kind     string
			userID   *string
			clientIP *string
			details  []byte
		)
		if err := rows.Scan(&e.ID, &kind, &userID, &clientIP, &details, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		e.Type = event.Type(kind)
		if userID != nil {
			e.UserID = *userID
		}
		if clientIP != nil {
			e.ClientIP = *clientIP
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
