package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Create inserts one delivery attempt row.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, guardian_id, channel, status, content,
			alert_id, ward_id, error_message, metadata, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.GuardianID, n.Channel, n.Status, n.Content,
		n.AlertID, n.WardID, n.ErrorMessage, n.Metadata, n.SentAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByAlert retrieves every delivery attempt recorded for an alert.
func (r *PostgresRepository) ListByAlert(ctx context.Context, alertID string) ([]*Notification, error) {
	query := `
		SELECT id, guardian_id, channel, status, content, alert_id, ward_id,
			error_message, metadata, sent_at, created_at
		FROM notifications
		WHERE alert_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.GuardianID, &n.Channel, &n.Status, &n.Content,
			&n.AlertID, &n.WardID, &n.ErrorMessage, &n.Metadata, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notifications, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
