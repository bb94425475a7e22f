package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepulse-systems/carepulse-stack/alert/internal/models"
)

const alertColumns = `id, ward_id, alert_type, title, description, severity, status,
	ai_confidence, risk_score, priority, data_snapshot, source_event_id,
	created_at, updated_at, acknowledged_at, resolved_at`

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

// Create inserts the alert, keyed on source_event_id for idempotency. A
// redelivered event finds the winner of the original insert and returns it
// with created=false.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Alert) (*models.Alert, bool, error) {
	query := `
		INSERT INTO alerts (id, ward_id, alert_type, title, description, severity, status,
			ai_confidence, risk_score, priority, data_snapshot, source_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (source_event_id) DO NOTHING
		RETURNING ` + alertColumns

	inserted := &models.Alert{}
	err := r.pool.QueryRow(ctx, query,
		a.ID, a.WardID, a.AlertType, a.Title, a.Description, a.Severity, a.Status,
		a.AIConfidence, a.RiskScore, a.Priority, a.DataSnapshot, a.SourceEventID, a.CreatedAt,
	).Scan(scanDest(inserted)...)
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}

	// Conflict: this source event already produced an alert.
	existing, err := r.getBy(ctx, "source_event_id", a.SourceEventID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves an alert by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE %s = $1", alertColumns, column)

	a := &models.Alert{}
	err := r.pool.QueryRow(ctx, query, value).Scan(scanDest(a)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// List retrieves a filtered, paginated page of alerts plus the total count.
func (r *PostgresRepository) List(ctx context.Context, f models.ListFilters) ([]*models.Alert, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.WardID != "" {
		whereClause += fmt.Sprintf(" AND ward_id = $%d", argPos)
		args = append(args, f.WardID)
		argPos++
	}
	if f.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.Severity != "" {
		whereClause += fmt.Sprintf(" AND severity = $%d", argPos)
		args = append(args, f.Severity)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM alerts %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		a := &models.Alert{}
		if err := rows.Scan(scanDest(a)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, total, nil
}

// UpdateStatus persists a status change. The COALESCE keeps acknowledged_at
// and resolved_at at their first-set values across repeated updates.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $2,
			updated_at = now(),
			acknowledged_at = CASE WHEN $2 = 'acknowledged'
				THEN COALESCE(acknowledged_at, now()) ELSE acknowledged_at END,
			resolved_at = CASE WHEN $2 = 'resolved'
				THEN COALESCE(resolved_at, now()) ELSE resolved_at END
		WHERE id = $1
		RETURNING ` + alertColumns

	a := &models.Alert{}
	err := r.pool.QueryRow(ctx, query, id, status).Scan(scanDest(a)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}
	return a, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanDest(a *models.Alert) []interface{} {
	return []interface{}{
		&a.ID, &a.WardID, &a.AlertType, &a.Title, &a.Description, &a.Severity, &a.Status,
		&a.AIConfidence, &a.RiskScore, &a.Priority, &a.DataSnapshot, &a.SourceEventID,
		&a.CreatedAt, &a.UpdatedAt, &a.AcknowledgedAt, &a.ResolvedAt,
	}
}
