package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
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

// Save stores a prediction.
func (r *PostgresRepository) Save(ctx context.Context, p *Prediction) error {
	query := `
		INSERT INTO predictions (id, ward_id, model_id, model_version, prediction_type,
			input_features, risk_score, confidence, severity, time_horizon, factors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.WardID, p.ModelID, p.ModelVersion, p.PredictionType,
		p.InputFeatures, p.RiskScore, p.Confidence, p.Severity,
		p.TimeHorizon, p.Factors, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// FindByID retrieves a prediction by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Prediction, error) {
	query := `
		SELECT id, ward_id, model_id, model_version, prediction_type,
			input_features, risk_score, confidence, severity, time_horizon, factors, created_at
		FROM predictions
		WHERE id = $1
	`

	p := &Prediction{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.WardID, &p.ModelID, &p.ModelVersion, &p.PredictionType,
		&p.InputFeatures, &p.RiskScore, &p.Confidence, &p.Severity,
		&p.TimeHorizon, &p.Factors, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return p, nil
}

// FindByWard retrieves the most recent predictions for a ward.
func (r *PostgresRepository) FindByWard(ctx context.Context, wardID string, limit int) ([]*Prediction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, ward_id, model_id, model_version, prediction_type,
			input_features, risk_score, confidence, severity, time_horizon, factors, created_at
		FROM predictions
		WHERE ward_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, wardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	predictions := []*Prediction{}
	for rows.Next() {
		p := &Prediction{}
		if err := rows.Scan(
			&p.ID, &p.WardID, &p.ModelID, &p.ModelVersion, &p.PredictionType,
			&p.InputFeatures, &p.RiskScore, &p.Confidence, &p.Severity,
			&p.TimeHorizon, &p.Factors, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return predictions, nil
}

// RecentEscalationStats counts warning and critical predictions for a ward
// inside the given window.
func (r *PostgresRepository) RecentEscalationStats(ctx context.Context, wardID string, window time.Duration) (*EscalationStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE severity IN ('medium', 'high')) AS warnings,
			COUNT(*) FILTER (WHERE severity = 'critical') AS criticals,
			MAX(created_at) FILTER (WHERE severity IN ('medium', 'high')) AS last_warning_at
		FROM predictions
		WHERE ward_id = $1 AND created_at > $2
	`

	stats := &EscalationStats{}
	since := time.Now().Add(-window)
	err := r.pool.QueryRow(ctx, query, wardID, since).Scan(
		&stats.WarningCount, &stats.CriticalCount, &stats.LastWarningAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
