package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
)

const callColumns = `id, ward_id, call_type, priority, status, dispatcher_id, source,
	health_snapshot, location_snapshot, ai_analysis, notes, COALESCE(source_event_id, ''),
	created_at, updated_at, assigned_at, resolved_at`

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

// CreateCall inserts the call, keyed on source_event_id when present so a
// redelivered risk event cannot open a second emergency call.
func (r *PostgresRepository) CreateCall(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error) {
	query := `
		INSERT INTO emergency_calls (id, ward_id, call_type, priority, status, dispatcher_id, source,
			health_snapshot, location_snapshot, ai_analysis, notes, source_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (source_event_id) WHERE source_event_id IS NOT NULL DO NOTHING
		RETURNING ` + callColumns

	var sourceEventID *string
	if c.SourceEventID != "" {
		sourceEventID = &c.SourceEventID
	}

	inserted := &models.EmergencyCall{}
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.WardID, c.CallType, c.Priority, c.Status, c.DispatcherID, c.Source,
		c.HealthSnapshot, c.LocationSnapshot, c.AIAnalysis, c.Notes, sourceEventID, c.CreatedAt,
	).Scan(scanCallDest(inserted)...)
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create call: %w", err)
	}

	// Conflict: this source event already opened a call.
	existing := &models.EmergencyCall{}
	getQuery := fmt.Sprintf("SELECT %s FROM emergency_calls WHERE source_event_id = $1", callColumns)
	if err := r.pool.QueryRow(ctx, getQuery, c.SourceEventID).Scan(scanCallDest(existing)...); err != nil {
		return nil, false, fmt.Errorf("failed to load existing call: %w", err)
	}
	return existing, false, nil
}

// GetCall retrieves a call by ID.
func (r *PostgresRepository) GetCall(ctx context.Context, id string) (*models.EmergencyCall, error) {
	query := fmt.Sprintf("SELECT %s FROM emergency_calls WHERE id = $1", callColumns)

	c := &models.EmergencyCall{}
	err := r.pool.QueryRow(ctx, query, id).Scan(scanCallDest(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return c, nil
}

// ListCalls retrieves a filtered, paginated page of calls plus the total.
func (r *PostgresRepository) ListCalls(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.Priority != "" {
		whereClause += fmt.Sprintf(" AND priority = $%d", argPos)
		args = append(args, f.Priority)
		argPos++
	}
	if f.DispatcherID != "" {
		whereClause += fmt.Sprintf(" AND dispatcher_id = $%d", argPos)
		args = append(args, f.DispatcherID)
		argPos++
	}
	if f.WardID != "" {
		whereClause += fmt.Sprintf(" AND ward_id = $%d", argPos)
		args = append(args, f.WardID)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM emergency_calls %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", err)
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
		FROM emergency_calls
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, callColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	calls := []*models.EmergencyCall{}
	for rows.Next() {
		c := &models.EmergencyCall{}
		if err := rows.Scan(scanCallDest(c)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return calls, total, nil
}

// FindBestAvailableDispatcher picks the available dispatcher carrying the
// least load.
func (r *PostgresRepository) FindBestAvailableDispatcher(ctx context.Context) (*models.Dispatcher, error) {
	query := `
		SELECT id, user_id, name, available, active_calls, created_at, updated_at
		FROM dispatchers
		WHERE available = TRUE
		ORDER BY active_calls ASC, created_at ASC
		LIMIT 1
	`

	d := &models.Dispatcher{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&d.ID, &d.UserID, &d.Name, &d.Available, &d.ActiveCalls, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDispatcherAvailable
		}
		return nil, fmt.Errorf("failed to find dispatcher: %w", err)
	}
	return d, nil
}

// AssignCall moves the call to assigned and flips the dispatcher busy in
// one transaction, so a crash cannot strand a busy dispatcher with no call.
func (r *PostgresRepository) AssignCall(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	callQuery := `
		UPDATE emergency_calls
		SET status = 'assigned',
			dispatcher_id = $2,
			assigned_at = COALESCE(assigned_at, now()),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + callColumns

	c := &models.EmergencyCall{}
	if err := tx.QueryRow(ctx, callQuery, callID, dispatcherID).Scan(scanCallDest(c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to assign call: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE dispatchers
		SET available = FALSE,
			active_calls = active_calls + 1,
			updated_at = now()
		WHERE id = $1
	`, dispatcherID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark dispatcher busy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrDispatcherNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return c, nil
}

// UpdateCallStatus persists the status change; entering a terminal state
// releases the assigned dispatcher in the same transaction.
func (r *PostgresRepository) UpdateCallStatus(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE emergency_calls
		SET status = $2,
			notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
			resolved_at = CASE WHEN $2 = 'resolved'
				THEN COALESCE(resolved_at, now()) ELSE resolved_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + callColumns

	c := &models.EmergencyCall{}
	if err := tx.QueryRow(ctx, query, id, status, notes).Scan(scanCallDest(c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to update call status: %w", err)
	}

	terminal := status == models.StatusResolved || status == models.StatusCanceled
	if terminal && c.DispatcherID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatchers
			SET available = TRUE,
				active_calls = GREATEST(active_calls - 1, 0),
				updated_at = now()
			WHERE id = $1
		`, *c.DispatcherID); err != nil {
			return nil, fmt.Errorf("failed to release dispatcher: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return c, nil
}

// Stats aggregates call counts by status and priority.
func (r *PostgresRepository) Stats(ctx context.Context) (*models.CallStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, priority, COUNT(*) FROM emergency_calls GROUP BY status, priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate call stats: %w", err)
	}
	defer rows.Close()

	stats := &models.CallStats{
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
	}
	for rows.Next() {
		var status, priority string
		var count int
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan call stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanCallDest(c *models.EmergencyCall) []interface{} {
	return []interface{}{
		&c.ID, &c.WardID, &c.CallType, &c.Priority, &c.Status, &c.DispatcherID, &c.Source,
		&c.HealthSnapshot, &c.LocationSnapshot, &c.AIAnalysis, &c.Notes, &c.SourceEventID,
		&c.CreatedAt, &c.UpdatedAt, &c.AssignedAt, &c.ResolvedAt,
	}
}
