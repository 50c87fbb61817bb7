package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nulzo/prism-router/internal/store"
	"github.com/nulzo/prism-router/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// rollback error is secondary to the original failure
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, operation, requested_model, deployment, strategy,
		attempts, models_tried, status, error_kind, error_message,
		input_tokens, output_tokens, latency_ms, ttft_ms,
		is_streamed, cache_hit, created_at
	) VALUES (
		:id, :operation, :requested_model, :deployment, :strategy,
		:attempts, :models_tried, :status, :error_kind, :error_message,
		:input_tokens, :output_tokens, :latency_ms, :ttft_ms,
		:is_streamed, :cache_hit, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert request log %s: %w", log.ID, err)
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	var log model.RequestLog
	if err := r.db.GetContext(ctx, &log, `SELECT * FROM request_logs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *requestRepo) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	logs := []model.RequestLog{}
	query := `SELECT * FROM request_logs ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &logs, query, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	stats := []model.DailyStats{}
	query := `
		SELECT
			DATE(created_at) AS date,
			requested_model AS model,
			COUNT(*) AS total_requests,
			COALESCE(SUM(CASE WHEN status != 'success' THEN 1 ELSE 0 END), 0) AS failures,
			COALESCE(AVG(attempts), 0) AS avg_attempts,
			COALESCE(AVG(latency_ms), 0) AS avg_latency,
			COALESCE(SUM(is_streamed), 0) AS total_streamed,
			COALESCE(SUM(CASE WHEN operation = 'embedding' THEN 1 ELSE 0 END), 0) AS total_embeddings
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date, model
		ORDER BY date DESC, total_requests DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}
