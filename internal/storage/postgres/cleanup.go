package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cleanup"
)

const (
	insertSagaSQL = `INSERT INTO checkout_sagas (id, order_id, shop_id, user_email, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertTaskSQL = `INSERT INTO cleanup_tasks (id, saga_id, position, line_id, status, attempts, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	completeTaskSQL = `UPDATE cleanup_tasks SET status = 'done', updated_at = now() WHERE id = $1`

	failTaskSQL = `UPDATE cleanup_tasks
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = now()
		WHERE id = $1`

	retryableTasksSQL = `SELECT id, saga_id, line_id, status, attempts, last_error, updated_at
		FROM cleanup_tasks
		WHERE status = 'failed' AND attempts < $1
		ORDER BY updated_at, id
		LIMIT $2`

	getSagaSQL = `SELECT id, order_id, shop_id, user_email, total, created_at
		FROM checkout_sagas WHERE id = $1`

	sagaTasksSQL = `SELECT id, saga_id, line_id, status, attempts, last_error, updated_at
		FROM cleanup_tasks WHERE saga_id = $1 ORDER BY position`
)

var _ cleanup.Log = (*CleanupLog)(nil)

// CleanupLog implements cleanup.Log backed by PostgreSQL.
type CleanupLog struct {
	pool *pgxpool.Pool
}

// NewCleanupLog returns a CleanupLog that uses the given pool.
func NewCleanupLog(pool *pgxpool.Pool) *CleanupLog {
	return &CleanupLog{pool: pool}
}

// Begin inserts the saga and its tasks in one transaction.
func (l *CleanupLog) Begin(ctx context.Context, s *cleanup.Saga) error {
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertSagaSQL,
			s.ID, s.OrderID, s.ShopID, s.UserEmail, s.Total, s.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting saga: %w", err)
		}

		batch := &pgx.Batch{}
		for i, t := range s.Tasks {
			batch.Queue(insertTaskSQL,
				t.ID, s.ID, i, t.LineID, string(t.Status), t.Attempts, t.LastError, t.UpdatedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording saga %q: %w", s.ID, err)
	}
	return nil
}

// Complete marks a task done.
func (l *CleanupLog) Complete(ctx context.Context, taskID string) error {
	return l.exec(ctx, completeTaskSQL, taskID)
}

// Fail marks a task failed and counts the attempt.
func (l *CleanupLog) Fail(ctx context.Context, taskID string, reason string) error {
	return l.exec(ctx, failTaskSQL, taskID, reason)
}

func (l *CleanupLog) exec(ctx context.Context, sql, taskID string, args ...any) error {
	tag, err := l.pool.Exec(ctx, sql, append([]any{taskID}, args...)...)
	if err != nil {
		return fmt.Errorf("updating task %q: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating task %q: %w", taskID, pgx.ErrNoRows)
	}
	return nil
}

// Retryable returns failed tasks that still have attempts left, oldest first.
func (l *CleanupLog) Retryable(ctx context.Context, maxAttempts, limit int) ([]cleanup.Task, error) {
	rows, err := l.pool.Query(ctx, retryableTasksSQL, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("listing retryable tasks: %w", err)
	}
	return pgx.CollectRows(rows, scanTask)
}

// Saga returns a saga with its tasks in line order.
func (l *CleanupLog) Saga(ctx context.Context, id string) (*cleanup.Saga, error) {
	rows, err := l.pool.Query(ctx, getSagaSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting saga %q: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSaga)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cleanup.ErrSagaNotFound
		}
		return nil, fmt.Errorf("getting saga %q: %w", id, err)
	}

	rows, err = l.pool.Query(ctx, sagaTasksSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting tasks of saga %q: %w", id, err)
	}
	if s.Tasks, err = pgx.CollectRows(rows, scanTask); err != nil {
		return nil, fmt.Errorf("getting tasks of saga %q: %w", id, err)
	}
	return &s, nil
}

func scanSaga(row pgx.CollectableRow) (cleanup.Saga, error) {
	var s cleanup.Saga
	err := row.Scan(&s.ID, &s.OrderID, &s.ShopID, &s.UserEmail, &s.Total, &s.CreatedAt)
	return s, err
}

func scanTask(row pgx.CollectableRow) (cleanup.Task, error) {
	var (
		t      cleanup.Task
		status string
	)
	err := row.Scan(&t.ID, &t.SagaID, &t.LineID, &status, &t.Attempts, &t.LastError, &t.UpdatedAt)
	t.Status = cleanup.Status(status)
	return t, err
}
