package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements the queue repository interfaces on top of a pgx
// connection pool. Claiming relies on FOR UPDATE SKIP LOCKED so multiple
// workers can poll the same table without stepping on each other.
type PostgresStorage struct {
	pool    *pgxpool.Pool
	backoff Backoff
}

// NewPostgresStorage creates a Postgres-backed queue storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{
		pool:    pool,
		backoff: DefaultBackoff(),
	}
}

// SetBackoff replaces the retry backoff policy.
func (s *PostgresStorage) SetBackoff(b Backoff) {
	s.backoff = b
}

// CreateTask implements EnqueuerRepository.
func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	const query = `
		INSERT INTO tasks (id, queue, task_name, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		task.ID,
		task.Queue,
		task.TaskName,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.MaxRetries,
		task.ScheduledAt,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

// ClaimTask implements WorkerRepository. The candidate set includes pending
// tasks that are due and processing tasks whose claim lock has lapsed, so
// tasks claimed by a crashed worker become runnable again without a separate
// recovery loop.
func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	const query = `
		UPDATE tasks SET
			status = 'processing',
			locked_until = now() + $1,
			locked_by = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE queue = ANY($3)
			  AND (
				(status = 'pending' AND scheduled_at <= now())
				OR (status = 'processing' AND locked_until < now())
			  )
			ORDER BY scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, task_name, payload, status, retry_count, max_retries,
		          scheduled_at, locked_until, locked_by, processed_at, error, created_at
	`

	row := s.pool.QueryRow(ctx, query, lockDuration, workerID, queues)

	var task Task
	err := row.Scan(
		&task.ID,
		&task.Queue,
		&task.TaskName,
		&task.Payload,
		&task.Status,
		&task.RetryCount,
		&task.MaxRetries,
		&task.ScheduledAt,
		&task.LockedUntil,
		&task.LockedBy,
		&task.ProcessedAt,
		&task.Error,
		&task.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}

	return &task, nil
}

// CompleteTask implements WorkerRepository.
func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	const query = `
		UPDATE tasks SET
			status = 'completed',
			processed_at = now(),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1 AND status = 'processing'
	`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return nil
}

// FailTask implements WorkerRepository. The backoff delay is computed in Go
// because jitter belongs to the policy, not the schema.
func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fail task tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var retryCount, maxRetries int8
	err = tx.QueryRow(ctx,
		`SELECT retry_count, max_retries FROM tasks WHERE id = $1 AND status = 'processing' FOR UPDATE`,
		taskID,
	).Scan(&retryCount, &maxRetries)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("lock task for failure: %w", err)
	}

	retryCount++

	if retryCount >= maxRetries {
		_, err = tx.Exec(ctx, `
			UPDATE tasks SET
				status = 'failed',
				retry_count = $2,
				error = $3,
				locked_until = NULL,
				locked_by = NULL
			WHERE id = $1
		`, taskID, retryCount, errorMsg)
	} else {
		delay := s.backoff.NextDelay(int(retryCount))
		_, err = tx.Exec(ctx, `
			UPDATE tasks SET
				status = 'pending',
				retry_count = $2,
				error = $3,
				scheduled_at = now() + $4,
				locked_until = NULL,
				locked_by = NULL
			WHERE id = $1
		`, taskID, retryCount, errorMsg, delay)
	}
	if err != nil {
		return fmt.Errorf("record task failure: %w", err)
	}

	return tx.Commit(ctx)
}

// FailTaskPermanently implements WorkerRepository.
func (s *PostgresStorage) FailTaskPermanently(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	const query = `
		UPDATE tasks SET
			status = 'failed',
			error = $2,
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, taskID, errorMsg)
	if err != nil {
		return fmt.Errorf("fail task permanently: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return nil
}

// ExtendLock implements WorkerRepository.
func (s *PostgresStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	const query = `
		UPDATE tasks SET locked_until = now() + $2
		WHERE id = $1 AND status = 'processing'
	`

	tag, err := s.pool.Exec(ctx, query, taskID, duration)
	if err != nil {
		return fmt.Errorf("extend task lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return nil
}
