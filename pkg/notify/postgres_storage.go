package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlabhq/vetnotify/pkg/pg"
)

// PostgresStorage implements Storage on top of a pgx connection pool.
// Delivery rows are mutated by single-row updates only; the dispatch task is
// the sole writer after creation, so no row locking is needed here.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed notification storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) CreateDelivery(ctx context.Context, d Delivery) error {
	const query = `
		INSERT INTO deliveries (id, type, recipient, recipient_ref, subject, status, has_attachment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		d.ID,
		d.Type,
		d.Recipient,
		nullableString(d.RecipientRef),
		d.Subject,
		d.Status,
		d.HasAttachment,
		d.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDeliveryExists
		}
		return fmt.Errorf("insert delivery: %w", err)
	}

	return nil
}

func (s *PostgresStorage) SetDeliveryTask(ctx context.Context, deliveryID, taskID uuid.UUID) error {
	const query = `UPDATE deliveries SET task_id = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, deliveryID, taskID)
	if err != nil {
		return fmt.Errorf("set delivery task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}

	return nil
}

func (s *PostgresStorage) MarkSent(ctx context.Context, deliveryID uuid.UUID, sentAt time.Time) error {
	const query = `
		UPDATE deliveries SET
			status = 'sent',
			sent_at = $2,
			error_message = NULL
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, deliveryID, sentAt)
	if err != nil {
		return fmt.Errorf("mark delivery sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}

	return nil
}

func (s *PostgresStorage) MarkFailed(ctx context.Context, deliveryID uuid.UUID, errorMessage string) error {
	// Sent is terminal; the guard makes a stale retry's failure a no-op.
	const query = `
		UPDATE deliveries SET
			status = 'failed',
			error_message = $2
		WHERE id = $1 AND status <> 'sent'
	`

	tag, err := s.pool.Exec(ctx, query, deliveryID, errorMessage)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.deliveryExists(ctx, deliveryID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrDeliveryNotFound
		}
	}

	return nil
}

func (s *PostgresStorage) deliveryExists(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, deliveryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check delivery exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStorage) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*Delivery, error) {
	const query = `
		SELECT id, type, recipient, recipient_ref, subject, status, has_attachment,
		       error_message, task_id, created_at, sent_at
		FROM deliveries
		WHERE id = $1
	`

	d, err := scanDelivery(s.pool.QueryRow(ctx, query, deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	return d, nil
}

func (s *PostgresStorage) ListDeliveries(ctx context.Context, opts ListOptions) ([]Delivery, error) {
	query := `
		SELECT id, type, recipient, recipient_ref, subject, status, has_attachment,
		       error_message, task_id, created_at, sent_at
		FROM deliveries
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR type = $2)
		  AND ($3::text = '' OR recipient_ref = $3)
		ORDER BY created_at DESC
	`

	args := []any{statusArg(opts.Status), typeArg(opts.Type), opts.RecipientRef}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var result []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("list deliveries: %w", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	return result, nil
}

func (s *PostgresStorage) GetOrCreatePreference(ctx context.Context, recipientRef string, defaults Preference) (*Preference, error) {
	// ON CONFLICT DO NOTHING plus a re-select keeps get-or-create race free
	// across concurrent first lookups for the same recipient.
	const insert = `
		INSERT INTO notification_preferences
			(recipient_ref, on_sample_received, on_sample_rejected, on_report_ready, on_work_order,
			 include_attachments, override_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (recipient_ref) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, insert,
		recipientRef,
		defaults.OnSampleReceived,
		defaults.OnSampleRejected,
		defaults.OnReportReady,
		defaults.OnWorkOrder,
		defaults.IncludeAttachments,
		nullableString(defaults.OverrideAddress),
		defaults.CreatedAt,
		defaults.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	const query = `
		SELECT recipient_ref, on_sample_received, on_sample_rejected, on_report_ready, on_work_order,
		       include_attachments, override_address, created_at, updated_at
		FROM notification_preferences
		WHERE recipient_ref = $1
	`

	var (
		p        Preference
		override *string
	)
	err = s.pool.QueryRow(ctx, query, recipientRef).Scan(
		&p.RecipientRef,
		&p.OnSampleReceived,
		&p.OnSampleRejected,
		&p.OnReportReady,
		&p.OnWorkOrder,
		&p.IncludeAttachments,
		&override,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	if override != nil {
		p.OverrideAddress = *override
	}

	return &p, nil
}

func (s *PostgresStorage) UpdatePreference(ctx context.Context, pref Preference) error {
	const query = `
		UPDATE notification_preferences SET
			on_sample_received = $2,
			on_sample_rejected = $3,
			on_report_ready = $4,
			on_work_order = $5,
			include_attachments = $6,
			override_address = $7,
			updated_at = now()
		WHERE recipient_ref = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		pref.RecipientRef,
		pref.OnSampleReceived,
		pref.OnSampleRejected,
		pref.OnReportReady,
		pref.OnWorkOrder,
		pref.IncludeAttachments,
		nullableString(pref.OverrideAddress),
	)
	if err != nil {
		return fmt.Errorf("update preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPreferenceNotFound
	}

	return nil
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var (
		d            Delivery
		recipientRef *string
	)
	err := row.Scan(
		&d.ID,
		&d.Type,
		&d.Recipient,
		&recipientRef,
		&d.Subject,
		&d.Status,
		&d.HasAttachment,
		&d.ErrorMessage,
		&d.TaskID,
		&d.CreatedAt,
		&d.SentAt,
	)
	if err != nil {
		return nil, err
	}
	if recipientRef != nil {
		d.RecipientRef = *recipientRef
	}
	return &d, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusArg(s *Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func typeArg(t *Type) *string {
	if t == nil {
		return nil
	}
	v := string(*t)
	return &v
}
