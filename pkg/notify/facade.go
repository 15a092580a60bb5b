package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vetlabhq/vetnotify/pkg/logger"
	"github.com/vetlabhq/vetnotify/pkg/mailer"
	"github.com/vetlabhq/vetnotify/pkg/queue"
)

// RequestParams describes one notification request.
type RequestParams struct {
	Type           Type
	Recipient      string
	RecipientRef   string
	Subject        string
	Context        Context
	Template       string
	AttachmentPath string
}

// Result reports the outcome of a notification request. Skipped means the
// recipient's preferences suppressed the notification: nothing was stored
// and nothing was enqueued.
type Result struct {
	DeliveryID uuid.UUID
	TaskID     uuid.UUID
	Skipped    bool
}

// Notifier is the facade business logic calls to request notifications. It
// runs synchronously in the caller's goroutine: one delivery insert, one
// enqueue, one task-handle update. Rendering and transmission happen later
// on the queue worker.
type Notifier struct {
	storage  Storage
	enqueuer *queue.Enqueuer
	resolver *Resolver
	log      *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger sets the logger for the Notifier.
func WithNotifierLogger(log *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if log != nil {
			n.log = log
		}
	}
}

// NewNotifier creates the notification facade.
func NewNotifier(storage Storage, enqueuer *queue.Enqueuer, opts ...NotifierOption) (*Notifier, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	resolver, err := NewResolver(storage)
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		storage:  storage,
		enqueuer: enqueuer,
		resolver: resolver,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Resolver exposes the preference resolver the facade consults.
func (n *Notifier) Resolver() *Resolver {
	return n.resolver
}

// Request creates a queued delivery record, serializes the context, and
// enqueues the dispatch task. It does not consult preferences; the
// per-category wrappers do that before calling it.
func (n *Notifier) Request(ctx context.Context, params RequestParams) (Result, error) {
	if !mailer.ValidAddress(params.Recipient) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, params.Recipient)
	}

	serialized, err := Serialize(params.Context)
	if err != nil {
		return Result{}, err
	}

	delivery := Delivery{
		ID:            uuid.New(),
		Type:          params.Type,
		Recipient:     params.Recipient,
		RecipientRef:  params.RecipientRef,
		Subject:       params.Subject,
		Status:        StatusQueued,
		HasAttachment: params.AttachmentPath != "",
		CreatedAt:     time.Now(),
	}
	if err := n.storage.CreateDelivery(ctx, delivery); err != nil {
		return Result{}, fmt.Errorf("failed to create delivery record: %w", err)
	}

	task, err := n.enqueuer.Enqueue(ctx, sendEmailPayload{
		DeliveryID:     delivery.ID,
		Type:           params.Type,
		Recipient:      params.Recipient,
		Subject:        params.Subject,
		Context:        serialized,
		Template:       params.Template,
		AttachmentPath: params.AttachmentPath,
	})
	if err != nil {
		// The record exists but no task will ever run it; settle it as
		// failed so it surfaces in operator listings.
		if markErr := n.storage.MarkFailed(ctx, delivery.ID, fmt.Sprintf("enqueue failed: %v", err)); markErr != nil {
			n.log.LogAttrs(ctx, slog.LevelError, "Failed to settle delivery after enqueue failure",
				logger.Component("notify.facade"),
				logger.DeliveryID(delivery.ID),
				logger.Error(markErr),
			)
		}
		return Result{}, fmt.Errorf("failed to enqueue dispatch task: %w", err)
	}

	if err := n.storage.SetDeliveryTask(ctx, delivery.ID, task.ID); err != nil {
		// The task is already queued and will settle the record on its own;
		// only the task handle is lost.
		n.log.LogAttrs(ctx, slog.LevelWarn, "Failed to store task handle on delivery",
			logger.Component("notify.facade"),
			logger.DeliveryID(delivery.ID),
			logger.TaskID(task.ID),
			logger.Error(err),
		)
	}

	n.log.LogAttrs(ctx, slog.LevelInfo, "Notification queued",
		logger.Component("notify.facade"),
		logger.DeliveryID(delivery.ID),
		logger.TaskID(task.ID),
		logger.Recipient(params.Recipient),
		logger.NotificationType(string(params.Type)),
	)

	return Result{DeliveryID: delivery.ID, TaskID: task.ID}, nil
}

// SampleReceived notifies the recipient that their sample arrived at the lab.
func (n *Notifier) SampleReceived(ctx context.Context, recipient Recipient, subject string, c Context) (Result, error) {
	return n.categoryRequest(ctx, TypeSampleReceived, recipient, subject, c, "")
}

// SampleRejected notifies the recipient that their sample could not be
// processed.
func (n *Notifier) SampleRejected(ctx context.Context, recipient Recipient, subject string, c Context) (Result, error) {
	return n.categoryRequest(ctx, TypeSampleRejected, recipient, subject, c, "")
}

// ReportReady notifies the recipient that a diagnostic report is finalized,
// optionally attaching the report PDF.
func (n *Notifier) ReportReady(ctx context.Context, recipient Recipient, subject string, c Context, attachmentPath string) (Result, error) {
	return n.categoryRequest(ctx, TypeReportReady, recipient, subject, c, attachmentPath)
}

// WorkOrderIssued notifies the recipient about a new work order, optionally
// attaching the work order PDF.
func (n *Notifier) WorkOrderIssued(ctx context.Context, recipient Recipient, subject string, c Context, attachmentPath string) (Result, error) {
	return n.categoryRequest(ctx, TypeWorkOrder, recipient, subject, c, attachmentPath)
}

func (n *Notifier) categoryRequest(ctx context.Context, t Type, recipient Recipient, subject string, c Context, attachmentPath string) (Result, error) {
	send, err := n.resolver.ShouldSend(ctx, recipient.Ref, t)
	if err != nil {
		return Result{}, err
	}
	if !send {
		n.log.LogAttrs(ctx, slog.LevelInfo, "Notification suppressed by preference",
			logger.Component("notify.facade"),
			logger.Recipient(recipient.Address),
			logger.NotificationType(string(t)),
		)
		return Result{Skipped: true}, nil
	}

	address, err := n.resolver.RecipientAddress(ctx, recipient)
	if err != nil {
		return Result{}, err
	}

	if attachmentPath != "" {
		include, err := n.resolver.IncludeAttachments(ctx, recipient.Ref)
		if err != nil {
			return Result{}, err
		}
		if !include {
			attachmentPath = ""
		}
	}

	return n.Request(ctx, RequestParams{
		Type:           t,
		Recipient:      address,
		RecipientRef:   recipient.Ref,
		Subject:        subject,
		Context:        c,
		AttachmentPath: attachmentPath,
	})
}
