package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetlabhq/vetnotify/pkg/logger"
	"github.com/vetlabhq/vetnotify/pkg/mailer"
	"github.com/vetlabhq/vetnotify/pkg/queue"
)

// sendEmailPayload is the task body the Notifier enqueues and the Dispatcher
// consumes. The queue derives the task name from this type, so both sides
// agree on routing without extra registration.
type sendEmailPayload struct {
	DeliveryID     uuid.UUID       `json:"delivery_id"`
	Type           Type            `json:"type"`
	Recipient      string          `json:"recipient"`
	Subject        string          `json:"subject"`
	Context        json.RawMessage `json:"context,omitempty"`
	Template       string          `json:"template,omitempty"`
	AttachmentPath string          `json:"attachment_path,omitempty"`
}

// Dispatcher executes dispatch tasks: deserialize the context, render the
// template, transmit the message, and settle the delivery record. Every
// failed attempt marks the record failed and returns the error so the queue
// retries; a later success overwrites the failure. After the queue exhausts
// its attempts the record stays failed.
type Dispatcher struct {
	storage   Storage
	sender    mailer.Sender
	templates *TemplateStore
	registry  *Registry
	ledger    Ledger
	log       *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLedger enables the duplicate-send guard.
func WithLedger(ledger Ledger) DispatcherOption {
	return func(d *Dispatcher) {
		d.ledger = ledger
	}
}

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher creates a dispatcher over the given collaborators.
func NewDispatcher(storage Storage, sender mailer.Sender, templates *TemplateStore, registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}
	if templates == nil {
		return nil, ErrTemplateStoreNil
	}
	if registry == nil {
		registry = NewRegistry()
	}

	d := &Dispatcher{
		storage:   storage,
		sender:    sender,
		templates: templates,
		registry:  registry,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// TaskHandler returns the queue handler for dispatch tasks.
func (d *Dispatcher) TaskHandler() queue.Handler {
	return queue.NewTaskHandler(d.handleSendEmail)
}

func (d *Dispatcher) handleSendEmail(ctx context.Context, p sendEmailPayload) error {
	if err := d.process(ctx, p); err != nil {
		d.markFailed(ctx, p, err)
		return err
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, p sendEmailPayload) error {
	data, err := Deserialize(ctx, p.Context, d.registry)
	if err != nil {
		return fmt.Errorf("failed to deserialize context: %w", err)
	}

	attachmentPath := d.resolveAttachment(ctx, p)

	data["subject"] = p.Subject
	data["has_attachment"] = attachmentPath != ""

	bodyHTML, err := d.templates.Render(d.selectTemplate(p), data)
	if err != nil {
		return fmt.Errorf("failed to render notification body: %w", err)
	}

	msg := mailer.Message{
		To:             p.Recipient,
		Subject:        p.Subject,
		BodyHTML:       bodyHTML,
		BodyText:       htmlToText(bodyHTML),
		Tag:            string(p.Type),
		AttachmentPath: attachmentPath,
	}

	if err := d.transmit(ctx, p, msg); err != nil {
		return err
	}

	return d.markSent(ctx, p)
}

// selectTemplate picks the explicit template when the store has it, then the
// type's default, then the generic fallback.
func (d *Dispatcher) selectTemplate(p sendEmailPayload) string {
	if p.Template != "" && d.templates.Has(p.Template) {
		return p.Template
	}
	if name := d.registry.TemplateFor(p.Type); d.templates.Has(name) {
		return name
	}
	return d.registry.FallbackTemplate()
}

// resolveAttachment drops the attachment when the file is gone. A document
// cleaned up between enqueue and execution should not fail the notification.
func (d *Dispatcher) resolveAttachment(ctx context.Context, p sendEmailPayload) string {
	if p.AttachmentPath == "" {
		return ""
	}
	if _, err := os.Stat(p.AttachmentPath); err != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "Attachment missing on disk, sending without it",
			logger.Component("notify.dispatcher"),
			logger.DeliveryID(p.DeliveryID),
			slog.String("attachment_path", p.AttachmentPath),
		)
		return ""
	}
	return p.AttachmentPath
}

func (d *Dispatcher) transmit(ctx context.Context, p sendEmailPayload, msg mailer.Message) error {
	if d.ledger != nil {
		acquired, err := d.ledger.AcquireSend(ctx, p.DeliveryID)
		if err != nil {
			// The ledger is best effort; prefer a possible duplicate over a
			// missed send.
			d.log.LogAttrs(ctx, slog.LevelWarn, "Sent ledger unavailable, transmitting anyway",
				logger.Component("notify.dispatcher"),
				logger.DeliveryID(p.DeliveryID),
				logger.Error(err),
			)
		} else if !acquired {
			d.log.LogAttrs(ctx, slog.LevelInfo, "Delivery already transmitted, skipping send",
				logger.Component("notify.dispatcher"),
				logger.DeliveryID(p.DeliveryID),
			)
			return nil
		}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) markSent(ctx context.Context, p sendEmailPayload) error {
	if p.DeliveryID == uuid.Nil {
		return nil
	}

	if err := d.storage.MarkSent(ctx, p.DeliveryID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark delivery sent: %w", err)
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "Notification sent",
		logger.Component("notify.dispatcher"),
		logger.DeliveryID(p.DeliveryID),
		logger.Recipient(p.Recipient),
		logger.NotificationType(string(p.Type)),
	)
	return nil
}

func (d *Dispatcher) markFailed(ctx context.Context, p sendEmailPayload, execErr error) {
	if p.DeliveryID == uuid.Nil {
		return
	}

	if err := d.storage.MarkFailed(ctx, p.DeliveryID, execErr.Error()); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "Failed to record delivery failure",
			logger.Component("notify.dispatcher"),
			logger.DeliveryID(p.DeliveryID),
			logger.Error(err),
		)
	}
}

var (
	htmlBlockEnds = regexp.MustCompile(`(?i)</(p|div|li|ul|ol|h[1-6]|tr|table|blockquote)>|<br\s*/?>`)
	htmlTags      = regexp.MustCompile(`<[^>]*>`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
)

// htmlToText derives the plain-text alternative from the rendered HTML body.
func htmlToText(s string) string {
	s = htmlBlockEnds.ReplaceAllString(s, "\n")
	s = htmlTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
