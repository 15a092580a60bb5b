package notify

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the business event a notification belongs to.
type Type string

const (
	TypeVerification   Type = "verification"
	TypePasswordReset  Type = "password-reset"
	TypeSampleReceived Type = "sample-received"
	TypeSampleRejected Type = "sample-rejected"
	TypeReportReady    Type = "report-ready"
	TypeWorkOrder      Type = "work-order"
	TypeCustom         Type = "custom"
)

// Status represents the delivery lifecycle state.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Delivery is the durable audit row for one notification attempt. It is
// created queued by the Notifier, mutated only by the dispatch task, and
// never deleted. Status moves queued->sent or queued->failed; a failed row
// may still become sent while the dispatch task keeps retrying, but sent is
// terminal.
type Delivery struct {
	ID            uuid.UUID  `json:"id"`
	Type          Type       `json:"type"`
	Recipient     string     `json:"recipient"`
	RecipientRef  string     `json:"recipient_ref,omitempty"`
	Subject       string     `json:"subject"`
	Status        Status     `json:"status"`
	HasAttachment bool       `json:"has_attachment"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	TaskID        *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// Recipient pairs a person's stable reference with their address. The
// reference keys preference lookups; the address is the default destination
// unless the preference row overrides it.
type Recipient struct {
	Ref     string `json:"ref"`
	Address string `json:"address"`
}

// Preference holds per-recipient notification settings. Exactly one row per
// recipient reference, materialized with default-allow settings on first
// lookup.
type Preference struct {
	RecipientRef       string    `json:"recipient_ref"`
	OnSampleReceived   bool      `json:"on_sample_received"`
	OnSampleRejected   bool      `json:"on_sample_rejected"`
	OnReportReady      bool      `json:"on_report_ready"`
	OnWorkOrder        bool      `json:"on_work_order"`
	IncludeAttachments bool      `json:"include_attachments"`
	OverrideAddress    string    `json:"override_address,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultPreference builds the default-allow settings materialized on a
// recipient's first lookup.
func DefaultPreference(recipientRef string) Preference {
	now := time.Now()
	return Preference{
		RecipientRef:       recipientRef,
		OnSampleReceived:   true,
		OnSampleRejected:   true,
		OnReportReady:      true,
		OnWorkOrder:        true,
		IncludeAttachments: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
