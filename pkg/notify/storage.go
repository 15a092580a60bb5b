package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists delivery records and notification preferences.
type Storage interface {
	// CreateDelivery stores a new delivery record.
	CreateDelivery(ctx context.Context, d Delivery) error

	// SetDeliveryTask records the dispatch task handle on the delivery row.
	SetDeliveryTask(ctx context.Context, deliveryID, taskID uuid.UUID) error

	// MarkSent moves the delivery to sent and clears any error captured by
	// earlier failed attempts. Sent is terminal.
	MarkSent(ctx context.Context, deliveryID uuid.UUID, sentAt time.Time) error

	// MarkFailed moves the delivery to failed with the attempt's error text.
	// It is a no-op once the delivery is sent.
	MarkFailed(ctx context.Context, deliveryID uuid.UUID, errorMessage string) error

	// GetDelivery retrieves a single delivery record.
	GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*Delivery, error)

	// ListDeliveries returns delivery records, newest first.
	ListDeliveries(ctx context.Context, opts ListOptions) ([]Delivery, error)

	// GetOrCreatePreference returns the preference row for a recipient,
	// materializing defaults on first lookup.
	GetOrCreatePreference(ctx context.Context, recipientRef string, defaults Preference) (*Preference, error)

	// UpdatePreference replaces the preference row for its recipient.
	UpdatePreference(ctx context.Context, pref Preference) error
}

// ListOptions filters and paginates delivery listings. Operators use the
// status filter to find failed rows; there is no other failure surface.
type ListOptions struct {
	Status       *Status
	Type         *Type
	RecipientRef string
	Limit        int
	Offset       int
}
