package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in memory. Used in tests and local
// development.
type MemoryStorage struct {
	mu          sync.RWMutex
	deliveries  map[uuid.UUID]*Delivery
	preferences map[string]*Preference
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		deliveries:  make(map[uuid.UUID]*Delivery),
		preferences: make(map[string]*Preference),
	}
}

func (ms *MemoryStorage) CreateDelivery(ctx context.Context, d Delivery) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.deliveries[d.ID]; ok {
		return ErrDeliveryExists
	}

	stored := d
	ms.deliveries[d.ID] = &stored
	return nil
}

func (ms *MemoryStorage) SetDeliveryTask(ctx context.Context, deliveryID, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}

	id := taskID
	d.TaskID = &id
	return nil
}

func (ms *MemoryStorage) MarkSent(ctx context.Context, deliveryID uuid.UUID, sentAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}

	at := sentAt
	d.Status = StatusSent
	d.SentAt = &at
	d.ErrorMessage = nil
	return nil
}

func (ms *MemoryStorage) MarkFailed(ctx context.Context, deliveryID uuid.UUID, errorMessage string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}

	// Sent is terminal. A stale retry must not undo a successful send.
	if d.Status == StatusSent {
		return nil
	}

	msg := errorMessage
	d.Status = StatusFailed
	d.ErrorMessage = &msg
	return nil
}

func (ms *MemoryStorage) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*Delivery, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	d, ok := ms.deliveries[deliveryID]
	if !ok {
		return nil, ErrDeliveryNotFound
	}

	copied := *d
	return &copied, nil
}

func (ms *MemoryStorage) ListDeliveries(ctx context.Context, opts ListOptions) ([]Delivery, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]Delivery, 0, len(ms.deliveries))
	for _, d := range ms.deliveries {
		if opts.Status != nil && d.Status != *opts.Status {
			continue
		}
		if opts.Type != nil && d.Type != *opts.Type {
			continue
		}
		if opts.RecipientRef != "" && d.RecipientRef != opts.RecipientRef {
			continue
		}
		result = append(result, *d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []Delivery{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func (ms *MemoryStorage) GetOrCreatePreference(ctx context.Context, recipientRef string, defaults Preference) (*Preference, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if p, ok := ms.preferences[recipientRef]; ok {
		copied := *p
		return &copied, nil
	}

	stored := defaults
	stored.RecipientRef = recipientRef
	ms.preferences[recipientRef] = &stored

	copied := stored
	return &copied, nil
}

func (ms *MemoryStorage) UpdatePreference(ctx context.Context, pref Preference) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.preferences[pref.RecipientRef]
	if !ok {
		return ErrPreferenceNotFound
	}

	pref.CreatedAt = existing.CreatedAt
	pref.UpdatedAt = time.Now()
	stored := pref
	ms.preferences[pref.RecipientRef] = &stored
	return nil
}

// PreferenceCount reports how many preference rows exist. Test helper.
func (ms *MemoryStorage) PreferenceCount() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.preferences)
}

// DeliveryCount reports how many delivery rows exist. Test helper.
func (ms *MemoryStorage) DeliveryCount() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.deliveries)
}
