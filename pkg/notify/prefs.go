package notify

import (
	"context"
	"fmt"
)

// Resolver answers whether and how a recipient should be notified. It is a
// pure lookup/default layer over Storage: the first query for an unknown
// recipient materializes a default-allow preference row.
type Resolver struct {
	storage Storage
}

// NewResolver creates a preference resolver backed by storage.
func NewResolver(storage Storage) (*Resolver, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Resolver{storage: storage}, nil
}

// ShouldSend reports whether the recipient wants notifications for the given
// type. Account-level types (verification, password reset) and custom
// notifications are not category-gated and always send.
func (r *Resolver) ShouldSend(ctx context.Context, recipientRef string, t Type) (bool, error) {
	pref, err := r.preference(ctx, recipientRef)
	if err != nil {
		return false, err
	}

	switch t {
	case TypeSampleReceived:
		return pref.OnSampleReceived, nil
	case TypeSampleRejected:
		return pref.OnSampleRejected, nil
	case TypeReportReady:
		return pref.OnReportReady, nil
	case TypeWorkOrder:
		return pref.OnWorkOrder, nil
	default:
		return true, nil
	}
}

// RecipientAddress resolves the effective destination address: the
// preference row's override when set, otherwise the recipient's own address.
func (r *Resolver) RecipientAddress(ctx context.Context, recipient Recipient) (string, error) {
	pref, err := r.preference(ctx, recipient.Ref)
	if err != nil {
		return "", err
	}

	if pref.OverrideAddress != "" {
		return pref.OverrideAddress, nil
	}
	return recipient.Address, nil
}

// IncludeAttachments reports whether documents should be attached to the
// recipient's notifications.
func (r *Resolver) IncludeAttachments(ctx context.Context, recipientRef string) (bool, error) {
	pref, err := r.preference(ctx, recipientRef)
	if err != nil {
		return false, err
	}
	return pref.IncludeAttachments, nil
}

func (r *Resolver) preference(ctx context.Context, recipientRef string) (*Preference, error) {
	pref, err := r.storage.GetOrCreatePreference(ctx, recipientRef, DefaultPreference(recipientRef))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preference for %q: %w", recipientRef, err)
	}
	return pref, nil
}
