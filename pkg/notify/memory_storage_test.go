package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/notify"
)

func newDelivery(notifType notify.Type) notify.Delivery {
	return notify.Delivery{
		ID:        uuid.New(),
		Type:      notifType,
		Recipient: "vet@clinic.example.com",
		Subject:   "test subject",
		Status:    notify.StatusQueued,
		CreatedAt: time.Now(),
	}
}

func TestMemoryStorageDeliveries(t *testing.T) {
	t.Parallel()

	t.Run("create and get", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		d := newDelivery(notify.TypeSampleReceived)
		require.NoError(t, ms.CreateDelivery(context.Background(), d))

		stored, err := ms.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, stored.ID)
		assert.Equal(t, notify.StatusQueued, stored.Status)
		assert.Nil(t, stored.SentAt)
		assert.Nil(t, stored.ErrorMessage)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		d := newDelivery(notify.TypeCustom)
		require.NoError(t, ms.CreateDelivery(context.Background(), d))
		assert.ErrorIs(t, ms.CreateDelivery(context.Background(), d), notify.ErrDeliveryExists)
	})

	t.Run("set task handle", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		d := newDelivery(notify.TypeReportReady)
		require.NoError(t, ms.CreateDelivery(context.Background(), d))

		taskID := uuid.New()
		require.NoError(t, ms.SetDeliveryTask(context.Background(), d.ID, taskID))

		stored, err := ms.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.TaskID)
		assert.Equal(t, taskID, *stored.TaskID)

		assert.ErrorIs(t, ms.SetDeliveryTask(context.Background(), uuid.New(), taskID), notify.ErrDeliveryNotFound)
	})

	t.Run("failed attempt is overwritten by a later success", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		d := newDelivery(notify.TypeSampleReceived)
		require.NoError(t, ms.CreateDelivery(context.Background(), d))

		require.NoError(t, ms.MarkFailed(context.Background(), d.ID, "smtp: connection reset"))

		stored, err := ms.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, "smtp: connection reset", *stored.ErrorMessage)

		sentAt := time.Now()
		require.NoError(t, ms.MarkSent(context.Background(), d.ID, sentAt))

		stored, err = ms.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status)
		require.NotNil(t, stored.SentAt)
		assert.Nil(t, stored.ErrorMessage, "the retry's success clears the earlier error")
	})

	t.Run("sent is terminal", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		d := newDelivery(notify.TypeWorkOrder)
		require.NoError(t, ms.CreateDelivery(context.Background(), d))
		require.NoError(t, ms.MarkSent(context.Background(), d.ID, time.Now()))

		// A stale retry reporting failure must not undo the send.
		require.NoError(t, ms.MarkFailed(context.Background(), d.ID, "late failure"))

		stored, err := ms.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status)
		assert.Nil(t, stored.ErrorMessage)
		assert.NotNil(t, stored.SentAt)
	})

	t.Run("unknown delivery", func(t *testing.T) {
		t.Parallel()

		ms := notify.NewMemoryStorage()
		_, err := ms.GetDelivery(context.Background(), uuid.New())
		assert.ErrorIs(t, err, notify.ErrDeliveryNotFound)
		assert.ErrorIs(t, ms.MarkSent(context.Background(), uuid.New(), time.Now()), notify.ErrDeliveryNotFound)
		assert.ErrorIs(t, ms.MarkFailed(context.Background(), uuid.New(), "x"), notify.ErrDeliveryNotFound)
	})
}

func TestMemoryStorageListDeliveries(t *testing.T) {
	t.Parallel()

	ms := notify.NewMemoryStorage()

	older := newDelivery(notify.TypeSampleReceived)
	older.CreatedAt = time.Now().Add(-time.Hour)
	older.RecipientRef = "vet-1"
	require.NoError(t, ms.CreateDelivery(context.Background(), older))

	newer := newDelivery(notify.TypeReportReady)
	newer.RecipientRef = "vet-2"
	require.NoError(t, ms.CreateDelivery(context.Background(), newer))
	require.NoError(t, ms.MarkFailed(context.Background(), newer.ID, "boom"))

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		all, err := ms.ListDeliveries(context.Background(), notify.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, older.ID, all[1].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		t.Parallel()

		failed := notify.StatusFailed
		result, err := ms.ListDeliveries(context.Background(), notify.ListOptions{Status: &failed})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, newer.ID, result[0].ID)
	})

	t.Run("type and recipient filters", func(t *testing.T) {
		t.Parallel()

		reportReady := notify.TypeReportReady
		result, err := ms.ListDeliveries(context.Background(), notify.ListOptions{Type: &reportReady})
		require.NoError(t, err)
		require.Len(t, result, 1)

		result, err = ms.ListDeliveries(context.Background(), notify.ListOptions{RecipientRef: "vet-1"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, older.ID, result[0].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		t.Parallel()

		result, err := ms.ListDeliveries(context.Background(), notify.ListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, newer.ID, result[0].ID)

		result, err = ms.ListDeliveries(context.Background(), notify.ListOptions{Offset: 1})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, older.ID, result[0].ID)

		result, err = ms.ListDeliveries(context.Background(), notify.ListOptions{Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, result)
	})
}
