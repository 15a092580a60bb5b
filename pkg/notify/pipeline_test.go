package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/notify"
	"github.com/vetlabhq/vetnotify/pkg/queue"
)

// startPipeline wires the facade, the queue, and the dispatcher the way the
// service binary does, with a near-zero retry backoff.
func startPipeline(t *testing.T, sender *captureSender) (*notify.Notifier, *notify.MemoryStorage) {
	t.Helper()

	storage := notify.NewMemoryStorage()
	queueStore := queue.NewMemoryStorage()
	queueStore.SetBackoff(queue.Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1})
	t.Cleanup(func() { _ = queueStore.Close() })

	enqueuer, err := queue.NewEnqueuer(queueStore)
	require.NoError(t, err)

	notifier, err := notify.NewNotifier(storage, enqueuer)
	require.NoError(t, err)

	dispatcher, err := notify.NewDispatcher(storage, sender, notify.MustNewTemplateStore(), notify.NewRegistry())
	require.NoError(t, err)

	worker, err := queue.NewWorker(queueStore, queue.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)
	worker.RegisterHandlers(dispatcher.TaskHandler())
	require.NoError(t, worker.Start(context.Background()))
	t.Cleanup(func() { _ = worker.Stop() })

	return notifier, storage
}

func TestPipelineDeliversEndToEnd(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	notifier, storage := startPipeline(t, sender)

	result, err := notifier.SampleReceived(context.Background(),
		notify.Recipient{Ref: "vet-9", Address: "vet9@clinic.example.com"},
		"Sample S-42 received",
		notify.Context{"sample": notify.String("S-42")},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, getErr := storage.GetDelivery(context.Background(), result.DeliveryID)
		return getErr == nil && stored.Status == notify.StatusSent
	}, 5*time.Second, 20*time.Millisecond)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "vet9@clinic.example.com", msgs[0].To)
	assert.Contains(t, msgs[0].BodyHTML, "S-42")
}

func TestPipelineRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	sender := &captureSender{failures: 2}
	notifier, storage := startPipeline(t, sender)

	result, err := notifier.ReportReady(context.Background(),
		notify.Recipient{Ref: "vet-10", Address: "vet10@clinic.example.com"},
		"Report R-7 ready",
		notify.Context{"report": notify.String("R-7")},
		"",
	)
	require.NoError(t, err)

	// Two transmission failures fit inside the three-attempt bound, so the
	// record settles sent with no residual error text.
	require.Eventually(t, func() bool {
		stored, getErr := storage.GetDelivery(context.Background(), result.DeliveryID)
		return getErr == nil && stored.Status == notify.StatusSent
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := storage.GetDelivery(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.Nil(t, stored.ErrorMessage)
	assert.Len(t, sender.messages(), 1)
}

func TestPipelineExhaustsRetriesAndSettlesFailed(t *testing.T) {
	t.Parallel()

	sender := &captureSender{failures: 100}
	notifier, storage := startPipeline(t, sender)

	result, err := notifier.SampleReceived(context.Background(),
		notify.Recipient{Ref: "vet-11", Address: "vet11@clinic.example.com"},
		"Sample S-43 received",
		notify.Context{},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, getErr := storage.GetDelivery(context.Background(), result.DeliveryID)
		return getErr == nil && stored.Status == notify.StatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	// Three attempts total, then the record stays failed with the last error.
	time.Sleep(100 * time.Millisecond)

	stored, err := storage.GetDelivery(context.Background(), result.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "connection reset")
	assert.Empty(t, sender.messages())
	assert.Equal(t, 97, senderRemainingFailures(sender), "no fourth attempt may run")
}

func senderRemainingFailures(s *captureSender) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}
