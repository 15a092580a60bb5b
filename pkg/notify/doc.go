// Package notify implements the laboratory's asynchronous email notification
// pipeline: durable delivery records, per-recipient preferences, transport-safe
// template contexts, and a queue-backed dispatch task with bounded retry.
//
// # Architecture
//
// The package splits enqueue-side and execution-side concerns:
//
//   - Notifier: the facade business logic calls; creates the delivery record,
//     serializes the context, and enqueues the dispatch task
//   - Resolver: per-recipient preference lookup with get-or-create defaults
//   - Dispatcher: runs on the queue worker; deserializes the context, renders
//     the template, transmits the message, and settles the record
//   - Storage: persistence for delivery records and preferences, with memory
//     and Postgres implementations
//
// # Basic Usage
//
//	storage := notify.NewMemoryStorage()
//	queueStore := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(queueStore)
//
//	notifier, _ := notify.NewNotifier(storage, enqueuer)
//
//	result, err := notifier.SampleReceived(ctx,
//	    notify.Recipient{Ref: "vet-42", Address: "vet@clinic.example.com"},
//	    "Sample S-1001 received",
//	    notify.Context{
//	        "sample":  notify.RecordRef("s-1001", "sample", "Sample S-1001"),
//	        "patient": notify.String("Rex"),
//	    },
//	)
//	if result.Skipped {
//	    // suppressed by the recipient's preferences, nothing stored
//	}
//
// On the worker side, register the dispatcher's handler:
//
//	dispatcher, _ := notify.NewDispatcher(storage, sender, templates, registry)
//	worker.RegisterHandlers(dispatcher.TaskHandler())
//
// # Delivery Lifecycle
//
// A delivery record is created queued and settles as sent or failed. Every
// failed attempt writes the attempt's error and keeps the record failed, so
// an eventual successful retry overwrites it with sent; sent is terminal.
// After the queue exhausts its attempts the record stays failed and surfaces
// through ListDeliveries; there is no dead-letter destination.
//
// # Template Contexts
//
// Contexts travel as tagged unions (see Value) because the dispatch task runs
// outside the caller's process. Business records cross the boundary as
// references carrying a captured display string; the Dispatcher re-fetches
// them through a Registry of record sources and falls back to the display
// string when a record has been deleted in the meantime.
package notify
