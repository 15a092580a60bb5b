// Package queue provides a storage-backed task queue used to decouple slow
// work, like outbound mail delivery, from the business operation that
// triggers it.
//
// Tasks are durable rows created by an Enqueuer and claimed by a Worker pool.
// A claimed task runs its registered Handler; on failure the storage layer
// returns it to pending with an exponential, jittered backoff until the
// attempt bound is reached, after which it settles as failed and remains in
// storage for inspection. There is no dead-letter destination and no
// cancellation of enqueued work.
//
// Two storage implementations are provided: MemoryStorage for tests and
// local development, and PostgresStorage which claims tasks with
// FOR UPDATE SKIP LOCKED so several workers can share one table.
//
// Typical wiring:
//
//	storage := queue.NewPostgresStorage(pool)
//	enq, _ := queue.NewEnqueuer(storage)
//	w, _ := queue.NewWorker(storage, queue.WithMaxConcurrentTasks(10))
//	w.RegisterHandlers(queue.NewTaskHandler(sendEmail))
//
//	g.Go(w.Run(ctx))
//
//	task, _ := enq.Enqueue(ctx, sendEmailPayload{...})
package queue
