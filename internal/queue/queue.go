// Package queue provides the durable pending-operation queue.
//
// The queue is an ordered log of mutation intents that reached the local
// store but have not been acknowledged by the remote service. It is itself
// persisted in the local store under a reserved kind, and every mutation is
// flushed to storage before the call returns, so the queue survives process
// restarts and a crash between enqueue and flush cannot occur.
//
// Operations replay in strict insertion order. Repeated enqueues for the
// same entity id are NOT collapsed: each is replayed independently, which
// is safe because every queued operation is idempotent at the remote side
// per entity id.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

// Queue is a durable FIFO of pending operations. Safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	store *store.Store
	ops   []schema.PendingOp
}

// Open loads the persisted queue from the store, or starts empty if no
// queue record exists yet.
func Open(st *store.Store) (*Queue, error) {
	q := &Queue{store: st}

	var ops []schema.PendingOp
	err := st.Load(schema.KindQueue, schema.SingletonID, &ops)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load pending queue: %w", err)
	}
	q.ops = ops
	return q, nil
}

// Enqueue appends op to the back of the queue and flushes to storage
// before returning.
func (q *Queue) Enqueue(op schema.PendingOp) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	if err := q.flushLocked(); err != nil {
		// Roll back the in-memory append so memory and storage agree.
		q.ops = q.ops[:len(q.ops)-1]
		return err
	}
	return nil
}

// Pending returns a copy of the queued operations in insertion order
// without removing them.
func (q *Queue) Pending() []schema.PendingOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]schema.PendingOp(nil), q.ops...)
}

// DrainAll atomically removes and returns every queued operation in
// insertion order. The cleared queue is flushed before DrainAll returns, so
// a concurrent Enqueue lands after the drained batch.
func (q *Queue) DrainAll() ([]schema.PendingOp, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return nil, nil
	}

	drained := q.ops
	q.ops = nil
	if err := q.flushLocked(); err != nil {
		q.ops = drained
		return nil, err
	}
	return drained, nil
}

// Reinsert restores operations that failed replay to the FRONT of the
// queue, preserving their original relative order ahead of anything
// enqueued while the replay pass was running.
func (q *Queue) Reinsert(ops []schema.PendingOp) error {
	if len(ops) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	restored := make([]schema.PendingOp, 0, len(ops)+len(q.ops))
	restored = append(restored, ops...)
	restored = append(restored, q.ops...)

	prev := q.ops
	q.ops = restored
	if err := q.flushLocked(); err != nil {
		q.ops = prev
		return err
	}
	return nil
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// flushLocked persists the current queue contents. Callers must hold q.mu.
func (q *Queue) flushLocked() error {
	// An empty queue is stored as an empty list rather than deleted, so a
	// reload cannot confuse "never synced" with "fully drained".
	ops := q.ops
	if ops == nil {
		ops = []schema.PendingOp{}
	}
	if err := q.store.Save(schema.KindQueue, schema.SingletonID, ops); err != nil {
		return fmt.Errorf("failed to flush pending queue: %w", err)
	}
	return nil
}
