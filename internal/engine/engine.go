package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stillapp/stillsync/internal/queue"
	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

// Config holds engine configuration.
type Config struct {
	// ReplayInterval is how often the worker runs an unprompted replay
	// pass while operations are pending. Zero disables periodic replay;
	// passes then run only on connectivity transitions and explicit
	// reconciliation requests.
	ReplayInterval time.Duration

	// Logger for engine activity. Default: stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReplayInterval: 30 * time.Second,
		Logger:         log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine orchestrates reads and writes between the local store and the
// remote service. Construct with New, then Start the replay worker.
//
// The engine is safe for concurrent use: writes to the same entity kind
// are serialized, everything else proceeds in parallel.
type Engine struct {
	store  *store.Store
	remote RemoteClient
	queue  *queue.Queue
	config *Config
	logger *log.Logger

	// online is the engine's current belief about remote reachability.
	// Single writer (observe), lock-free readers.
	online atomic.Bool

	// kindMu serializes the local-then-remote write sequence per entity
	// kind, so the store and the queue observe the same order the remote
	// service eventually replays.
	kindMu [kindCount]sync.Mutex

	// replayCh wakes the replay worker. Buffered with size 1 so repeated
	// triggers coalesce.
	replayCh chan struct{}

	subsMu sync.RWMutex
	subs   []func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// kindSlot maps a writable entity kind to its mutex slot.
const kindCount = 5

func kindSlot(k schema.Kind) int {
	switch k {
	case schema.KindProfile:
		return 0
	case schema.KindActivity:
		return 1
	case schema.KindStreak:
		return 2
	case schema.KindReminder:
		return 3
	default: // KindMetrics and anything engine-internal
		return 4
	}
}

// New creates an engine over the given store, remote client, and pending
// queue. The queue must be backed by the same store so a crash cannot
// separate them.
//
// Example:
//
//	st, _ := store.Open(dbPath)
//	q, _ := queue.Open(st)
//	client := remote.New(baseURL, remote.NewStoreTokenSource(st), nil)
//	eng := engine.New(st, client, q, nil)
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop()
func New(st *store.Store, rc RemoteClient, q *queue.Queue, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}

	e := &Engine{
		store:    st,
		remote:   rc,
		queue:    q,
		config:   config,
		logger:   config.Logger,
		replayCh: make(chan struct{}, 1),
	}
	// Initial assumption: online until a call proves otherwise.
	e.online.Store(true)
	return e
}

// Start launches the replay worker. It returns immediately; the worker
// runs until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if e.ctx != nil {
		return fmt.Errorf("engine already started")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run()

	// Anything left over from a previous process is due for replay.
	if e.queue.Len() > 0 {
		e.logger.Printf("Loaded %d pending operations", e.queue.Len())
		e.TriggerReplay()
	}
	return nil
}

// Stop shuts down the replay worker and waits for an in-flight pass to
// finish.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
}

// Online reports the engine's current belief about remote reachability.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// PendingCount returns the number of operations awaiting replay. The
// presentation layer may poll this to show a "syncing" indicator.
func (e *Engine) PendingCount() int {
	return e.queue.Len()
}

// TriggerReplay requests a reconciliation pass. Non-blocking; if a pass is
// already scheduled or running the request coalesces with it.
func (e *Engine) TriggerReplay() {
	select {
	case e.replayCh <- struct{}{}:
	default:
	}
}

// ReplayNow runs a single synchronous replay pass and reports how many
// operations remain queued. For one-shot callers that do not run the
// background worker; must not be mixed with Start.
func (e *Engine) ReplayNow(ctx context.Context) int {
	e.replayPass(ctx)
	return e.queue.Len()
}

// observe updates the connectivity flag from a remote call outcome. Any
// real response (Ok or Rejected) means the network produced an answer and
// flips the engine online; Unreachable flips it offline. An offline-to-
// online transition schedules a replay pass.
func (e *Engine) observe(err error) {
	switch {
	case err == nil, remote.IsRejected(err):
		if e.online.CompareAndSwap(false, true) {
			e.logger.Printf("Connectivity restored")
			e.emit(Event{Type: EventConnectivity})
			e.TriggerReplay()
		}
	case remote.IsUnreachable(err):
		if e.online.CompareAndSwap(true, false) {
			e.logger.Printf("Remote unreachable, going offline")
			e.emit(Event{Type: EventConnectivity})
		}
	}
	// Anything else (local encode faults etc.) says nothing about the
	// network and leaves the flag alone.
}

// lockKind acquires the write lock for an entity kind and returns the
// unlock func.
func (e *Engine) lockKind(k schema.Kind) func() {
	mu := &e.kindMu[kindSlot(k)]
	mu.Lock()
	return mu.Unlock
}

// cache persists a canonical remote payload into the local store. Cache
// refresh failures are logged, not surfaced: the caller already holds the
// authoritative payload.
func (e *Engine) cache(kind schema.Kind, id string, v any) {
	if err := e.store.Save(kind, id, v); err != nil {
		e.logger.Printf("WARNING: failed to cache %s/%s: %v", kind, id, err)
		return
	}
	e.emit(Event{Type: EventEntityUpdated, Kind: kind})
}

// enqueue appends a pending operation and reports the queue event.
func (e *Engine) enqueue(op schema.PendingOp) error {
	if err := e.queue.Enqueue(op); err != nil {
		return err
	}
	e.logger.Printf("Queued %s for replay (%d pending)", op.Kind, e.queue.Len())
	e.emit(Event{Type: EventOpQueued, Op: op.Kind})
	return nil
}
