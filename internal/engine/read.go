package engine

import (
	"context"
	"errors"
	"time"

	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

// fetchOne runs the remote-first read protocol for a single record.
//
// Online: call remote; Ok refreshes the cache and returns the payload,
// Rejected returns immediately (the remote has authoritatively declined,
// no fallback), Unreachable flips offline and falls through to the cache.
// Offline: the remote is skipped entirely.
func fetchOne[T any](ctx context.Context, e *Engine, kind schema.Kind, id string, call func(context.Context) (*T, error)) (*T, error) {
	if e.Online() {
		v, err := call(ctx)
		e.observe(err)
		switch {
		case err == nil:
			e.cache(kind, id, v)
			return v, nil
		case remote.IsRejected(err):
			return nil, err
		case remote.IsUnreachable(err):
			// Fall through to the local store.
		default:
			return nil, err
		}
	}

	out := new(T)
	err := e.store.Load(kind, id, out)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoCachedData
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fetchList runs the read protocol for a record collection. Unlike
// fetchOne, an empty cache is a valid "no data" result for list views, not
// an error.
func fetchList[T any](ctx context.Context, e *Engine, kind schema.Kind, call func(context.Context) ([]T, error), idOf func(*T) string) ([]T, error) {
	if e.Online() {
		items, err := call(ctx)
		e.observe(err)
		switch {
		case err == nil:
			records := make([]store.Record, len(items))
			seen := make(map[string]bool, len(items))
			for i := range items {
				id := idOf(&items[i])
				records[i] = store.Record{ID: id, V: &items[i]}
				seen[id] = true
			}
			// Records whose creation is still queued are unknown to the
			// server; keep them so the replace does not hide a committed
			// offline create until its replay lands.
			for _, id := range e.pendingCreateIDs(kind) {
				if seen[id] {
					continue
				}
				v := new(T)
				if lerr := e.store.Load(kind, id, v); lerr != nil {
					continue
				}
				records = append(records, store.Record{ID: id, V: v})
				items = append(items, *v)
			}
			if err := e.store.ReplaceAll(kind, records); err != nil {
				e.logger.Printf("WARNING: failed to cache %s list: %v", kind, err)
			} else {
				e.emit(Event{Type: EventEntityUpdated, Kind: kind})
			}
			return items, nil
		case remote.IsRejected(err):
			return nil, err
		case remote.IsUnreachable(err):
			// Fall through to the local store.
		default:
			return nil, err
		}
	}

	var out []T
	if err := e.store.LoadAll(kind, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// pendingCreateIDs returns the ids of records of this kind whose creation
// is still waiting in the pending queue.
func (e *Engine) pendingCreateIDs(kind schema.Kind) []string {
	var opKind schema.OpKind
	switch kind {
	case schema.KindReminder:
		opKind = schema.OpCreateReminder
	case schema.KindActivity:
		opKind = schema.OpCompleteActivity
	default:
		return nil
	}
	var ids []string
	for _, op := range e.queue.Pending() {
		if op.Kind == opKind {
			ids = append(ids, op.TargetID)
		}
	}
	return ids
}

// Profile returns the user's profile, remote-first.
func (e *Engine) Profile(ctx context.Context) (*schema.Profile, error) {
	return fetchOne(ctx, e, schema.KindProfile, schema.SingletonID, e.remote.Profile)
}

// Streak returns the last known streak state, remote-first.
func (e *Engine) Streak(ctx context.Context) (*schema.Streak, error) {
	return fetchOne(ctx, e, schema.KindStreak, schema.SingletonID, e.remote.Streak)
}

// ValidateStreak asks the remote service to recompute the streak. Offline
// it degrades to the cached value; nothing is queued, because the streak
// is derived remotely and cannot be replayed.
func (e *Engine) ValidateStreak(ctx context.Context) (*schema.Streak, error) {
	return fetchOne(ctx, e, schema.KindStreak, schema.SingletonID, e.remote.ValidateStreak)
}

// History lists completed activities, remote-first with cached fallback.
func (e *Engine) History(ctx context.Context) ([]schema.Activity, error) {
	return fetchList(ctx, e, schema.KindActivity, e.remote.History,
		func(a *schema.Activity) string { return a.ID })
}

// Reminders lists reminders, remote-first with cached fallback.
func (e *Engine) Reminders(ctx context.Context) ([]schema.Reminder, error) {
	return fetchList(ctx, e, schema.KindReminder, e.remote.Reminders,
		func(r *schema.Reminder) string { return r.ID })
}

// TodayMetrics returns today's tracking record. Offline with no cached
// record for today it returns a fresh zero-valued record rather than an
// error, matching the "no data yet" semantics of a new day.
func (e *Engine) TodayMetrics(ctx context.Context) (*schema.DailyMetrics, error) {
	today := schema.DateKey(time.Now())
	m, err := fetchOne(ctx, e, schema.KindMetrics, today, e.remote.TodayMetrics)
	if errors.Is(err, ErrNoCachedData) {
		return &schema.DailyMetrics{Date: today}, nil
	}
	return m, err
}
