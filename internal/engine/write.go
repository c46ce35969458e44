package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

// Every write follows the same shape: commit to the local store first
// (failure there is a hard error and the remote is never attempted), then
// attempt the remote call best-effort. Ok refreshes the cache with the
// canonical payload; Rejected leaves the local copy standing and surfaces
// a SoftError; Unreachable enqueues the mutation for replay and reports
// plain success, because the local commit is authoritative from the
// user's point of view.

// settle classifies the remote outcome of a write after the local commit
// succeeded. onOk installs the canonical payload; queueOp is enqueued on
// Unreachable.
func (e *Engine) settle(err error, onOk func(), queueOp func() (schema.PendingOp, error)) error {
	e.observe(err)
	switch {
	case err == nil:
		onOk()
		return nil
	case remote.IsRejected(err):
		return &SoftError{Err: err}
	case remote.IsUnreachable(err):
		op, buildErr := queueOp()
		if buildErr != nil {
			return buildErr
		}
		return e.enqueue(op)
	default:
		return err
	}
}

// UpdateProfile applies a partial profile update.
func (e *Engine) UpdateProfile(ctx context.Context, patch schema.ProfilePatch) (*schema.Profile, error) {
	unlock := e.lockKind(schema.KindProfile)
	defer unlock()

	var p schema.Profile
	if err := e.store.Load(schema.KindProfile, schema.SingletonID, &p); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	patch.Apply(&p)
	if err := e.store.Save(schema.KindProfile, schema.SingletonID, &p); err != nil {
		return nil, err
	}

	canonical, err := e.remote.UpdateProfile(ctx, patch)
	serr := e.settle(err,
		func() {
			p = *canonical
			e.cache(schema.KindProfile, schema.SingletonID, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpUpdateProfile, "", patch)
		})
	return &p, serr
}

// CompleteActivity durably records a completed activity. The id is
// generated locally and replaced by the server-assigned id once the remote
// service acknowledges the completion.
func (e *Engine) CompleteActivity(ctx context.Context, a schema.Activity) (*schema.Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CompletedAt.IsZero() {
		a.CompletedAt = time.Now().UTC()
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid activity: %w", err)
	}

	unlock := e.lockKind(schema.KindActivity)
	defer unlock()

	if err := e.store.Save(schema.KindActivity, a.ID, &a); err != nil {
		return nil, err
	}

	clientID := a.ID
	canonical, err := e.remote.CompleteActivity(ctx, a)
	serr := e.settle(err,
		func() {
			if canonical.ID != clientID {
				// The server id is authoritative; drop the provisional record.
				if derr := e.store.Delete(schema.KindActivity, clientID); derr != nil {
					e.logger.Printf("WARNING: failed to drop provisional activity %s: %v", clientID, derr)
				}
			}
			a = *canonical
			e.cache(schema.KindActivity, a.ID, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpCompleteActivity, clientID, a)
		})
	return &a, serr
}

// CreateReminder creates a reminder, assigning a client id when offline.
func (e *Engine) CreateReminder(ctx context.Context, r schema.Reminder) (*schema.Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}

	unlock := e.lockKind(schema.KindReminder)
	defer unlock()

	if err := e.store.Save(schema.KindReminder, r.ID, &r); err != nil {
		return nil, err
	}

	clientID := r.ID
	canonical, err := e.remote.CreateReminder(ctx, r)
	serr := e.settle(err,
		func() {
			if canonical.ID != clientID {
				if derr := e.store.Delete(schema.KindReminder, clientID); derr != nil {
					e.logger.Printf("WARNING: failed to drop provisional reminder %s: %v", clientID, derr)
				}
			}
			r = *canonical
			e.cache(schema.KindReminder, r.ID, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpCreateReminder, clientID, r)
		})
	return &r, serr
}

// UpdateReminder replaces the reminder with the given id.
func (e *Engine) UpdateReminder(ctx context.Context, id string, r schema.Reminder) (*schema.Reminder, error) {
	r.ID = id
	r.UpdatedAt = time.Now().UTC()
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}

	unlock := e.lockKind(schema.KindReminder)
	defer unlock()

	if err := e.store.Save(schema.KindReminder, id, &r); err != nil {
		return nil, err
	}

	canonical, err := e.remote.UpdateReminder(ctx, id, r)
	serr := e.settle(err,
		func() {
			r = *canonical
			e.cache(schema.KindReminder, r.ID, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpUpdateReminder, id, r)
		})
	return &r, serr
}

// DeleteReminder removes the reminder with the given id.
func (e *Engine) DeleteReminder(ctx context.Context, id string) error {
	unlock := e.lockKind(schema.KindReminder)
	defer unlock()

	if err := e.store.Delete(schema.KindReminder, id); err != nil {
		return err
	}
	e.emit(Event{Type: EventEntityUpdated, Kind: schema.KindReminder})

	err := e.remote.DeleteReminder(ctx, id)
	return e.settle(err,
		func() {},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpDeleteReminder, id, nil)
		})
}

// ToggleReminder flips a reminder's enabled flag.
func (e *Engine) ToggleReminder(ctx context.Context, id string) (*schema.Reminder, error) {
	unlock := e.lockKind(schema.KindReminder)
	defer unlock()

	var r schema.Reminder
	if err := e.store.Load(schema.KindReminder, id, &r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoCachedData
		}
		return nil, err
	}
	r.Enabled = !r.Enabled
	r.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(schema.KindReminder, id, &r); err != nil {
		return nil, err
	}

	canonical, err := e.remote.ToggleReminder(ctx, id)
	serr := e.settle(err,
		func() {
			r = *canonical
			e.cache(schema.KindReminder, r.ID, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpToggleReminder, id, nil)
		})
	return &r, serr
}

// UpdateMetrics applies a partial update to today's tracking record.
func (e *Engine) UpdateMetrics(ctx context.Context, patch schema.MetricsPatch) (*schema.DailyMetrics, error) {
	unlock := e.lockKind(schema.KindMetrics)
	defer unlock()

	m, err := e.loadTodayLocked()
	if err != nil {
		return nil, err
	}
	patch.Apply(m)
	if err := e.saveTodayLocked(m); err != nil {
		return nil, err
	}

	canonical, rerr := e.remote.UpdateMetrics(ctx, patch)
	serr := e.settle(rerr,
		func() {
			*m = *canonical
			e.cache(schema.KindMetrics, m.Date, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpUpdateMetrics, m.Date, patch)
		})
	return m, serr
}

// AddWater increments today's water intake by amount milliliters.
func (e *Engine) AddWater(ctx context.Context, amount int) (*schema.DailyMetrics, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("water amount must be positive (got %d)", amount)
	}

	unlock := e.lockKind(schema.KindMetrics)
	defer unlock()

	m, err := e.loadTodayLocked()
	if err != nil {
		return nil, err
	}
	m.WaterIntake += amount
	if err := e.saveTodayLocked(m); err != nil {
		return nil, err
	}

	canonical, rerr := e.remote.AddWater(ctx, amount)
	serr := e.settle(rerr,
		func() {
			*m = *canonical
			e.cache(schema.KindMetrics, m.Date, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpAddWater, m.Date, schema.WaterPayload{Amount: amount})
		})
	return m, serr
}

// SetMood sets today's mood.
func (e *Engine) SetMood(ctx context.Context, mood string) (*schema.DailyMetrics, error) {
	if mood == "" {
		return nil, fmt.Errorf("mood must not be empty")
	}

	unlock := e.lockKind(schema.KindMetrics)
	defer unlock()

	m, err := e.loadTodayLocked()
	if err != nil {
		return nil, err
	}
	m.Mood = mood
	if err := e.saveTodayLocked(m); err != nil {
		return nil, err
	}

	canonical, rerr := e.remote.SetMood(ctx, mood)
	serr := e.settle(rerr,
		func() {
			*m = *canonical
			e.cache(schema.KindMetrics, m.Date, canonical)
		},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpSetMood, m.Date, schema.MoodPayload{Mood: mood})
		})
	return m, serr
}

// RegisterPushToken registers a device push token with the remote
// service. There is no local representation; unreachable outcomes are
// queued like any other mutation.
func (e *Engine) RegisterPushToken(ctx context.Context, p schema.PushTokenPayload) error {
	err := e.remote.RegisterPushToken(ctx, p)
	return e.settle(err,
		func() {},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpRegisterPushToken, p.Token, p)
		})
}

// UnregisterPushToken removes a device push token.
func (e *Engine) UnregisterPushToken(ctx context.Context, p schema.PushTokenPayload) error {
	err := e.remote.UnregisterPushToken(ctx, p)
	return e.settle(err,
		func() {},
		func() (schema.PendingOp, error) {
			return schema.NewPendingOp(schema.OpUnregisterPushToken, p.Token, p)
		})
}

// loadTodayLocked returns today's metrics record, or a fresh zero record
// for a new day. Callers must hold the metrics kind lock.
func (e *Engine) loadTodayLocked() (*schema.DailyMetrics, error) {
	today := schema.DateKey(time.Now())
	var m schema.DailyMetrics
	err := e.store.Load(schema.KindMetrics, today, &m)
	if errors.Is(err, store.ErrNotFound) {
		return &schema.DailyMetrics{Date: today}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// saveTodayLocked persists today's metrics record. Callers must hold the
// metrics kind lock.
func (e *Engine) saveTodayLocked(m *schema.DailyMetrics) error {
	m.UpdatedAt = time.Now().UTC()
	return e.store.Save(schema.KindMetrics, m.Date, m)
}
