package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
)

// run is the replay worker. It is the only goroutine that executes replay
// passes, which makes the "single active replay pass" rule structural
// rather than a lock-ordering obligation.
func (e *Engine) run() {
	defer e.wg.Done()

	var tick <-chan time.Time
	if e.config.ReplayInterval > 0 {
		ticker := time.NewTicker(e.config.ReplayInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.replayCh:
			e.replayPass(e.ctx)
		case <-tick:
			if e.queue.Len() > 0 {
				e.replayPass(e.ctx)
			}
		}
	}
}

// replayPass drains the queue and resends operations in insertion order.
// The first Unreachable outcome ends the pass: the unresolved remainder
// (including the operation that just failed) goes back to the front of the
// queue and the engine flips offline. Ok and Rejected both resolve an
// operation; a rejection is logged and dropped, since retrying a policy
// decision cannot succeed.
//
// When a queued create resolves to a server-assigned id, later operations
// in the same pass that still target the provisional id are rewritten
// before they are sent, so an offline create-then-mutate sequence replays
// against the record the server actually knows.
func (e *Engine) replayPass(ctx context.Context) {
	ops, err := e.queue.DrainAll()
	if err != nil {
		e.logger.Printf("WARNING: failed to drain pending queue: %v", err)
		return
	}
	if len(ops) == 0 {
		return
	}

	e.logger.Printf("Replaying %d pending operations", len(ops))
	e.emit(Event{Type: EventReplayStarted, Remaining: len(ops)})

	replayed := 0
	for i, op := range ops {
		serverID, err := e.replayOp(ctx, op)
		if remote.IsUnreachable(err) {
			// Preserve ordering: do not skip ahead.
			if rerr := e.queue.Reinsert(ops[i:]); rerr != nil {
				e.logger.Printf("WARNING: failed to restore %d operations: %v", len(ops)-i, rerr)
			}
			e.observe(err)
			e.logger.Printf("Replay interrupted after %d/%d operations", replayed, len(ops))
			e.emit(Event{Type: EventReplayFinished, Replayed: replayed, Remaining: len(ops) - i})
			return
		}
		if remote.IsRejected(err) {
			e.logger.Printf("Dropping %s: %v", op.Kind, err)
		} else if err != nil {
			// Undecodable payloads cannot ever succeed; same terminal
			// treatment as a rejection.
			e.logger.Printf("Dropping %s: %v", op.Kind, err)
		}
		if err == nil && serverID != "" && serverID != op.TargetID {
			remapProvisionalID(ops[i+1:], op.TargetID, serverID)
		}
		e.observe(err)
		replayed++
	}

	e.logger.Printf("Replay complete: %d operations", replayed)
	e.emit(Event{Type: EventReplayFinished, Replayed: replayed})
}

// remapProvisionalID rewrites queued reminder mutations that target a
// provisional id whose create just resolved to a server-assigned id. The
// rewrite covers both the target and the id embedded in update payloads,
// and happens in the drained slice, so a later reinsert preserves it.
func remapProvisionalID(ops []schema.PendingOp, oldID, newID string) {
	for i := range ops {
		op := &ops[i]
		if op.TargetID != oldID {
			continue
		}
		switch op.Kind {
		case schema.OpUpdateReminder, schema.OpDeleteReminder, schema.OpToggleReminder:
			op.TargetID = newID
			if len(op.Payload) == 0 {
				continue
			}
			var r schema.Reminder
			if err := json.Unmarshal(op.Payload, &r); err != nil || r.ID != oldID {
				continue
			}
			r.ID = newID
			if b, err := json.Marshal(&r); err == nil {
				op.Payload = b
			}
		}
	}
}

// replayOp resends one queued operation and refreshes the local cache
// from the canonical response where one exists. For creates it returns
// the server-assigned id so the pass can rewrite later operations that
// still target the provisional one.
func (e *Engine) replayOp(ctx context.Context, op schema.PendingOp) (string, error) {
	switch op.Kind {
	case schema.OpUpdateProfile:
		var patch schema.ProfilePatch
		if err := op.DecodePayload(&patch); err != nil {
			return "", err
		}
		canonical, err := e.remote.UpdateProfile(ctx, patch)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindProfile, schema.SingletonID, canonical)
		return "", nil

	case schema.OpCompleteActivity:
		var a schema.Activity
		if err := op.DecodePayload(&a); err != nil {
			return "", err
		}
		canonical, err := e.remote.CompleteActivity(ctx, a)
		if err != nil {
			return "", err
		}
		if canonical.ID != op.TargetID {
			if derr := e.store.Delete(schema.KindActivity, op.TargetID); derr != nil {
				e.logger.Printf("WARNING: failed to drop provisional activity %s: %v", op.TargetID, derr)
			}
		}
		e.cache(schema.KindActivity, canonical.ID, canonical)
		return canonical.ID, nil

	case schema.OpCreateReminder:
		var r schema.Reminder
		if err := op.DecodePayload(&r); err != nil {
			return "", err
		}
		canonical, err := e.remote.CreateReminder(ctx, r)
		if err != nil {
			return "", err
		}
		if canonical.ID != op.TargetID {
			if derr := e.store.Delete(schema.KindReminder, op.TargetID); derr != nil {
				e.logger.Printf("WARNING: failed to drop provisional reminder %s: %v", op.TargetID, derr)
			}
		}
		e.cache(schema.KindReminder, canonical.ID, canonical)
		return canonical.ID, nil

	case schema.OpUpdateReminder:
		var r schema.Reminder
		if err := op.DecodePayload(&r); err != nil {
			return "", err
		}
		canonical, err := e.remote.UpdateReminder(ctx, op.TargetID, r)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindReminder, canonical.ID, canonical)
		return "", nil

	case schema.OpDeleteReminder:
		if err := e.remote.DeleteReminder(ctx, op.TargetID); err != nil {
			return "", err
		}
		// An earlier create in the same pass may have re-cached the
		// record; drop it again.
		if derr := e.store.Delete(schema.KindReminder, op.TargetID); derr != nil {
			e.logger.Printf("WARNING: failed to drop deleted reminder %s: %v", op.TargetID, derr)
		}
		return "", nil

	case schema.OpToggleReminder:
		canonical, err := e.remote.ToggleReminder(ctx, op.TargetID)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindReminder, canonical.ID, canonical)
		return "", nil

	case schema.OpUpdateMetrics:
		var patch schema.MetricsPatch
		if err := op.DecodePayload(&patch); err != nil {
			return "", err
		}
		canonical, err := e.remote.UpdateMetrics(ctx, patch)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindMetrics, canonical.Date, canonical)
		return "", nil

	case schema.OpAddWater:
		var w schema.WaterPayload
		if err := op.DecodePayload(&w); err != nil {
			return "", err
		}
		canonical, err := e.remote.AddWater(ctx, w.Amount)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindMetrics, canonical.Date, canonical)
		return "", nil

	case schema.OpSetMood:
		var m schema.MoodPayload
		if err := op.DecodePayload(&m); err != nil {
			return "", err
		}
		canonical, err := e.remote.SetMood(ctx, m.Mood)
		if err != nil {
			return "", err
		}
		e.cache(schema.KindMetrics, canonical.Date, canonical)
		return "", nil

	case schema.OpRegisterPushToken:
		var p schema.PushTokenPayload
		if err := op.DecodePayload(&p); err != nil {
			return "", err
		}
		return "", e.remote.RegisterPushToken(ctx, p)

	case schema.OpUnregisterPushToken:
		var p schema.PushTokenPayload
		if err := op.DecodePayload(&p); err != nil {
			return "", err
		}
		return "", e.remote.UnregisterPushToken(ctx, p)

	default:
		return "", fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}
