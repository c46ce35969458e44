package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

func unreachable() error {
	return &remote.UnreachableError{Err: errors.New("connection refused")}
}

// queueOffline drives a set of writes against an unreachable remote and
// returns with the engine offline and the operations queued.
func queueOffline(t *testing.T, e *Engine, f *fakeRemote, writes ...func() error) {
	t.Helper()
	f.setUnreachable(true)
	for _, w := range writes {
		if err := w(); err != nil {
			t.Fatalf("offline write failed: %v", err)
		}
	}
	if e.Online() {
		t.Fatalf("engine should be offline after unreachable writes")
	}
	if got := e.PendingCount(); got != len(writes) {
		t.Fatalf("expected %d queued ops, got %d", len(writes), got)
	}
	f.setUnreachable(false)
}

func TestReplayResolvesInInsertionOrder(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	queueOffline(t, e, f,
		func() error { _, err := e.SetMood(ctx, "calm"); return err },
		func() error { _, err := e.AddWater(ctx, 250); return err },
		func() error { _, err := e.AddWater(ctx, 300); return err },
		func() error {
			_, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Drink water",
				Type:      schema.ReminderHydration,
				Frequency: schema.FrequencyDaily,
			})
			return err
		},
	)

	before := len(f.callLog())
	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Errorf("expected empty queue, got %d pending", e.PendingCount())
	}
	if !e.Online() {
		t.Errorf("engine should be online after a clean replay")
	}

	got := f.callLog()[before:]
	want := []string{"SetMood", "AddWater", "AddWater", "CreateReminder"}
	if len(got) != len(want) {
		t.Fatalf("expected %d replay calls, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestReplayStopsAtFirstUnreachable(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	queueOffline(t, e, f,
		func() error { _, err := e.SetMood(ctx, "calm"); return err },
		func() error { _, err := e.AddWater(ctx, 250); return err },
		func() error { _, err := e.SetMood(ctx, "happy"); return err },
	)

	f.setScript(nil, nil, unreachable())
	before := len(f.callLog())
	e.replayPass(context.Background())

	if got := len(f.callLog()) - before; got != 3 {
		t.Errorf("pass must end at the failed op, made %d calls", got)
	}
	if e.Online() {
		t.Errorf("engine should flip offline when replay hits unreachable")
	}
	if e.PendingCount() != 1 {
		t.Fatalf("expected 1 op back on the queue, got %d", e.PendingCount())
	}

	// The surviving op is the one that failed, not an arbitrary one.
	ops, err := e.queue.DrainAll()
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if ops[0].Kind != schema.OpSetMood {
		t.Errorf("expected the failed OpSetMood to survive, got %s", ops[0].Kind)
	}
	var m schema.MoodPayload
	if err := ops[0].DecodePayload(&m); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if m.Mood != "happy" {
		t.Errorf("expected payload of the third write, got %q", m.Mood)
	}
}

func TestReplayDropsRejectedAndContinues(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	queueOffline(t, e, f,
		func() error { _, err := e.SetMood(ctx, "calm"); return err },
		func() error { _, err := e.AddWater(ctx, 250); return err },
	)

	f.setScript(&remote.RejectedError{Status: 422, Detail: "mood not recognized"}, nil)
	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Errorf("rejected op must be dropped, not requeued; %d pending", e.PendingCount())
	}
	if !e.Online() {
		t.Errorf("rejections are real responses; engine should be online")
	}
}

func TestReplayInstallsServerID(t *testing.T) {
	e, f, st := setupTestEngine(t)
	ctx := context.Background()

	var clientID string
	queueOffline(t, e, f, func() error {
		a, err := e.CompleteActivity(ctx, schema.Activity{Title: "Stretch"})
		if a != nil {
			clientID = a.ID
		}
		return err
	})

	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d pending", e.PendingCount())
	}
	var a schema.Activity
	if err := st.Load(schema.KindActivity, "srv-1", &a); err != nil {
		t.Fatalf("canonical record missing: %v", err)
	}
	if err := st.Load(schema.KindActivity, clientID, &a); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("provisional record %s should be gone, got %v", clientID, err)
	}
}

func TestOfflineSessionReplaysOnReconnect(t *testing.T) {
	e, f, st := setupTestEngine(t)
	ctx := context.Background()

	// A short offline session: log a mood, some water, and a new reminder.
	queueOffline(t, e, f,
		func() error { _, err := e.SetMood(ctx, "calm"); return err },
		func() error { _, err := e.AddWater(ctx, 250); return err },
		func() error {
			_, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Evening meditation",
				Type:      schema.ReminderMeditation,
				Frequency: schema.FrequencyDaily,
			})
			return err
		},
	)

	// Every local read reflects the committed writes.
	m, err := e.TodayMetrics(ctx)
	if err != nil {
		t.Fatalf("TodayMetrics failed: %v", err)
	}
	if m.Mood != "calm" || m.WaterIntake != 250 {
		t.Fatalf("local metrics wrong: %+v", m)
	}

	// Connectivity returns, but drops again mid-replay.
	f.setScript(nil, nil, unreachable())
	e.replayPass(context.Background())

	if e.PendingCount() != 1 {
		t.Errorf("expected the reminder op to survive, got %d pending", e.PendingCount())
	}
	if e.Online() {
		t.Errorf("engine should be offline after the mid-replay failure")
	}

	// The two resolved writes left local state untouched and correct.
	m, err = e.TodayMetrics(ctx)
	if err != nil {
		t.Fatalf("TodayMetrics failed: %v", err)
	}
	if m.Mood != "calm" || m.WaterIntake != 250 {
		t.Errorf("metrics damaged by replay: %+v", m)
	}

	// The reminder is still visible locally under its provisional id.
	n, err := st.Count(schema.KindReminder)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the unsynced reminder cached locally, got %d", n)
	}

	// Second reconnect finishes the job.
	e.replayPass(context.Background())
	if e.PendingCount() != 0 {
		t.Errorf("expected empty queue after second pass, got %d", e.PendingCount())
	}
	if !e.Online() {
		t.Errorf("engine should be online after the clean pass")
	}
}

func TestReplayRemapsProvisionalReminderTargets(t *testing.T) {
	e, f, st := setupTestEngine(t)
	ctx := context.Background()

	// Create a reminder and then disable it, all offline. The toggle is
	// queued against the provisional id.
	var clientID string
	queueOffline(t, e, f,
		func() error {
			r, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Drink water",
				Type:      schema.ReminderHydration,
				Frequency: schema.FrequencyDaily,
			})
			if r != nil {
				clientID = r.ID
			}
			return err
		},
		func() error { _, err := e.ToggleReminder(ctx, clientID); return err },
	)

	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d pending", e.PendingCount())
	}
	if !e.Online() {
		t.Errorf("engine should be online after a clean replay")
	}

	// The toggle must have been sent against the server-assigned id, not
	// the stale provisional one.
	targets := f.reminderTargets()
	if len(targets) != 1 || targets[0] != "srv-1" {
		t.Fatalf("expected toggle against srv-1, got %v", targets)
	}

	// Exactly one local record, under the server id, with the toggle
	// applied (created enabled, toggled off).
	n, err := st.Count(schema.KindReminder)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 reminder record, got %d", n)
	}
	var r schema.Reminder
	if err := st.Load(schema.KindReminder, "srv-1", &r); err != nil {
		t.Fatalf("canonical record missing: %v", err)
	}
	if r.Enabled {
		t.Errorf("toggle lost during replay: %+v", r)
	}
	if err := st.Load(schema.KindReminder, clientID, &r); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("provisional record %s should be gone, got %v", clientID, err)
	}
}

func TestReplayRemapsUpdatePayloadID(t *testing.T) {
	e, f, st := setupTestEngine(t)
	ctx := context.Background()

	var created schema.Reminder
	queueOffline(t, e, f,
		func() error {
			r, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Stretch",
				Type:      schema.ReminderStretchBreak,
				Frequency: schema.FrequencyDaily,
			})
			if r != nil {
				created = *r
			}
			return err
		},
		func() error {
			updated := created
			updated.Title = "Long stretch"
			_, err := e.UpdateReminder(ctx, created.ID, updated)
			return err
		},
	)

	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d pending", e.PendingCount())
	}
	targets := f.reminderTargets()
	if len(targets) != 1 || targets[0] != "srv-1" {
		t.Fatalf("expected update against srv-1, got %v", targets)
	}
	var r schema.Reminder
	if err := st.Load(schema.KindReminder, "srv-1", &r); err != nil {
		t.Fatalf("canonical record missing: %v", err)
	}
	if r.Title != "Long stretch" {
		t.Errorf("update lost during replay: %+v", r)
	}
	if r.ID != "srv-1" {
		t.Errorf("payload id not remapped, got %q", r.ID)
	}
}

func TestReplayRemapSurvivesReinsert(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	var clientID string
	queueOffline(t, e, f,
		func() error {
			r, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Meditate",
				Type:      schema.ReminderMeditation,
				Frequency: schema.FrequencyDaily,
			})
			if r != nil {
				clientID = r.ID
			}
			return err
		},
		func() error { _, err := e.ToggleReminder(ctx, clientID); return err },
	)

	// The create lands, the toggle hits a dropped connection. The
	// reinserted toggle must already carry the server id.
	f.setScript(nil, unreachable())
	e.replayPass(context.Background())

	if e.PendingCount() != 1 {
		t.Fatalf("expected the toggle back on the queue, got %d pending", e.PendingCount())
	}
	ops, err := e.queue.DrainAll()
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if ops[0].Kind != schema.OpToggleReminder {
		t.Fatalf("expected the toggle to survive, got %s", ops[0].Kind)
	}
	if ops[0].TargetID != "srv-1" {
		t.Errorf("reinserted op still targets provisional id %q", ops[0].TargetID)
	}
}

func TestReplayDeleteAfterCreateLeavesNothing(t *testing.T) {
	e, f, st := setupTestEngine(t)
	ctx := context.Background()

	var clientID string
	queueOffline(t, e, f,
		func() error {
			r, err := e.CreateReminder(ctx, schema.Reminder{
				Title:     "Short-lived",
				Type:      schema.ReminderCustom,
				Frequency: schema.FrequencyDaily,
			})
			if r != nil {
				clientID = r.ID
			}
			return err
		},
		func() error { return e.DeleteReminder(ctx, clientID) },
	)

	e.replayPass(context.Background())

	if e.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d pending", e.PendingCount())
	}
	targets := f.reminderTargets()
	if len(targets) != 1 || targets[0] != "srv-1" {
		t.Fatalf("expected delete against srv-1, got %v", targets)
	}
	n, err := st.Count(schema.KindReminder)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted reminder resurrected locally, have %d records", n)
	}
}

func TestReplayWorkerDrainsQueue(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	queueOffline(t, e, f, func() error {
		_, err := e.AddWater(ctx, 100)
		return err
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop()
	e.TriggerReplay()

	deadline := time.Now().Add(5 * time.Second)
	for e.PendingCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("replay worker never drained the queue")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !e.Online() {
		t.Errorf("engine should be online after worker replay")
	}
}

func TestEnqueueDuringReplayKeepsOrder(t *testing.T) {
	e, f, _ := setupTestEngine(t)
	ctx := context.Background()

	queueOffline(t, e, f,
		func() error { _, err := e.SetMood(ctx, "calm"); return err },
		func() error { _, err := e.AddWater(ctx, 250); return err },
	)

	// The first op fails; while still offline, another write lands.
	f.setScript(unreachable())
	e.replayPass(context.Background())
	f.setUnreachable(true)
	if _, err := e.SetMood(ctx, "tired"); err != nil {
		t.Fatalf("offline write failed: %v", err)
	}

	// Restored ops come before the newcomer.
	ops, err := e.queue.DrainAll()
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	want := []schema.OpKind{schema.OpSetMood, schema.OpAddWater, schema.OpSetMood}
	if len(ops) != len(want) {
		t.Fatalf("expected %d ops, got %d", len(want), len(ops))
	}
	for i, k := range want {
		if ops[i].Kind != k {
			t.Errorf("op %d: expected %s, got %s", i, k, ops[i].Kind)
		}
	}
	var m schema.MoodPayload
	if err := ops[2].DecodePayload(&m); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if m.Mood != "tired" {
		t.Errorf("expected the late write last, got %q", m.Mood)
	}
}
