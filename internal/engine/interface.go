package engine

import (
	"context"

	"github.com/stillapp/stillsync/internal/schema"
)

// RemoteClient is the slice of the remote adapter the engine depends on.
// *remote.Client satisfies it; tests substitute a scriptable fake.
//
// Every method resolves to one of the three outcomes classified by the
// remote package: nil error (Ok), *remote.RejectedError, or
// *remote.UnreachableError.
type RemoteClient interface {
	Profile(ctx context.Context) (*schema.Profile, error)
	UpdateProfile(ctx context.Context, patch schema.ProfilePatch) (*schema.Profile, error)

	CompleteActivity(ctx context.Context, a schema.Activity) (*schema.Activity, error)
	History(ctx context.Context) ([]schema.Activity, error)

	Streak(ctx context.Context) (*schema.Streak, error)
	ValidateStreak(ctx context.Context) (*schema.Streak, error)

	Reminders(ctx context.Context) ([]schema.Reminder, error)
	CreateReminder(ctx context.Context, r schema.Reminder) (*schema.Reminder, error)
	UpdateReminder(ctx context.Context, id string, r schema.Reminder) (*schema.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	ToggleReminder(ctx context.Context, id string) (*schema.Reminder, error)

	TodayMetrics(ctx context.Context) (*schema.DailyMetrics, error)
	UpdateMetrics(ctx context.Context, patch schema.MetricsPatch) (*schema.DailyMetrics, error)
	AddWater(ctx context.Context, amount int) (*schema.DailyMetrics, error)
	SetMood(ctx context.Context, mood string) (*schema.DailyMetrics, error)

	RegisterPushToken(ctx context.Context, p schema.PushTokenPayload) error
	UnregisterPushToken(ctx context.Context, p schema.PushTokenPayload) error
}
