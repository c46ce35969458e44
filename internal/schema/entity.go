// Package schema provides the data structures synchronized between the
// local store and the remote wellness service.
//
// Each entity has a single canonical JSON representation that is used both
// on the wire and in the local store, so a record fetched from the remote
// service can be cached verbatim and a locally created record can be
// replayed verbatim.
package schema

import (
	"fmt"
	"time"
)

// Kind identifies a local-store namespace. Every entity kind maps to one
// namespace; two namespaces (KindQueue, KindCredentials) are reserved for
// engine-internal records.
type Kind string

const (
	KindProfile     Kind = "profile"
	KindActivity    Kind = "activity"
	KindStreak      Kind = "streak"
	KindReminder    Kind = "reminder"
	KindMetrics     Kind = "metrics"
	KindQueue       Kind = "queue"
	KindCredentials Kind = "credentials"
)

// SingletonID is the record id used for per-user singleton entities
// (profile, streak, credentials, the pending queue).
const SingletonID = "current"

// Profile is the user's profile. One per authenticated session.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a completed activity. Activities are append-only from the
// client's perspective: the id is generated locally at completion time and
// replaced by the server-assigned id once the completion is acknowledged.
type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Duration     string    `json:"duration,omitempty"`
	Emoji        string    `json:"emoji,omitempty"`
	FunFact      string    `json:"fun_fact,omitempty"`
	GoalCategory string    `json:"goal_category,omitempty"`
	EnergyLevel  string    `json:"energy_level,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Validate checks the fields required before an activity may be committed.
func (a *Activity) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(a.Title) > 200 {
		return fmt.Errorf("title must be 200 characters or less (got %d)", len(a.Title))
	}
	if a.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	return nil
}

// Streak is the user's streak state. It is recomputed by the remote
// service; the client only caches the last value it observed.
type Streak struct {
	Current       int        `json:"current_streak"`
	Longest       int        `json:"longest_streak"`
	LastCompleted *Date `json:"last_completed_date,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Reminder frequency values accepted by the remote service.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekdays = "weekdays"
	FrequencyCustom   = "custom"
)

// Reminder types accepted by the remote service.
const (
	ReminderHydration    = "hydration"
	ReminderStretchBreak = "stretchBreak"
	ReminderMeditation   = "meditation"
	ReminderCustom       = "custom"
)

// Reminder is a scheduled user-visible alert. Full CRUD entity; the id may
// be client-assigned (offline create) or server-assigned.
type Reminder struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message,omitempty"`
	TimeHour   int       `json:"time_hour"`
	TimeMinute int       `json:"time_minute"`
	Frequency  string    `json:"frequency"`
	CustomDays []int     `json:"custom_days,omitempty"` // 0=Monday .. 6=Sunday
	Enabled    bool      `json:"is_enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the fields required before a reminder may be committed.
func (r *Reminder) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.TimeHour < 0 || r.TimeHour > 23 {
		return fmt.Errorf("time_hour must be between 0 and 23 (got %d)", r.TimeHour)
	}
	if r.TimeMinute < 0 || r.TimeMinute > 59 {
		return fmt.Errorf("time_minute must be between 0 and 59 (got %d)", r.TimeMinute)
	}
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekdays:
	case FrequencyCustom:
		if len(r.CustomDays) == 0 {
			return fmt.Errorf("custom frequency requires at least one day")
		}
		for _, d := range r.CustomDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("custom day must be between 0 and 6 (got %d)", d)
			}
		}
	default:
		return fmt.Errorf("unknown frequency %q", r.Frequency)
	}
	return nil
}

// DailyMetrics holds one calendar day of wellness tracking. There is at
// most one record per date; updates are upserts keyed by Date.
type DailyMetrics struct {
	Date              string    `json:"date"` // YYYY-MM-DD
	WaterIntake       int       `json:"water_intake"` // milliliters
	Mood              string    `json:"mood,omitempty"`
	BreathingSessions int       `json:"breathing_sessions"`
	PostureChecks     int       `json:"posture_checks"`
	ScreenBreaks      int       `json:"screen_breaks"`
	MorningStretch    bool      `json:"morning_stretch"`
	EveningReflection bool      `json:"evening_reflection"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MetricsPatch is a partial update to a day's metrics. Nil fields are left
// unchanged on both sides of the sync boundary.
type MetricsPatch struct {
	WaterIntake       *int    `json:"water_intake,omitempty"`
	Mood              *string `json:"mood,omitempty"`
	BreathingSessions *int    `json:"breathing_sessions,omitempty"`
	PostureChecks     *int    `json:"posture_checks,omitempty"`
	ScreenBreaks      *int    `json:"screen_breaks,omitempty"`
	MorningStretch    *bool   `json:"morning_stretch,omitempty"`
	EveningReflection *bool   `json:"evening_reflection,omitempty"`
}

// Apply merges the patch into m.
func (p *MetricsPatch) Apply(m *DailyMetrics) {
	if p.WaterIntake != nil {
		m.WaterIntake = *p.WaterIntake
	}
	if p.Mood != nil {
		m.Mood = *p.Mood
	}
	if p.BreathingSessions != nil {
		m.BreathingSessions = *p.BreathingSessions
	}
	if p.PostureChecks != nil {
		m.PostureChecks = *p.PostureChecks
	}
	if p.ScreenBreaks != nil {
		m.ScreenBreaks = *p.ScreenBreaks
	}
	if p.EveningReflection != nil {
		m.EveningReflection = *p.EveningReflection
	}
	if p.MorningStretch != nil {
		m.MorningStretch = *p.MorningStretch
	}
}

// ProfilePatch is a partial update to the user profile.
type ProfilePatch struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// Apply merges the patch into p.
func (pp *ProfilePatch) Apply(p *Profile) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Avatar != nil {
		p.Avatar = *pp.Avatar
	}
}

// DateKey formats t as the metrics record id for its calendar date.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
