package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/stillapp/stillsync/internal/schema"
)

// Login authenticates with email and password and returns the granted
// session. The returned credentials are NOT stored automatically; callers
// decide where the session lives.
func (c *Client) Login(ctx context.Context, email, password string) (*schema.Credentials, error) {
	body := map[string]string{"email": email, "password": password}
	var creds schema.Credentials
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &creds, false); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*schema.Profile, error) {
	var p schema.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies a partial profile update and returns the canonical
// record.
func (c *Client) UpdateProfile(ctx context.Context, patch schema.ProfilePatch) (*schema.Profile, error) {
	var p schema.Profile
	if err := c.do(ctx, http.MethodPatch, "/api/users/me", nil, patch, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// CompleteActivity records a completed activity. The response carries the
// server-assigned id, which replaces the client-generated one.
func (c *Client) CompleteActivity(ctx context.Context, a schema.Activity) (*schema.Activity, error) {
	var out schema.Activity
	if err := c.do(ctx, http.MethodPost, "/api/challenges/complete", nil, a, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// historyResponse is the paginated envelope for the activity history.
type historyResponse struct {
	Items []schema.Activity `json:"items"`
	Total int               `json:"total"`
}

// History lists completed activities, most recent first.
func (c *Client) History(ctx context.Context) ([]schema.Activity, error) {
	q := url.Values{"page_size": {"100"}}
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, "/api/challenges/history", q, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Streak fetches the current streak state.
func (c *Client) Streak(ctx context.Context) (*schema.Streak, error) {
	var s schema.Streak
	if err := c.do(ctx, http.MethodGet, "/api/streaks", nil, nil, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidateStreak asks the server to recompute the streak against today's
// activity and returns the updated counters.
func (c *Client) ValidateStreak(ctx context.Context) (*schema.Streak, error) {
	var resp struct {
		StreakUpdated bool   `json:"streak_updated"`
		Current       int    `json:"current_streak"`
		Longest       int    `json:"longest_streak"`
		Message       string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/streaks/validate", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return &schema.Streak{Current: resp.Current, Longest: resp.Longest}, nil
}

// remindersResponse is the list envelope for reminders.
type remindersResponse struct {
	Reminders []schema.Reminder `json:"reminders"`
	Total     int               `json:"total"`
}

// Reminders lists all reminders.
func (c *Client) Reminders(ctx context.Context) ([]schema.Reminder, error) {
	var resp remindersResponse
	if err := c.do(ctx, http.MethodGet, "/api/reminders", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Reminders, nil
}

// CreateReminder creates a reminder and returns the canonical record.
func (c *Client) CreateReminder(ctx context.Context, r schema.Reminder) (*schema.Reminder, error) {
	var out schema.Reminder
	if err := c.do(ctx, http.MethodPost, "/api/reminders", nil, r, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateReminder applies a full update to the reminder with the given id.
func (c *Client) UpdateReminder(ctx context.Context, id string, r schema.Reminder) (*schema.Reminder, error) {
	var out schema.Reminder
	if err := c.do(ctx, http.MethodPatch, "/api/reminders/"+url.PathEscape(id), nil, r, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteReminder removes the reminder with the given id.
func (c *Client) DeleteReminder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/reminders/"+url.PathEscape(id), nil, nil, nil, true)
}

// ToggleReminder flips the enabled flag server-side and returns the
// canonical record.
func (c *Client) ToggleReminder(ctx context.Context, id string) (*schema.Reminder, error) {
	var out schema.Reminder
	if err := c.do(ctx, http.MethodPost, "/api/reminders/"+url.PathEscape(id)+"/toggle", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// TodayMetrics fetches today's tracking record.
func (c *Client) TodayMetrics(ctx context.Context) (*schema.DailyMetrics, error) {
	var m schema.DailyMetrics
	if err := c.do(ctx, http.MethodGet, "/api/tracking/today", nil, nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMetrics applies a partial update to today's tracking record.
func (c *Client) UpdateMetrics(ctx context.Context, patch schema.MetricsPatch) (*schema.DailyMetrics, error) {
	var m schema.DailyMetrics
	if err := c.do(ctx, http.MethodPatch, "/api/tracking/today", nil, patch, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddWater increments today's water intake by amount milliliters.
func (c *Client) AddWater(ctx context.Context, amount int) (*schema.DailyMetrics, error) {
	q := url.Values{"amount": {strconv.Itoa(amount)}}
	var m schema.DailyMetrics
	if err := c.do(ctx, http.MethodPost, "/api/tracking/water", q, nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMood sets today's mood.
func (c *Client) SetMood(ctx context.Context, mood string) (*schema.DailyMetrics, error) {
	q := url.Values{"mood": {mood}}
	var m schema.DailyMetrics
	if err := c.do(ctx, http.MethodPost, "/api/tracking/mood", q, nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// RegisterPushToken registers a device push token.
func (c *Client) RegisterPushToken(ctx context.Context, p schema.PushTokenPayload) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/register", nil, p, nil, true)
}

// UnregisterPushToken removes a device push token.
func (c *Client) UnregisterPushToken(ctx context.Context, p schema.PushTokenPayload) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/unregister", nil, p, nil, true)
}
