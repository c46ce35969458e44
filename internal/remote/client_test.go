package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stillapp/stillsync/internal/schema"
)

// memTokens is an in-memory TokenSource for tests.
type memTokens struct {
	mu    sync.Mutex
	creds *schema.Credentials
}

func (m *memTokens) Credentials() (*schema.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, ErrNoCredentials
	}
	c := *m.creds
	return &c, nil
}

func (m *memTokens) Store(c *schema.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	return nil
}

func testTokens() *memTokens {
	return &memTokens{creds: &schema.Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}}
}

func testClient(t *testing.T, handler http.Handler) (*Client, *memTokens) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := testTokens()
	return New(srv.URL, tokens, &Config{Timeout: 2 * time.Second}), tokens
}

func TestProfileOk(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(schema.Profile{ID: "u-1", Name: "Ada"})
	}))

	p, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.Name != "Ada" {
		t.Errorf("expected profile name Ada, got %q", p.Name)
	}
}

func TestRejectedOn4xx(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"detail": "title is required"})
	}))

	_, err := c.CompleteActivity(context.Background(), schema.Activity{ID: "a-1"})
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if IsUnreachable(err) {
		t.Errorf("rejection must not classify as unreachable")
	}
	re := err.(*RejectedError)
	if re.Detail != "title is required" {
		t.Errorf("expected server detail, got %q", re.Detail)
	}
}

func TestUnreachableOn5xx(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Streak(context.Background())
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestUnreachableOnConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore

	c := New(srv.URL, testTokens(), &Config{Timeout: time.Second})
	_, err := c.Streak(context.Background())
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestTimeoutIsUnreachable(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	c.timeout = 20 * time.Millisecond

	_, err := c.Streak(context.Background())
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable on timeout, got %v", err)
	}
}

func TestRefreshRetriesOnce(t *testing.T) {
	var calls, refreshes int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(schema.Profile{ID: "u-1", Name: "Ada"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		})
	})

	c, tokens := testClient(t, mux)

	p, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile after refresh failed: %v", err)
	}
	if p.Name != "Ada" {
		t.Errorf("unexpected profile %+v", p)
	}
	if calls != 2 || refreshes != 1 {
		t.Errorf("expected 2 calls and 1 refresh, got %d and %d", calls, refreshes)
	}

	creds, err := tokens.Credentials()
	if err != nil {
		t.Fatalf("Credentials failed: %v", err)
	}
	if creds.AccessToken != "access-2" || creds.RefreshToken != "refresh-2" {
		t.Errorf("refreshed pair not stored: %+v", creds)
	}
}

func TestSecond401IsRejected(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		})
	})

	c, _ := testClient(t, mux)

	_, err := c.Profile(context.Background())
	if !IsRejected(err) {
		t.Fatalf("expected rejection after second 401, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestDeclinedRefreshIsRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid refresh token"})
	})

	c, _ := testClient(t, mux)

	_, err := c.Profile(context.Background())
	if !IsRejected(err) {
		t.Fatalf("expected rejection when refresh declined, got %v", err)
	}
}

func TestQueryParameters(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tracking/water":
			if got := r.URL.Query().Get("amount"); got != "250" {
				t.Errorf("expected amount=250, got %q", got)
			}
		case "/api/tracking/mood":
			if got := r.URL.Query().Get("mood"); got != "calm" {
				t.Errorf("expected mood=calm, got %q", got)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(schema.DailyMetrics{Date: "2026-02-10"})
	}))

	if _, err := c.AddWater(context.Background(), 250); err != nil {
		t.Fatalf("AddWater failed: %v", err)
	}
	if _, err := c.SetMood(context.Background(), "calm"); err != nil {
		t.Fatalf("SetMood failed: %v", err)
	}
}
