package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/stillapp/stillsync/internal/engine"
)

// fakeSource is a hand-cranked StatusSource for tests.
type fakeSource struct {
	mu      sync.Mutex
	online  bool
	pending int
	subs    []func(engine.Event)
}

func (f *fakeSource) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeSource) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeSource) Subscribe(fn func(engine.Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}

func (f *fakeSource) emit(ev engine.Event) {
	f.mu.Lock()
	subs := f.subs
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func setupTestServer(t *testing.T) (*Server, *fakeSource) {
	t.Helper()

	src := &fakeSource{online: true, pending: 2}
	server := NewServer(src, &Config{
		Port:   0, // random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return server, src
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !st.Online {
		t.Errorf("expected online status")
	}
	if st.Pending != 2 {
		t.Errorf("expected 2 pending, got %d", st.Pending)
	}
}

func TestClientReceivesSnapshotThenEvents(t *testing.T) {
	server, src := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// First frame is the status snapshot.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("Failed to unmarshal snapshot: %v", err)
	}
	if !st.Online || st.Pending != 2 {
		t.Errorf("snapshot wrong: %+v", st)
	}

	// Engine events follow.
	src.emit(engine.Event{Type: engine.EventConnectivity, Online: false, Pending: 3})

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	var ev engine.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if ev.Type != engine.EventConnectivity {
		t.Errorf("Expected connectivity event, got %s", ev.Type)
	}
	if ev.Online {
		t.Errorf("event should carry the offline flag")
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	server, src := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		conns = append(conns, conn)

		// Swallow the snapshot frame.
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("Failed to read snapshot for client %d: %v", i, err)
		}
	}

	src.emit(engine.Event{Type: engine.EventOpQueued, Pending: 1})

	for i, conn := range conns {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Client %d missed broadcast: %v", i, err)
		}
		var ev engine.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("Client %d got bad frame: %v", i, err)
		}
		if ev.Type != engine.EventOpQueued {
			t.Errorf("Client %d: expected op_queued, got %s", i, ev.Type)
		}
	}
}

func TestClientDisconnectUpdatesCount(t *testing.T) {
	server, _ := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count never dropped after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
