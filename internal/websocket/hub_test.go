package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestOriginCheckerCheck(t *testing.T) {
	checker := &originCheckerT{
		allowed: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true}, // non-browser клиенты
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerAllowAll(t *testing.T) {
	checker := &originCheckerT{allowAll: true}

	for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHubDeliversSyncUpdate(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	hub.BroadcastSyncUpdate("uid-1", "USDT", "idle", &models.SyncResult{
		Synced:    true,
		Merged:    3,
		Fetched:   5,
		Watermark: 1700000000000,
	})

	select {
	case raw := <-client.send:
		var msg SyncUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if msg.Type != MessageTypeSyncUpdate {
			t.Errorf("type = %s, want syncUpdate", msg.Type)
		}
		if msg.UID != "uid-1" || msg.Coin != "USDT" || msg.State != "idle" {
			t.Errorf("message fields = %+v", msg)
		}
		if msg.Result == nil || msg.Result.Merged != 3 {
			t.Errorf("result = %+v", msg.Result)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}

	hub.unregister <- client
}

func TestHubStop(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}
}

func TestHubConcurrentOperations(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 200

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.BroadcastStatsUpdate("uid-1", &models.Statistics{})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}
