package ticker

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/rs/zerolog"
)

type fakeHub struct {
	mu       sync.Mutex
	clients  int
	messages [][]byte
}

func (h *fakeHub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *fakeHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *fakeHub) sent() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.messages...)
}

type staticStatus types.FrameStatus

func (s staticStatus) Status() types.FrameStatus { return types.FrameStatus(s) }

func TestNewTicker(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := &fakeHub{}
	ticker := NewTicker(hub, staticStatus{}, 1*time.Second, logger)

	if ticker == nil {
		t.Fatal("expected ticker to be created")
	}

	if ticker.hub != hub {
		t.Error("ticker hub not set correctly")
	}

	if ticker.interval != 1*time.Second {
		t.Errorf("expected interval 1s, got %v", ticker.interval)
	}
}

func TestTickerBroadcastsStatus(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := &fakeHub{clients: 2}
	source := staticStatus{Type: "status", AgentID: "agent-1", Initialized: true}

	ticker := NewTicker(hub, source, 20*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()
	<-done

	sent := hub.sent()
	if len(sent) == 0 {
		t.Fatal("expected at least one status broadcast")
	}

	var status types.FrameStatus
	if err := json.Unmarshal(sent[0], &status); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if status.Type != "status" || status.AgentID != "agent-1" || !status.Initialized {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestTickerSkipsWithoutClients(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := &fakeHub{}

	ticker := NewTicker(hub, staticStatus{Type: "status"}, 10*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	ticker.Start(ctx)

	if n := len(hub.sent()); n != 0 {
		t.Errorf("expected no broadcasts without clients, got %d", n)
	}
}

func TestTickerStopsOnContextCancel(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	ticker := NewTicker(&fakeHub{}, staticStatus{}, 100*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()

	// Let it run for a bit
	time.Sleep(200 * time.Millisecond)

	// Cancel context
	cancel()

	// Wait for ticker to stop
	select {
	case <-done:
		// Success - ticker stopped
	case <-time.After(1 * time.Second):
		t.Error("ticker did not stop within timeout after context cancel")
	}
}
