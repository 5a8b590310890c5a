package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// startTestServer starts a server on an ephemeral port and returns it with
// a dialable host:port address.
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(&Config{
		Port:   0, // ephemeral
		Logger: log.New(io.Discard, "", 0),
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		t.Fatalf("bad listen address %q: %v", s.Addr(), err)
	}
	return s, net.JoinHostPort("127.0.0.1", port)
}

func TestHealth_ReportsClientCount(t *testing.T) {
	_, addr := startTestServer(t)

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v, want ok with 0 clients", body)
	}
}

func TestBroadcast_ReachesConnectedClient(t *testing.T) {
	s, addr := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// First frame is the welcome stats message.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read(welcome) failed: %v", err)
	}
	var welcome Message
	if err := json.Unmarshal(data, &welcome); err != nil {
		t.Fatalf("failed to decode welcome: %v", err)
	}
	if welcome.Type != MessageTypeStats {
		t.Errorf("welcome type = %s, want %s", welcome.Type, MessageTypeStats)
	}

	s.Broadcast(Message{Type: MessageTypeSyncStarted})

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read(broadcast) failed: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to decode broadcast: %v", err)
	}
	if got.Type != MessageTypeSyncStarted {
		t.Errorf("type = %s, want %s", got.Type, MessageTypeSyncStarted)
	}
	if got.Timestamp.IsZero() {
		t.Error("broadcast timestamp not stamped")
	}
}
