package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gorilla/websocket"
)

type fakeDrainer struct {
	mu      sync.Mutex
	batches [][]core.SignalMessage
	calls   int
	err     error
}

func (f *fakeDrainer) Poll(ctx context.Context, room domain.RoomID, user domain.UserID) ([]core.SignalMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeDrainer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type collector struct {
	mu   sync.Mutex
	msgs []core.SignalMessage
}

func (c *collector) handle(_ context.Context, m core.SignalMessage) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

func (c *collector) snapshot() []core.SignalMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.SignalMessage(nil), c.msgs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPollerDispatchesInOrder(t *testing.T) {
	src := &fakeDrainer{batches: [][]core.SignalMessage{
		{{Type: core.SignalUserJoined, From: "a"}, {Type: core.SignalOffer, From: "b"}},
		{{Type: core.SignalToggleAudio, From: "c"}},
	}}
	p := NewPoller(src, 10*time.Millisecond)
	col := &collector{}

	_ = p.Start("R1", "u", col.handle)
	defer p.Stop()

	waitFor(t, func() bool { return len(col.snapshot()) == 3 })
	got := col.snapshot()
	if got[0].From != "a" || got[1].From != "b" || got[2].From != "c" {
		t.Errorf("Expected order [a b c], got [%s %s %s]", got[0].From, got[1].From, got[2].From)
	}
}

func TestPollerStopHaltsPolling(t *testing.T) {
	src := &fakeDrainer{}
	p := NewPoller(src, 5*time.Millisecond)
	_ = p.Start("R1", "u", func(context.Context, core.SignalMessage) {})

	waitFor(t, func() bool { return src.callCount() > 0 })
	p.Stop()
	time.Sleep(20 * time.Millisecond)
	n := src.callCount()
	time.Sleep(30 * time.Millisecond)
	if after := src.callCount(); after != n {
		t.Errorf("Expected no polls after Stop, got %d more", after-n)
	}
	p.Stop()
}

func TestPollerStartSupersedesPrevious(t *testing.T) {
	first := &collector{}
	second := &collector{}
	src := &fakeDrainer{}
	p := NewPoller(src, 5*time.Millisecond)

	_ = p.Start("R1", "u", first.handle)
	_ = p.Start("R2", "u", second.handle)
	defer p.Stop()
	time.Sleep(20 * time.Millisecond)

	src.mu.Lock()
	src.batches = append(src.batches, []core.SignalMessage{{Type: core.SignalUserJoined, From: "x"}})
	src.mu.Unlock()

	waitFor(t, func() bool { return len(second.snapshot()) == 1 })
	if n := len(first.snapshot()); n != 0 {
		t.Errorf("Expected superseded handler to receive nothing, got %d", n)
	}
}

func TestPollerSurvivesErrors(t *testing.T) {
	src := &fakeDrainer{err: errors.New("connection refused")}
	p := NewPoller(src, 5*time.Millisecond)
	_ = p.Start("R1", "u", func(context.Context, core.SignalMessage) {})
	defer p.Stop()

	waitFor(t, func() bool { return src.callCount() >= 3 })
}

func TestPollerStopFromHandler(t *testing.T) {
	src := &fakeDrainer{batches: [][]core.SignalMessage{
		{{Type: core.SignalLeaveCall, From: "a"}, {Type: core.SignalUserJoined, From: "b"}},
	}}
	p := NewPoller(src, 5*time.Millisecond)
	col := &collector{}
	done := make(chan struct{})

	_ = p.Start("R1", "u", func(ctx context.Context, m core.SignalMessage) {
		col.handle(ctx, m)
		p.Stop()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected handler to run")
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(col.snapshot()); n != 1 {
		t.Errorf("Expected dispatch to stop after Stop, got %d messages", n)
	}
}

func TestClientRoundTrip(t *testing.T) {
	var posted core.SignalMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/calls":
			_ = json.NewDecoder(r.Body).Decode(&posted)
			_, _ = w.Write([]byte(`{"success":true}`))
		case r.URL.Query().Get("action") == "poll":
			_, _ = w.Write([]byte(`{"messages":[{"type":"user_joined","roomId":"R1","from":"b","data":{"userName":"Bob"}}]}`))
		case r.URL.Query().Get("action") == "join":
			_, _ = w.Write([]byte(`{"success":true}`))
		case strings.HasSuffix(r.URL.Path, "/members"):
			_, _ = w.Write([]byte(`{"roomId":"R1","members":["a","b"]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid action"}`))
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Join(ctx, "R1", "a"); err != nil {
		t.Errorf("Unexpected join error: %v", err)
	}
	msgs, err := c.Poll(ctx, "R1", "a")
	if err != nil || len(msgs) != 1 || msgs[0].UserName() != "Bob" {
		t.Errorf("Expected Bob's join, got %+v (%v)", msgs, err)
	}
	if err := c.Send(ctx, core.SignalMessage{Type: core.SignalToggleAudio, RoomID: "R1", From: "a", Data: &core.SignalData{Enabled: core.Bool(true)}}); err != nil {
		t.Errorf("Unexpected send error: %v", err)
	}
	if posted.Type != core.SignalToggleAudio || !posted.EnabledFlag() {
		t.Errorf("Expected posted toggle_audio enabled, got %+v", posted)
	}
	members, err := c.Members(ctx, "R1")
	if err != nil || len(members) != 2 {
		t.Errorf("Expected two members, got %v (%v)", members, err)
	}
	if err := c.Leave(ctx, "R1", "a"); !errors.Is(err, ErrStatus) {
		t.Errorf("Expected ErrStatus, got %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	c, _ := NewClient("https://chat.example.com/", time.Second)
	got := c.StreamURL("R 1", "a")
	want := "wss://chat.example.com/api/calls/stream?roomId=R+1&userId=a"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestStreamDeliversPushedMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(core.SignalMessage{Type: core.SignalUserJoined, RoomID: "R1", From: "b"})
		_ = conn.WriteJSON(map[string]string{"type": "pong"})
		_ = conn.WriteJSON(core.SignalMessage{Type: core.SignalToggleVideo, RoomID: "R1", From: "b"})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	s := NewStream(c, time.Hour)
	col := &collector{}
	_ = s.Start("R1", "a", col.handle)
	defer s.Stop()

	waitFor(t, func() bool { return len(col.snapshot()) == 2 })
	got := col.snapshot()
	if got[0].Type != core.SignalUserJoined || got[1].Type != core.SignalToggleVideo {
		t.Errorf("Expected [user_joined toggle_video], got [%s %s]", got[0].Type, got[1].Type)
	}
}
