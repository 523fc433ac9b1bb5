package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Chorus/internal/app/mailbox"
	"github.com/dkeye/Chorus/internal/app/orch"
	"github.com/dkeye/Chorus/internal/app/roster"
	"github.com/dkeye/Chorus/internal/config"
	"github.com/dkeye/Chorus/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:   "test",
		Secret: "test-secret",
		Signaling: config.SignalingConfig{
			SendRate:     1000,
			SendBurst:    1000,
			PushInterval: 50 * time.Millisecond,
			ReadLimit:    32768,
			PingPeriod:   time.Minute,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return SetupRouter(ctx, cfg, orch.New(mailbox.New(), roster.NewManager()))
}

type client struct {
	t       *testing.T
	r       nethttp.Handler
	cookies []*nethttp.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.setCookie(ck)
	}
	return w
}

func (c *client) setCookie(ck *nethttp.Cookie) {
	for i, old := range c.cookies {
		if old.Name == ck.Name {
			c.cookies[i] = ck
			return
		}
	}
	c.cookies = append(c.cookies, ck)
}

func pollMessages(t *testing.T, c *client, user string) []core.SignalMessage {
	t.Helper()
	w := c.do("GET", "/api/calls?action=poll&roomId=R1&userId="+user, nil)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("Expected 200 from poll, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Messages []core.SignalMessage `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Messages
}

func TestCallsRequireIDs(t *testing.T) {
	c := &client{t: t, r: newTestServer(t, testConfig())}
	if w := c.do("GET", "/api/calls?action=join&roomId=R1", nil); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 without userId, got %d", w.Code)
	}
	if w := c.do("GET", "/api/calls?action=join&userId=a", nil); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 without roomId, got %d", w.Code)
	}
	if w := c.do("GET", "/api/calls?action=dance&roomId=R1&userId=a", nil); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 for invalid action, got %d", w.Code)
	}
}

func TestCallFlowOverHTTP(t *testing.T) {
	r := newTestServer(t, testConfig())
	a := &client{t: t, r: r}
	b := &client{t: t, r: r}

	for _, step := range []struct {
		c    *client
		user string
	}{{a, "a"}, {b, "b"}} {
		w := step.c.do("GET", "/api/calls?action=join&roomId=R1&userId="+step.user, nil)
		if w.Code != nethttp.StatusOK || !strings.Contains(w.Body.String(), `"success":true`) {
			t.Fatalf("Expected successful join, got %d: %s", w.Code, w.Body.String())
		}
	}

	join := core.SignalMessage{Type: core.SignalJoinCall, RoomID: "R1", From: "b", Data: &core.SignalData{UserName: "Bob"}}
	if w := b.do("POST", "/api/calls", join); w.Code != nethttp.StatusOK {
		t.Fatalf("Expected 200 from send, got %d: %s", w.Code, w.Body.String())
	}

	got := pollMessages(t, a, "a")
	if len(got) != 1 || got[0].Type != core.SignalJoinCall || got[0].UserName() != "Bob" {
		t.Fatalf("Expected join_call from Bob, got %+v", got)
	}
	if again := pollMessages(t, a, "a"); len(again) != 0 {
		t.Errorf("Expected drained queue, got %d", len(again))
	}
	if own := pollMessages(t, b, "b"); len(own) != 0 {
		t.Errorf("Expected sender not to receive its own broadcast, got %d", len(own))
	}

	w := a.do("GET", "/api/calls/R1/members", nil)
	if !strings.Contains(w.Body.String(), `"members":["a","b"]`) {
		t.Errorf("Expected members [a b], got %s", w.Body.String())
	}

	b.do("GET", "/api/calls?action=leave&roomId=R1&userId=b", nil)
	w = a.do("GET", "/api/calls/R1/members", nil)
	if !strings.Contains(w.Body.String(), `"members":["a"]`) {
		t.Errorf("Expected members [a] after leave, got %s", w.Body.String())
	}
}

func TestPostRejectsBadMessages(t *testing.T) {
	c := &client{t: t, r: newTestServer(t, testConfig())}

	if w := c.do("POST", "/api/calls", "{not json"); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 for bad json, got %d", w.Code)
	}
	offer := core.SignalMessage{Type: core.SignalOffer, RoomID: "R1", From: "a"}
	if w := c.do("POST", "/api/calls", offer); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 for offer without recipient, got %d", w.Code)
	}
	unknown := core.SignalMessage{Type: "wave", RoomID: "R1", From: "a"}
	if w := c.do("POST", "/api/calls", unknown); w.Code != nethttp.StatusOK {
		t.Errorf("Expected unknown type to be accepted and dropped, got %d", w.Code)
	}
}

func TestStrictSenderRejectsSpoofing(t *testing.T) {
	cfg := testConfig()
	cfg.Signaling.StrictSender = true
	r := newTestServer(t, cfg)
	a := &client{t: t, r: r}
	mallory := &client{t: t, r: r}

	a.do("GET", "/api/calls?action=join&roomId=R1&userId=a", nil)
	mallory.do("GET", "/api/calls?action=join&roomId=R1&userId=m", nil)

	spoof := core.SignalMessage{Type: core.SignalToggleAudio, RoomID: "R1", From: "a", Data: &core.SignalData{Enabled: core.Bool(true)}}
	if w := mallory.do("POST", "/api/calls", spoof); w.Code != nethttp.StatusForbidden {
		t.Errorf("Expected 403 for spoofed sender, got %d", w.Code)
	}
	if w := mallory.do("GET", "/api/calls?action=poll&roomId=R1&userId=a", nil); w.Code != nethttp.StatusForbidden {
		t.Errorf("Expected 403 for reading another user's queue, got %d", w.Code)
	}
	if w := a.do("POST", "/api/calls", spoof); w.Code != nethttp.StatusOK {
		t.Errorf("Expected 200 for genuine sender, got %d", w.Code)
	}
}

func TestSendIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Signaling.SendRate = 1
	cfg.Signaling.SendBurst = 2
	c := &client{t: t, r: newTestServer(t, cfg)}

	msg := core.SignalMessage{Type: core.SignalToggleVideo, RoomID: "R1", From: "a"}
	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, c.do("POST", "/api/calls", msg).Code)
	}
	if codes[0] != nethttp.StatusOK || codes[1] != nethttp.StatusOK || codes[2] != nethttp.StatusTooManyRequests {
		t.Errorf("Expected [200 200 429], got %v", codes)
	}
}

func TestRoomsRoutes(t *testing.T) {
	c := &client{t: t, r: newTestServer(t, testConfig())}

	w := c.do("POST", "/api/rooms", gin.H{"name": "general", "createdById": "alice", "maxParticipants": 2})
	if w.Code != nethttp.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var room struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &room)

	if w := c.do("POST", "/api/rooms", gin.H{"name": "nameless"}); w.Code != nethttp.StatusBadRequest {
		t.Errorf("Expected 400 without creator, got %d", w.Code)
	}
	if w := c.do("POST", "/api/rooms/"+room.ID+"/join", gin.H{"userId": "bob"}); w.Code != nethttp.StatusCreated {
		t.Errorf("Expected 201 on join, got %d", w.Code)
	}
	if w := c.do("POST", "/api/rooms/"+room.ID+"/join", gin.H{"userId": "bob"}); w.Code != nethttp.StatusConflict {
		t.Errorf("Expected 409 on repeat join, got %d", w.Code)
	}
	if w := c.do("POST", "/api/rooms/"+room.ID+"/join", gin.H{"userId": "carol"}); w.Code != nethttp.StatusForbidden {
		t.Errorf("Expected 403 when full, got %d", w.Code)
	}
	if w := c.do("GET", "/api/rooms/nope/participants", nil); w.Code != nethttp.StatusNotFound {
		t.Errorf("Expected 404 for unknown room, got %d", w.Code)
	}
	w = c.do("GET", "/api/rooms", nil)
	if !strings.Contains(w.Body.String(), room.ID) {
		t.Errorf("Expected room in public listing, got %s", w.Body.String())
	}
}

func TestCallRoomsListing(t *testing.T) {
	r := newTestServer(t, testConfig())
	for _, j := range []struct{ room, user string }{{"R2", "c"}, {"R1", "a"}, {"R1", "b"}} {
		c := &client{t: t, r: r}
		if w := c.do("GET", "/api/calls?action=join&roomId="+j.room+"&userId="+j.user, nil); w.Code != nethttp.StatusOK {
			t.Fatalf("Expected 200 on join, got %d", w.Code)
		}
	}

	c := &client{t: t, r: r}
	w := c.do("GET", "/api/calls/rooms", nil)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Rooms []core.CallRoomInfo `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := []core.CallRoomInfo{{ID: "R1", MemberCount: 2}, {ID: "R2", MemberCount: 1}}
	if len(resp.Rooms) != len(want) {
		t.Fatalf("Expected %v, got %v", want, resp.Rooms)
	}
	for i := range want {
		if resp.Rooms[i] != want[i] {
			t.Errorf("Expected room %d to be %v, got %v", i, want[i], resp.Rooms[i])
		}
	}

	if w := c.do("GET", "/api/calls/R1/members", nil); !strings.Contains(w.Body.String(), `"members":["a","b"]`) {
		t.Errorf("Expected members route unaffected, got %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	c := &client{t: t, r: newTestServer(t, testConfig())}
	w := c.do("GET", "/api/health", nil)
	if w.Code != nethttp.StatusOK || !strings.Contains(w.Body.String(), `"status":"healthy"`) {
		t.Errorf("Expected healthy response, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStreamPushesInOrder(t *testing.T) {
	r := newTestServer(t, testConfig())
	srv := httptest.NewServer(r)
	defer srv.Close()

	a := &client{t: t, r: r}
	a.do("GET", "/api/calls?action=join&roomId=R1&userId=a", nil)
	a.do("GET", "/api/calls?action=join&roomId=R1&userId=b", nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/calls/stream?roomId=R1&userId=a"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	for _, enabled := range []bool{true, false} {
		msg := core.SignalMessage{Type: core.SignalToggleAudio, RoomID: "R1", From: "b", Data: &core.SignalData{Enabled: core.Bool(enabled)}}
		if w := a.do("POST", "/api/calls", msg); w.Code != nethttp.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, want := range []bool{true, false} {
		var got core.SignalMessage
		if err := ws.ReadJSON(&got); err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if got.Type != core.SignalToggleAudio || got.EnabledFlag() != want {
			t.Errorf("Expected toggle_audio enabled=%v at %d, got %+v", want, i, got)
		}
	}
}
