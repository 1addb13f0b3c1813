package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWebSocketRoomScenario(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := env.dial(ctx, t, "username=alice")
	bob := env.dial(ctx, t, "username=bob")

	first := joinRoom(ctx, t, alice, "general")
	if first.RoomID == "" || first.RoomName != "general" {
		t.Fatalf("unexpected roomCreated: %+v", first)
	}
	readMessage(ctx, t, alice, withText("alice joined the room"))

	second := joinRoom(ctx, t, bob, "general")
	if second.RoomID != first.RoomID {
		t.Fatalf("expected the same room id, got %q and %q", first.RoomID, second.RoomID)
	}
	readMessage(ctx, t, bob, withText("bob joined the room"))
	notice := readMessage(ctx, t, alice, withText("bob joined the room"))
	if notice.Username != core.SystemSender || notice.RoomID != first.RoomID {
		t.Fatalf("unexpected join notice: %+v", notice)
	}

	send(ctx, t, alice, proto.InboundTypeMessage, proto.MessageData{RoomID: first.RoomID, Message: "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		got := readMessage(ctx, t, conn, withText("hi"))
		if got.Username != "alice" || got.ID == "" || got.TS == 0 {
			t.Fatalf("unexpected chat message: %+v", got)
		}
	}

	resp, err := env.ts.Client().Get(env.ts.URL + "/rooms/general/messages")
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	defer resp.Body.Close()
	var page HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Message != "hi" || page.Messages[0].Username != "alice" {
		t.Fatalf("unexpected history: %+v", page)
	}
}

func TestWebSocketAnonymousName(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "")
	joinRoom(ctx, t, conn, "lobby")
	readMessage(ctx, t, conn, withText(core.AnonymousName+" joined the room"))
}

func TestWebSocketMessageToUnknownRoom(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")
	send(ctx, t, conn, proto.InboundTypeMessage, proto.MessageData{RoomID: "no-such-room", Message: "hello"})

	perr := readError(ctx, t, conn)
	if perr.Code != core.ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found, got %+v", perr)
	}
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")

	tests := []struct {
		name  string
		frame string
	}{
		{name: "malformed json", frame: `{"type":`},
		{name: "unknown type", frame: `{"type":"typing","data":{}}`},
		{name: "join without name", frame: `{"type":"joinRoom","data":""}`},
		{name: "join with object", frame: `{"type":"joinRoom","data":{"room":"x"}}`},
		{name: "history without room", frame: `{"type":"history","data":{"page":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.Write(ctx, websocket.MessageText, []byte(tt.frame)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeBadRequest {
				t.Fatalf("expected bad_request, got %+v", perr)
			}
		})
	}

	// The connection survives rejected frames.
	joinRoom(ctx, t, conn, "general")
}

func TestWebSocketBlankMessageIgnored(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")
	room := joinRoom(ctx, t, conn, "general")
	readMessage(ctx, t, conn, withText("alice joined the room"))

	send(ctx, t, conn, proto.InboundTypeMessage, proto.MessageData{RoomID: room.RoomID, Message: "   "})
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"message","data":{"roomId":"`+room.RoomID+`","message":42}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	send(ctx, t, conn, proto.InboundTypeMessage, proto.MessageData{RoomID: room.RoomID, Message: "after"})

	// Nothing else arrives before the valid message.
	var out rawOutbound
	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	mustRead(readCtx, t, conn, &out)
	var msg proto.OutMessage
	if err := json.Unmarshal(out.Data, &msg); err != nil || out.Type != proto.OutboundTypeMessage || msg.Message != "after" {
		t.Fatalf("expected the valid message next, got %s %s", out.Type, out.Data)
	}
}

func TestWebSocketHistoryRequest(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.HistoryPageSize = 2 })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")
	room := joinRoom(ctx, t, conn, "general")
	for _, text := range []string{"one", "two", "three"} {
		send(ctx, t, conn, proto.InboundTypeMessage, proto.MessageData{RoomID: room.RoomID, Message: text})
		readMessage(ctx, t, conn, withText(text))
	}

	send(ctx, t, conn, proto.InboundTypeHistory, proto.HistoryData{RoomName: "general", Page: 1})
	var hist proto.History
	if err := json.Unmarshal(readType(ctx, t, conn, proto.OutboundTypeHistory), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Message != "two" || hist.Messages[1].Message != "three" || !hist.HasMore {
		t.Fatalf("unexpected history page: %+v", hist)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.RateLimitPerMinute = 2 })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")
	for i := 0; i < 3; i++ {
		send(ctx, t, conn, proto.InboundTypeJoinRoom, "general")
	}
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", perr)
	}
}

func TestWebSocketReadLimitClosesConnection(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.MaxMessageBytes = 128 })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "username=alice")
	frame := `{"type":"message","data":{"message":"` + strings.Repeat("x", 256) + `"}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if status := websocket.CloseStatus(err); status != -1 && status != websocket.StatusMessageTooBig {
			t.Fatalf("expected message-too-big close, got %v", err)
		}
		return
	}
}

func TestWebSocketOriginPolicy(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.AllowedOrigins = []string{"chat.example.com"} })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL("username=alice"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example.org"}},
	})
	if err == nil {
		t.Fatal("expected cross-origin dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	conn, _, err := websocket.Dial(ctx, env.wsURL("username=alice"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://chat.example.com"}},
	})
	if err != nil {
		t.Fatalf("allowed origin dial: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func mustRead(ctx context.Context, t *testing.T, conn *websocket.Conn, out *rawOutbound) {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
}
