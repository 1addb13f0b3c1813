package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	jwt   *auth.JWTConfig
}

// startTestServer runs the full HTTP stack over an in-memory database.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ShutdownTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, core.WithLogger(&disabledLogger), core.WithPageSize(cfg.HistoryPageSize))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	jwtCfg := &auth.JWTConfig{Secret: []byte(cfg.JWT.Secret), TTL: time.Minute}
	server := NewServer(hub, auth.NewVerifier(jwtCfg, cfg.JWT.Required), &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, jwt: jwtCfg}
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/chat"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial connects and consumes the welcome notice.
func (e *testEnv) dial(ctx context.Context, t *testing.T, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	welcome := readMessage(ctx, t, conn, func(m proto.OutMessage) bool { return m.Username == core.SystemSender })
	if welcome.Message != welcomeText {
		t.Fatalf("expected welcome notice, got %+v", welcome)
	}
	return conn
}

type rawOutbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readType reads frames until one of the given type arrives.
func readType(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if out.Type == typ {
			return out.Data
		}
	}
}

func readMessage(ctx context.Context, t *testing.T, conn *websocket.Conn, match func(proto.OutMessage) bool) proto.OutMessage {
	t.Helper()

	for {
		var msg proto.OutMessage
		if err := json.Unmarshal(readType(ctx, t, conn, proto.OutboundTypeMessage), &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Error {
	t.Helper()

	var perr proto.Error
	if err := json.Unmarshal(readType(ctx, t, conn, proto.OutboundTypeError), &perr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return perr
}

func joinRoom(ctx context.Context, t *testing.T, conn *websocket.Conn, room string) proto.RoomCreated {
	t.Helper()

	send(ctx, t, conn, proto.InboundTypeJoinRoom, room)
	var created proto.RoomCreated
	if err := json.Unmarshal(readType(ctx, t, conn, proto.OutboundTypeRoomCreated), &created); err != nil {
		t.Fatalf("decode roomCreated: %v", err)
	}
	return created
}

func withText(text string) func(proto.OutMessage) bool {
	return func(m proto.OutMessage) bool { return m.Message == text }
}
