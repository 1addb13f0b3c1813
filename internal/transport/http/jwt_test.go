package http

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

func requireJWT(c *config.Config) {
	c.JWT.Secret = testSecret
	c.JWT.Required = true
}

func TestWebSocketJWTSuccess(t *testing.T) {
	env := startTestServer(t, requireJWT)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := auth.GenerateToken(env.jwt, "Alice")
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	// The token name wins over the username query.
	conn := env.dial(ctx, t, url.Values{"token": {token}, "username": {"mallory"}}.Encode())
	joinRoom(ctx, t, conn, "general")
	readMessage(ctx, t, conn, withText("Alice joined the room"))
}

func TestWebSocketJWTRejected(t *testing.T) {
	env := startTestServer(t, requireJWT)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, query := range []string{"", "token=invalid", "username=alice"} {
		_, resp, err := websocket.Dial(ctx, env.wsURL(query), nil)
		if err == nil {
			t.Fatalf("query %q: expected handshake to fail", query)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("query %q: expected 401, got %+v", query, resp)
		}
	}
}

func TestWebSocketOptionalJWTIgnoresBadToken(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.JWT.Secret = testSecret })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t, "token=invalid&username=bob")
	joinRoom(ctx, t, conn, "general")
	readMessage(ctx, t, conn, withText("bob joined the room"))
}

func TestRoomsRequireBearerWhenJWTRequired(t *testing.T) {
	env := startTestServer(t, requireJWT)

	resp, err := env.ts.Client().Get(env.ts.URL + "/rooms")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	token, err := auth.GenerateToken(env.jwt, "alice")
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}
