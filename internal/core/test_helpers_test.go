package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustMessage waits for a chat message with the given text, skipping anything else.
func mustMessage(t *testing.T, ch <-chan *Event, text string) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Message.Text == text {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected message %q not received", text)
	return nil
}

func expectNoMessage(t *testing.T, ch <-chan *Event, text string, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Message.Text == text {
				t.Fatalf("unexpected message %q from %s", text, ev.Message.From)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func newTestStore(t testing.TB) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// startHub runs a hub until the test ends.
func startHub(t testing.TB, st Storage, opts ...Option) *Hub {
	t.Helper()

	hub := NewHub(st, opts...)
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
	return hub
}

func joinRoom(t *testing.T, c *Client, room string) *Event {
	t.Helper()
	c.Commands <- &Command{Kind: CommandJoinRoom, RoomName: room}
	return mustEvent(t, c.Events, EventRoomCreated)
}

// chatTexts collects the next n chat message texts, ignoring System notices.
func chatTexts(t *testing.T, ch <-chan *Event, n int) []string {
	t.Helper()

	texts := make([]string, 0, n)
	deadline := time.After(5 * time.Second)
	for len(texts) < n {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Message.From != SystemSender {
				texts = append(texts, ev.Message.Text)
			}
		case <-deadline:
			t.Fatalf("received %d of %d messages: %v", len(texts), n, texts)
		}
	}
	return texts
}

func expectNoChat(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Message.From != SystemSender {
				t.Fatalf("unexpected extra message %q from %s", ev.Message.Text, ev.Message.From)
			}
		case <-deadline:
			return
		}
	}
}
