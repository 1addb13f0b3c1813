package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// ws_smoke joins a room, sends one message, waits for its echo and checks it shows up in history.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/chat", "WebSocket address")
	user := flag.String("user", "tester", "username sent in the handshake")
	token := flag.String("token", "", "optional JWT")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("username", *user)
	if *token != "" {
		q.Set("token", *token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}
	await := func(typ string, out any) error {
		for {
			var frame outbound
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			fmt.Printf("Received outbound: type=%s data=%s\n", frame.Type, frame.Data)
			if frame.Type == proto.OutboundTypeError && typ != proto.OutboundTypeError {
				return fmt.Errorf("server error: %s", frame.Data)
			}
			if frame.Type == typ {
				return json.Unmarshal(frame.Data, out)
			}
		}
	}

	if err := send(proto.InboundTypeJoinRoom, *room); err != nil {
		return err
	}
	var created proto.RoomCreated
	if err := await(proto.OutboundTypeRoomCreated, &created); err != nil {
		return err
	}

	if err := send(proto.InboundTypeMessage, proto.MessageData{RoomID: created.RoomID, Message: *text}); err != nil {
		return err
	}
	for {
		var msg proto.OutMessage
		if err := await(proto.OutboundTypeMessage, &msg); err != nil {
			return err
		}
		if msg.Username == *user && msg.Message == *text {
			break
		}
	}

	if err := send(proto.InboundTypeHistory, proto.HistoryData{RoomName: created.RoomName, Page: 1}); err != nil {
		return err
	}
	var hist proto.History
	if err := await(proto.OutboundTypeHistory, &hist); err != nil {
		return err
	}
	for _, m := range hist.Messages {
		if m.Message == *text {
			fmt.Printf("ok: room=%s id=%s message stored\n", created.RoomName, created.RoomID)
			return nil
		}
	}
	return fmt.Errorf("message not found in the newest history page of %s", created.RoomName)
}
