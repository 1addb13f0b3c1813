package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

// session remembers the room the server last confirmed.
type session struct {
	mu       sync.Mutex
	roomID   string
	roomName string
}

func (s *session) set(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID, s.roomName = id, name
}

func (s *session) get() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.roomName
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/chat", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	token := flag.String("token", "", "JWT issued by `wirechat-rooms token`")
	room := flag.String("room", "general", "room to join")
	flag.Parse()

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

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sess := &session{}
	send := func(typ string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("marshal %s: %v", typ, err)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeJoinRoom, *room)

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. /join <room>, /leave, /history <page>, /all <text>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, sess)
	}()

	writeLoop(ctx, sess, send)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, sess *session) {
	for {
		var outbound struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch outbound.Type {
		case proto.OutboundTypeMessage:
			var msg proto.OutMessage
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printMessage(msg)
		case proto.OutboundTypeRoomCreated:
			var created proto.RoomCreated
			if err := json.Unmarshal(outbound.Data, &created); err != nil {
				log.Printf("unmarshal roomCreated: %v", err)
				continue
			}
			sess.set(created.RoomID, created.RoomName)
			fmt.Printf("* now in %s (%s)\n", created.RoomName, created.RoomID)
		case proto.OutboundTypeHistory:
			var hist proto.History
			if err := json.Unmarshal(outbound.Data, &hist); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			fmt.Printf("* history of %s, page %d\n", hist.RoomName, hist.Page)
			for _, m := range hist.Messages {
				printMessage(m)
			}
			if !hist.HasMore {
				fmt.Println("* no older messages")
			}
		case proto.OutboundTypeError:
			var perr proto.Error
			if err := json.Unmarshal(outbound.Data, &perr); err != nil {
				log.Printf("unmarshal error: %v", err)
				continue
			}
			fmt.Printf("! %s: %s\n", perr.Code, perr.Message)
		default:
			fmt.Printf("type=%s data=%s\n", outbound.Type, outbound.Data)
		}
	}
}

func printMessage(m proto.OutMessage) {
	ts := time.UnixMilli(m.TS).Format(time.TimeOnly)
	fmt.Printf("%s %s: %s\n", ts, m.Username, m.Message)
}

func writeLoop(ctx context.Context, sess *session, send func(string, any)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleLine(strings.TrimSpace(line), sess, send)
		}
	}
}

func handleLine(line string, sess *session, send func(string, any)) {
	if line == "" {
		return
	}
	roomID, roomName := sess.get()
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "/join":
		send(proto.InboundTypeJoinRoom, arg)
	case "/leave":
		if roomID == "" {
			fmt.Println("! not in a room")
			return
		}
		send(proto.InboundTypeLeaveRoom, roomID)
		sess.set("", "")
	case "/history":
		page, err := strconv.Atoi(arg)
		if err != nil {
			page = 1
		}
		send(proto.InboundTypeHistory, proto.HistoryData{RoomName: roomName, Page: page})
	case "/all":
		send(proto.InboundTypeMessage, proto.MessageData{Message: arg})
	default:
		send(proto.InboundTypeMessage, proto.MessageData{RoomID: roomID, Message: line})
	}
}
