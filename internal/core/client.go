package core

import "sync"

const clientBuffer = 64

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID       string
	Name     string
	Commands chan *Command
	Events   chan *Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	return &Client{
		ID:       id,
		Name:     displayName(name),
		Commands: make(chan *Command, clientBuffer),
		Events:   make(chan *Event, clientBuffer),
		done:     make(chan struct{}),
	}
}

// Send queues an event without blocking. Returns false if the client is too slow and the event was dropped.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close stops accepting commands. The hub purges the client once pending commands are handled.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Commands) })
}

// Done is closed after the hub has fully removed the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
