package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const defaultMailboxSize = 256

type job func(ctx context.Context)

// roomMailbox serializes all work for one room: membership changes and fan-out
// run in the order they were queued.
type roomMailbox struct {
	id   string
	name string
	jobs chan job
	log  *zerolog.Logger
}

// run executes jobs until the queue is closed and empty.
func (m *roomMailbox) run(ctx context.Context) {
	for j := range m.jobs {
		m.exec(ctx, j)
	}
}

func (m *roomMailbox) exec(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("room_id", m.id).Msg("room job panicked")
		}
	}()
	j(ctx)
}

// post queues a job without waiting for it to run.
func (m *roomMailbox) post(ctx context.Context, j job) error {
	select {
	case m.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do queues a job and waits until it has run.
func (m *roomMailbox) do(ctx context.Context, j job) error {
	done := make(chan struct{})
	err := m.post(ctx, func(ctx context.Context) {
		defer close(done)
		j(ctx)
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mailboxes lazily starts one mailbox goroutine per room.
type mailboxes struct {
	ctx   context.Context
	size  int
	log   *zerolog.Logger
	wg    sync.WaitGroup
	mu    sync.Mutex
	boxes map[string]*roomMailbox
}

func newMailboxes(ctx context.Context, size int, logger *zerolog.Logger) *mailboxes {
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &mailboxes{
		ctx:   ctx,
		size:  size,
		log:   logger,
		boxes: make(map[string]*roomMailbox),
	}
}

func (m *mailboxes) get(roomID, roomName string) *roomMailbox {
	m.mu.Lock()
	defer m.mu.Unlock()

	if box, ok := m.boxes[roomID]; ok {
		return box
	}
	box := &roomMailbox{
		id:   roomID,
		name: roomName,
		jobs: make(chan job, m.size),
		log:  m.log,
	}
	m.boxes[roomID] = box
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		box.run(m.ctx)
	}()
	return box
}

// close stops every mailbox once its queued jobs have run. No job may be posted afterwards.
func (m *mailboxes) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, box := range m.boxes {
		close(box.jobs)
	}
	m.boxes = make(map[string]*roomMailbox)
}

func (m *mailboxes) wait() {
	m.wg.Wait()
}
