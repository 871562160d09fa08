package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
)

// Protocol errors.
var (
	// ErrNoPendingReply is returned by Receive for a task that was never
	// expected, or whose reply was already consumed.
	ErrNoPendingReply = errors.New("no pending reply for task")

	// ErrAlreadyExpected is returned by Expect when a slot is already open.
	ErrAlreadyExpected = errors.New("reply already expected for task")

	// ErrUnexpectedReply is returned by Send when no slot is open for the task.
	ErrUnexpectedReply = errors.New("unexpected reply for task")

	// ErrDuplicateReply is returned by Send when the slot already holds a reply.
	ErrDuplicateReply = errors.New("duplicate reply for task")

	// ErrForeignReply is returned by Receive when a reply carries another
	// engine instance's hash.
	ErrForeignReply = errors.New("reply from foreign engine instance")

	// ErrMalformedReply is returned by Receive for frames that are not replies
	// or that answer a different task.
	ErrMalformedReply = errors.New("malformed reply")
)

// Reply is the message an engine sends once a task has executed.
type Reply struct {
	ID     string `cbor:"id" json:"id"`
	Result any    `cbor:"result" json:"result"`
	Error  string `cbor:"error,omitempty" json:"error,omitempty"`
	Hash   string `cbor:"hash" json:"hash"`
	Reply  bool   `cbor:"reply" json:"reply"`
}

// mailbox holds one single-slot buffer per task awaiting its reply.
type mailbox struct {
	mu    sync.Mutex
	slots map[string]chan []byte
}

// Server is the consuming end of an engine's channel.
type Server struct {
	hash  string
	codec Codec
	box   *mailbox
}

// Client is the sending end used by the engine's execution context.
type Client struct {
	codec Codec
	box   *mailbox
}

// New creates a connected Server/Client pair for the engine instance
// identified by hash.
func New(hash string, codec Codec) (*Server, *Client) {
	box := &mailbox{slots: make(map[string]chan []byte)}
	return &Server{hash: hash, codec: codec, box: box}, &Client{codec: codec, box: box}
}

// Hash returns the engine identity this server accepts replies from.
func (s *Server) Hash() string {
	return s.hash
}

// Expect opens the reply slot for task id. It must be called before the
// engine sends the reply.
func (s *Server) Expect(id string) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	if _, ok := s.box.slots[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExpected, id)
	}
	s.box.slots[id] = make(chan []byte, 1)
	return nil
}

// Discard closes the slot for id without consuming it, dropping any reply
// that may already be buffered.
func (s *Server) Discard(id string) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	delete(s.box.slots, id)
}

// Pending returns the number of open slots.
func (s *Server) Pending() int {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	return len(s.box.slots)
}

// Receive blocks until the reply for task id arrives or ctx is done, then
// decodes and validates it. Each expected reply is consumed exactly once.
func (s *Server) Receive(ctx context.Context, id string) (Reply, error) {
	s.box.mu.Lock()
	slot, ok := s.box.slots[id]
	s.box.mu.Unlock()
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrNoPendingReply, id)
	}

	var frame []byte
	select {
	case frame = <-slot:
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("receive reply %s: %w", id, ctx.Err())
	}
	s.Discard(id)

	var r Reply
	if err := ReadMessage(bytes.NewReader(frame), s.codec, &r); err != nil {
		return Reply{}, fmt.Errorf("decode reply %s: %w", id, err)
	}
	if !r.Reply || r.ID != id {
		return Reply{}, fmt.Errorf("%w: task %s got id=%q reply=%v", ErrMalformedReply, id, r.ID, r.Reply)
	}
	if r.Hash != s.hash {
		return Reply{}, fmt.Errorf("%w: got %q, want %q", ErrForeignReply, r.Hash, s.hash)
	}
	return r, nil
}

// Send frames r and places it in the slot for r.ID.
func (c *Client) Send(r Reply) error {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, c.codec, &r); err != nil {
		return fmt.Errorf("send reply %s: %w", r.ID, err)
	}

	c.box.mu.Lock()
	defer c.box.mu.Unlock()

	slot, ok := c.box.slots[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, r.ID)
	}
	select {
	case slot <- buf.Bytes():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrDuplicateReply, r.ID)
	}
}
