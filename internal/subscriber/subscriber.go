// Package subscriber implements the per-attached-client adapter (C5): it
// owns the framed connection for one attached session, fans session
// output to that connection in order, and turns incoming input/resize
// messages back into session calls.
package subscriber

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/wire"
)

// Session is the narrow view of internal/session.Session a Subscriber
// needs, kept minimal to avoid importing the full session package here.
type Session interface {
	SendInput(data []byte)
	Resize(cols, rows int)
	RemoveSubscriber(id string)
}

// sendQueueDepth bounds how many outbound messages can be queued before
// Send starts dropping the oldest frame rather than blocking the session
// pump that produced it.
const sendQueueDepth = 256

// Subscriber adapts one attached connio.Conn to the session.Subscriber
// interface. Send is non-blocking: messages are queued and drained by a
// dedicated writer goroutine, started explicitly by Start so a caller can
// write the attach response directly on the connection before anything
// queued (the initial snapshot first) reaches the wire.
type Subscriber struct {
	id   string
	conn *connio.Conn
	sess Session

	queue    chan *wire.WireMessage
	done     chan struct{}
	closeOne sync.Once
}

// New constructs a Subscriber bound to conn and sess. It does not start any
// goroutines; call Start once the caller has finished anything that must
// happen before the writer begins draining the queue (typically: enqueuing
// the initial snapshot, then sending the attach response).
func New(conn *connio.Conn, sess Session) *Subscriber {
	return &Subscriber{
		id:    uuid.NewString(),
		conn:  conn,
		sess:  sess,
		queue: make(chan *wire.WireMessage, sendQueueDepth),
		done:  make(chan struct{}),
	}
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string { return s.id }

// Send enqueues msg for delivery. If the queue is full the oldest pending
// message is dropped to make room — a slow reader must never be allowed to
// block the session pump that produced msg.
func (s *Subscriber) Send(msg *wire.WireMessage) {
	select {
	case s.queue <- msg:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- msg:
		default:
		}
	}
}

// Start launches the writer-drain goroutine and blocks the calling
// goroutine in a read loop until the connection closes or an unrecoverable
// read error occurs. Callers run Start on its own goroutine (or as the
// last step of handling one connection) since it only returns at the end
// of the subscriber's life.
func (s *Subscriber) Start() {
	go s.writeLoop()
	s.readLoop()
}

func (s *Subscriber) writeLoop() {
	for {
		select {
		case msg, ok := <-s.queue:
			if !ok {
				return
			}
			if err := s.sendFramed(msg); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Subscriber) sendFramed(msg *wire.WireMessage) error {
	if wire.IsBinaryOnly(msg.Type) {
		return s.conn.SendBinary(msg)
	}
	return s.conn.Send(msg)
}

// readLoop consumes incoming input/resize messages until the connection
// closes, then tears down the subscriber.
func (s *Subscriber) readLoop() {
	defer s.Close()
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil || msg == nil {
			return
		}
		switch msg.Type {
		case wire.TypeInput:
			if msg.Input != nil {
				s.sess.SendInput(msg.Input.Data)
			}
		case wire.TypeResize:
			if msg.Resize != nil {
				s.sess.Resize(int(msg.Resize.Cols), int(msg.Resize.Rows))
			}
		}
	}
}

// Close unregisters the subscriber from its session and closes its
// connection and writer goroutine. Safe to call concurrently and more than
// once; only the first call has any effect.
func (s *Subscriber) Close() {
	s.closeOne.Do(func() {
		close(s.done)
		s.sess.RemoveSubscriber(s.id)
		s.conn.Close()
	})
}
