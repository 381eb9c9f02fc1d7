package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/pane/internal/emulator/simple"
	"github.com/ianremillard/pane/internal/wire"
)

type fakeSubscriber struct {
	id  string
	msg chan *wire.WireMessage
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id, msg: make(chan *wire.WireMessage, 64)}
}

func (f *fakeSubscriber) ID() string { return f.id }
func (f *fakeSubscriber) Send(msg *wire.WireMessage) {
	select {
	case f.msg <- msg:
	default: // never block the pump: drop when the buffer is full
	}
}
func (f *fakeSubscriber) Close() {}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New("1", "test", simple.New(80, 24))
}

func TestStartRunsCommandAndRecordsExit(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/echo", "hello-pane"}))

	select {
	case <-s.Exited():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit in time")
	}

	info := s.Info()
	assert.False(t, info.IsRunning)
	require.NotNil(t, info.LastExitCode)
	assert.Equal(t, 0, *info.LastExitCode)
}

func TestSendInputIsEchoedByShell(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/cat"}))

	sub := newFakeSubscriber("sub-1")
	s.AddSubscriber(sub)
	<-sub.msg // initial snapshot, enqueued by AddSubscriber

	s.SendInput([]byte("abc"))

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Lines[0][0].Char == "a"
	}, 2*time.Second, 10*time.Millisecond)

	s.Terminate()
}

func TestResizeUpdatesEmulatorDimensions(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/cat"}))
	defer s.Terminate()

	s.Resize(100, 40)
	snap := s.Snapshot()
	assert.Equal(t, uint16(100), snap.Cols)
	assert.Equal(t, uint16(40), snap.Rows)
}

func TestAddRemoveSubscriber(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/cat"}))
	defer s.Terminate()

	sub := newFakeSubscriber("sub-1")
	s.AddSubscriber(sub)
	s.mu.Lock()
	_, present := s.subscribers[sub.ID()]
	s.mu.Unlock()
	require.True(t, present)

	s.RemoveSubscriber(sub.ID())
	s.mu.Lock()
	_, present = s.subscribers[sub.ID()]
	s.mu.Unlock()
	assert.False(t, present)
}

// TestAddSubscriberOrderingUnderConcurrentOutput attaches against a child
// that is continuously producing output, so the PTY pump's feed loop is
// racing AddSubscriber on every iteration. The fix pins registration and
// the initial snapshot send to one critical section; without it, a delta
// built from output fed in between the two steps could land in the
// subscriber's queue ahead of the snapshot.
func TestAddSubscriberOrderingUnderConcurrentOutput(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/sh", "-c", "while true; do echo spam; done"}))
	defer s.Terminate()

	for i := 0; i < 50; i++ {
		sub := newFakeSubscriber(fmt.Sprintf("sub-%d", i))
		s.AddSubscriber(sub)
		first := <-sub.msg
		assert.Equal(t, wire.TypeSnapshot, first.Type, "iteration %d: first message must be a snapshot", i)
		s.RemoveSubscriber(sub.ID())
	}
}

func TestSnapshotBeforeDeltaOrdering(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start([]string{"/bin/cat"}))
	defer s.Terminate()

	sub := newFakeSubscriber("sub-1")
	s.AddSubscriber(sub)
	s.SendInput([]byte("x"))

	first := <-sub.msg
	assert.Equal(t, wire.TypeSnapshot, first.Type)

	select {
	case second := <-sub.msg:
		assert.Equal(t, wire.TypeDelta, second.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no delta received after input")
	}
}
