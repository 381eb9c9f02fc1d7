// Package registry implements the session registry: an id-keyed map of
// live sessions plus a short-id allocator that hands out the lowest unused
// id. An id freed by Destroy is given to a later session, so ids are not
// monotone and are unique only among the sessions registered at one time.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"

	"github.com/ianremillard/pane/internal/session"
	"github.com/ianremillard/pane/internal/wire"
)

// ErrNotFound is returned by Destroy, Attach, and Lookup when no session
// with the given id is registered.
var ErrNotFound = errors.New("session not found")

// idAlphabet gives single-character ids first (digits 1-9, then a-z), 35
// slots before falling back to two-character combinations.
var idAlphabet = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9",
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
}

// NewEmulator constructs the screen emulator backing a newly created
// session. Production code wires this to internal/emulator/midterm.New;
// tests wire it to internal/emulator/simple.New.
type NewEmulator func(cols, rows int) session.Emulator

// Registry owns the set of live sessions for the lifetime of one server
// process. A started session is removed only by an explicit Destroy; Create
// drops its own entry again when Start fails.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	newEmu   NewEmulator
}

// New constructs an empty Registry. newEmu builds the Emulator for each
// session this Registry creates.
func New(newEmu NewEmulator) *Registry {
	return &Registry{
		sessions: make(map[string]*session.Session),
		newEmu:   newEmu,
	}
}

// nextID returns the lowest unused session id. Must be called with mu held.
func (r *Registry) nextID() string {
	for _, id := range idAlphabet {
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
	for _, a := range idAlphabet {
		for _, b := range idAlphabet {
			id := a + b
			if _, taken := r.sessions[id]; !taken {
				return id
			}
		}
	}
	// Extremely unlikely: every one- and two-character id is taken.
	buf := make([]byte, 4)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Create allocates a session id, constructs and starts a session running
// commandLine (or the default shell if empty), registers it, and returns
// it. If Start fails the session is unregistered.
//
// The id is reserved by inserting sess into the map in the same critical
// section as nextID, before Start runs — otherwise two concurrent Creates
// could both read the same unused id and then both write r.sessions[id],
// silently dropping one of the two sessions.
func (r *Registry) Create(name string, commandLine []string) (*session.Session, error) {
	r.mu.Lock()
	id := r.nextID()
	emu := r.newEmu(80, 24)
	sess := session.New(id, name, emu)
	r.sessions[id] = sess
	r.mu.Unlock()

	if err := sess.Start(commandLine); err != nil {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, err
	}

	return sess, nil
}

// Lookup returns the session registered under id, or ErrNotFound.
func (r *Registry) Lookup(id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// List returns every registered session's info, ordered by creation time
// (ties broken by id) so repeated listings are stable.
func (r *Registry) List() []wire.SessionInfo {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	infos := make([]wire.SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = sess.Info()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Destroy terminates and unregisters the session with the given id, or
// returns ErrNotFound if no such session exists.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	sess.Terminate()
	return nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
