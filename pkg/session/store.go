// Package session holds per-call conversation state. Sessions live in
// process memory only: bounded by the TTL reaper and the transport's
// call-status eviction hook, never by process restart.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Turn is one completed exchange in a call.
type Turn struct {
	ID        string    `json:"id"`
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	At        time.Time `json:"at"`
}

// Session is the state of a single telephone call.
type Session struct {
	CallSid   string
	CreatedAt time.Time

	// ProcessingMu serializes turn processing for this call. The transport
	// delivers turns sequentially, but duplicate or out-of-order webhook
	// delivery must not interleave history.
	ProcessingMu sync.Mutex

	mu          sync.RWMutex
	instruction string
	history     []Turn
	lastActive  time.Time
	subscribers map[chan Turn]struct{}
}

// SeedInstruction stores the system instruction if none is set yet and
// reports whether this call seeded it. Safe to call on every turn.
func (s *Session) SeedInstruction(instruction string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instruction != "" {
		return false
	}
	s.instruction = instruction
	return true
}

// Instruction returns the seeded system instruction, if any.
func (s *Session) Instruction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instruction
}

// History returns a copy of the completed turns in order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// TurnCount returns the number of completed turns.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Session) appendTurn(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
	s.lastActive = time.Now()

	// Publish while holding the lock: subscriber channels are only closed
	// under the same lock, so a send can never race a close. Slow
	// subscribers drop events rather than stall the call.
	for ch := range s.subscribers {
		select {
		case ch <- turn:
		default:
		}
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// Store maps call identifiers to sessions. All operations are safe for
// concurrent use across different calls.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStore creates a session store. Sessions idle longer than ttl are
// evicted by the reaper.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// GetOrCreate returns the session for callSid, creating it on the first turn
// of a call. A session is created at most once per call.
func (st *Store) GetOrCreate(callSid string) *Session {
	st.mu.RLock()
	sess, exists := st.sessions[callSid]
	st.mu.RUnlock()
	if exists {
		sess.touch()
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, exists := st.sessions[callSid]; exists {
		return sess
	}

	now := time.Now()
	sess = &Session{
		CallSid:     callSid,
		CreatedAt:   now,
		lastActive:  now,
		subscribers: make(map[chan Turn]struct{}),
	}
	st.sessions[callSid] = sess
	st.logger.Info("Call session created", zap.String("call_sid", callSid))
	return sess
}

// Get returns the session for callSid, or nil when none exists.
func (st *Store) Get(callSid string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[callSid]
}

// AppendTurn records a completed turn into the call's history. The session
// must already exist (GetOrCreate runs earlier in the same turn).
func (st *Store) AppendTurn(callSid, utterance, reply string) {
	sess := st.Get(callSid)
	if sess == nil {
		st.logger.Warn("AppendTurn on unknown session", zap.String("call_sid", callSid))
		return
	}
	sess.appendTurn(Turn{
		ID:        uuid.NewString(),
		Utterance: utterance,
		Reply:     reply,
		At:        time.Now(),
	})
}

// End evicts the session for callSid and closes any live subscribers.
// Called from the transport's call-status webhook and the admin API.
func (st *Store) End(callSid string) {
	st.mu.Lock()
	sess, exists := st.sessions[callSid]
	if exists {
		delete(st.sessions, callSid)
	}
	st.mu.Unlock()

	if exists {
		sess.closeSubscribers()
		st.logger.Info("Call session ended",
			zap.String("call_sid", callSid),
			zap.Int("turns", sess.TurnCount()),
		)
	}
}

// Subscribe registers a live-turn listener for callSid. The returned cancel
// function must be called when the listener goes away. Returns nil when the
// session does not exist.
func (st *Store) Subscribe(callSid string) (<-chan Turn, func()) {
	sess := st.Get(callSid)
	if sess == nil {
		return nil, nil
	}

	ch := make(chan Turn, 16)
	sess.mu.Lock()
	if sess.subscribers == nil {
		// Session ended between Get and here.
		sess.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	sess.subscribers[ch] = struct{}{}
	sess.mu.Unlock()

	cancel := func() {
		sess.mu.Lock()
		if _, ok := sess.subscribers[ch]; ok {
			delete(sess.subscribers, ch)
			close(ch)
		}
		sess.mu.Unlock()
	}
	return ch, cancel
}

// ActiveCalls returns the call identifiers of all live sessions.
func (st *Store) ActiveCalls() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	calls := make([]string, 0, len(st.sessions))
	for callSid := range st.sessions {
		calls = append(calls, callSid)
	}
	return calls
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartReaper evicts idle sessions every interval until ctx is done. The
// transport usually ends calls through the call-status webhook; the reaper
// covers calls whose status event never arrived.
func (st *Store) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.reap()
			}
		}
	}()
}

func (st *Store) reap() {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.RLock()
	var stale []string
	for callSid, sess := range st.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, callSid)
		}
	}
	st.mu.RUnlock()

	for _, callSid := range stale {
		st.logger.Info("Reaping idle call session", zap.String("call_sid", callSid))
		st.End(callSid)
	}
}
