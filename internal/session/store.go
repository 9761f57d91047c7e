// Package session keeps bounded per-session conversation history in memory.
//
// Sessions are spread over shards by FNV-1a hash of their id so unrelated sessions never
// contend on one lock. Each session keeps at most maxHistory turns (oldest dropped first),
// and the store keeps at most maxSessions sessions, evicting by a configurable policy.
package session

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"go.uber.org/zap"
)

// NoHistory is what FormatHistory renders for a session without turns.
const NoHistory = "none"

// Policy picks which session to evict.
type Policy string

const (
	// FewestTurns evicts the session with the fewest stored turns; ties go to the least
	// recently appended. Short sessions are the least likely to be active conversations.
	FewestTurns Policy = config.EvictFewestTurns
	// LeastRecent evicts the least recently appended session.
	LeastRecent Policy = config.EvictLeastRecent
)

type session struct {
	turns   []models.Turn
	lastSeq uint64
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// Store is safe for concurrent use.
type Store struct {
	shards      []*shard
	maxHistory  int
	maxSessions int
	policy      Policy
	logger      *zap.Logger // optional

	seq   atomic.Uint64 // store-wide append sequence
	count atomic.Int64  // tracked sessions

	evictMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for eviction events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithShards sets the shard count (default 16).
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

// WithPolicy sets the eviction policy (default FewestTurns).
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// NewStore creates a store keeping maxHistory turns per session and at most maxSessions
// sessions. Non-positive bounds fall back to 5 and 100.
func NewStore(maxHistory, maxSessions int, opts ...Option) *Store {
	if maxHistory <= 0 {
		maxHistory = 5
	}
	if maxSessions <= 0 {
		maxSessions = 100
	}
	s := &Store{
		shards:      newShards(16),
		maxHistory:  maxHistory,
		maxSessions: maxSessions,
		policy:      FewestTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig creates a store from the session config section.
func FromConfig(cfg *config.SessionConfig, opts ...Option) *Store {
	opts = append([]Option{WithShards(cfg.Shards), WithPolicy(Policy(cfg.EvictionPolicy))}, opts...)
	return NewStore(cfg.MaxConversationHistory, cfg.MaxSessions, opts...)
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*session)}
	}
	return shards
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Append records a turn, creating the session if needed and dropping its oldest turn past
// the history bound. If the store then holds more than maxSessions sessions it evicts by
// policy, never choosing id itself.
func (s *Store) Append(id, question, answer string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	sess, ok := sh.sessions[id]
	if !ok {
		sess = &session{turns: make([]models.Turn, 0, s.maxHistory)}
		sh.sessions[id] = sess
		s.count.Add(1)
	}
	if len(sess.turns) == s.maxHistory {
		copy(sess.turns, sess.turns[1:])
		sess.turns = sess.turns[:len(sess.turns)-1]
	}
	sess.turns = append(sess.turns, models.Turn{Question: question, Answer: answer})
	sess.lastSeq = s.seq.Add(1)
	sh.mu.Unlock()

	evicted := 0
	if int(s.count.Load()) > s.maxSessions {
		evicted = s.evict(s.maxSessions, id)
	}
	metrics.SessionsChanged(s.Len(), evicted)
}

// Get returns a copy of the session's turns in chronological order. Unknown ids yield an
// empty slice.
func (s *Store) Get(id string) []models.Turn {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return []models.Turn{}
	}
	out := make([]models.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Exists reports whether the session is tracked.
func (s *Store) Exists(id string) bool {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.sessions[id]
	return ok
}

// FormatHistory renders the session as "User: ..." / "Assistant: ..." lines, or NoHistory.
func (s *Store) FormatHistory(id string) string {
	return FormatTurns(s.Get(id))
}

// FormatTurns renders turns the way FormatHistory does.
func FormatTurns(turns []models.Turn) string {
	if len(turns) == 0 {
		return NoHistory
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", t.Question, t.Answer)
	}
	return b.String()
}

// Clear drops a session's turns. The session stays tracked. It reports whether the
// session existed.
func (s *Store) Clear(id string) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if ok {
		sess.turns = sess.turns[:0]
	}
	return ok
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	return int(s.count.Load())
}

// EvictOldest removes sessions by policy until at most maxSessions remain and returns how
// many were removed.
func (s *Store) EvictOldest(maxSessions int) int {
	if maxSessions < 0 {
		maxSessions = 0
	}
	n := s.evict(maxSessions, "")
	if n > 0 {
		metrics.SessionsChanged(s.Len(), n)
	}
	return n
}

// evict removes victims until the count is within limit. protect, if set, is never chosen.
func (s *Store) evict(limit int, protect string) int {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	evicted := 0
	for int(s.count.Load()) > limit {
		id, seq, ok := s.victim(protect)
		if !ok {
			break
		}
		sh := s.shardFor(id)
		sh.mu.Lock()
		// Skip if the victim was appended to since it was chosen.
		if sess, ok := sh.sessions[id]; ok && sess.lastSeq == seq {
			delete(sh.sessions, id)
			s.count.Add(-1)
			evicted++
			if s.logger != nil {
				s.logger.Debug("evicted session", zap.String("session", id), zap.Int("turns", len(sess.turns)), zap.String("policy", string(s.policy)))
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// victim scans every shard for the session the policy ranks first.
func (s *Store) victim(protect string) (string, uint64, bool) {
	var (
		bestID    string
		bestTurns int
		bestSeq   uint64
		found     bool
	)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id, sess := range sh.sessions {
			if id == protect {
				continue
			}
			if !found || s.before(len(sess.turns), sess.lastSeq, bestTurns, bestSeq) {
				bestID, bestTurns, bestSeq, found = id, len(sess.turns), sess.lastSeq, true
			}
		}
		sh.mu.RUnlock()
	}
	return bestID, bestSeq, found
}

// before reports whether a session with (turns, seq) is evicted before one with
// (otherTurns, otherSeq). Append sequences are unique, so the order is total.
func (s *Store) before(turns int, seq uint64, otherTurns int, otherSeq uint64) bool {
	if s.policy != LeastRecent && turns != otherTurns {
		return turns < otherTurns
	}
	return seq < otherSeq
}
