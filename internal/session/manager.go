// Package session holds per-user state in memory. Each session owns
// its profile, month history and named scenarios exclusively; all
// mutation goes through the manager so no two requests race on the
// same session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"fintwin/internal/core"
	"fintwin/internal/simulation"
)

const (
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = 2 * time.Hour

	cleanupInterval = 10 * time.Minute

	// MaxHistoryMonths bounds the stored month records per session.
	MaxHistoryMonths = 60
	// MaxScenarios bounds the named scenarios per session.
	MaxScenarios = 10
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrTooManyScenarios = errors.New("too many scenarios")
)

type (
	// Session is one user's state. Version increments on every
	// mutation; caches key on it.
	Session struct {
		ID        string
		Profile   core.Profile
		History   map[string]core.MonthRecord // key "YYYY-MM"
		Scenarios []simulation.Scenario
		Version   uint64

		lastSeen time.Time
	}

	// Manager owns all sessions behind a mutex with periodic cleanup
	// of expired entries.
	Manager struct {
		mu       sync.Mutex
		sessions map[string]*Session
		ttl      time.Duration
		done     chan struct{}
		stopOnce sync.Once
	}
)

// NewManager creates a manager and starts its cleanup loop. ttl <= 0
// selects DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create allocates a fresh session and returns its ID.
func (m *Manager) Create() (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       id,
		Profile:  core.NewProfile(),
		History:  make(map[string]core.MonthRecord),
		lastSeen: time.Now(),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s.snapshot(), nil
}

// Get returns a snapshot of the session, refreshing its TTL.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen = time.Now()
	return s.snapshot(), nil
}

// Update applies fn to the session under the manager's lock. fn
// receives the live session and may mutate it freely; the version is
// bumped afterwards. An error from fn aborts without a version bump.
func (m *Manager) Update(id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.Version++
	s.lastSeen = time.Now()
	return s.snapshot(), nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the cleanup loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.removeExpired(time.Now())
		}
	}
}

func (m *Manager) removeExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

// snapshot deep-copies the session so callers outside the lock never
// share mutable state with it.
func (s *Session) snapshot() *Session {
	out := &Session{
		ID:       s.ID,
		Profile:  s.Profile.Clone(),
		History:  make(map[string]core.MonthRecord, len(s.History)),
		Version:  s.Version,
		lastSeen: s.lastSeen,
	}
	for key, rec := range s.History {
		expenses := make(map[string]core.Money, len(rec.Expenses))
		for name, amount := range rec.Expenses {
			expenses[name] = amount
		}
		out.History[key] = core.MonthRecord{Year: rec.Year, Month: rec.Month, Expenses: expenses}
	}
	if len(s.Scenarios) > 0 {
		out.Scenarios = make([]simulation.Scenario, len(s.Scenarios))
		for i, sc := range s.Scenarios {
			deltas := make([]simulation.Delta, len(sc.Deltas))
			copy(deltas, sc.Deltas)
			out.Scenarios[i] = simulation.Scenario{Name: sc.Name, Deltas: deltas}
		}
	}
	return out
}

// SetMonthRecord stores a month of expense history, bounded by
// MaxHistoryMonths with oldest-first eviction.
func (s *Session) SetMonthRecord(rec core.MonthRecord) {
	s.History[rec.Key()] = rec
	for len(s.History) > MaxHistoryMonths {
		oldest := ""
		for key := range s.History {
			if oldest == "" || key < oldest {
				oldest = key
			}
		}
		delete(s.History, oldest)
	}
}

// AddScenario stores a named scenario, replacing one with the same name.
func (s *Session) AddScenario(sc simulation.Scenario) error {
	for i, existing := range s.Scenarios {
		if existing.Name == sc.Name {
			s.Scenarios[i] = sc
			return nil
		}
	}
	if len(s.Scenarios) >= MaxScenarios {
		return ErrTooManyScenarios
	}
	s.Scenarios = append(s.Scenarios, sc)
	return nil
}

// HistorySeries returns the month totals in chronological order, the
// input the expense forecaster consumes.
func (s *Session) HistorySeries() []int64 {
	keys := make([]string, 0, len(s.History))
	for key := range s.History {
		keys = append(keys, key)
	}
	// "YYYY-MM" sorts chronologically as a string.
	sort.Strings(keys)
	out := make([]int64, len(keys))
	for i, key := range keys {
		out[i] = s.History[key].Total().Cents
	}
	return out
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
