package session

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/stealthcrawler/internal/config"
	"github.com/nao1215/stealthcrawler/internal/identity"
)

// Session is one immutable identity/connection context. It is never
// mutated after creation; rotation replaces the whole value, so a worker
// holding a *Session always sees a consistent identity and client pair.
type Session struct {
	// Client is the HTTP client carrying this session's proxy, cookie
	// jar, and header-injecting transport.
	Client *http.Client

	// Identity is the presentation this session's requests use.
	Identity identity.Identity

	// Serial numbers sessions from 1 for logging and tests.
	Serial int

	// CreatedAt is when this session was established.
	CreatedAt time.Time
}

// Manager owns the current session and replaces it every rotation
// interval, or immediately when forced after failures attributable to the
// current identity.
//
// Design decision: Acquire both returns the session and counts the
// request, under one lock, so the rotate-or-not decision and the serving
// of the session are atomic. Two workers can never each trigger a
// rotation for the same interval boundary and discard each other's
// session.
type Manager struct {
	pool      *identity.Pool
	interval  int
	timeout   time.Duration
	verifySSL bool
	sites     func(host string) config.SiteConfig

	mu        sync.Mutex
	current   *Session
	served    int
	rotations int
}

// NewManager creates a session manager. The first session is established
// lazily on first Acquire so identity selection errors surface through
// the normal fetch path.
func NewManager(pool *identity.Pool, interval int, timeout time.Duration, verifySSL bool, sites func(host string) config.SiteConfig) *Manager {
	return &Manager{
		pool:      pool,
		interval:  interval,
		timeout:   timeout,
		verifySSL: verifySSL,
		sites:     sites,
	}
}

// Acquire returns the session the next request should use, rotating
// beforehand when the current session has served its interval.
// The returned *Session is immutable; callers never observe a rotation
// mid-request.
func (m *Manager) Acquire() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.served >= m.interval {
		if err := m.rotateLocked(); err != nil {
			return nil, err
		}
	}

	m.served++
	return m.current, nil
}

// ForceRotate discards the current session immediately, regardless of how
// many requests it served. Called when repeated failures suggest the
// current identity is flagged or banned.
func (m *Manager) ForceRotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateLocked()
}

// Rotations returns how many sessions have been established so far,
// the initial session included.
func (m *Manager) Rotations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotations
}

// Close releases the current session's idle connections.
// Called once when the crawl finishes so no connections outlive the run.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCurrentLocked()
	m.current = nil
}

// rotateLocked establishes a fresh session. Caller holds m.mu.
func (m *Manager) rotateLocked() error {
	id, err := m.pool.Select()
	if err != nil {
		return fmt.Errorf("session rotation failed: %w", err)
	}

	client, err := newHTTPClient(id, m.timeout, m.verifySSL, m.sites)
	if err != nil {
		return fmt.Errorf("session rotation failed: %w", err)
	}

	m.closeCurrentLocked()

	m.rotations++
	m.current = &Session{
		Client:    client,
		Identity:  id,
		Serial:    m.rotations,
		CreatedAt: time.Now(),
	}
	m.served = 0
	return nil
}

// closeCurrentLocked drops the outgoing session's idle connections.
func (m *Manager) closeCurrentLocked() {
	if m.current != nil {
		m.current.Client.CloseIdleConnections()
	}
}
