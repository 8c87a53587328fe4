// Package session keeps one upload lifecycle per browser session.
package session

import (
	"context"
	"sync"
	"time"

	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"

	"github.com/google/uuid"
)

// CookieName carries the session ID.
const CookieName = "traffic_session"

// Session is the server side of one browser session.
type Session struct {
	ID         string
	Controller *lifecycle.Controller
	Created    time.Time

	mu            sync.Mutex
	authenticated bool
}

// Authenticated reports whether the session passed the login page.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// SetAuthenticated marks the session as logged in or out.
func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

// ControllerFactory builds the controller of a new session.
type ControllerFactory func(sessionID string) *lifecycle.Controller

// Store holds sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  ControllerFactory
	ttl      time.Duration
	logger   *logger.Logger
}

// NewStore creates a store whose idle sessions expire after ttl.
func NewStore(factory ControllerFactory, ttl time.Duration, logger *logger.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
	}
}

// Create starts a new session with a random ID.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	sess := &Session{
		ID:         id,
		Controller: s.factory(id),
		Created:    time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	total := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(total))
	s.logger.Info("Session %s created. Total: %d", id, total)
	return sess
}

// Get returns the session with id, or nil.
func (s *Store) Get(id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and discards their
// spooled videos. Sessions with a request in flight are kept. A dropped
// session's controller is retired, so an upload still racing in on it is
// handed back to its handler for removal.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	var videos []*lifecycle.Video
	for id, sess := range s.sessions {
		v, ok := sess.Controller.Expire(cutoff)
		if !ok {
			continue
		}
		expired = append(expired, sess)
		videos = append(videos, v)
		delete(s.sessions, id)
	}
	total := len(s.sessions)
	s.mu.Unlock()

	for i, sess := range expired {
		if err := videos[i].Discard(); err != nil {
			s.logger.Warning("Could not remove upload of session %s: %v", sess.ID, err)
		}
	}

	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(total))
		s.logger.Info("Expired %d idle sessions. Total: %d", len(expired), total)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Close waits for in-flight requests and removes every spooled video.
func (s *Store) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Wait()
		if err := sess.Controller.Retire().Discard(); err != nil {
			s.logger.Warning("Could not remove upload of session %s: %v", sess.ID, err)
		}
	}
	metrics.ActiveSessions.Set(0)
}
