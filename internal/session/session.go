// Package session is the in-memory cookie session store. Sessions carry the
// authenticated team plus per-session UI state: the reservation draft being
// edited and the sidebar preference. Sessions are intentionally ephemeral; a
// restart logs everyone out.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/tfrey42/pitchside/internal/wizard"
)

const (
	CookieName      = "pitchside_session"
	tokenBytes      = 32
	cleanupInterval = 15 * time.Minute
	defaultTTL      = 8 * time.Hour
)

// Session is one logged-in browser. Access to mutable fields goes through
// the store so the lock is held.
type Session struct {
	Token         string
	TeamID        int64
	Draft         *wizard.Draft
	SidebarHidden bool
	ExpiresAt     time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	secure   bool

	cleanupOnce sync.Once
}

func NewStore(ttl time.Duration, secureCookies bool) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		secure:   secureCookies,
	}
}

// Create opens a session for the team, evicting any previous session it had,
// and sets the cookie.
func (s *Store) Create(w http.ResponseWriter, teamID int64) (*Session, error) {
	s.startCleanup()

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Token:     token,
		TeamID:    teamID,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	s.mu.Lock()
	for t, existing := range s.sessions {
		if existing.TeamID == teamID {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.ttl.Seconds()),
	})
	return sess, nil
}

// FromRequest returns the request's live session, or nil without error when
// there is none.
func (s *Store) FromRequest(r *http.Request) (*Session, error) {
	s.startCleanup()

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	s.mu.RLock()
	sess, ok := s.sessions[cookie.Value]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sess.ExpiresAt.Before(time.Now()) {
		s.delete(cookie.Value)
		return nil, nil
	}
	return sess, nil
}

// Clear ends the request's session and expires the cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		s.delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// SetDraft stores the wizard draft on the session; nil clears it.
func (s *Store) SetDraft(sess *Session, draft *wizard.Draft) {
	s.mu.Lock()
	sess.Draft = draft
	s.mu.Unlock()
}

// Draft returns the session's current wizard draft, or nil.
func (s *Store) Draft(sess *Session) *wizard.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sess.Draft
}

// ToggleSidebar flips the sidebar preference and returns the new state.
func (s *Store) ToggleSidebar(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.SidebarHidden = !sess.SidebarHidden
	return sess.SidebarHidden
}

func (s *Store) delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *Store) startCleanup() {
	s.cleanupOnce.Do(func() {
		// Lazy-start cleanup only when sessions are first used.
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				s.prune()
			}
		}()
	})
}

func (s *Store) prune() {
	now := time.Now()
	s.mu.Lock()
	for token, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}

func newToken() (string, error) {
	token := make([]byte, tokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(token), nil
}
