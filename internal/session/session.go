// Package session ties a browser to its working state: the identity email,
// the social connector, and the quota counter key. State lives in an
// in-memory registry keyed by a cookie-held session id, so nothing ambient
// leaks between users.
package session

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/social"
)

const cookieName = "threadforge_session"

// Context is one browser session's working state.
type Context struct {
	ID        string
	Connector *social.Connector
	CreatedAt time.Time

	mu       sync.Mutex
	identity string
	anonKey  string
}

// Identity returns the email attached to the session, possibly blank.
func (c *Context) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetIdentity attaches an email to the session.
func (c *Context) SetIdentity(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = strings.TrimSpace(email)
}

// CounterKey is the quota key: the hashed identity when one is attached,
// otherwise a per-session anonymous key.
func (c *Context) CounterKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != "" {
		return analytics.IdentityHash(c.identity)
	}
	return c.anonKey
}

// Manager hands out session contexts against a signed cookie.
type Manager struct {
	cookies      *sessions.CookieStore
	newConnector func() *social.Connector

	mu     sync.RWMutex
	active map[string]*Context
}

// NewManager builds a manager. newConnector is called once per fresh
// session to give it its own social connector.
func NewManager(secret string, newConnector func() *social.Connector) *Manager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		cookies:      store,
		newConnector: newConnector,
		active:       make(map[string]*Context),
	}
}

// Load returns the request's session context, creating one when the cookie
// is absent, tampered, or points at a session this process doesn't know.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Context, error) {
	cookie, _ := m.cookies.Get(r, cookieName) // tampered cookies come back as a fresh session

	if sid, ok := cookie.Values["sid"].(string); ok {
		m.mu.RLock()
		ctx, found := m.active[sid]
		m.mu.RUnlock()
		if found {
			return ctx, nil
		}
	}

	ctx := &Context{
		ID:        uuid.New().String(),
		Connector: m.newConnector(),
		CreatedAt: time.Now(),
		anonKey:   "anon-" + uuid.New().String(),
	}
	m.mu.Lock()
	m.active[ctx.ID] = ctx
	m.mu.Unlock()

	cookie.Values["sid"] = ctx.ID
	if err := cookie.Save(r, w); err != nil {
		return nil, err
	}
	log.Printf("🔄 New session %s", ctx.ID)
	return ctx, nil
}

// Get returns a known session context by id.
func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.active[id]
	return ctx, ok
}

// Destroy forgets the session and expires its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, ctx *Context) {
	m.mu.Lock()
	delete(m.active, ctx.ID)
	m.mu.Unlock()

	cookie, _ := m.cookies.Get(r, cookieName)
	cookie.Options.MaxAge = -1
	_ = cookie.Save(r, w)
}

// Count reports how many sessions are live, for the health endpoint.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
