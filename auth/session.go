package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/conf"
)

const sessionJar = "monet-session"

type sessionKey struct{}

// A SessionManager manages sessions
type SessionManager struct {
	store sessions.Store
}

func NewSessionManager(cfg *conf.Config) *SessionManager {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return &SessionManager{store: store}
}

// Context adds this session manager to ctx
func (s *SessionManager) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// AddSessionMiddleware adds this manager to the context, allowing any handler to utilize it
func (s *SessionManager) AddSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(s.Context(r.Context())))
	})
}

// Session returns the session for this request
func (s *SessionManager) Session(r *http.Request) *sessions.Session {
	// a cookie we can't decode still yields a usable new session
	session, _ := s.store.Get(r, sessionJar)
	return session
}

// RequireAuthenticated rejects unauthenticated requests.  Requests that want
// json get a 401 envelope; everything else is redirected to the login page.
func (s *SessionManager) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.IsAuthenticated(r) {
			if wantsJSON(r) {
				app.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SessionManager) IsAuthenticated(r *http.Request) bool {
	return s.Session(r).Values["authenticated"] == true
}

// AddFlash queues msg for display on the next page the user loads.
func (s *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) {
	session := s.Session(r)
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		slog.Error("saving flash", "err", err)
	}
}

// Flashes returns and clears any queued flash messages.
func (s *SessionManager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session := s.Session(r)
	var msgs []string
	for _, f := range session.Flashes() {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) > 0 {
		if err := session.Save(r, w); err != nil {
			slog.Error("clearing flashes", "err", err)
		}
	}
	return msgs
}

// SessionFromContext returns the session manager from the context
func SessionFromContext(ctx context.Context) *SessionManager {
	sm, _ := ctx.Value(sessionKey{}).(*SessionManager)
	return sm
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
