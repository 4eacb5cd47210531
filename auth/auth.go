package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/db/monarch"
)

const loginURL = "/login/"

// An App handles logging in and out.
type App struct {
	db   db.DB
	sm   *SessionManager
	serv *UserService
}

// NewApp returns a new authz/n web application.
func NewApp(db db.DB, sm *SessionManager) *App {
	return &App{db: db, sm: sm, serv: NewUserService(db)}
}

func (a *App) Name() string { return "auth" }

func (a *App) Bind(r chi.Router) {
	r.Post("/login/", a.login)
	r.Post("/logout/", a.logout)
}

func (a *App) Migrate() error {
	m, err := monarch.NewManager(a.db)
	if err != nil {
		return err
	}
	return m.Upgrade(userMigrations)
}

// login validates the posted credentials and redirects to the requested page
// (or the admin) on success.
func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.Fail(w, http.StatusBadRequest, "invalid form")
		return
	}
	username, password := r.Form.Get("username"), r.Form.Get("password")
	if ok, err := a.serv.Validate(username, password); !ok {
		slog.Warn("failed login", "username", username, "err", err)
		app.Fail(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session := a.sm.Session(r)
	session.Values["authenticated"] = true
	session.Values["user"] = username
	if err := session.Save(r, w); err != nil {
		app.JSON500("saving session", w, err)
		return
	}

	redirect := r.Form.Get("redirect")
	if len(redirect) == 0 || redirect[0] != '/' {
		redirect = "/admin/"
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	session := a.sm.Session(r)
	session.Values["authenticated"] = false
	session.Values["user"] = ""
	if err := session.Save(r, w); err != nil {
		slog.Error("saving session", "err", err)
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}
