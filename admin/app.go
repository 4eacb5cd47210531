package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/auth"
	"github.com/jmoiron/monet/conf"
)

// the admin app attaches all of the admins to itself
// it relies on the auth app, but apps register their admin
// capabilities without importing this app, so it should be ok

type App struct {
	sm *auth.SessionManager

	BaseURL string
	Admins  []app.Admin
}

func NewApp(sm *auth.SessionManager) *App {
	return &App{sm: sm, BaseURL: "/admin"}
}

func (a *App) WithBaseURL(url string) *App {
	a.BaseURL = url
	return a
}

func (a *App) Name() string { return "admin" }

func (a *App) Migrate() error { return nil }

// Collect adds admins to the set bound behind authentication.
func (a *App) Collect(admins ...app.Admin) *App {
	a.Admins = append(a.Admins, admins...)
	return a
}

func (a *App) Bind(r chi.Router) {
	r.Route(a.BaseURL, func(r chi.Router) {
		r.Use(a.sm.RequireAuthenticated)
		for _, ad := range a.Admins {
			ad.Bind(r)
		}

		r.Get("/", a.index)
	})
}

// index lists the mounted admins and hands over any pending flash messages,
// such as the one left by restoring an autosave.  Editors read their autosave
// settings from here.
func (a *App) index(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(a.Admins))
	for _, ad := range a.Admins {
		names = append(names, ad.Name())
	}
	flashes := a.sm.Flashes(w, r)
	if flashes == nil {
		flashes = []string{}
	}
	env := app.Envelope{"admins": names, "flashes": flashes}
	if cfg := conf.ConfigFromContext(r.Context()); cfg != nil {
		env["autosave"] = map[string]any{
			"delay": cfg.Autosave.DelaySeconds,
			"path":  a.BaseURL + cfg.Autosave.BasePath,
		}
	}
	app.OK(w, env)
}
