package docs

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/db/monarch"
)

// An App serves documents to the admin.
type App struct {
	db db.DB
}

func NewApp(db db.DB) *App {
	return &App{db: db}
}

func (a *App) Name() string { return "docs" }

func (a *App) Migrate() error {
	m, err := monarch.NewManager(a.db)
	if err != nil {
		return err
	}
	return m.Upgrade(docMigrations)
}

func (a *App) Bind(r chi.Router) {
	r.Post("/docs/", a.add)
	r.Get("/docs/{id:\\d+}", a.get)
	r.Post("/docs/{id:\\d+}", a.save)
}

func (a *App) get(w http.ResponseWriter, r *http.Request) {
	d, err := NewService(a.db).Get(app.GetIntParam(r, "id", -1))
	if errors.Is(err, sql.ErrNoRows) {
		app.Fail(w, http.StatusNotFound, "no such document")
		return
	}
	if err != nil {
		app.JSON500("getting document", w, err)
		return
	}
	app.OK(w, app.Envelope{"document": d})
}

func (a *App) add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.Fail(w, http.StatusBadRequest, "invalid form")
		return
	}
	d := &Document{Title: r.Form.Get("title"), Content: r.Form.Get("content")}
	if err := NewService(a.db).Create(d); err != nil {
		app.JSON500("creating document", w, err)
		return
	}
	slog.Info("created document", "id", d.ID)
	app.JSON(w, http.StatusCreated, app.Envelope{"success": true, "document": d})
}

func (a *App) save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.Fail(w, http.StatusBadRequest, "invalid form")
		return
	}
	d := &Document{
		ID:      app.GetIntParam(r, "id", -1),
		Title:   r.Form.Get("title"),
		Content: r.Form.Get("content"),
	}
	err := NewService(a.db).Save(d)
	if errors.Is(err, sql.ErrNoRows) {
		app.Fail(w, http.StatusNotFound, "no such document")
		return
	}
	if err != nil {
		app.JSON500("saving document", w, err)
		return
	}
	app.OK(w, app.Envelope{"document": d})
}
