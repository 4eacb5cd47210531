package autosave

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/db/monarch"
	"github.com/jmoiron/monet/pkg/autosave/api"
)

// maxForm bounds the in-memory size of a posted autosave.
const maxForm = 8 << 20

// A Flasher leaves a message for the next page the user loads.
type Flasher interface {
	AddFlash(w http.ResponseWriter, r *http.Request, msg string)
}

// A Handler serves the autosave endpoints for every registered content type.
type Handler struct {
	db      db.DB
	svc     *Service
	sources map[string]Source
	flash   Flasher

	BaseURL string
}

// NewHandler returns a handler storing autosaves in database.
func NewHandler(database db.DB) *Handler {
	return &Handler{
		db:      database,
		svc:     NewService(database),
		sources: map[string]Source{},
		BaseURL: "/autosave",
	}
}

func (h *Handler) WithBaseURL(url string) *Handler {
	h.BaseURL = url
	return h
}

// WithKeep sets how many versions are kept per piece of content.
func (h *Handler) WithKeep(n int) *Handler {
	h.svc.WithKeep(n)
	return h
}

// WithFlasher sets where restore confirmations are left.
func (h *Handler) WithFlasher(f Flasher) *Handler {
	h.flash = f
	return h
}

// Register makes autosaves of contentType available, diffed against and
// restored into src.
func (h *Handler) Register(contentType string, src Source) *Handler {
	h.sources[contentType] = src
	return h
}

func (h *Handler) Name() string { return "autosave" }

func (h *Handler) Migrate() error {
	m, err := monarch.NewManager(h.db)
	if err != nil {
		return err
	}
	return m.Upgrade(Migrations())
}

func (h *Handler) Bind(r chi.Router) {
	r.Route(h.BaseURL, func(r chi.Router) {
		r.Post("/{type}/{id:\\d+}/", h.save)
		r.Get("/{type}/{id:\\d+}/", h.list)
		r.Post("/{type}/{id:\\d+}/clear", h.clear)
		r.Delete("/versions/{aid:\\d+}", h.delete)
		r.Post("/versions/{aid:\\d+}/restore", h.restore)
	})
}

// content resolves the {type}/{id} in the url to its source and saved
// content.  It writes an error response and returns ok=false on failure.
func (h *Handler) content(w http.ResponseWriter, r *http.Request) (typ string, id int, saved string, ok bool) {
	typ = chi.URLParam(r, "type")
	id = app.GetIntParam(r, "id", -1)
	src, found := h.sources[typ]
	if !found {
		app.Fail(w, http.StatusNotFound, fmt.Sprintf("unknown content type %q", typ))
		return typ, id, "", false
	}
	_, saved, err := src.Saved(id)
	if errors.Is(err, sql.ErrNoRows) {
		app.Fail(w, http.StatusNotFound, fmt.Sprintf("no %s with id %d", typ, id))
		return typ, id, "", false
	}
	if err != nil {
		app.JSON500("loading saved content", w, err)
		return typ, id, "", false
	}
	return typ, id, saved, true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	typ, id, _, ok := h.content(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxForm); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		app.Fail(w, http.StatusBadRequest, "invalid form")
		return
	}

	aid, err := h.svc.Save(typ, id, r.FormValue("content"), r.FormValue("title"))
	if err != nil {
		app.JSON500("saving autosave", w, err)
		return
	}
	count, err := h.svc.Count(typ, id)
	if err != nil {
		app.JSON500("counting autosaves", w, err)
		return
	}

	slog.Info("autosaved", "type", typ, "id", id, "autosave", aid, "request", r.Header.Get(api.RequestIDHeader))
	app.OK(w, app.Envelope{"id": aid, "count": count})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	typ, id, saved, ok := h.content(w, r)
	if !ok {
		return
	}
	autosaves, err := h.svc.LoadWithDiffs(typ, id, saved)
	if err != nil {
		app.JSON500("listing autosaves", w, err)
		return
	}
	records := make([]api.Record, len(autosaves))
	for i, as := range autosaves {
		records[i] = as.Record()
	}
	app.JSON(w, http.StatusOK, records)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	typ, id, saved, ok := h.content(w, r)
	if !ok {
		return
	}
	n, err := h.svc.ClearIdentical(typ, id, saved)
	if err != nil {
		app.JSON500("clearing autosaves", w, err)
		return
	}
	slog.Info("cleared autosaves", "type", typ, "id", id, "count", n)
	app.OK(w, app.Envelope{"cleared": n})
}

// autosave loads the {aid} in the url.  It writes an error response and
// returns nil on failure.
func (h *Handler) autosave(w http.ResponseWriter, r *http.Request) *Autosave {
	aid := app.GetIntParam(r, "aid", -1)
	as, err := h.svc.Get(aid)
	if errors.Is(err, sql.ErrNoRows) {
		app.Fail(w, http.StatusNotFound, fmt.Sprintf("no autosave with id %d", aid))
		return nil
	}
	if err != nil {
		app.JSON500("getting autosave", w, err)
		return nil
	}
	return as
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	as := h.autosave(w, r)
	if as == nil {
		return
	}
	if err := h.svc.Delete(as.ID); err != nil {
		app.JSON500("deleting autosave", w, err)
		return
	}
	slog.Info("deleted autosave", "autosave", as.ID)
	app.OK(w, nil)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	as := h.autosave(w, r)
	if as == nil {
		return
	}
	src, ok := h.sources[as.ContentType]
	if !ok {
		app.Fail(w, http.StatusNotFound, fmt.Sprintf("unknown content type %q", as.ContentType))
		return
	}
	if err := src.Restore(as.ContentID, as.Title, as.Content); err != nil {
		app.JSON500("restoring autosave", w, err)
		return
	}
	// the document now matches this version, so it has nothing left to offer
	if err := h.svc.Delete(as.ID); err != nil {
		slog.Warn("deleting restored autosave", "autosave", as.ID, "err", err)
	}

	slog.Info("restored autosave", "type", as.ContentType, "id", as.ContentID, "autosave", as.ID)
	if h.flash != nil {
		h.flash.AddFlash(w, r, fmt.Sprintf("Restored the version from %s", as.CreatedAt.Local().Format(time.DateTime)))
	}
	app.OK(w, nil)
}
