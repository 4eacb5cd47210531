package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// http helpers

func Http500(msg string, w http.ResponseWriter, err error) {
	slog.Error(msg, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func Http404(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

func GetIntParam(r *http.Request, name string, _default int) int {
	x := _default
	if s := chi.URLParam(r, name); len(s) > 0 {
		x, _ = strconv.Atoi(s)
	}
	return x
}

// An Envelope is the JSON object every api endpoint answers with.
type Envelope map[string]any

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// OK writes a successful envelope with the extra members in env.
func OK(w http.ResponseWriter, env Envelope) {
	if env == nil {
		env = Envelope{}
	}
	env["success"] = true
	JSON(w, http.StatusOK, env)
}

// Fail writes an unsuccessful envelope carrying msg as its error.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{"success": false, "error": msg})
}

// JSON500 logs err and writes an opaque internal error envelope.
func JSON500(msg string, w http.ResponseWriter, err error) {
	slog.Error(msg, "err", err)
	Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
