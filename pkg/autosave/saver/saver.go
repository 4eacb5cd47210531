// Package saver debounces edits to a set of form fields into periodic
// autosave requests.
//
// The first edit after a save arms a countdown; later edits in the same window
// do not push the deadline back, so a burst of typing ends in a single save at
// the original deadline.  A save that fails leaves the fields dirty, so the
// next edit or a forced save sends them again.
package saver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/countdown"
	"github.com/jmoiron/monet/pkg/flash"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
)

// DefaultDelay is the number of seconds between the first edit and its save.
const DefaultDelay = 300

// Messages shown through the notifier.
const (
	MsgSaving = "Autosaving…"
	MsgSaved  = "Autosaved"
	MsgFailed = "Autosave failed"
)

// A Field is a named input whose value is sent with every save.
type Field interface {
	Name() string
	Value() string
}

// A ChangeSource is a Field that can report its own changes.  Fields that
// implement it are subscribed to automatically.
type ChangeSource interface {
	OnChange(fn func(Field))
}

// A Display shows the time left before the next autosave.
type Display interface {
	SetText(text string)
}

// DisplayFunc adapts a function to a Display.
type DisplayFunc func(text string)

func (f DisplayFunc) SetText(text string) { f(text) }

// A Saver watches fields and posts them to a URL when they change.
type Saver struct {
	url      string
	fields   []Field
	delay    int
	clock    clockwork.Clock
	client   *api.Client
	notifier flash.Notifier
	display  Display

	onSuccess func(api.Payload)
	onError   func(error)

	timer *countdown.Timer

	mu    sync.Mutex
	dirty bool
	// edits counts changes so a save can tell whether more arrived while it
	// was in flight.
	edits uint64

	// saving serializes performs; a second save waits for the first.
	saving sync.Mutex
}

// An Option configures a Saver.
type Option func(*Saver)

// WithDelay sets the countdown length in seconds.
func WithDelay(seconds int) Option {
	return func(s *Saver) { s.delay = seconds }
}

// WithDisplay shows the countdown as m:ss on d.
func WithDisplay(d Display) Option {
	return func(s *Saver) { s.display = d }
}

// WithSuccess is called with the response payload after every successful save.
func WithSuccess(fn func(api.Payload)) Option {
	return func(s *Saver) { s.onSuccess = fn }
}

// WithError is called with the error after every failed save.  Errors from
// the server are *api.Error values.
func WithError(fn func(error)) Option {
	return func(s *Saver) { s.onError = fn }
}

// WithNotifier sets where status messages go.  The default discards them.
func WithNotifier(n flash.Notifier) Option {
	return func(s *Saver) { s.notifier = n }
}

// WithClient sets the client used to post saves.
func WithClient(c *api.Client) Option {
	return func(s *Saver) { s.client = c }
}

// WithClock schedules the countdown on c.
func WithClock(c clockwork.Clock) Option {
	return func(s *Saver) { s.clock = c }
}

// New returns a Saver posting fields to url.
func New(url string, fields []Field, opts ...Option) (*Saver, error) {
	if len(url) == 0 {
		return nil, fmt.Errorf("saver: a save url is required")
	}
	s := &Saver{
		url:      url,
		fields:   fields,
		delay:    DefaultDelay,
		clock:    clockwork.NewRealClock(),
		notifier: flash.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.delay <= 0 {
		return nil, fmt.Errorf("saver: delay must be positive, got %d", s.delay)
	}
	if s.client == nil {
		s.client = api.NewClient(nil)
	}

	s.timer = countdown.New(s.delay, countdown.WithClock(s.clock)).
		OnStart(s.show).
		OnTick(s.show).
		OnCancel(func() { s.setText("") }).
		OnComplete(func() {
			// a failed save leaves 0:00 up rather than the last tick
			s.show(0)
			// errors have already gone to the error callback
			_ = s.perform(context.Background(), false)
		})

	for _, f := range fields {
		if src, ok := f.(ChangeSource); ok {
			src.OnChange(s.Changed)
		}
	}
	return s, nil
}

// Changed records an edit to f and arms the countdown if it is not already
// running.  Edits to fields the Saver does not watch are ignored.
func (s *Saver) Changed(f Field) {
	if !s.watches(f) {
		return
	}
	s.mu.Lock()
	s.dirty = true
	s.edits++
	s.mu.Unlock()

	s.timer.Start()
}

// Dirty reports whether there are edits that have not been saved.
func (s *Saver) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Timer returns the countdown driving the Saver.
func (s *Saver) Timer() *countdown.Timer {
	return s.timer
}

// Save sends the fields if there are unsaved edits, and does nothing otherwise.
func (s *Saver) Save(ctx context.Context) error {
	if !s.Dirty() {
		return nil
	}
	return s.perform(ctx, false)
}

// ForceSave stops the countdown and sends the fields whether or not they
// have changed.
func (s *Saver) ForceSave(ctx context.Context) error {
	s.timer.Cancel()
	return s.perform(ctx, true)
}

// Stop disarms the countdown without saving.
func (s *Saver) Stop() {
	s.timer.Cancel()
}

func (s *Saver) perform(ctx context.Context, force bool) error {
	s.saving.Lock()
	defer s.saving.Unlock()

	// checked after queueing: a save ahead of us may have made this one moot
	s.mu.Lock()
	if !force && !s.dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.edits
	s.mu.Unlock()

	body, contentType, err := api.EncodeForm(s.serialize())
	if err != nil {
		return s.failed(err, "")
	}

	id := ulid.Make().String()
	s.notifier.Notify(MsgSaving, flash.Info)
	payload, err := s.client.Post(ctx, s.url, contentType, body, http.Header{api.RequestIDHeader: {id}})
	if err != nil {
		return s.failed(err, id)
	}

	s.mu.Lock()
	clean := s.edits == gen
	if clean {
		s.dirty = false
	}
	s.mu.Unlock()

	// edits made during the request re-armed the countdown; leave it running
	if clean {
		s.timer.Cancel()
	}
	slog.Debug("autosaved", "url", s.url, "request", id, "clean", clean)
	s.notifier.Notify(MsgSaved, flash.Success)
	if s.onSuccess != nil {
		s.onSuccess(payload)
	}
	return nil
}

func (s *Saver) failed(err error, id string) error {
	slog.Warn("autosave failed", "url", s.url, "request", id, "err", err)
	s.notifier.Notify(MsgFailed, flash.Error)
	if s.onError != nil {
		s.onError(err)
	}
	return err
}

// serialize snapshots every named field.
func (s *Saver) serialize() []api.Field {
	out := make([]api.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if name := f.Name(); len(name) > 0 {
			out = append(out, api.Field{Name: name, Value: f.Value()})
		}
	}
	return out
}

func (s *Saver) watches(f Field) bool {
	if f == nil {
		return false
	}
	name := f.Name()
	for _, w := range s.fields {
		if w.Name() == name {
			return true
		}
	}
	return false
}

func (s *Saver) show(remaining int) {
	s.setText(countdown.Format(remaining))
}

func (s *Saver) setText(text string) {
	if s.display != nil {
		s.display.SetText(text)
	}
}
