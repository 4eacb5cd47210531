// Package versions implements the autosave version browser: a modal that
// lists a document's autosaved versions, shows how each differs from the
// saved document, and deletes, clears or restores them.
//
// The browser is a small state machine.  It is either closed or open, and
// when open it shows either the list of versions or the diff of the one
// selected version.  What is visible is always derived from that state.
package versions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/flash"
)

// MaxCount caps the unseen-versions badge.
const MaxCount = 10

// The reopen marker is added to the location before a reload that should
// land back in the open browser.
const (
	ReopenParam = "autosaves"
	ReopenValue = "open"
)

// Messages shown through the notifier.
const (
	MsgLoadFailed    = "Could not load autosaves"
	MsgDeleteFailed  = "Could not delete autosave"
	MsgClearFailed   = "Could not clear autosaves"
	MsgRestoreFailed = "Could not restore autosave"
)

var (
	// ErrNoSelection is returned by Restore when no version is selected.
	ErrNoSelection = errors.New("versions: no version selected")
	// ErrNotConfirmed is returned by Restore when the user backs out.
	ErrNotConfirmed = errors.New("versions: restore not confirmed")
)

// A View is what an open browser shows.
type View int

const (
	ViewList View = iota
	ViewDiff
)

func (v View) String() string {
	if v == ViewDiff {
		return "diff"
	}
	return "list"
}

// A Confirmer asks the user a yes or no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// deny is the default Confirmer; restoring is destructive, so nothing is
// restored unless something asks the user.
var deny = ConfirmFunc(func(string) bool { return false })

// A Browser is the version browser for one document.
type Browser struct {
	client   *api.Client
	ep       api.Endpoints
	notifier flash.Notifier
	loc      Location
	confirm  Confirmer

	mu      sync.Mutex
	open    bool
	view    View
	loading bool
	// opens increments on every open and close, so a fetch that returns
	// after its modal was closed is dropped
	opens    uint64
	records  []api.Record
	selected *api.Record
	count    int
}

// An Option configures a Browser.
type Option func(*Browser)

// WithNotifier sets where error messages go.
func WithNotifier(n flash.Notifier) Option {
	return func(b *Browser) { b.notifier = n }
}

// WithLocation sets the page the browser reads its reopen marker from and
// reloads after restoring or clearing.
func WithLocation(l Location) Option {
	return func(b *Browser) { b.loc = l }
}

// WithConfirmer sets who is asked before a restore.
func WithConfirmer(c Confirmer) Option {
	return func(b *Browser) { b.confirm = c }
}

// WithCount sets the initial badge count, eg. from the rendered page.
func WithCount(n int) Option {
	return func(b *Browser) { b.count = clamp(n) }
}

// New returns a closed Browser for the document at ep.
func New(client *api.Client, ep api.Endpoints, opts ...Option) *Browser {
	if client == nil {
		client = api.NewClient(nil)
	}
	b := &Browser{
		client:   client,
		ep:       ep,
		notifier: flash.Discard,
		loc:      NewMemoryLocation(""),
		confirm:  deny,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init opens the browser if the location carries the reopen marker.  The
// marker is removed first so that reloading the page does not reopen it.
func (b *Browser) Init(ctx context.Context) error {
	u := b.loc.URL()
	q := u.Query()
	if !q.Has(ReopenParam) {
		return nil
	}
	q.Del(ReopenParam)
	u.RawQuery = q.Encode()
	b.loc.Replace(u)
	return b.Open(ctx)
}

// Open shows the list view and fetches a fresh list of versions, replacing
// whatever was cached.
func (b *Browser) Open(ctx context.Context) error {
	b.mu.Lock()
	b.opens++
	seq := b.opens
	b.open = true
	b.view = ViewList
	b.selected = nil
	b.records = nil
	b.loading = true
	b.mu.Unlock()

	records, err := b.client.Records(ctx, b.ep.List)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.opens {
		return nil
	}
	b.loading = false
	if err != nil {
		slog.Error("loading autosaves", "url", b.ep.List, "err", err)
		b.notifier.Notify(MsgLoadFailed, flash.Error)
		return err
	}
	b.records = records
	return nil
}

// Close hides the browser and forgets the fetched versions.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	b.open = false
	b.view = ViewList
	b.selected = nil
	b.records = nil
	b.loading = false
}

// ClickOutside is a click on the page behind the modal; it closes it.
func (b *Browser) ClickOutside() {
	b.Close()
}

// Select shows the diff for the cached version id.  It reports false, and
// changes nothing, if the browser is closed or id is not in the list.
func (b *Browser) Select(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	i := b.index(id)
	if i < 0 {
		return false
	}
	rec := b.records[i]
	b.selected = &rec
	b.view = ViewDiff
	return true
}

// Back returns from the diff view to the list.
func (b *Browser) Back() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.back()
}

func (b *Browser) back() {
	b.selected = nil
	b.view = ViewList
}

// Escape backs out one level: to the list if a version is selected, and
// closed otherwise.
func (b *Browser) Escape() {
	b.mu.Lock()
	if b.selected != nil {
		b.back()
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.Close()
}

// Delete removes version id on the server, then from the list and the badge.
func (b *Browser) Delete(ctx context.Context, id int) error {
	if _, err := b.client.Delete(ctx, b.ep.Delete(id)); err != nil {
		slog.Error("deleting autosave", "id", id, "err", err)
		b.notifier.Notify(MsgDeleteFailed, flash.Error)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(id); i >= 0 {
		b.records = append(b.records[:i:i], b.records[i+1:]...)
	}
	if b.selected != nil && b.selected.ID == id {
		b.back()
	}
	if b.count > 0 {
		b.count--
		if b.count == 0 {
			// as far as the badge knows there is nothing left to list
			b.records = nil
		}
	}
	return nil
}

// AutoClear deletes every version identical to the saved document, then
// loads the page again with the browser reopened.
func (b *Browser) AutoClear(ctx context.Context) error {
	if _, err := b.client.Post(ctx, b.ep.AutoClear, "", nil, nil); err != nil {
		slog.Error("clearing autosaves", "url", b.ep.AutoClear, "err", err)
		b.notifier.Notify(MsgClearFailed, flash.Error)
		return err
	}
	u := b.loc.URL()
	q := u.Query()
	q.Set(ReopenParam, ReopenValue)
	u.RawQuery = q.Encode()
	b.loc.Navigate(u)
	return nil
}

// Restore replaces the saved document with the selected version, after
// asking the user, and reloads the page.  Unsaved edits on the page are lost.
func (b *Browser) Restore(ctx context.Context) error {
	b.mu.Lock()
	sel := b.selected
	b.mu.Unlock()
	if sel == nil {
		return ErrNoSelection
	}

	prompt := fmt.Sprintf("Restore %q from %s? The saved document and any unsaved changes will be replaced.",
		sel.DisplayTitle(), sel.CreatedAt.Local().Format(time.DateTime))
	if !b.confirm.Confirm(prompt) {
		return ErrNotConfirmed
	}

	if _, err := b.client.Post(ctx, b.ep.Restore(sel.ID), "", nil, nil); err != nil {
		slog.Error("restoring autosave", "id", sel.ID, "err", err)
		b.notifier.Notify(MsgRestoreFailed, flash.Error)
		return err
	}
	b.loc.Reload()
	return nil
}

// OnNewSave bumps the badge after an autosave.  The list itself is only
// refreshed the next time the browser opens.
func (b *Browser) OnNewSave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count = clamp(b.count + 1)
}

// index returns the position of id in the cache, or -1.  b.mu must be held.
func (b *Browser) index(id int) int {
	for i, r := range b.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxCount:
		return MaxCount
	}
	return n
}
