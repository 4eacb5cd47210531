package versions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/autosave/difflines"
	"github.com/jmoiron/monet/pkg/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRecords = `[
	{"id": 2, "created_at": "2024-01-02T00:00:00Z", "title": "Second", "diff": "@@ -1 +1 @@\n-a\n+b"},
	{"id": 1, "created_at": "2024-01-01T00:00:00Z", "title": ""}
]`

// server fakes the autosave endpoints for one document.
type server struct {
	*httptest.Server

	mu    sync.Mutex
	list  string
	fail  map[string]bool
	calls []string
	lists int
}

func newServer(t *testing.T, list string) *server {
	s := &server{list: list, fail: map[string]bool{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		call := r.Method + " " + r.URL.Path
		s.calls = append(s.calls, call)
		fail := s.fail[r.Method]
		list := s.list
		if r.Method == http.MethodGet {
			s.lists++
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && fail:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success": false, "error": "boom"}`))
		case r.Method == http.MethodGet:
			w.Write([]byte(list))
		case fail:
			w.Write([]byte(`{"success": false, "error": "nope"}`))
		default:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) failing(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = true
}

func (s *server) setList(list string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = list
}

func (s *server) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func (s *server) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func newBrowser(srv *server, opts ...Option) *Browser {
	ep := api.NewEndpoints(srv.URL+"/admin/autosave", "doc", 7)
	return New(api.NewClient(srv.Client()), ep, opts...)
}

func TestOpenAndList(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)

	st := b.Snapshot()
	assert.False(st.Open)
	assert.False(st.ListVisible())
	assert.False(st.DiffVisible())

	require.NoError(t, b.Open(context.Background()))
	st = b.Snapshot()
	assert.True(st.ListVisible())
	assert.False(st.EmptyVisible())
	require.Len(t, st.Rows, 2)
	// server order, untouched
	assert.Equal(2, st.Rows[0].ID)
	assert.Equal("Second", st.Rows[0].Title)
	assert.Equal("(untitled)", st.Rows[1].Title)
	assert.True(st.Rows[1].Identical)
	assert.Equal("GET /admin/autosave/doc/7/", srv.lastCall())
}

func TestOpenEmpty(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, `[]`)
	b := newBrowser(srv)

	require.NoError(t, b.Open(context.Background()))
	st := b.Snapshot()
	assert.True(st.EmptyVisible())
	assert.False(b.Select(1))
	assert.False(b.Snapshot().DiffVisible())
}

func TestOpenReplacesCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)

	require.NoError(t, b.Open(ctx))
	srv.setList(`[{"id": 5, "created_at": "2024-02-01T00:00:00Z", "title": "Fresh"}]`)
	b.Close()
	assert.Empty(b.Records(), "closing keeps nothing")

	require.NoError(t, b.Open(ctx))
	records := b.Records()
	require.Len(t, records, 1)
	assert.Equal(5, records[0].ID)
	assert.Equal(2, srv.listCount())
}

func TestOpenFailure(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	srv.failing(http.MethodGet)
	var rec flash.Recorder
	b := newBrowser(srv, WithNotifier(&rec))

	err := b.Open(context.Background())
	assert.True(api.IsKind(err, api.KindTransport))
	assert.True(b.Snapshot().EmptyVisible())
	assert.Equal([]string{MsgLoadFailed}, rec.Texts())
}

func TestSelectAndBack(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)

	// closed browsers select nothing
	assert.False(b.Select(2))

	require.NoError(t, b.Open(context.Background()))
	assert.False(b.Select(99), "unknown ids stay in the list view")
	assert.Equal(ViewList, b.Snapshot().View)

	assert.True(b.Select(2))
	st := b.Snapshot()
	assert.True(st.DiffVisible())
	assert.False(st.ListVisible())
	require.NotNil(t, st.Selected)
	assert.Equal(2, st.Selected.ID)

	b.Back()
	st = b.Snapshot()
	assert.Nil(st.Selected)
	assert.True(st.ListVisible())

	// identical versions show the placeholder
	assert.True(b.Select(1))
	st = b.Snapshot()
	require.Len(t, st.Diff, 1)
	assert.Equal(difflines.Empty, st.Diff[0].Class)
}

func TestScenarioDiff(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, `[{"id":1,"created_at":"2024-01-01T00:00:00Z","title":"Draft","diff":"@@ -1 +1 @@\n-old\n+new"}]`)
	b := newBrowser(srv)

	require.NoError(t, b.Open(context.Background()))
	require.True(t, b.Select(1))
	lines := b.Snapshot().Diff
	require.Len(t, lines, 3)
	assert.Equal(difflines.HunkHeader, lines[0].Class)
	assert.Equal(difflines.Removed, lines[1].Class)
	assert.Equal(difflines.Added, lines[2].Class)
}

func TestEscape(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)
	require.NoError(t, b.Open(context.Background()))

	b.Select(2)
	b.Escape()
	st := b.Snapshot()
	assert.True(st.Open, "escape from a diff only goes back")
	assert.Equal(ViewList, st.View)
	assert.Nil(st.Selected)

	b.Escape()
	assert.False(b.Snapshot().Open)
}

func TestClickOutside(t *testing.T) {
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)
	require.NoError(t, b.Open(context.Background()))
	b.Select(2)
	b.ClickOutside()

	st := b.Snapshot()
	assert.False(t, st.Open)
	assert.Nil(t, st.Selected)
}

func TestDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	b := newBrowser(srv, WithCount(2))
	require.NoError(t, b.Open(ctx))

	b.Select(2)
	require.NoError(t, b.Delete(ctx, 2))
	assert.Equal("DELETE /admin/autosave/versions/2", srv.lastCall())
	st := b.Snapshot()
	assert.Equal(1, st.Count)
	assert.True(st.Active)
	assert.Len(st.Rows, 1)
	assert.Equal(ViewList, st.View, "deleting the selected version returns to the list")
	assert.Nil(st.Selected)

	require.NoError(t, b.Delete(ctx, 1))
	st = b.Snapshot()
	assert.Equal(0, st.Count)
	assert.False(st.Active)
	assert.True(st.EmptyVisible())
}

func TestDeleteWithoutBadgeCount(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	// a page rendered without a count starts the badge at zero
	b := newBrowser(srv)
	require.NoError(t, b.Open(ctx))
	require.Len(t, b.Snapshot().Rows, 2)

	require.NoError(t, b.Delete(ctx, 2))
	st := b.Snapshot()
	assert.Equal(0, st.Count)
	require.Len(t, st.Rows, 1, "a badge already at zero does not empty the list")
	assert.Equal(1, st.Rows[0].ID)
	assert.False(st.EmptyVisible())

	require.NoError(t, b.Delete(ctx, 1))
	assert.True(b.Snapshot().EmptyVisible())
}

func TestDeleteWhileClosed(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	b := newBrowser(srv, WithCount(1))

	require.NoError(t, b.Delete(context.Background(), 1))
	st := b.Snapshot()
	assert.Equal(0, st.Count)
	assert.False(st.Active)

	// the floor holds
	require.NoError(t, b.Delete(context.Background(), 1))
	assert.Equal(0, b.Snapshot().Count)
}

func TestDeleteFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	srv.failing(http.MethodDelete)
	var rec flash.Recorder
	b := newBrowser(srv, WithCount(2), WithNotifier(&rec))
	require.NoError(t, b.Open(ctx))

	err := b.Delete(ctx, 2)
	assert.True(api.IsKind(err, api.KindFailure))
	st := b.Snapshot()
	assert.Len(st.Rows, 2)
	assert.Equal(2, st.Count)
	assert.Equal([]string{MsgDeleteFailed}, rec.Texts())
}

func TestOnNewSave(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)

	assert.False(b.Snapshot().Active)
	b.OnNewSave()
	st := b.Snapshot()
	assert.Equal(1, st.Count)
	assert.True(st.Active)
	assert.Nil(st.Rows, "the list waits for the next open")

	for i := 0; i < 20; i++ {
		b.OnNewSave()
	}
	assert.Equal(MaxCount, b.Snapshot().Count)
	assert.Equal(0, srv.listCount())
}

func TestAutoClear(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	loc := NewMemoryLocation("http://example.com/admin/docs/7?tab=edit")
	b := newBrowser(srv, WithLocation(loc))

	require.NoError(t, b.AutoClear(context.Background()))
	assert.Equal("POST /admin/autosave/doc/7/clear", srv.lastCall())
	require.Len(t, loc.Navigations(), 1)
	assert.Equal("http://example.com/admin/docs/7?autosaves=open&tab=edit", loc.Navigations()[0])

	// the reloaded page comes back with the browser open and the marker gone
	again := newBrowser(srv, WithLocation(loc))
	require.NoError(t, again.Init(context.Background()))
	assert.True(again.Snapshot().ListVisible())
	assert.Equal("http://example.com/admin/docs/7?tab=edit", loc.URL().String())
	assert.Len(loc.Navigations(), 1, "stripping the marker does not load a page")

	// and a plain reload stays closed
	third := newBrowser(srv, WithLocation(loc))
	require.NoError(t, third.Init(context.Background()))
	assert.False(third.Snapshot().Open)
}

func TestAutoClearFailure(t *testing.T) {
	assert := assert.New(t)
	srv := newServer(t, twoRecords)
	srv.failing(http.MethodPost)
	loc := NewMemoryLocation("http://example.com/admin/docs/7")
	var rec flash.Recorder
	b := newBrowser(srv, WithLocation(loc), WithNotifier(&rec), WithCount(3))

	assert.Error(b.AutoClear(context.Background()))
	assert.Empty(loc.Navigations())
	assert.Equal(3, b.Snapshot().Count)
	assert.Equal([]string{MsgClearFailed}, rec.Texts())
}

func TestRestore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	loc := NewMemoryLocation("http://example.com/admin/docs/7")

	var prompts []string
	answer := false
	b := newBrowser(srv, WithLocation(loc), WithConfirmer(ConfirmFunc(func(p string) bool {
		prompts = append(prompts, p)
		return answer
	})))
	require.NoError(t, b.Open(ctx))

	assert.ErrorIs(b.Restore(ctx), ErrNoSelection)
	assert.Empty(prompts)

	b.Select(2)
	assert.ErrorIs(b.Restore(ctx), ErrNotConfirmed)
	require.Len(t, prompts, 1)
	assert.True(strings.Contains(prompts[0], `"Second"`))
	assert.Equal("GET /admin/autosave/doc/7/", srv.lastCall(), "no request without confirmation")

	answer = true
	require.NoError(t, b.Restore(ctx))
	assert.Equal("POST /admin/autosave/versions/2/restore", srv.lastCall())
	assert.Equal(1, loc.Reloads())
}

func TestRestoreFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := newServer(t, twoRecords)
	srv.failing(http.MethodPost)
	loc := NewMemoryLocation("http://example.com/admin/docs/7")
	var rec flash.Recorder
	b := newBrowser(srv,
		WithLocation(loc),
		WithNotifier(&rec),
		WithConfirmer(ConfirmFunc(func(string) bool { return true })),
	)
	require.NoError(t, b.Open(ctx))
	b.Select(2)

	assert.Error(b.Restore(ctx))
	assert.Equal(0, loc.Reloads())
	assert.True(b.Snapshot().DiffVisible(), "stays on the diff")
	assert.Equal([]string{MsgRestoreFailed}, rec.Texts())
}

func TestRestoreDeniedByDefault(t *testing.T) {
	srv := newServer(t, twoRecords)
	b := newBrowser(srv)
	require.NoError(t, b.Open(context.Background()))
	b.Select(2)
	assert.ErrorIs(t, b.Restore(context.Background()), ErrNotConfirmed)
}
