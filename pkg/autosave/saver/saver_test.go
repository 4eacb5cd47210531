package saver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/countdown"
	"github.com/jmoiron/monet/pkg/flash"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endpoint is a fake save endpoint that records what it receives.
type endpoint struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]string
	ids      []string
	response string
	during   func()
}

func newEndpoint(t *testing.T) *endpoint {
	e := &endpoint{response: `{"success": true, "id": 1}`}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form := map[string]string{}
		for k, vs := range r.MultipartForm.Value {
			form[k] = vs[0]
		}
		e.mu.Lock()
		e.requests = append(e.requests, form)
		e.ids = append(e.ids, r.Header.Get(api.RequestIDHeader))
		during, response := e.during, e.response
		e.mu.Unlock()

		if during != nil {
			during()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(e.Close)
	return e
}

func (e *endpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func (e *endpoint) last() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

func (e *endpoint) setDuring(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.during = fn
}

func (e *endpoint) respond(body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.response = body
}

// tick advances clock one second at a time, waiting after each for the timer
// to count down.  Clock effects run on their own goroutines.
func tick(t *testing.T, clock clockwork.FakeClock, timer *countdown.Timer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		want := timer.Remaining() - 1
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return timer.Remaining() == want }, time.Second, time.Millisecond)
	}
}

// requests waits for ep to have received n requests.
func requests(t *testing.T, ep *endpoint, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return ep.count() == n }, time.Second, time.Millisecond)
}

// steady checks that ep stays at n requests for a while.
func steady(t *testing.T, ep *endpoint, n int) {
	t.Helper()
	assert.Never(t, func() bool { return ep.count() != n }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestNewValidates(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
	_, err = New("http://x/", nil, WithDelay(0))
	assert.Error(t, err)

	s, err := New("http://x/", nil)
	assert.NoError(t, err)
	assert.Equal(t, DefaultDelay, s.Timer().Total())
}

func TestSaveOnlyWhenDirty(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ep := newEndpoint(t)

	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	// nothing edited, nothing sent
	assert.NoError(s.Save(ctx))
	assert.Equal(0, ep.count())

	title.Set("Hello")
	assert.True(s.Dirty())
	assert.NoError(s.Save(ctx))
	assert.Equal(1, ep.count())
	assert.Equal("Hello", ep.last()["title"])
	assert.False(s.Dirty())
	assert.False(s.Timer().Running(), "a successful save disarms the countdown")

	assert.NoError(s.Save(ctx))
	assert.Equal(1, ep.count(), "clean again after success")

	title.Set("Hello, world")
	assert.NoError(s.Save(ctx))
	assert.Equal(2, ep.count())
}

func TestForceSave(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	body := NewInput("content", "draft")
	s, err := New(ep.URL, []Field{body}, WithClock(clock), WithDelay(10))
	require.NoError(t, err)

	// clean, but forced
	assert.NoError(s.ForceSave(ctx))
	assert.Equal(1, ep.count())
	assert.Equal("draft", ep.last()["content"])

	body.Set("draft 2")
	assert.True(s.Timer().Running())
	assert.NoError(s.ForceSave(ctx))
	assert.Equal(2, ep.count())
	assert.False(s.Timer().Running())

	// the cancelled countdown never fires a second save
	clock.Advance(time.Minute)
	steady(t, ep, 2)
}

func TestDebounce(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title}, WithClock(clock), WithDelay(5))
	require.NoError(t, err)

	title.Set("a")
	tick(t, clock, s.Timer(), 2)
	title.Set("ab")
	tick(t, clock, s.Timer(), 2)
	title.Set("abc")
	assert.Equal(0, ep.count())
	assert.Equal(1, s.Timer().Remaining())

	// the deadline is five seconds after the first edit, not the last
	clock.Advance(time.Second)
	requests(t, ep, 1)
	assert.Equal("abc", ep.last()["title"])
	assert.Eventually(func() bool { return !s.Dirty() }, time.Second, time.Millisecond)
}

func TestScenarioSingleEdit(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	title := NewInput("title", "")
	ignored := NewInput("", "unnamed inputs are not sent")
	s, err := New(ep.URL, []Field{title, ignored}, WithClock(clock), WithDelay(5))
	require.NoError(t, err)

	title.Set("My post")
	tick(t, clock, s.Timer(), 4)
	clock.Advance(999 * time.Millisecond)
	steady(t, ep, 0)

	clock.Advance(time.Millisecond)
	requests(t, ep, 1)
	assert.Equal(map[string]string{"title": "My post"}, ep.last())
	ep.mu.Lock()
	assert.Len(ep.ids[0], 26, "request carries a ulid")
	ep.mu.Unlock()

	clock.Advance(time.Hour)
	steady(t, ep, 1)
}

func TestCompletionAfterManualSave(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title}, WithClock(clock), WithDelay(5))
	require.NoError(t, err)

	title.Set("x")
	tick(t, clock, s.Timer(), 4)
	// saving by hand just before the deadline leaves nothing for the timer
	assert.NoError(s.Save(context.Background()))
	clock.Advance(time.Second)
	steady(t, ep, 1)
}

func TestFailureKeepsDirty(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ep := newEndpoint(t)
	ep.respond(`{"success": false, "error": "document is locked"}`)

	var rec flash.Recorder
	var errs []error
	var successes int
	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title},
		WithClock(clockwork.NewFakeClock()),
		WithNotifier(&rec),
		WithError(func(err error) { errs = append(errs, err) }),
		WithSuccess(func(api.Payload) { successes++ }),
	)
	require.NoError(t, err)

	title.Set("x")
	err = s.Save(ctx)
	assert.True(api.IsKind(err, api.KindFailure))
	assert.True(s.Dirty())
	require.Len(t, errs, 1)
	assert.Equal(err, errs[0])
	assert.Equal(0, successes)
	assert.Equal([]string{MsgSaving, MsgFailed}, rec.Texts())

	// malformed responses are failures too
	ep.respond(`not json`)
	err = s.Save(ctx)
	assert.True(api.IsKind(err, api.KindMalformed))
	assert.True(s.Dirty())

	// and the retry goes through once the server recovers
	ep.respond(`{"success": true, "versions": 2}`)
	var payload api.Payload
	s.onSuccess = func(p api.Payload) { payload = p }
	assert.NoError(s.Save(ctx))
	assert.False(s.Dirty())
	n, _ := payload.Int("versions")
	assert.Equal(2, n)
	assert.Equal(3, ep.count())
	last, _ := rec.Last()
	assert.Equal(MsgSaved, last.Text)
}

func TestTransportFailure(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	url := ep.URL
	ep.Close()

	var rec flash.Recorder
	title := NewInput("title", "")
	s, err := New(url, []Field{title}, WithClock(clockwork.NewFakeClock()), WithNotifier(&rec))
	require.NoError(t, err)

	title.Set("x")
	err = s.Save(context.Background())
	assert.True(api.IsKind(err, api.KindTransport))
	assert.True(s.Dirty())
	last, _ := rec.Last()
	assert.Equal(flash.Error, last.Level)
}

func TestEditDuringSave(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title}, WithClock(clock), WithDelay(5))
	require.NoError(t, err)

	title.Set("first")
	ep.setDuring(func() { title.Set("second") })
	assert.NoError(s.Save(context.Background()))
	assert.Equal("first", ep.last()["title"])

	// the edit that raced the request is still unsaved and scheduled
	assert.True(s.Dirty())
	assert.True(s.Timer().Running())

	ep.setDuring(nil)
	tick(t, clock, s.Timer(), 5)
	requests(t, ep, 2)
	assert.Equal("second", ep.last()["title"])
	assert.Eventually(func() bool { return !s.Dirty() }, time.Second, time.Millisecond)
}

func TestSavesAreSerialized(t *testing.T) {
	assert := assert.New(t)

	var inflight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, []Field{NewInput("title", "x")}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(s.ForceSave(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(int32(1), atomic.LoadInt32(&peak))
}

func TestCountdownDisplay(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	clock := clockwork.NewFakeClock()

	display := &shown{}
	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title},
		WithClock(clock),
		WithDelay(62),
		WithDisplay(display),
	)
	require.NoError(t, err)

	title.Set("x")
	tick(t, clock, s.Timer(), 2)
	assert.Equal([]string{"1:02", "1:01", "1:00"}, display.texts())

	tick(t, clock, s.Timer(), 60)
	requests(t, ep, 1)
	assert.Eventually(func() bool { return display.last() == "" }, time.Second, time.Millisecond,
		"display clears once saved")
	texts := display.texts()
	assert.Equal("0:00", texts[len(texts)-2])
}

func TestFailedCompletionShowsZero(t *testing.T) {
	assert := assert.New(t)
	ep := newEndpoint(t)
	ep.respond(`{"success": false, "error": "disk full"}`)
	clock := clockwork.NewFakeClock()

	display := &shown{}
	errs := make(chan error, 1)
	title := NewInput("title", "")
	s, err := New(ep.URL, []Field{title},
		WithClock(clock),
		WithDelay(2),
		WithDisplay(display),
		WithError(func(err error) { errs <- err }),
	)
	require.NoError(t, err)

	title.Set("x")
	tick(t, clock, s.Timer(), 2)
	select {
	case err := <-errs:
		assert.True(api.IsKind(err, api.KindFailure))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the failed save")
	}

	// the countdown ran out, so it reads 0:00 rather than its last tick
	assert.Equal([]string{"0:02", "0:01", "0:00"}, display.texts())
	assert.False(s.Timer().Running())
	assert.True(s.Dirty())
}

// shown is a Display that remembers everything it was given.
type shown struct {
	mu   sync.Mutex
	seen []string
}

func (d *shown) SetText(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, s)
}

func (d *shown) texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

func (d *shown) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.seen) == 0 {
		return ""
	}
	return d.seen[len(d.seen)-1]
}

func TestUnwatchedFieldIgnored(t *testing.T) {
	ep := newEndpoint(t)
	s, err := New(ep.URL, []Field{NewInput("title", "")}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	s.Changed(NewInput("other", "x"))
	s.Changed(nil)
	assert.False(t, s.Dirty())
	assert.False(t, s.Timer().Running())
}

func TestInput(t *testing.T) {
	assert := assert.New(t)
	in := NewInput("title", "a")
	var calls int
	in.OnChange(func(f Field) {
		calls++
		assert.Equal("title", f.Name())
	})
	in.Set("a")
	assert.Equal(0, calls, "same value is not a change")
	in.Set("b")
	assert.Equal(1, calls)
	assert.Equal("b", in.Value())
}
