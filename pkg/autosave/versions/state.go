package versions

import (
	"time"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/autosave/difflines"
)

// EmptyMessage is shown in place of an empty list.
const EmptyMessage = "No autosaves for this document."

// A Row is one entry of the rendered list.
type Row struct {
	ID        int
	Title     string
	CreatedAt time.Time
	// Identical is set for versions with no differences from the saved document.
	Identical bool
}

// State is a snapshot of everything the browser would render.
type State struct {
	Open    bool
	View    View
	Loading bool
	Rows    []Row
	// Selected and Diff are set only in the diff view.
	Selected *api.Record
	Diff     []difflines.Line
	// Count and Active drive the trigger's badge.
	Count  int
	Active bool
}

// ListVisible reports whether the list panel is showing.
func (s State) ListVisible() bool {
	return s.Open && s.View == ViewList
}

// DiffVisible reports whether the diff panel is showing.
func (s State) DiffVisible() bool {
	return s.Open && s.View == ViewDiff
}

// EmptyVisible reports whether the list panel shows the empty message.
func (s State) EmptyVisible() bool {
	return s.ListVisible() && !s.Loading && len(s.Rows) == 0
}

// Snapshot returns the browser's current state.
func (b *Browser) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := State{
		Open:    b.open,
		View:    b.view,
		Loading: b.loading,
		Count:   b.count,
		Active:  b.count > 0,
	}
	for _, r := range b.records {
		st.Rows = append(st.Rows, Row{
			ID:        r.ID,
			Title:     r.DisplayTitle(),
			CreatedAt: r.CreatedAt,
			Identical: len(r.Diff) == 0,
		})
	}
	if b.selected != nil {
		sel := *b.selected
		st.Selected = &sel
		st.Diff = difflines.Render(sel.Diff)
	}
	return st
}

// Records returns a copy of the cached versions in server order.
func (b *Browser) Records() []api.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Record(nil), b.records...)
}
