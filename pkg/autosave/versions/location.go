package versions

import (
	"net/url"
	"sync"
)

// A Location is the page the browser lives on.  Replace changes the address
// without loading anything; Navigate and Reload load a page, which discards
// every in-memory state including the Browser's own.
type Location interface {
	URL() *url.URL
	Replace(u *url.URL)
	Navigate(u *url.URL)
	Reload()
}

// A MemoryLocation is a Location that only remembers what happened to it.
// Hooks, if set, run after the state is updated.
type MemoryLocation struct {
	OnNavigate func(u *url.URL)
	OnReload   func()

	mu          sync.Mutex
	current     url.URL
	navigations []string
	reloads     int
}

// NewMemoryLocation returns a location at raw.  It panics if raw does not parse.
func NewMemoryLocation(raw string) *MemoryLocation {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return &MemoryLocation{current: *u}
}

func (m *MemoryLocation) URL() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.current
	return &u
}

func (m *MemoryLocation) Replace(u *url.URL) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = *u
}

func (m *MemoryLocation) Navigate(u *url.URL) {
	m.mu.Lock()
	m.current = *u
	m.navigations = append(m.navigations, u.String())
	fn := m.OnNavigate
	m.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func (m *MemoryLocation) Reload() {
	m.mu.Lock()
	m.reloads++
	fn := m.OnReload
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Navigations returns every url navigated to, oldest first.
func (m *MemoryLocation) Navigations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.navigations...)
}

// Reloads returns how many times the page was reloaded.
func (m *MemoryLocation) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}
