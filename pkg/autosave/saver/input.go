package saver

import "sync"

// An Input is an in-memory Field that reports changes to its value.
type Input struct {
	name string

	mu        sync.RWMutex
	value     string
	listeners []func(Field)
}

// NewInput returns an Input with an initial value.  Setting the initial
// value does not count as a change.
func NewInput(name, value string) *Input {
	return &Input{name: name, value: value}
}

func (i *Input) Name() string { return i.name }

func (i *Input) Value() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.value
}

// OnChange adds fn to the functions called when the value changes.
func (i *Input) OnChange(fn func(Field)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, fn)
}

// Set updates the value, notifying listeners if it is different.
func (i *Input) Set(value string) {
	i.mu.Lock()
	if i.value == value {
		i.mu.Unlock()
		return
	}
	i.value = value
	listeners := append([]func(Field){}, i.listeners...)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(i)
	}
}
