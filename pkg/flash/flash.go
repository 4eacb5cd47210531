// Package flash delivers short, transient messages to the user.
//
// Producers (the autosave scheduler, the version browser) only know about the
// Notifier interface; whether a message ends up as a banner, a log line or a
// session flash is up to whoever wires them together.
package flash

import (
	"context"
	"log/slog"
	"sync"
)

// A Level is the severity of a message.
type Level int

const (
	Info Level = iota
	Success
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// A Notifier shows msg to the user.  Notify must not block on the user.
type Notifier interface {
	Notify(msg string, level Level)
}

// Func adapts a function to a Notifier.
type Func func(msg string, level Level)

func (f Func) Notify(msg string, level Level) { f(msg, level) }

// Discard drops every message.
var Discard Notifier = Func(func(string, Level) {})

// Slog writes messages to a slog.Logger.  Errors are logged at error level,
// everything else at info.
type Slog struct {
	Logger *slog.Logger
}

// NewSlog returns a Notifier writing to logger, or slog.Default() if nil.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{Logger: logger}
}

func (s *Slog) Notify(msg string, level Level) {
	lvl := slog.LevelInfo
	if level == Error {
		lvl = slog.LevelError
	}
	s.Logger.Log(context.Background(), lvl, msg, "flash", level.String())
}

// A Message is a single recorded notification.
type Message struct {
	Text  string
	Level Level
}

// Recorder keeps every message it is sent.  It is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(msg string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Text: msg, Level: level})
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Texts returns only the text of the recorded messages.
func (r *Recorder) Texts() []string {
	msgs := r.Messages()
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	return texts
}

// Last returns the most recent message, if there is one.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}
