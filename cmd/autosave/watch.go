package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/autosave/saver"
	"github.com/jmoiron/monet/pkg/flash"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *cliApp) *cobra.Command {
	var (
		title    string
		interval time.Duration
		delay    int
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Autosave FILE to the document whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delay <= 0 {
				delay = a.delay
			}
			notes := notifier(cmd.ErrOrStderr())
			if quiet {
				notes = flash.NewSlog(slog.Default())
			}
			return a.watch(cmd.Context(), args[0], title, interval, delay, notes, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title sent with every autosave")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "how often to check the file for changes")
	cmd.Flags().IntVar(&delay, "delay", 0, "seconds from the first change to its autosave (default from the server)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "log status messages instead of printing them")
	return cmd
}

func (a *cliApp) watch(ctx context.Context, path, title string, interval time.Duration, delay int, notes flash.Notifier, stderr io.Writer) error {
	initial, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := saver.NewInput("content", string(initial))
	fields := []saver.Field{content}
	if len(title) > 0 {
		fields = append(fields, saver.NewInput("title", title))
	}

	s, err := saver.New(a.endpoints().Save, fields,
		saver.WithClient(a.client),
		saver.WithDelay(delay),
		saver.WithNotifier(notes),
		saver.WithDisplay(saver.DisplayFunc(func(text string) {
			if len(text) > 0 {
				fmt.Fprintln(stderr, mutedStyle.Render("next autosave in "+text))
			}
		})),
		saver.WithSuccess(func(p api.Payload) {
			count, _ := p.Int("count")
			fmt.Fprintln(stderr, mutedStyle.Render(fmt.Sprintf("%d versions kept", count)))
		}),
	)
	if err != nil {
		return err
	}
	defer s.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(stderr, noticeStyle.Render(fmt.Sprintf("watching %s, autosaving %ds after a change", path, delay)))
	err = pollFile(ctx, path, interval, initial, func(data []byte) {
		content.Set(string(data))
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	if !s.Dirty() {
		return nil
	}
	// interrupted with edits pending; save them on the way out
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.ForceSave(saveCtx)
}

// pollFile calls fn with the contents of path each time they change from
// last, checking every interval until ctx is done.  A file that vanishes is
// waited for rather than reported.
func pollFile(ctx context.Context, path string, interval time.Duration, last []byte, fn func([]byte)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// zero, so the first check always compares contents against last
	var modTime time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		fi, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if fi.ModTime().Equal(modTime) {
			continue
		}
		modTime = fi.ModTime()

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if bytes.Equal(data, last) {
			continue
		}
		last = data
		fn(data)
	}
}
