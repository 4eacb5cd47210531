package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/monet/docs"
	"github.com/jmoiron/monet/pkg/autosave/api"
	"github.com/jmoiron/monet/pkg/autosave/saver"
	"github.com/spf13/cobra"
)

// cliApp holds the flags and the logged in client shared by every command.
type cliApp struct {
	URL      string
	User     string
	Password string
	Type     string
	Doc      int
	Debug    bool

	client *api.Client
	// delay and base come from the server's admin index
	delay int
	base  string
}

func newRootCmd() *cobra.Command {
	a := &cliApp{}

	cmd := &cobra.Command{
		Use:          "autosave",
		Short:        "Autosave and recover versions of monet documents",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # autosave notes.md into document 3 as it is edited
  autosave watch notes.md --doc 3

  # see what was autosaved, and bring back an older version
  autosave versions list --doc 3
  autosave versions show 12 --doc 3
  autosave versions restore 12 --doc 3
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if a.Debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		if a.Doc <= 0 {
			return fmt.Errorf("--doc is required")
		}
		return a.connect(cmd.Context(), cmd.ErrOrStderr())
	}

	cmd.PersistentFlags().StringVar(&a.URL, "url", envOr("MONET_URL", "http://localhost:7000"), "monet server url")
	cmd.PersistentFlags().StringVar(&a.User, "user", envOr("MONET_USER", ""), "username to log in as")
	cmd.PersistentFlags().StringVar(&a.Password, "password", envOr("MONET_PASSWORD", ""), "password to log in with")
	cmd.PersistentFlags().StringVar(&a.Type, "type", docs.ContentType, "content type of the document")
	cmd.PersistentFlags().IntVar(&a.Doc, "doc", 0, "document id")
	cmd.PersistentFlags().BoolVar(&a.Debug, "debug", false, "debug logging")

	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newVersionsCmd(a))
	return cmd
}

// connect logs in, if credentials were given, and loads the autosave
// settings from the admin.
func (a *cliApp) connect(ctx context.Context, stderr io.Writer) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	hc := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
		// the login redirect is the answer, not something to follow
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	a.client = api.NewClient(hc)
	a.URL = strings.TrimRight(a.URL, "/")

	if len(a.User) > 0 {
		if err := a.login(ctx, hc); err != nil {
			return err
		}
	}
	return a.loadSettings(ctx, stderr)
}

func (a *cliApp) login(ctx context.Context, hc *http.Client) error {
	form := url.Values{"username": {a.User}, "password": {a.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL+"/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return fmt.Errorf("logging in as %s: %s", a.User, resp.Status)
	}
	return nil
}

// loadSettings reads the admin index, printing any flash messages waiting
// for this session.
func (a *cliApp) loadSettings(ctx context.Context, stderr io.Writer) error {
	p, err := a.client.Get(ctx, a.URL+"/admin/")
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	a.delay = saver.DefaultDelay
	if d, err := p.Int("autosave", "delay"); err == nil && d > 0 {
		a.delay = d
	}
	a.base = a.URL + p.String("autosave", "path")
	if flashes, err := p.Strings("flashes"); err == nil {
		for _, f := range flashes {
			fmt.Fprintln(stderr, noticeStyle.Render(f))
		}
	}
	return nil
}

func (a *cliApp) endpoints() api.Endpoints {
	return api.NewEndpoints(a.base, a.Type, a.Doc)
}

// pageURL is the editor page the document would be open in.
func (a *cliApp) pageURL() string {
	return fmt.Sprintf("%s/admin/%ss/%d", a.URL, a.Type, a.Doc)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
