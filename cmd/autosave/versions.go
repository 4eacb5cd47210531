package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/jmoiron/monet/pkg/autosave/versions"
	"github.com/spf13/cobra"
)

func newVersionsCmd(a *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "versions",
		Aliases: []string{"v"},
		Short:   "Browse and recover autosaved versions of the document",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List autosaved versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBrowser(cmd, nil)
			if err != nil {
				return err
			}
			renderRows(cmd.OutOrStdout(), b.Snapshot().Rows)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show how a version differs from the saved document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, id, err := a.selectVersion(cmd, args[0], nil)
			if err != nil {
				return err
			}
			st := b.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n\n", titleStyle.Render(st.Selected.DisplayTitle()), mutedStyle.Render(strconv.Itoa(id)))
			renderDiff(cmd.OutOrStdout(), st.Diff)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a version",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, id, err := a.selectVersion(cmd, args[0], nil)
			if err != nil {
				return err
			}
			if err := b.Delete(cmd.Context(), id); err != nil {
				return err
			}
			renderRows(cmd.OutOrStdout(), b.Snapshot().Rows)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every version identical to the saved document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := versions.NewMemoryLocation(a.pageURL())
			b := a.browser(cmd, loc, nil)
			var reopened error
			loc.OnNavigate = func(*url.URL) {
				// the page comes back with a fresh browser, reopened
				next := a.browser(cmd, loc, nil)
				if reopened = next.Init(cmd.Context()); reopened == nil {
					renderRows(cmd.OutOrStdout(), next.Snapshot().Rows)
				}
			}
			if err := b.AutoClear(cmd.Context()); err != nil {
				return err
			}
			return reopened
		},
	})

	var yes bool
	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Replace the saved document with a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm := &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), yes: yes}
			b, _, err := a.selectVersion(cmd, args[0], confirm)
			if err != nil {
				return err
			}
			err = b.Restore(cmd.Context())
			if errors.Is(err, versions.ErrNotConfirmed) {
				fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("not restored"))
				return nil
			}
			return err
		},
	}
	restore.Flags().BoolVarP(&yes, "yes", "y", false, "restore without asking")
	cmd.AddCommand(restore)

	return cmd
}

// browser returns a closed version browser for the document.  A reload of
// its page reads the admin again, which shows the flash left by a restore.
func (a *cliApp) browser(cmd *cobra.Command, loc *versions.MemoryLocation, confirm versions.Confirmer, extra ...versions.Option) *versions.Browser {
	if loc == nil {
		loc = versions.NewMemoryLocation(a.pageURL())
	}
	if loc.OnReload == nil {
		loc.OnReload = func() { a.reload(cmd.Context(), cmd.ErrOrStderr()) }
	}
	opts := []versions.Option{
		versions.WithLocation(loc),
		versions.WithNotifier(notifier(cmd.ErrOrStderr())),
	}
	if confirm != nil {
		opts = append(opts, versions.WithConfirmer(confirm))
	}
	return versions.New(a.client, a.endpoints(), append(opts, extra...)...)
}

func (a *cliApp) reload(ctx context.Context, stderr io.Writer) {
	if err := a.loadSettings(ctx, stderr); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
	}
}

// openBrowser returns a browser opened on the document's versions, with the
// badge count an editor page would have been rendered with.
func (a *cliApp) openBrowser(cmd *cobra.Command, confirm versions.Confirmer) (*versions.Browser, error) {
	records, err := a.client.Records(cmd.Context(), a.endpoints().List)
	if err != nil {
		return nil, err
	}
	b := a.browser(cmd, nil, confirm, versions.WithCount(len(records)))
	if err := b.Open(cmd.Context()); err != nil {
		return nil, err
	}
	return b, nil
}

// selectVersion opens a browser and selects the version named by arg.
func (a *cliApp) selectVersion(cmd *cobra.Command, arg string, confirm versions.Confirmer) (*versions.Browser, int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid version id %q", arg)
	}
	b, err := a.openBrowser(cmd, confirm)
	if err != nil {
		return nil, 0, err
	}
	if !b.Select(id) {
		return nil, 0, fmt.Errorf("no version %d of %s %d", id, a.Type, a.Doc)
	}
	return b, id, nil
}
