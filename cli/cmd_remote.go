package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/albanobattistella/eOVPN/common"
	"github.com/albanobattistella/eOVPN/remote"
)

func newConfigsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configs",
		Short: "List the downloaded OpenVPN configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := remote.ListConfigs(a.cfg.SaveDir())
			if err != nil {
				return err
			}
			return printConfigs(a, entries)
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [url]",
		Short: "Download the remote bundle and extract its configs",
		Long: "Download the ZIP bundle at url (or the saved remote) and extract\n" +
			"its .ovpn configs and certificates into the save directory.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			url := a.cfg.Remote
			if len(args) > 0 {
				url = strings.TrimSpace(args[0])
			}
			if url == "" {
				return fmt.Errorf("no remote set: pass a url or run \"eovpn validate <url>\"")
			}

			dest := a.cfg.SaveDir()
			fmt.Fprintf(a.out, "Downloading %s...\n", url)
			count, err := a.fetcher.FetchAndExtract(cmd.Context(), url, dest)
			if err != nil {
				if count > 0 {
					fmt.Fprintf(a.out, "%d file(s) written before the failure.\n", count)
				}
				a.observer.Message(common.SeverityError, common.UserMessage(err))
				return fmt.Errorf("%s: %w", common.UserMessage(err), err)
			}

			a.cfg.Remote = url
			a.cfg.MarkUpdated(time.Now())
			if err := a.cfg.Save(); err != nil {
				return err
			}

			a.observer.Message(common.SeveritySuccess, fmt.Sprintf("%d file(s) extracted to %s.", count, dest))
			entries, err := remote.ListConfigs(dest)
			if err != nil {
				return err
			}
			a.observer.ConfigListChanged(entries)
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "validate url",
		Short: "Check a remote bundle and save it as the remote when valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			url := strings.TrimSpace(args[0])
			var count int
			if list {
				entries, err := a.fetcher.Inspect(cmd.Context(), url)
				if err != nil {
					return fmt.Errorf("%s: %w", common.UserMessage(err), err)
				}
				printBundle(a, entries)
				count = len(entries)
			} else {
				count, err = a.fetcher.ValidateRemote(cmd.Context(), url)
				if err != nil {
					return fmt.Errorf("%s: %w", common.UserMessage(err), err)
				}
			}

			a.cfg.Remote = url
			if err := a.cfg.Save(); err != nil {
				return err
			}
			a.observer.Message(common.SeveritySuccess, fmt.Sprintf("Remote is valid: %d file(s). Saved.", count))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the files the bundle would extract")
	return cmd
}

// printBundle writes the entries of a remote bundle as a table.
func printBundle(a *app, entries []common.ConfigEntry) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tKIND")
	fmt.Fprintln(w, "----\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.FileName, e.Kind)
	}
	w.Flush()
}

// printConfigs writes the config listing as a table.
func printConfigs(a *app, entries []common.ConfigEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No configs downloaded.")
		fmt.Fprintln(a.out, "Use \"eovpn fetch <url>\" to download a bundle.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFILE")
	fmt.Fprintln(w, "----\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", strings.TrimSuffix(e.FileName, ".ovpn"), e.FileName)
	}
	return w.Flush()
}
