package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/albanobattistella/eOVPN/common"
	"github.com/albanobattistella/eOVPN/remote"
	"github.com/albanobattistella/eOVPN/vpn"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect [config-name]",
		Short: "Bring up a tunnel with one of the downloaded configs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			if err := checkConnectable(a.controller.Sync(cmd.Context())); err != nil {
				return err
			}

			var name string
			if len(args) > 0 {
				name = args[0]
			}
			configPath, err := findConfig(a.cfg.SaveDir(), name)
			if err != nil {
				return err
			}

			req, err := a.connectionRequest(configPath)
			if err != nil {
				return err
			}

			outcome, err := a.controller.Connect(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", common.UserMessage(err), outcome, err)
			}
			return nil
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Stop all OpenVPN tunnels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			if a.controller.Sync(cmd.Context()) == vpn.StatusDisconnected {
				fmt.Fprintln(a.out, "No active connection.")
				return nil
			}

			outcome, err := a.controller.Disconnect(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s (%s): %w", common.UserMessage(err), outcome, err)
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tunnel state and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			state := a.controller.Sync(cmd.Context())
			iface, _ := a.prober.TunnelInterface()
			if iface == "" {
				iface = "-"
			}

			count := 0
			if entries, err := remote.ListConfigs(a.cfg.SaveDir()); err == nil {
				count = len(entries)
			}

			remoteURL := a.cfg.Remote
			if remoteURL == "" {
				remoteURL = mutedStyle.Render("not set")
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Status:\t%s\n", stateStyle(state).Render(state.String()))
			fmt.Fprintf(w, "Interface:\t%s\n", iface)
			fmt.Fprintf(w, "Remote:\t%s\n", remoteURL)
			fmt.Fprintf(w, "Configs:\t%d in %s\n", count, a.cfg.SaveDir())
			fmt.Fprintf(w, "Last update:\t%s\n", lastUpdate(a.cfg.LastUpdateTimestamp, time.Now()))
			return w.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print eovpn and OpenVPN versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", common.AppName, version)

			a, err := newApp(out)
			if err != nil {
				return err
			}
			defer a.close()

			if _, ok := a.controller.ProbeVersion(cmd.Context()); !ok {
				return common.ErrBinaryNotFound
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report tunnel and config directory changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			a.printer.watching = true
			a.printer.StatusChanged(a.controller.Sync(cmd.Context()))

			watcher, err := remote.NewWatcher(a.cfg.SaveDir(), a.observer)
			if err != nil {
				return err
			}

			monitor := vpn.NewMonitor(a.controller, a.prober, common.MonitorInterval)
			monitor.Start()
			defer monitor.Stop()

			return watcher.Run(cmd.Context())
		},
	}
}

// checkConnectable refuses a connect while a session exists. In a fresh
// process Error means an openvpn process was found without a tunnel, and
// starting another would leave two running.
func checkConnectable(state common.SessionState) error {
	switch state {
	case common.StatusDisconnected:
		return nil
	case common.StatusError:
		return fmt.Errorf("%w: openvpn is running without a tunnel, run \"eovpn disconnect\" first",
			common.ErrAlreadyConnected)
	default:
		return fmt.Errorf("%w (%s)", common.ErrAlreadyConnected, state)
	}
}
