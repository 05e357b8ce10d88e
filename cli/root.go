package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albanobattistella/eOVPN/common"
)

// version is set at build time via ldflags.
var version = "dev"

func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "eovpn",
		Short:         "OpenVPN tunnel manager with remote config bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := common.LevelInfo
			if verbose {
				level = common.LevelDebug
			}
			if err := common.InitLogger(common.LogConfig{
				Level:       level,
				EnableFile:  true,
				MaxFileSize: 5 * 1024 * 1024, // 5MB
				MaxBackups:  5,
			}); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not initialize file logging: %v\n", err)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newConnectCmd(),
		newDisconnectCmd(),
		newStatusCmd(),
		newConfigsCmd(),
		newFetchCmd(),
		newValidateCmd(),
		newAuthCmd(),
		newWatchCmd(),
	)

	return root
}

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}
