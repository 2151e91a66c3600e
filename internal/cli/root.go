package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root netsift command.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "netsift",
		Short: "Per-process network traffic analyzer",
		Long: `netsift watches the traffic of one process, ties every remote endpoint
to a hostname learned from DNS answers or TLS server names, labels what the
traffic is for, and exports block lists of the endpoints it found.`,
		SilenceUsage: true,
	}
	flags.register(root)

	root.AddCommand(
		newCaptureCmd(&flags),
		newScanCmd(&flags),
		newDNSCacheCmd(&flags),
		newServeCmd(&flags),
		newExportConfigCmd(),
	)

	return root
}
