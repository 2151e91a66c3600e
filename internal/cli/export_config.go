package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"netsift/internal/config"
)

func newExportConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-config PATH",
		Short: "Write the default configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", args[0])
			return nil
		},
	}
}
