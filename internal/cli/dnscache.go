package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDNSCacheCmd(flags *globalFlags) *cobra.Command {
	var exportMode string

	cmd := &cobra.Command{
		Use:   "dnscache",
		Short: "Import game-related entries from the Windows resolver cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(false)
			if err != nil {
				return err
			}
			defer e.close()

			ctl := e.controller(printer(cmd.ErrOrStderr()))
			defer ctl.Close()

			if _, err := ctl.ImportDNSCache(context.Background()); err != nil {
				return err
			}
			for _, r := range ctl.Records() {
				fmt.Fprintln(cmd.OutOrStdout(), r.Domain)
			}
			return finish(cmd, ctl, exportMode, false)
		},
	}

	cmd.Flags().StringVar(&exportMode, "export", "", "export lists: all, blocked, ok or selected")
	return cmd
}
