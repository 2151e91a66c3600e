package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newScanCmd(flags *globalFlags) *cobra.Command {
	var (
		exportMode string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Find hostnames embedded in the files under DIR",
		Long: `Walks DIR, extracts plain and UTF-16 strings from every file and keeps
the ones that look like hostnames. Each unique hostname becomes a record
labelled with the kind of file it was found in.`,
		Example: `  netsift scan "C:\Games\Apex"
  netsift scan ./game --export all
  netsift scan ./game --json > domains.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(false)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			sink := printer(cmd.ErrOrStderr())
			ctl := e.controller(sink)
			defer ctl.Close()

			if _, err := ctl.Scan(ctx, args[0]); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(ctl.Records()); err != nil {
					return err
				}
			}
			return finish(cmd, ctl, exportMode, false)
		},
	}

	cmd.Flags().StringVar(&exportMode, "export", "", "export lists: all, blocked, ok or selected")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON")

	return cmd
}
