package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"netsift/internal/app"
	"netsift/internal/models"
	"netsift/internal/reporting"
	"netsift/internal/server"
	"netsift/internal/tui"
)

func newCaptureCmd(flags *globalFlags) *cobra.Command {
	var (
		process     string
		iface       string
		backend     string
		interactive bool
		serve       bool
		duration    time.Duration
		exportMode  string
		report      bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the traffic of one process",
		Long: `Captures the traffic of every process whose name contains --process and
builds one record per remote endpoint and protocol.

With --tui (the default) the records are shown in an interactive table.
Without it, status lines are printed until --duration elapses or the
command is interrupted, after which the lists are exported.`,
		Example: `  netsift capture --process game.exe
  netsift capture --process firefox --tui=false --duration 2m --export all
  netsift capture --process game --serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(interactive)
			if err != nil {
				return err
			}
			defer e.close()
			if iface != "" {
				e.cfg.Capture.Interface = iface
			}
			if backend != "" {
				e.cfg.Capture.Backend = backend
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var sinks models.MultiSink
			var hub *server.Hub
			if serve {
				hub = server.NewHub(e.log)
				sinks = append(sinks, hub)
			}

			var (
				bridge *tui.Bridge
				view   *tui.RecordView
			)
			if interactive {
				bridge, view = tui.NewBridge(), tui.NewRecordView()
				sinks = append(sinks, models.Dispatched(bridge, view))
			} else {
				sinks = append(sinks, printer(cmd.OutOrStdout()))
			}

			ctl := e.controller(sinks)
			defer ctl.Close()

			if serve {
				srv := server.New(e.cfg.Server.Addr, ctl, hub, e.registry, e.log)
				go func() {
					if err := srv.Start(); err != nil {
						e.log.Error().Err(err).Msg("api server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			if interactive {
				p := tea.NewProgram(tui.New(ctx, ctl, view, process, true), tea.WithAltScreen(), tea.WithContext(ctx))
				bridge.Attach(p)
				if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
					return fmt.Errorf("run tui: %w", err)
				}
				ctl.Stop()
				return nil
			}

			if err := ctl.Start(ctx, process); err != nil {
				return err
			}
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			<-ctx.Done()
			ctl.Stop()

			return finish(cmd, ctl, exportMode, report)
		},
	}

	cmd.Flags().StringVarP(&process, "process", "p", "", "process name or part of it, \".exe\" is optional")
	cmd.Flags().StringVarP(&iface, "interface", "i", "", "capture interface (overrides capture.interface)")
	cmd.Flags().StringVar(&backend, "backend", "", "capture backend: pcap, tshark or none")
	cmd.Flags().BoolVar(&interactive, "tui", true, "show the interactive table")
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the HTTP API on server.addr")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (without --tui)")
	cmd.Flags().StringVar(&exportMode, "export", "", "export lists on exit: all, blocked, ok or selected")
	cmd.Flags().BoolVar(&report, "report", false, "write the HTML session report on exit")
	cmd.MarkFlagRequired("process")

	return cmd
}

// finish runs the exit-time export and report of a non-interactive run.
func finish(cmd *cobra.Command, ctl *app.Controller, exportMode string, report bool) error {
	out := cmd.OutOrStdout()
	if exportMode != "" {
		res, err := ctl.Export(exportMode)
		switch {
		case errors.Is(err, reporting.ErrEmptySelection):
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "Lists written to %s\n", res.Dir)
		}
	}
	if report {
		if _, err := ctl.Report(); err != nil {
			return err
		}
	}
	return nil
}
