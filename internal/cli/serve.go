package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"netsift/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API without a terminal UI",
		Long: `Starts the HTTP API. Sessions, scans, probes and exports are driven
through it.

Endpoints:
  GET  /health               Health check
  GET  /metrics              Prometheus metrics
  GET  /api/status           Session state and last status message
  GET  /api/records          Records in first-seen order
  POST /api/records/select   Mark records for the "selected" export
  POST /api/capture/start    Start a session for {"process": "..."}
  POST /api/capture/stop     Stop the session
  POST /api/scan             Scan {"dir": "..."} for hostnames
  POST /api/dnscache         Import the resolver cache
  POST /api/resolve          Reverse-resolve records without a domain
  POST /api/enrich           GeoIP lookup
  POST /api/probe            Reachability check
  POST /api/export           Write block lists for {"mode": "..."}
  POST /api/report           Write the HTML report
  WS   /ws                   Live notifications`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(false)
			if err != nil {
				return err
			}
			defer e.close()
			if addr != "" {
				e.cfg.Server.Addr = addr
			}

			hub := server.NewHub(e.log)
			ctl := e.controller(hub)
			defer ctl.Close()
			srv := server.New(e.cfg.Server.Addr, ctl, hub, e.registry, e.log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				e.log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (overrides server.addr)")
	return cmd
}
