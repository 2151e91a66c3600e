package app

import (
	"github.com/rs/zerolog"

	"netsift/internal/capture"
	"netsift/internal/config"
	"netsift/internal/procs"
	"netsift/internal/trace"
	"netsift/internal/tshark"
)

// BuildSource assembles the trace source for the configured backend: a
// packet capture attributed to processes through the socket table, merged
// with the process-start watcher. The "none" backend returns nil, which
// makes every session degrade to capture-unavailable.
func BuildSource(cfg config.CaptureConfig, log zerolog.Logger) trace.Source {
	if cfg.Backend == "none" {
		return nil
	}

	sockets := procs.NewSocketTable(cfg.SocketRefreshInterval, log)
	tr := &trace.Translator{Local: sockets.IsLocal, Attributor: sockets}

	var packets trace.Source
	switch cfg.Backend {
	case "tshark":
		packets = &tshark.Source{Interface: cfg.Interface, Translator: tr, Logger: log, Buffer: cfg.EventBuffer}
	default:
		packets = &capture.Source{Interface: cfg.Interface, Snaplen: cfg.Snaplen, Translator: tr, Logger: log, Buffer: cfg.EventBuffer}
	}

	watcher := &procs.Watcher{Lister: procs.Lister{}, Interval: cfg.ProcessPollInterval, Logger: log}
	return trace.Merge(watcher, packets)
}
