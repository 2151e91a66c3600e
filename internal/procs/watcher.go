package procs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"netsift/internal/trace"
)

// DefaultPollInterval is how often the Watcher diffs the process table.
const DefaultPollInterval = time.Second

// Watcher is a trace.Source that reports processes started after the
// subscription. The engine decides which of them to track.
type Watcher struct {
	Lister   trace.ProcessLister
	Interval time.Duration
	Logger   zerolog.Logger
}

// Subscribe takes a baseline snapshot and then emits a ProcessStart for
// every PID that appears in a later poll.
func (w *Watcher) Subscribe(ctx context.Context, _ string) (<-chan trace.Event, error) {
	lister := w.Lister
	if lister == nil {
		lister = Lister{}
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	baseline, err := lister.Processes(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int32]string, len(baseline))
	for _, p := range baseline {
		seen[p.PID] = p.Name
	}

	out := make(chan trace.Event, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := lister.Processes(ctx)
			if err != nil {
				w.Logger.Debug().Err(err).Msg("process poll failed")
				continue
			}
			next := make(map[int32]string, len(current))
			for _, p := range current {
				next[p.PID] = p.Name
				// a reused PID with a new name counts as a new process
				if name, ok := seen[p.PID]; ok && name == p.Name {
					continue
				}
				select {
				case out <- trace.ProcessStart{PID: p.PID, Name: p.Name}:
				case <-ctx.Done():
					return
				}
			}
			seen = next
		}
	}()
	return out, nil
}
