package trace

import (
	"context"
	"strings"
	"sync"
)

// Source delivers live trace events for a capture session. Cancelling ctx
// unsubscribes; the source closes the returned channel once it has stopped.
type Source interface {
	Subscribe(ctx context.Context, processNameFilter string) (<-chan Event, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, processNameFilter string) (<-chan Event, error)

func (f SourceFunc) Subscribe(ctx context.Context, filter string) (<-chan Event, error) {
	return f(ctx, filter)
}

// Process is an entry of the process table.
type Process struct {
	PID  int32
	Name string
}

// ProcessLister enumerates running processes.
type ProcessLister interface {
	Processes(ctx context.Context) ([]Process, error)
}

// NormalizeFilter strips a trailing ".exe" and surrounding blanks.
func NormalizeFilter(filter string) string {
	f := strings.TrimSpace(filter)
	if len(f) >= 4 && strings.EqualFold(f[len(f)-4:], ".exe") {
		f = f[:len(f)-4]
	}
	return f
}

// MatchName reports whether name contains filter, ignoring case.
func MatchName(name, filter string) bool {
	if filter == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

// Merge subscribes to every source and fans their events into one channel.
// If any source fails to subscribe, the ones already started are cancelled
// and the error is returned.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, filter string) (<-chan Event, error) {
		ctx, cancel := context.WithCancel(ctx)
		chans := make([]<-chan Event, 0, len(sources))
		for _, s := range sources {
			ch, err := s.Subscribe(ctx, filter)
			if err != nil {
				cancel()
				return nil, err
			}
			chans = append(chans, ch)
		}

		out := make(chan Event, 256)
		var wg sync.WaitGroup
		for _, ch := range chans {
			wg.Add(1)
			go func(ch <-chan Event) {
				defer wg.Done()
				for ev := range ch {
					select {
					case out <- ev:
					case <-ctx.Done():
						// keep draining so the producer can exit
					}
				}
			}(ch)
		}
		go func() {
			wg.Wait()
			cancel()
			close(out)
		}()
		return out, nil
	})
}
