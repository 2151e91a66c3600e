// Package procs reads the host process and socket tables through gopsutil.
// It seeds and grows the monitored PID set and attributes captured packets
// to the process owning the local socket.
package procs

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"

	"netsift/internal/trace"
)

// Lister enumerates running processes. It implements trace.ProcessLister.
type Lister struct{}

// Processes returns every process whose name could be read.
func (Lister) Processes(ctx context.Context) ([]trace.Process, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]trace.Process, 0, len(ps))
	for _, p := range ps {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		out = append(out, trace.Process{PID: p.Pid, Name: name})
	}
	return out, nil
}

// Matching returns the processes whose name contains filter.
func Matching(ctx context.Context, lister trace.ProcessLister, filter string) ([]trace.Process, error) {
	all, err := lister.Processes(ctx)
	if err != nil {
		return nil, err
	}
	filter = trace.NormalizeFilter(filter)
	var out []trace.Process
	for _, p := range all {
		if trace.MatchName(p.Name, filter) {
			out = append(out, p)
		}
	}
	return out, nil
}
