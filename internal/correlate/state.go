package correlate

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"netsift/internal/clock"
	"netsift/internal/models"
	"netsift/internal/trace"
)

// State is the correlation state of one capture session: the tracked PID
// set, the DNS and SNI hint caches and the rate limiter. It is created on
// Start and discarded on Stop.
type State struct {
	ID      string
	Filters []string
	Started time.Time

	pids    sync.Map // int32 -> process name
	dns     sync.Map // IPv4 string -> hostname
	sni     sync.Map // int32 -> server name
	limiter *RateLimiter

	closed atomic.Bool
}

func newState(filters []string, window time.Duration, clk clock.Clock) *State {
	return &State{
		ID:      uuid.New().String(),
		Filters: filters,
		Started: clk.Now(),
		limiter: NewRateLimiter(window, clk),
	}
}

// Matches reports whether a process name matches any session filter.
func (s *State) Matches(name string) bool {
	for _, f := range s.Filters {
		if trace.MatchName(name, f) {
			return true
		}
	}
	return false
}

// TrackPID adds pid to the session's process set.
func (s *State) TrackPID(pid int32, name string) {
	s.pids.Store(pid, name)
}

// Tracks reports whether pid belongs to the monitored process set.
func (s *State) Tracks(pid int32) bool {
	_, ok := s.pids.Load(pid)
	return ok
}

// ProcessName returns the name recorded for pid.
func (s *State) ProcessName(pid int32) string {
	if v, ok := s.pids.Load(pid); ok {
		return v.(string)
	}
	return ""
}

// PIDCount returns the number of tracked processes.
func (s *State) PIDCount() int {
	n := 0
	s.pids.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// LearnDNS records that ip resolved from host.
func (s *State) LearnDNS(ip, host string) {
	s.dns.Store(ip, host)
}

// LearnSNI records the latest TLS server name sent by pid.
func (s *State) LearnSNI(pid int32, serverName string) {
	s.sni.Store(pid, serverName)
}

// ResolveDomain picks the display domain for a connection: the DNS answer
// for the address, else the last SNI of the process, else the sentinel.
func (s *State) ResolveDomain(address string, pid int32) string {
	if v, ok := s.dns.Load(address); ok {
		return v.(string)
	}
	if v, ok := s.sni.Load(pid); ok {
		return v.(string)
	}
	return models.NoDomain
}

func (s *State) close() {
	s.closed.Store(true)
}

// Closed reports whether the session has been stopped.
func (s *State) Closed() bool {
	return s.closed.Load()
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.TrimSpace(h), ".")
}
