package procs

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// DefaultRefreshInterval bounds how often the socket table is re-read.
const DefaultRefreshInterval = 250 * time.Millisecond

type socketKey struct {
	protocol string
	port     int
}

// SocketTable attributes local ports to owning PIDs using the host's
// connection table. It implements trace.Attributor. Lookups that miss
// trigger a refresh, at most once per refresh interval.
type SocketTable struct {
	refresh time.Duration
	log     zerolog.Logger
	read    func(ctx context.Context) ([]psnet.ConnectionStat, error)
	addrs   func(ctx context.Context) ([]netip.Addr, error)

	mu       sync.RWMutex
	owners   map[socketKey]int32
	local    map[netip.Addr]struct{}
	loadedAt time.Time
}

// NewSocketTable creates a table backed by gopsutil.
func NewSocketTable(refresh time.Duration, log zerolog.Logger) *SocketTable {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &SocketTable{
		refresh: refresh,
		log:     log,
		read: func(ctx context.Context) ([]psnet.ConnectionStat, error) {
			return psnet.ConnectionsWithContext(ctx, "inet")
		},
		addrs:  interfaceAddrs,
		owners: make(map[socketKey]int32),
		local:  make(map[netip.Addr]struct{}),
	}
}

// Lookup returns the PID owning the local protocol/port pair.
func (t *SocketTable) Lookup(protocol string, localPort int) (int32, bool) {
	key := socketKey{protocol: strings.ToUpper(protocol), port: localPort}
	if pid, ok := t.get(key); ok {
		return pid, true
	}
	if !t.stale() {
		return 0, false
	}
	t.Refresh(context.Background())
	return t.get(key)
}

// IsLocal reports whether ip is assigned to one of this host's interfaces.
func (t *SocketTable) IsLocal(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() {
		return true
	}
	t.mu.RLock()
	empty := len(t.local) == 0
	_, ok := t.local[addr]
	t.mu.RUnlock()
	if ok || !empty {
		return ok
	}
	t.Refresh(context.Background())
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok = t.local[addr]
	return ok
}

// Refresh re-reads the socket and interface tables.
func (t *SocketTable) Refresh(ctx context.Context) {
	conns, err := t.read(ctx)
	if err != nil {
		t.log.Debug().Err(err).Msg("reading socket table failed")
	}
	owners := make(map[socketKey]int32, len(conns))
	for _, c := range conns {
		if c.Pid <= 0 || c.Laddr.Port == 0 {
			continue
		}
		owners[socketKey{protocol: socketProtocol(c.Type), port: int(c.Laddr.Port)}] = c.Pid
	}

	var local map[netip.Addr]struct{}
	if addrs, err := t.addrs(ctx); err != nil {
		t.log.Debug().Err(err).Msg("reading interface addresses failed")
	} else {
		local = make(map[netip.Addr]struct{}, len(addrs))
		for _, a := range addrs {
			local[a.Unmap()] = struct{}{}
		}
	}

	t.mu.Lock()
	t.owners = owners
	if local != nil {
		t.local = local
	}
	t.loadedAt = time.Now()
	t.mu.Unlock()
}

func (t *SocketTable) get(key socketKey) (int32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pid, ok := t.owners[key]
	return pid, ok
}

func (t *SocketTable) stale() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Since(t.loadedAt) >= t.refresh
}

// socketProtocol maps the syscall socket type reported by gopsutil.
func socketProtocol(sockType uint32) string {
	switch sockType {
	case 1:
		return "TCP"
	case 2:
		return "UDP"
	default:
		return ""
	}
}

func interfaceAddrs(ctx context.Context) ([]netip.Addr, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var out []netip.Addr
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			p, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			out = append(out, p.Addr())
		}
	}
	return out, nil
}
