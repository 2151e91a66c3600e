package procs

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	psnet "github.com/shirou/gopsutil/v3/net"

	"netsift/internal/trace"
)

type scriptedLister struct {
	mu    sync.Mutex
	polls [][]trace.Process
}

func (s *scriptedLister) Processes(context.Context) ([]trace.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.polls[0]
	if len(s.polls) > 1 {
		s.polls = s.polls[1:]
	}
	return cur, nil
}

func TestMatching(t *testing.T) {
	l := &scriptedLister{polls: [][]trace.Process{{
		{PID: 1, Name: "systemd"},
		{PID: 2, Name: "Game.exe"},
		{PID: 3, Name: "GameCrashHandler"},
	}}}
	got, err := Matching(context.Background(), l, "game.exe")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].PID != 2 || got[1].PID != 3 {
		t.Errorf("Matching() = %+v", got)
	}
}

func TestWatcher_EmitsNewProcesses(t *testing.T) {
	l := &scriptedLister{polls: [][]trace.Process{
		{{PID: 1, Name: "init"}},
		{{PID: 1, Name: "init"}, {PID: 7, Name: "game"}},
		{{PID: 1, Name: "init"}, {PID: 7, Name: "game"}},
	}}
	w := &Watcher{Lister: l, Interval: 5 * time.Millisecond, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := w.Subscribe(ctx, "game")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		ps, ok := ev.(trace.ProcessStart)
		if !ok || ps.PID != 7 || ps.Name != "game" {
			t.Fatalf("event = %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ProcessStart emitted")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %#v", ev)
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func newTestTable(conns []psnet.ConnectionStat, addrs ...string) *SocketTable {
	t := NewSocketTable(time.Hour, zerolog.Nop())
	t.read = func(context.Context) ([]psnet.ConnectionStat, error) { return conns, nil }
	t.addrs = func(context.Context) ([]netip.Addr, error) {
		var out []netip.Addr
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	}
	return t
}

func TestSocketTable_Lookup(t *testing.T) {
	table := newTestTable([]psnet.ConnectionStat{
		{Type: 1, Pid: 42, Laddr: psnet.Addr{IP: "192.168.1.10", Port: 51000}},
		{Type: 2, Pid: 43, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 51000}},
		{Type: 2, Pid: 0, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 53}},
	}, "192.168.1.10")

	if pid, ok := table.Lookup("tcp", 51000); !ok || pid != 42 {
		t.Errorf("Lookup(tcp) = %d, %v", pid, ok)
	}
	if pid, ok := table.Lookup("UDP", 51000); !ok || pid != 43 {
		t.Errorf("Lookup(udp) = %d, %v", pid, ok)
	}
	if _, ok := table.Lookup("UDP", 53); ok {
		t.Error("socket without an owner was attributed")
	}
}

func TestSocketTable_IsLocal(t *testing.T) {
	table := newTestTable(nil, "192.168.1.10", "::ffff:10.0.0.2")

	for ip, want := range map[string]bool{
		"192.168.1.10": true,
		"10.0.0.2":     true,
		"127.0.0.1":    true,
		"8.8.8.8":      false,
		"garbage":      false,
	} {
		if got := table.IsLocal(ip); got != want {
			t.Errorf("IsLocal(%q) = %v, want %v", ip, got, want)
		}
	}
}
