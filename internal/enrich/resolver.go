package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const fallbackNameserver = "1.1.1.1:53"

// ErrNoName is returned when an address has no PTR record.
var ErrNoName = errors.New("no PTR record")

// Resolver performs reverse lookups against one nameserver.
type Resolver struct {
	Server string
	client *dns.Client
}

// NewResolver uses server, or the first nameserver of /etc/resolv.conf
// when server is empty.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if server == "" {
		server = systemNameserver()
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{Server: server, client: &dns.Client{Net: "udp", Timeout: timeout}}
}

func systemNameserver() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return fallbackNameserver
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// Reverse returns the host name of ip without the trailing dot.
func (r *Resolver) Reverse(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}
	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return "", fmt.Errorf("ptr %s: %w", ip, err)
	}
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", ErrNoName
}
