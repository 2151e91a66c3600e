// Package probe checks whether a traffic record's endpoint is reachable
// from this host.
package probe

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"netsift/internal/models"
)

const (
	DefaultTimeout     = 2 * time.Second
	DefaultPingTimeout = 1500 * time.Millisecond
)

// Result is the outcome of one check.
type Result struct {
	OK      bool
	Message string
}

// Status maps the result to the record status and color.
func (r Result) Status() (status, color string) {
	if r.OK {
		return models.StatusAccessible, models.ColorGreen
	}
	return models.StatusBlocked, models.ColorRed
}

// Pinger sends one ICMP echo and returns the round trip time.
type Pinger func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, error)

// Prober checks reachability. A record with a known domain is fetched over
// HTTPS, a UDP endpoint is pinged and anything else gets a TCP connect.
type Prober struct {
	HTTP        *http.Client
	Timeout     time.Duration
	PingTimeout time.Duration
	Ping        Pinger
	// TCPPort is the port used for the connect check.
	TCPPort int
}

// New creates a prober with the given timeouts.
func New(timeout, pingTimeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	return &Prober{
		HTTP: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Timeout:     timeout,
		PingTimeout: pingTimeout,
		Ping:        SystemPing,
		TCPPort:     443,
	}
}

// Check never fails; every error is reported as an unreachable result.
func (p *Prober) Check(ctx context.Context, rec models.TrafficRecord) Result {
	switch {
	case rec.HasDomain():
		return p.checkHTTPS(ctx, rec.Domain)
	case rec.Protocol == models.ProtocolUDP:
		return p.checkPing(ctx, rec.RemoteAddress)
	default:
		return p.checkTCP(ctx, rec.RemoteAddress)
	}
}

func (p *Prober) checkHTTPS(ctx context.Context, host string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host, nil)
	if err != nil {
		return Result{Message: err.Error()}
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return Result{Message: "Blocked/Refused"}
	}
	resp.Body.Close()
	return Result{OK: true, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
}

func (p *Prober) checkPing(ctx context.Context, ip string) Result {
	rtt, err := p.Ping(ctx, ip, p.PingTimeout)
	if err != nil {
		return Result{Message: "Timeout"}
	}
	return Result{OK: true, Message: fmt.Sprintf("%dms", rtt.Milliseconds())}
}

func (p *Prober) checkTCP(ctx context.Context, ip string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(p.TCPPort)))
	if err != nil {
		return Result{Message: "Blocked/Refused"}
	}
	conn.Close()
	return Result{OK: true, Message: "TCP OK"}
}

var pingTime = regexp.MustCompile(`(?i)time[=<]\s*([\d.]+)\s*ms`)

// SystemPing runs the platform ping command for one echo request.
func SystemPing(ctx context.Context, ip string, timeout time.Duration) (time.Duration, error) {
	var args []string
	switch runtime.GOOS {
	case "windows":
		args = []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), ip}
	case "darwin":
		args = []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), ip}
	default:
		secs := int(timeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = []string{"-c", "1", "-W", strconv.Itoa(secs), ip}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, "ping", args...).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ping %s: %v (%s)", ip, err, string(output))
	}
	return ParsePingTime(string(output))
}

// ParsePingTime extracts the round trip time from ping output.
func ParsePingTime(output string) (time.Duration, error) {
	m := pingTime.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("no reply time in ping output")
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(ms*1000)) * time.Microsecond, nil
}
