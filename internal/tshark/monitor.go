// Package tshark is a capture backend that runs tshark and turns its EK
// JSON output into trace events.
package tshark

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"netsift/internal/trace"
)

// Source runs tshark on Interface and delivers the translated events.
type Source struct {
	Interface     string
	CaptureFilter string
	Translator    *trace.Translator
	Logger        zerolog.Logger
	// Buffer is the event channel capacity. Defaults to 256.
	Buffer int
}

// Args builds the tshark command line.
func (s *Source) Args() []string {
	// -l: flush stdout after each packet
	// -n: disable name resolution
	// -T ek: output in Elasticsearch JSON format
	args := []string{
		"-l", "-n", "-T", "ek",
		"-e", "frame.len",
		"-e", "ip.src", "-e", "ip.dst",
		"-e", "tcp.srcport", "-e", "tcp.dstport",
		"-e", "udp.srcport", "-e", "udp.dstport",
		"-e", "dns.qry.name",
		"-e", "dns.flags.response",
		"-e", "dns.a",
		"-e", "tls.handshake.extensions_server_name",
	}
	if s.Interface != "" {
		args = append([]string{"-i", s.Interface}, args...)
	}
	filter := s.CaptureFilter
	if filter == "" {
		filter = "ip and (tcp or udp)"
	}
	return append(args, "-f", filter)
}

// Subscribe starts tshark. The process is killed when ctx is cancelled and
// the channel closes once its output is drained.
func (s *Source) Subscribe(ctx context.Context, _ string) (<-chan trace.Event, error) {
	cmd := exec.CommandContext(ctx, "tshark", s.Args()...)
	cmd.Stderr = s.Logger.With().Str("component", "tshark").Logger()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tshark: %w", err)
	}

	tr := s.Translator
	if tr == nil {
		tr = &trace.Translator{}
	}

	buffer := s.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	out := make(chan trace.Event, buffer)
	go func() {
		defer close(out)
		// Wait for command to finish (which happens when context is canceled)
		defer func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				s.Logger.Warn().Err(err).Msg("tshark exited")
			}
		}()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			pkt, ok := ParseLine(scanner.Bytes())
			if !ok {
				continue
			}
			for _, ev := range tr.Events(pkt) {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ParseLine decodes one EK line. Index lines and malformed input report false.
func ParseLine(line []byte) (trace.Packet, bool) {
	// Tshark -T ek emits an index line before each packet; only packet
	// lines carry "layers".
	if !strings.Contains(string(line), `"layers"`) {
		return trace.Packet{}, false
	}
	var ek EkPacket
	if err := json.Unmarshal(line, &ek); err != nil {
		return trace.Packet{}, false
	}
	return convertToPacket(ek)
}

func convertToPacket(ek EkPacket) (trace.Packet, bool) {
	l := ek.Layers
	if len(l.IPSrc) == 0 || len(l.IPDst) == 0 {
		return trace.Packet{}, false
	}

	p := trace.Packet{
		Timestamp: parseTimestamp(ek.Timestamp),
		SrcIP:     first(l.IPSrc),
		DstIP:     first(l.IPDst),
	}
	p.Length, _ = strconv.Atoi(first(l.FrameLen))

	switch {
	case len(l.TCPSrcPort) > 0 || len(l.TCPDstPort) > 0:
		p.Protocol = "TCP"
		p.SrcPort, _ = strconv.Atoi(first(l.TCPSrcPort))
		p.DstPort, _ = strconv.Atoi(first(l.TCPDstPort))
	case len(l.UDPSrcPort) > 0 || len(l.UDPDstPort) > 0:
		p.Protocol = "UDP"
		p.SrcPort, _ = strconv.Atoi(first(l.UDPSrcPort))
		p.DstPort, _ = strconv.Atoi(first(l.UDPDstPort))
	default:
		p.Protocol = "OTHER"
	}

	p.DNSQuery = first(l.DnsQuery)
	resp := first(l.DnsResponse)
	p.DNSResponse = resp == "1" || strings.EqualFold(resp, "true")
	if p.DNSResponse {
		p.DNSAnswers = append(p.DNSAnswers, l.DnsA...)
	}
	p.SNI = first(l.TlsSni)
	return p, true
}

func parseTimestamp(ms string) time.Time {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(v)
}
