// Package capture is the libpcap capture backend. It decodes IPv4 TCP/UDP
// packets with gopacket, extracts DNS answers and TLS server names, and
// hands them to a trace.Translator.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog"

	"netsift/internal/trace"
)

const (
	DefaultInterface = "any"
	DefaultSnaplen   = 1600
	DefaultBPF       = "ip and (tcp or udp)"
)

// Source captures live packets from Interface.
type Source struct {
	Interface  string
	Snaplen    int
	BPF        string
	Translator *trace.Translator
	Logger     zerolog.Logger
	// Buffer is the event channel capacity. Defaults to 256.
	Buffer int
}

// Subscribe opens the interface and streams translated events until ctx
// is cancelled.
func (s *Source) Subscribe(ctx context.Context, _ string) (<-chan trace.Event, error) {
	iface := s.Interface
	if iface == "" {
		iface = DefaultInterface
	}
	snaplen := s.Snaplen
	if snaplen <= 0 {
		snaplen = DefaultSnaplen
	}
	bpf := s.BPF
	if bpf == "" {
		bpf = DefaultBPF
	}

	handle, err := pcap.OpenLive(iface, int32(snaplen), false, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter(bpf); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF filter %q: %w", bpf, err)
	}

	tr := s.Translator
	if tr == nil {
		tr = &trace.Translator{}
	}
	log := s.Logger.With().Str("component", "pcap").Str("interface", iface).Logger()
	log.Info().Msg("packet capture started")

	buffer := s.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	out := make(chan trace.Event, buffer)
	go func() {
		defer close(out)
		defer handle.Close()

		packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("packet capture stopped")
				return
			case packet, ok := <-packets:
				if !ok {
					return
				}
				pkt, ok := Decode(packet)
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
		}
	}()
	return out, nil
}

// Decode extracts the fields the translator needs from an IPv4 TCP or UDP
// packet.
func Decode(packet gopacket.Packet) (trace.Packet, bool) {
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return trace.Packet{}, false
	}
	ip, _ := ipLayer.(*layers.IPv4)

	p := trace.Packet{
		Timestamp: packet.Metadata().Timestamp,
		SrcIP:     ip.SrcIP.String(),
		DstIP:     ip.DstIP.String(),
		Length:    int(ip.Length),
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	var payload []byte
	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp, _ := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		p.Protocol = "TCP"
		p.SrcPort, p.DstPort = int(tcp.SrcPort), int(tcp.DstPort)
		payload = tcp.Payload
		if len(payload) > 0 && payload[0] == 0x16 {
			if name, err := trace.ParseSNI(payload); err == nil {
				p.SNI = name
			}
		}
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp, _ := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		p.Protocol = "UDP"
		p.SrcPort, p.DstPort = int(udp.SrcPort), int(udp.DstPort)
		payload = udp.Payload
		if udp.SrcPort == 53 || udp.DstPort == 53 {
			if q, resp, answers, err := trace.ParseDNS(payload); err == nil {
				p.DNSQuery, p.DNSResponse, p.DNSAnswers = q, resp, answers
			}
		}
	default:
		return trace.Packet{}, false
	}
	return p, true
}
