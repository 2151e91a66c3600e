package trace

import (
	"strings"
)

// Attributor maps a local socket to the owning process.
type Attributor interface {
	Lookup(protocol string, localPort int) (pid int32, ok bool)
}

// Translator turns captured packets into trace events. Local reports
// whether an address belongs to this host.
type Translator struct {
	Local      func(ip string) bool
	Attributor Attributor
}

// Events converts one packet. Outbound TCP/UDP packets become Connect
// events (plus TLSHello when a ClientHello SNI is present); inbound DNS
// responses carrying A records become DNSAnswer events.
func (t *Translator) Events(p Packet) []Event {
	if p.SrcIP == "" || p.DstIP == "" {
		return nil
	}

	srcLocal := t.isLocal(p.SrcIP)
	dstLocal := t.isLocal(p.DstIP)

	var out []Event

	if p.DNSResponse && len(p.DNSAnswers) > 0 && p.DNSQuery != "" {
		var pid int32
		if dstLocal {
			pid = t.lookup(p.Protocol, p.DstPort)
		}
		out = append(out, DNSAnswer{
			PID:       pid,
			QueryName: p.DNSQuery,
			Results:   strings.Join(p.DNSAnswers, ";"),
		})
	}

	if !srcLocal || dstLocal {
		return out
	}
	if p.Protocol != "TCP" && p.Protocol != "UDP" {
		return out
	}

	pid := t.lookup(p.Protocol, p.SrcPort)
	if p.SNI != "" {
		out = append(out, TLSHello{PID: pid, ServerName: p.SNI})
	}
	out = append(out, Connect{
		PID:      pid,
		Address:  p.DstIP,
		Port:     p.DstPort,
		Protocol: p.Protocol,
		Time:     p.Timestamp,
	})
	return out
}

func (t *Translator) isLocal(ip string) bool {
	if t.Local == nil {
		return false
	}
	return t.Local(ip)
}

func (t *Translator) lookup(protocol string, port int) int32 {
	if t.Attributor == nil || port <= 0 {
		return 0
	}
	pid, ok := t.Attributor.Lookup(protocol, port)
	if !ok {
		return 0
	}
	return pid
}
