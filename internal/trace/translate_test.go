package trace

import (
	"testing"
	"time"
)

type fakeAttributor map[int]int32

func (f fakeAttributor) Lookup(_ string, port int) (int32, bool) {
	pid, ok := f[port]
	return pid, ok
}

func newTestTranslator() *Translator {
	return &Translator{
		Local:      func(ip string) bool { return ip == "192.168.1.10" },
		Attributor: fakeAttributor{50000: 4242, 50001: 4242},
	}
}

func TestTranslator_OutboundConnect(t *testing.T) {
	tr := newTestTranslator()
	ts := time.Now()

	events := tr.Events(Packet{
		Timestamp: ts,
		SrcIP:     "192.168.1.10", DstIP: "185.25.182.10",
		SrcPort: 50000, DstPort: 27015,
		Protocol: "UDP",
	})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	c, ok := events[0].(Connect)
	if !ok {
		t.Fatalf("got %T, want Connect", events[0])
	}
	if c.PID != 4242 || c.Address != "185.25.182.10" || c.Port != 27015 || c.Protocol != "UDP" || !c.Time.Equal(ts) {
		t.Errorf("unexpected connect: %+v", c)
	}
}

func TestTranslator_ClientHello(t *testing.T) {
	tr := newTestTranslator()
	events := tr.Events(Packet{
		SrcIP: "192.168.1.10", DstIP: "104.18.1.1",
		SrcPort: 50001, DstPort: 443,
		Protocol: "TCP", SNI: "api.example.com",
	})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	hello, ok := events[0].(TLSHello)
	if !ok || hello.PID != 4242 || hello.ServerName != "api.example.com" {
		t.Errorf("unexpected first event: %#v", events[0])
	}
	if KindOf(events[1]) != "connect" {
		t.Errorf("second event kind = %s", KindOf(events[1]))
	}
}

func TestTranslator_InboundDNSResponse(t *testing.T) {
	tr := newTestTranslator()
	events := tr.Events(Packet{
		SrcIP: "1.1.1.1", DstIP: "192.168.1.10",
		SrcPort: 53, DstPort: 50000,
		Protocol:    "UDP",
		DNSQuery:    "cdn.example.com",
		DNSResponse: true,
		DNSAnswers:  []string{"203.0.113.7", "203.0.113.8"},
	})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ans, ok := events[0].(DNSAnswer)
	if !ok {
		t.Fatalf("got %T, want DNSAnswer", events[0])
	}
	if ans.PID != 4242 || ans.QueryName != "cdn.example.com" || ans.Results != "203.0.113.7;203.0.113.8" {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func TestTranslator_IgnoresInboundAndUnattributed(t *testing.T) {
	tr := newTestTranslator()
	if ev := tr.Events(Packet{SrcIP: "8.8.8.8", DstIP: "192.168.1.10", Protocol: "TCP", SrcPort: 443, DstPort: 50000}); len(ev) != 0 {
		t.Errorf("inbound packet produced %v", ev)
	}

	ev := tr.Events(Packet{SrcIP: "192.168.1.10", DstIP: "8.8.8.8", Protocol: "TCP", SrcPort: 1234, DstPort: 443})
	if len(ev) != 1 || ev[0].ProcessID() != 0 {
		t.Errorf("unattributed packet: %v", ev)
	}
}
