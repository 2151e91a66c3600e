package tshark

import (
	"slices"
	"testing"

	"netsift/internal/trace"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
		want trace.Packet
	}{
		{
			name: "index line",
			line: `{"index":{"_index":"packets-2024-01-01","_type":"doc"}}`,
		},
		{
			name: "malformed",
			line: `{"layers": {`,
		},
		{
			name: "no ip layer",
			line: `{"timestamp":"1704067200000","layers":{"frame_len":["60"]}}`,
		},
		{
			name: "tcp with sni",
			line: `{"timestamp":"1704067200000","layers":{"frame_len":["517"],"ip_src":["192.168.1.10"],"ip_dst":["203.0.113.7"],"tcp_srcport":["51000"],"tcp_dstport":["443"],"tls_handshake_extensions_server_name":["api.example.com"]}}`,
			ok:   true,
			want: trace.Packet{SrcIP: "192.168.1.10", DstIP: "203.0.113.7", SrcPort: 51000, DstPort: 443, Protocol: "TCP", Length: 517, SNI: "api.example.com"},
		},
		{
			name: "dns response",
			line: `{"timestamp":"1704067200000","layers":{"ip_src":["1.1.1.1"],"ip_dst":["192.168.1.10"],"udp_srcport":["53"],"udp_dstport":["40000"],"dns_qry_name":["cdn.example.com"],"dns_flags_response":["1"],"dns_a":["203.0.113.8","203.0.113.9"]}}`,
			ok:   true,
			want: trace.Packet{SrcIP: "1.1.1.1", DstIP: "192.168.1.10", SrcPort: 53, DstPort: 40000, Protocol: "UDP", DNSQuery: "cdn.example.com", DNSResponse: true, DNSAnswers: []string{"203.0.113.8", "203.0.113.9"}},
		},
		{
			name: "dns query ignores answers",
			line: `{"timestamp":"1704067200000","layers":{"ip_src":["192.168.1.10"],"ip_dst":["1.1.1.1"],"udp_srcport":["40000"],"udp_dstport":["53"],"dns_qry_name":["cdn.example.com"],"dns_flags_response":["0"]}}`,
			ok:   true,
			want: trace.Packet{SrcIP: "192.168.1.10", DstIP: "1.1.1.1", SrcPort: 40000, DstPort: 53, Protocol: "UDP", DNSQuery: "cdn.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine([]byte(tt.line))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Timestamp.UnixMilli() != 1704067200000 {
				t.Errorf("timestamp = %v", got.Timestamp)
			}
			got.Timestamp = tt.want.Timestamp
			if got.SrcIP != tt.want.SrcIP || got.DstIP != tt.want.DstIP ||
				got.SrcPort != tt.want.SrcPort || got.DstPort != tt.want.DstPort ||
				got.Protocol != tt.want.Protocol || got.Length != tt.want.Length ||
				got.DNSQuery != tt.want.DNSQuery || got.DNSResponse != tt.want.DNSResponse ||
				got.SNI != tt.want.SNI || !slices.Equal(got.DNSAnswers, tt.want.DNSAnswers) {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	s := &Source{Interface: "eth0"}
	args := s.Args()
	if args[0] != "-i" || args[1] != "eth0" {
		t.Errorf("interface flag missing: %v", args)
	}
	if n := len(args); args[n-2] != "-f" || args[n-1] != "ip and (tcp or udp)" {
		t.Errorf("default capture filter missing: %v", args[n-2:])
	}
	if !slices.Contains(args, "dns.a") {
		t.Error("dns.a field not requested")
	}
}
