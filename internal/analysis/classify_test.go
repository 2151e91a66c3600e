package analysis

import (
	"testing"

	"netsift/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rec  models.TrafficRecord
		want string
	}{
		{
			name: "voice keyword beats volume",
			rec:  models.TrafficRecord{Protocol: "UDP", Domain: "voice.example.com", PacketCount: 5000},
			want: LabelVoice,
		},
		{
			name: "voice keyword in provider",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: models.NoDomain, ProviderName: "Discord Inc."},
			want: LabelVoice,
		},
		{
			name: "udp sip port",
			rec:  models.TrafficRecord{Protocol: "udp", RemoteAddress: "10.1.1.1:5060"},
			want: LabelVoice,
		},
		{
			name: "udp voice range from connect port",
			rec:  models.TrafficRecord{Protocol: "UDP", RemoteAddress: "10.1.1.1", RemotePort: 16000},
			want: LabelVoice,
		},
		{
			name: "tcp cdn",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: "origin.cloudfront.net", RemotePort: 443},
			want: LabelDownload,
		},
		{
			name: "cdn keyword needs tcp",
			rec:  models.TrafficRecord{Protocol: "UDP", Domain: "cdn.example.com"},
			want: LabelIdle,
		},
		{
			name: "anti-cheat",
			rec:  models.TrafficRecord{Protocol: "UDP", Domain: "client.easyanticheat.net"},
			want: LabelAntiCheat,
		},
		{
			name: "api on 443",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: "login.example.com", RemotePort: 443},
			want: LabelAPIAuth,
		},
		{
			name: "https stream",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: "media.example.com", RemotePort: 443, PacketCount: 501},
			want: LabelHTTPSStream,
		},
		{
			name: "plain web",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: "example.com", RemoteAddress: "1.2.3.4:80"},
			want: LabelWebAPI,
		},
		{
			name: "udp gameplay domain",
			rec:  models.TrafficRecord{Protocol: "UDP", Domain: "eu-matchmaking.example.com"},
			want: LabelGameplay,
		},
		{
			name: "udp game port",
			rec:  models.TrafficRecord{Protocol: "UDP", RemoteAddress: "5.6.7.8:3074"},
			want: LabelGameplay,
		},
		{
			name: "udp cloud gameplay",
			rec:  models.TrafficRecord{Protocol: "UDP", ProviderName: "Amazon.com, Inc.", PacketCount: 101},
			want: LabelCloudGame,
		},
		{
			name: "udp busy dns is not gameplay",
			rec:  models.TrafficRecord{Protocol: "UDP", RemotePort: 53, PacketCount: 2000},
			want: LabelHighTraffic,
		},
		{
			name: "tcp lobby",
			rec:  models.TrafficRecord{Protocol: "TCP", RemotePort: 7000, PacketCount: 51},
			want: LabelLobby,
		},
		{
			name: "idle",
			rec:  models.TrafficRecord{Protocol: "TCP", Domain: models.NoDomain, PacketCount: 1},
			want: LabelIdle,
		},
		{
			name: "non-numeric suffix means port zero",
			rec:  models.TrafficRecord{Protocol: "UDP", RemoteAddress: "host:abc", RemotePort: 3074},
			want: LabelIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.rec); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	rec := models.TrafficRecord{Protocol: "UDP", Domain: "game.example.com", RemotePort: 30001, PacketCount: 300}
	first := Classify(rec)
	for i := 0; i < 100; i++ {
		if got := Classify(rec); got != first {
			t.Fatalf("iteration %d: Classify() = %q, want %q", i, got, first)
		}
	}
}

func TestGetServiceName(t *testing.T) {
	if got := GetServiceName(443); got != "HTTPS" {
		t.Errorf("GetServiceName(443) = %q", got)
	}
	if got := GetServiceName(31337); got != "31337" {
		t.Errorf("GetServiceName(31337) = %q", got)
	}
	if got := GetServiceName(0); got != "-" {
		t.Errorf("GetServiceName(0) = %q", got)
	}
}
