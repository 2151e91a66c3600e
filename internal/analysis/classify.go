package analysis

import (
	"strconv"
	"strings"

	"netsift/internal/models"
)

// Traffic purpose labels produced by Classify.
const (
	LabelVoice       = "VOICE CHAT"
	LabelDownload    = "DOWNLOAD/UPDATE"
	LabelAntiCheat   = "ANTI-CHEAT"
	LabelAPIAuth     = "API/AUTH"
	LabelHTTPSStream = "HTTPS STREAM"
	LabelWebAPI      = "WEB/API"
	LabelGameplay    = "GAMEPLAY"
	LabelCloudGame   = "GAMEPLAY (CLOUD)"
	LabelLobby       = "LOBBY/CHAT"
	LabelHighTraffic = "HIGH TRAFFIC"
	LabelIdle        = "IDLE/UNKNOWN"
	LabelSystem      = "SYSTEM"
)

var (
	voiceKeywords     = []string{"vivox", "discord", "voice", "rtc", "teamspeak", "sip"}
	cdnKeywords       = []string{"cdn", "akamai", "cloudfront", "fastly", "limelight", "hwcdn", "assets", "download", "patch"}
	antiCheatKeywords = []string{"easyanticheat", "battleye", "vanguard", "vac", "punkbuster"}
	apiKeywords       = []string{"api", "auth", "login", "account", "telemetry", "metrics", "gate", "shop", "store"}
	gameplayKeywords  = []string{"match", "server", "game"}
	cloudHosts        = []string{"amazon", "google", "oracle", "m247", "i3d"}
)

// Classify maps a record's protocol, port, domain, provider and volume
// signals to a traffic purpose label. Rules are evaluated in order and the
// first match wins.
func Classify(r models.TrafficRecord) string {
	protocol := strings.ToUpper(r.Protocol)
	domain := strings.ToLower(r.Domain)
	provider := strings.ToLower(r.ProviderName)
	port := remotePort(r)
	count := r.PacketCount

	either := func(keywords []string) bool {
		return containsAny(domain, keywords) || containsAny(provider, keywords)
	}

	switch {
	case either(voiceKeywords):
		return LabelVoice
	case protocol == models.ProtocolUDP && (port == 5060 || port == 5062 || (port >= 12000 && port <= 17000)):
		return LabelVoice
	case protocol == models.ProtocolTCP && either(cdnKeywords):
		return LabelDownload
	case either(antiCheatKeywords):
		return LabelAntiCheat
	}

	if protocol == models.ProtocolTCP && (port == 443 || port == 80) {
		if containsAny(domain, apiKeywords) {
			return LabelAPIAuth
		}
		if count > 500 {
			return LabelHTTPSStream
		}
		return LabelWebAPI
	}

	if protocol == models.ProtocolUDP {
		if containsAny(domain, gameplayKeywords) || IsGamePort(port) {
			return LabelGameplay
		}
		if count > 100 && port != 53 && port != 123 {
			if containsAny(provider, cloudHosts) {
				return LabelCloudGame
			}
			return LabelGameplay
		}
	}

	if protocol == models.ProtocolTCP && count > 50 && port != 443 && port != 80 {
		return LabelLobby
	}
	if count > 1000 {
		return LabelHighTraffic
	}
	return LabelIdle
}

// IsGamePort reports whether port falls in one of the common game server ranges.
func IsGamePort(port int) bool {
	return (port >= 27000 && port <= 27100) ||
		(port >= 30000 && port <= 32000) ||
		(port >= 37000 && port <= 38000) ||
		port == 3074
}

// remotePort takes the numeric suffix after the last ':' of the address and
// falls back to the port recorded from the connect event.
func remotePort(r models.TrafficRecord) int {
	if i := strings.LastIndexByte(r.RemoteAddress, ':'); i >= 0 {
		if p, err := strconv.Atoi(r.RemoteAddress[i+1:]); err == nil {
			return p
		}
		return 0
	}
	return r.RemotePort
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
