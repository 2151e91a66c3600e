package models

import (
	"strings"
	"time"
)

// Sentinel values used in place of a real address or domain.
const (
	NoDomain        = "---"
	AddressFile     = "FILE"
	AddressDNSCache = "DNS Cache"
)

// Protocol labels for live-capture records.
const (
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
	ProtocolDNS = "DNS"
)

// Probe status values and their display colors.
const (
	StatusUnknown    = "---"
	StatusChecking   = "CHECKING"
	StatusAccessible = "ACCESSIBLE"
	StatusBlocked    = "BLOCKED"
	StatusFound      = "Found"
	StatusCached     = "Cached"

	ColorDefault = "Black"
	ColorGreen   = "Green"
	ColorRed     = "Red"
)

// Key identifies a record inside one capture session.
type Key struct {
	Address  string
	Protocol string
}

func (k Key) String() string {
	return k.Protocol + "/" + k.Address
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	proto, addr, ok := strings.Cut(s, "/")
	if !ok || proto == "" || addr == "" {
		return Key{}, false
	}
	return Key{Address: addr, Protocol: proto}, true
}

// TrafficRecord is one observed remote endpoint of the monitored process.
type TrafficRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	FirstSeen     time.Time `json:"first_seen"`
	ProcessName   string    `json:"process_name,omitempty"`
	RemoteAddress string    `json:"remote_address"`
	RemotePort    int       `json:"remote_port,omitempty"`
	Domain        string    `json:"domain"`
	Protocol      string    `json:"protocol"`
	PacketCount   int64     `json:"packet_count"`
	TrafficType   string    `json:"traffic_type"`

	// Enrichment
	ProviderName string `json:"provider_name,omitempty"`
	GeoLocation  string `json:"geo_location,omitempty"`

	// Reachability probe
	Status      string `json:"status"`
	StatusColor string `json:"status_color"`

	Selected bool `json:"selected"`
}

// Key returns the deduplication key of the record. Records that did not
// come from live capture share a sentinel address and are keyed by domain.
func (r TrafficRecord) Key() Key {
	if r.IsStatic() {
		return Key{Address: r.RemoteAddress + "#" + r.Domain, Protocol: r.Protocol}
	}
	return Key{Address: r.RemoteAddress, Protocol: r.Protocol}
}

// IsStatic reports whether the record came from a file scan or the
// resolver cache rather than live traffic.
func (r TrafficRecord) IsStatic() bool {
	return r.RemoteAddress == AddressFile || r.RemoteAddress == AddressDNSCache
}

// HasDomain reports whether the record carries a resolved hostname.
func (r TrafficRecord) HasDomain() bool {
	return r.Domain != "" && r.Domain != NoDomain
}
