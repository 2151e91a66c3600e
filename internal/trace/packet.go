package trace

import "time"

// Packet holds the fields a capture backend extracts from one frame.
type Packet struct {
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   int
	DstPort   int
	Protocol  string
	Length    int

	// Layer 7 hints
	DNSQuery    string
	DNSResponse bool
	DNSAnswers  []string // A record addresses
	SNI         string
}
