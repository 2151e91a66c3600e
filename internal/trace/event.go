// Package trace defines the typed events a live trace source delivers and
// the helpers shared by the capture backends.
package trace

import "time"

// Event is one of ProcessStart, Connect, DNSAnswer or TLSHello.
type Event interface {
	// ProcessID is the originating process, 0 when unknown.
	ProcessID() int32
	isEvent()
}

// ProcessStart reports a process that began after the subscription started.
type ProcessStart struct {
	PID  int32
	Name string
}

// Connect reports a TCP connect or a TCP/UDP send towards Address.
type Connect struct {
	PID      int32
	Address  string
	Port     int
	Protocol string
	Time     time.Time
}

// DNSAnswer reports a completed DNS query. Results is the raw result
// payload; IPv4 literals embedded in it are the resolved addresses.
type DNSAnswer struct {
	PID       int32
	QueryName string
	Results   string
}

// TLSHello reports the server name a process sent in a TLS ClientHello.
type TLSHello struct {
	PID        int32
	ServerName string
}

func (e ProcessStart) ProcessID() int32 { return e.PID }
func (e Connect) ProcessID() int32      { return e.PID }
func (e DNSAnswer) ProcessID() int32    { return e.PID }
func (e TLSHello) ProcessID() int32     { return e.PID }

func (ProcessStart) isEvent() {}
func (Connect) isEvent()      {}
func (DNSAnswer) isEvent()    {}
func (TLSHello) isEvent()     {}

// KindOf returns a short name for the event variant, used as a metric label.
func KindOf(e Event) string {
	switch e.(type) {
	case ProcessStart:
		return "process_start"
	case Connect:
		return "connect"
	case DNSAnswer:
		return "dns_answer"
	case TLSHello:
		return "tls_hello"
	default:
		return "unknown"
	}
}
