package trace

import (
	"encoding/binary"
	"testing"
)

// clientHello builds a minimal TLS record carrying a ClientHello with a
// server_name extension for host.
func clientHello(host string) []byte {
	u16 := func(v int) []byte {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b
	}

	var sni []byte
	sni = append(sni, 0x00) // host_name
	sni = append(sni, u16(len(host))...)
	sni = append(sni, host...)
	sniList := append(u16(len(sni)), sni...)

	var exts []byte
	// an unrelated extension first (supported_groups)
	exts = append(exts, u16(0x000a)...)
	exts = append(exts, u16(4)...)
	exts = append(exts, 0x00, 0x02, 0x00, 0x1d)
	exts = append(exts, u16(0x0000)...)
	exts = append(exts, u16(len(sniList))...)
	exts = append(exts, sniList...)

	var body []byte
	body = append(body, 0x03, 0x03)          // client version
	body = append(body, make([]byte, 32)...) // random
	body = append(body, 0x00)                // session id
	body = append(body, u16(2)...)           // cipher suites
	body = append(body, 0x13, 0x01)
	body = append(body, 0x01, 0x00) // compression
	body = append(body, u16(len(exts))...)
	body = append(body, exts...)

	hs := []byte{0x01, byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body))}
	hs = append(hs, body...)

	rec := []byte{0x16, 0x03, 0x01}
	rec = append(rec, u16(len(hs))...)
	return append(rec, hs...)
}

func TestParseSNI(t *testing.T) {
	got, err := ParseSNI(clientHello("steamcommunity.com"))
	if err != nil {
		t.Fatalf("ParseSNI() error = %v", err)
	}
	if got != "steamcommunity.com" {
		t.Errorf("ParseSNI() = %q, want steamcommunity.com", got)
	}
}

func TestParseSNI_NotHandshake(t *testing.T) {
	if _, err := ParseSNI([]byte("GET / HTTP/1.1\r\n")); err == nil {
		t.Error("expected error for non-TLS payload")
	}
}

func TestParseSNI_Truncated(t *testing.T) {
	hello := clientHello("example.com")
	for _, n := range []int{0, 3, 9, 20, 44} {
		if _, err := ParseSNI(hello[:n]); err == nil {
			t.Errorf("ParseSNI(hello[:%d]) expected error", n)
		}
	}
}
