package trace

import (
	"encoding/binary"
	"errors"
)

var errNotClientHello = errors.New("not a TLS ClientHello")

const (
	tlsRecordHandshake  = 0x16
	tlsClientHello      = 0x01
	tlsExtServerName    = 0x0000
	tlsServerNameHostID = 0x00
)

// ParseSNI extracts the server_name extension from a TLS record carrying a
// ClientHello. The hello must fit in the given payload.
func ParseSNI(payload []byte) (string, error) {
	r := reader{b: payload}

	if ct, ok := r.u8(); !ok || ct != tlsRecordHandshake {
		return "", errNotClientHello
	}
	if !r.skip(2) { // record version
		return "", errNotClientHello
	}
	recLen, ok := r.u16()
	if !ok {
		return "", errNotClientHello
	}
	r = reader{b: r.rest(int(recLen))}

	if ht, ok := r.u8(); !ok || ht != tlsClientHello {
		return "", errNotClientHello
	}
	helloLen, ok := r.u24()
	if !ok {
		return "", errNotClientHello
	}
	r = reader{b: r.rest(helloLen)}

	// client version + random
	if !r.skip(2 + 32) {
		return "", errNotClientHello
	}
	if !r.skipVec8() || !r.skipVec16() || !r.skipVec8() { // session id, ciphers, compression
		return "", errNotClientHello
	}

	extLen, ok := r.u16()
	if !ok {
		return "", nil // no extensions
	}
	exts := reader{b: r.rest(int(extLen))}
	for exts.len() >= 4 {
		typ, _ := exts.u16()
		l, _ := exts.u16()
		body := exts.rest(int(l))
		if typ != tlsExtServerName {
			continue
		}
		return parseServerNameList(body)
	}
	return "", nil
}

func parseServerNameList(b []byte) (string, error) {
	r := reader{b: b}
	listLen, ok := r.u16()
	if !ok {
		return "", errNotClientHello
	}
	list := reader{b: r.rest(int(listLen))}
	for list.len() >= 3 {
		nameType, _ := list.u8()
		l, _ := list.u16()
		name := list.rest(int(l))
		if nameType == tlsServerNameHostID && len(name) > 0 {
			return string(name), nil
		}
	}
	return "", nil
}

type reader struct {
	b []byte
}

func (r *reader) len() int { return len(r.b) }

func (r *reader) u8() (byte, bool) {
	if len(r.b) < 1 {
		return 0, false
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, true
}

func (r *reader) u16() (uint16, bool) {
	if len(r.b) < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.b)
	r.b = r.b[2:]
	return v, true
}

func (r *reader) u24() (int, bool) {
	if len(r.b) < 3 {
		return 0, false
	}
	v := int(r.b[0])<<16 | int(r.b[1])<<8 | int(r.b[2])
	r.b = r.b[3:]
	return v, true
}

func (r *reader) skip(n int) bool {
	if len(r.b) < n {
		return false
	}
	r.b = r.b[n:]
	return true
}

// rest consumes up to n bytes and returns them.
func (r *reader) rest(n int) []byte {
	if n > len(r.b) {
		n = len(r.b)
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *reader) skipVec8() bool {
	n, ok := r.u8()
	return ok && r.skip(int(n))
}

func (r *reader) skipVec16() bool {
	n, ok := r.u16()
	return ok && r.skip(int(n))
}
