package trace

import (
	"strings"

	"github.com/miekg/dns"
)

// ParseDNS decodes a DNS message and returns the first question name
// (without the trailing dot), whether it is a response, and the addresses
// of its A records.
func ParseDNS(payload []byte) (query string, response bool, answers []string, err error) {
	var msg dns.Msg
	if err := msg.Unpack(payload); err != nil {
		return "", false, nil, err
	}
	if len(msg.Question) > 0 {
		query = strings.TrimSuffix(msg.Question[0].Name, ".")
	}
	for _, rr := range msg.Answer {
		if a, ok := rr.(*dns.A); ok {
			answers = append(answers, a.A.String())
		}
	}
	return query, msg.Response, answers, nil
}
