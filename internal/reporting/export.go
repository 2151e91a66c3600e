package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"netsift/internal/models"
)

// ErrEmptySelection is returned when an export mode matches no records.
var ErrEmptySelection = errors.New("nothing to export")

// Selection picks the records an export covers.
type Selection string

const (
	SelectAll      Selection = "all"
	SelectBlocked  Selection = "blocked"
	SelectOK       Selection = "ok"
	SelectSelected Selection = "selected"
)

// ParseSelection accepts a mode name case-insensitively.
func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.ToLower(strings.TrimSpace(s))); sel {
	case SelectAll, SelectBlocked, SelectOK, SelectSelected:
		return sel, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", s)
	}
}

// Match reports whether r belongs to the selection.
func (s Selection) Match(r models.TrafficRecord) bool {
	switch s {
	case SelectAll:
		return true
	case SelectBlocked:
		return r.StatusColor == models.ColorRed
	case SelectOK:
		return r.StatusColor == models.ColorGreen
	case SelectSelected:
		return r.Selected
	default:
		return false
	}
}

// Export file names.
const (
	DomainsFile = "domains.txt"
	TCPFile     = "ips-tcp.txt"
	UDPFile     = "ips-udp.txt"
)

// ExportResult reports how many lines each file received.
type ExportResult struct {
	Dir     string
	Domains int
	TCP     int
	UDP     int
}

func (r ExportResult) String() string {
	return fmt.Sprintf("Domains: %d, TCP: %d, UDP: %d", r.Domains, r.TCP, r.UDP)
}

// Lists holds the distinct export values in first-seen order.
type Lists struct {
	Domains []string
	TCP     []string
	UDP     []string
}

// BuildLists splits the selected records into resolved domains and the
// /24 subnets of unresolved TCP and UDP endpoints.
func BuildLists(records []models.TrafficRecord, sel Selection) Lists {
	var l Lists
	seenDomain := map[string]bool{}
	seenTCP := map[string]bool{}
	seenUDP := map[string]bool{}

	add := func(list *[]string, seen map[string]bool, v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		*list = append(*list, v)
	}

	for _, r := range records {
		if !sel.Match(r) {
			continue
		}
		switch {
		case r.HasDomain():
			add(&l.Domains, seenDomain, r.Domain)
		case r.Protocol == models.ProtocolTCP:
			add(&l.TCP, seenTCP, Subnet24(r.RemoteAddress))
		case r.Protocol == models.ProtocolUDP:
			add(&l.UDP, seenUDP, Subnet24(r.RemoteAddress))
		}
	}
	return l
}

// Subnet24 coarsens a dotted quad to its /24 block. Other input is
// returned unchanged.
func Subnet24(ip string) string {
	p := strings.Split(ip, ".")
	if len(p) != 4 {
		return ip
	}
	return fmt.Sprintf("%s.%s.%s.0/24", p[0], p[1], p[2])
}

// Export writes the three list files for the selected records into dir.
// Nothing is written when the selection is empty.
func Export(dir string, records []models.TrafficRecord, sel Selection) (ExportResult, error) {
	matched := 0
	for _, r := range records {
		if sel.Match(r) {
			matched++
		}
	}
	if matched == 0 {
		return ExportResult{}, fmt.Errorf("%w: mode %q", ErrEmptySelection, sel)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{}, err
	}
	lists := BuildLists(records, sel)
	for name, lines := range map[string][]string{
		DomainsFile: lists.Domains,
		TCPFile:     lists.TCP,
		UDPFile:     lists.UDP,
	} {
		if err := writeLines(filepath.Join(dir, name), lines); err != nil {
			return ExportResult{}, err
		}
	}
	return ExportResult{Dir: dir, Domains: len(lists.Domains), TCP: len(lists.TCP), UDP: len(lists.UDP)}, nil
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
