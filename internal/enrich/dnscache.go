package enrich

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"netsift/internal/analysis"
	"netsift/internal/models"
)

// ErrUnsupported is returned by ImportDNSCache on systems without ipconfig.
var ErrUnsupported = errors.New("resolver cache import requires Windows")

// DefaultCacheKeywords limits imported cache entries to game and
// platform hosts.
var DefaultCacheKeywords = []string{"ea.com", "google", "steam", "aws", "respawn", "akamai", "discord"}

// ImportDNSCache reads the Windows resolver cache via ipconfig /displaydns.
func ImportDNSCache(ctx context.Context, keywords []string) ([]models.TrafficRecord, error) {
	if runtime.GOOS != "windows" {
		return nil, ErrUnsupported
	}
	out, err := exec.CommandContext(ctx, "ipconfig", "/displaydns").Output()
	if err != nil {
		return nil, fmt.Errorf("ipconfig: %w", err)
	}
	// ipconfig writes the OEM code page; Russian systems use cp866.
	return ParseDisplayDNS(charmap.CodePage866.NewDecoder().Reader(bytes.NewReader(out)), keywords)
}

// ParseDisplayDNS extracts hosts that have an A record from ipconfig
// /displaydns output, keeping those that contain one of keywords.
func ParseDisplayDNS(r io.Reader, keywords []string) ([]models.TrafficRecord, error) {
	if keywords == nil {
		keywords = DefaultCacheKeywords
	}
	var (
		out  []models.TrafficRecord
		seen = map[string]bool{}
		host string
		now  = time.Now()
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		row := strings.TrimSpace(sc.Text())
		switch {
		case row == "":
		case strings.Contains(row, "Record Name") || strings.Contains(row, "Имя записи"):
			host = strings.TrimSpace(row[strings.LastIndexByte(row, ':')+1:])
		case strings.Contains(row, "A (Host)") || strings.Contains(row, "А (хост)"):
			if host == "" || seen[host] || !matchesAny(host, keywords) {
				continue
			}
			seen[host] = true
			out = append(out, models.TrafficRecord{
				Timestamp:     now,
				FirstSeen:     now,
				Domain:        host,
				RemoteAddress: models.AddressDNSCache,
				Protocol:      models.ProtocolDNS,
				Status:        models.StatusCached,
				StatusColor:   models.ColorDefault,
				TrafficType:   analysis.LabelSystem,
			})
		}
	}
	return out, sc.Err()
}

func matchesAny(host string, keywords []string) bool {
	h := strings.ToLower(host)
	for _, k := range keywords {
		if strings.Contains(h, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
