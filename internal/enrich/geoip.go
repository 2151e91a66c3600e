// Package enrich adds provider, location and name information to traffic
// records: GeoIP lookups, reverse DNS and the OS resolver cache.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultGeoIPURL     = "http://ip-api.com/json/"
	DefaultGeoIPTimeout = 3 * time.Second
)

// Geo is the result of a GeoIP lookup.
type Geo struct {
	Country string
	ISP     string
	Org     string
}

// Provider returns the ISP, falling back to the organisation.
func (g Geo) Provider() string {
	if g.ISP != "" {
		return g.ISP
	}
	return g.Org
}

// GeoIP queries an ip-api.com compatible endpoint.
type GeoIP struct {
	BaseURL string
	Client  *http.Client
	Logger  zerolog.Logger
}

// NewGeoIP creates a client with the given timeout.
func NewGeoIP(baseURL string, timeout time.Duration, log zerolog.Logger) *GeoIP {
	if baseURL == "" {
		baseURL = DefaultGeoIPURL
	}
	if timeout <= 0 {
		timeout = DefaultGeoIPTimeout
	}
	return &GeoIP{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
		Logger:  log.With().Str("component", "geoip").Logger(),
	}
}

type geoResponse struct {
	Status      string `json:"status"`
	CountryCode string `json:"countryCode"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
}

// Lookup resolves a public IPv4 address. Private, loopback and non-IP
// addresses are skipped and report false; so does any lookup failure.
func (g *GeoIP) Lookup(ctx context.Context, ip string) (Geo, bool) {
	if !Public(ip) {
		return Geo{}, false
	}
	geo, err := g.lookup(ctx, ip)
	if err != nil {
		g.Logger.Debug().Err(err).Str("ip", ip).Msg("geoip lookup failed")
		return Geo{}, false
	}
	return geo, true
}

func (g *GeoIP) lookup(ctx context.Context, ip string) (Geo, error) {
	url := fmt.Sprintf("%s%s?fields=status,countryCode,isp,org", g.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Geo{}, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return Geo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Geo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Geo{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return Geo{}, fmt.Errorf("lookup status %q", body.Status)
	}
	return Geo{Country: body.CountryCode, ISP: body.ISP, Org: body.Org}, nil
}

// Public reports whether ip is a globally routable IPv4 address.
func Public(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return false
	}
	return !(addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast())
}
