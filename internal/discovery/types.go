package discovery

import (
	"path/filepath"
	"strings"
)

// Provenance labels assigned to scan findings. They fill the record's
// Protocol column.
const (
	KindAPI       = "API Endpoint"
	KindUpdate    = "Update Server"
	KindTelemetry = "Telemetry"
	KindDiscord   = "Discord"
	KindTelegram  = "Telegram"
	KindConfig    = "Config Value"
	KindArtifact  = "Artifact"
)

// Provenance is the label and display color of a finding.
type Provenance struct {
	Kind  string
	Color string
}

var provenanceRules = []struct {
	keywords []string
	p        Provenance
}{
	{[]string{"api", "auth"}, Provenance{KindAPI, "#ADD8E6"}},
	{[]string{"cdn", "update", "download"}, Provenance{KindUpdate, "#90EE90"}},
	{[]string{"telemetry", "logs", "metrics"}, Provenance{KindTelemetry, "Gray"}},
	{[]string{"discord"}, Provenance{KindDiscord, "#7289DA"}},
	{[]string{"telegram"}, Provenance{KindTelegram, "#0088cc"}},
}

var configExtensions = map[string]bool{".cfg": true, ".ini": true, ".json": true}

// Classify labels a lower-cased domain found in file. Domain keywords win
// over the file type.
func Classify(domain, file string) Provenance {
	for _, r := range provenanceRules {
		for _, k := range r.keywords {
			if strings.Contains(domain, k) {
				return r.p
			}
		}
	}
	if configExtensions[strings.ToLower(filepath.Ext(file))] {
		return Provenance{KindConfig, "#E0FFFF"}
	}
	return Provenance{KindArtifact, "White"}
}
