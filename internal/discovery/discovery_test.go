package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"netsift/internal/models"
)

func TestIsValidDomain(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"steamcommunity.com", true},
		{"api.example-game.net", true},
		{"ab.com", false},
		{"abcde.12", false},
		{"AbCdAbCdAbCd.com", false},
		{"203.0.113.5", false},
		{"texture.png", false},
		{"Program.CS", false},
		{"nodots", false},
		{"a.b", false},
		{"example.verylongtld", false},
		{"example.c", false},
		{"Steam.community.com", true},
		{"Steam.Community.COM", false},
	}
	for _, tt := range tests {
		if got := IsValidDomain(tt.in); got != tt.want {
			t.Errorf("IsValidDomain(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"https://api.example.com/v1/login": "api.example.com",
		"cdn.example.com:8080":             "cdn.example.com",
		"..trailing.example.com.":          "trailing.example.com",
		"plain.example.org":                "plain.example.org",
		"/leading/slash.example":           "/leading/slash.example",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractStrings(t *testing.T) {
	t.Run("mixed buffer", func(t *testing.T) {
		got := ExtractStrings([]byte("xx\x00steamcommunity.com\x00\x01garbage\x02"))
		if !slices.Contains(got, "steamcommunity.com") {
			t.Fatalf("ExtractStrings() = %q, missing steamcommunity.com", got)
		}
		if slices.Contains(got, "xxsteamcommunity.com") {
			t.Errorf("prefix leaked across a NUL: %q", got)
		}
		var valid []string
		for _, tok := range got {
			if c := Clean(tok); IsValidDomain(c) {
				valid = append(valid, c)
			}
		}
		if !slices.Equal(valid, []string{"steamcommunity.com"}) {
			t.Errorf("valid candidates = %q", valid)
		}
	})

	t.Run("utf16", func(t *testing.T) {
		var buf []byte
		buf = append(buf, 0xff, 0xfe)
		for _, c := range []byte("host.example.com") {
			buf = append(buf, c, 0)
		}
		buf = append(buf, 0x01, 0x02)
		got := ExtractStrings(buf)
		if !slices.Contains(got, "host.example.com") {
			t.Errorf("ExtractStrings() = %q, missing wide string", got)
		}
	})

	t.Run("short runs", func(t *testing.T) {
		if got := ExtractStrings([]byte("abcd\x00efg")); len(got) != 0 {
			t.Errorf("ExtractStrings() = %q, want none", got)
		}
	})

	t.Run("run at end of buffer", func(t *testing.T) {
		got := ExtractStrings([]byte("\x01\x02tail.example.net"))
		if !slices.Equal(got, []string{"tail.example.net"}) {
			t.Errorf("ExtractStrings() = %q", got)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		domain, file string
		want         string
	}{
		{"auth.example.com", "game.dll", KindAPI},
		{"cdn.example.com", "game.dll", KindUpdate},
		{"metrics.example.com", "game.dll", KindTelemetry},
		{"discord.gg", "game.dll", KindDiscord},
		{"telegram.org", "game.dll", KindTelegram},
		{"servers.example.com", "settings.INI", KindConfig},
		{"servers.example.com", "game.dll", KindArtifact},
		{"api.discord.com", "settings.json", KindAPI},
	}
	for _, tt := range tests {
		if got := Classify(tt.domain, tt.file).Kind; got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.domain, tt.file, got, tt.want)
		}
	}
}

type collectingSink struct {
	mu       sync.Mutex
	added    int
	statuses []string
}

func (s *collectingSink) Notify(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch n.Kind {
	case models.RecordAdded:
		s.added++
	case models.StatusChanged:
		s.statuses = append(s.statuses, n.Status)
	}
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"bin/game.dll":        "\x00\x01https://api.example-game.com/v2\x00junk\x00cdn.example-game.com\x00",
		"bin/other.dll":       "\x00API.EXAMPLE-GAME.COM\x00",
		"config/settings.ini": "server=lobby.example-game.com:7777\n",
		"media/intro.mp4":     "\x00skipped.example.com\x00",
		"textures/atlas.dat":  "\x00atlas.png\x00",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func domains(recs []models.TrafficRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Domain)
	}
	sort.Strings(out)
	return out
}

func TestScan(t *testing.T) {
	root := writeTree(t)
	sink := &collectingSink{}

	recs, err := Scan(context.Background(), root, &ScanConfig{Workers: 2, ProgressEvery: 1, Sink: sink})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"api.example-game.com", "cdn.example-game.com", "lobby.example-game.com"}
	if got := domains(recs); !slices.Equal(got, want) {
		t.Fatalf("domains = %q, want %q", got, want)
	}
	for _, r := range recs {
		if r.RemoteAddress != models.AddressFile || r.Status != models.StatusFound {
			t.Errorf("record %q: address %q status %q", r.Domain, r.RemoteAddress, r.Status)
		}
		if r.Domain == "lobby.example-game.com" && (r.Protocol != KindConfig || r.ProviderName != "settings.ini") {
			t.Errorf("config record = %+v", r)
		}
	}

	if sink.added != len(want) {
		t.Errorf("added notifications = %d, want %d", sink.added, len(want))
	}
	last := sink.statuses[len(sink.statuses)-1]
	if last != "Done. Unique records found: 3" {
		t.Errorf("final status = %q", last)
	}
	progress := 0
	for _, s := range sink.statuses {
		if strings.HasPrefix(s, "Scan: ") {
			progress++
		}
	}
	if progress != 4 {
		t.Errorf("progress updates = %d, want 4", progress)
	}
}

func TestScan_Idempotent(t *testing.T) {
	root := writeTree(t)
	first, err := Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(domains(first), domains(second)) {
		t.Errorf("rescan differs: %q vs %q", domains(first), domains(second))
	}
}

func TestScan_SkipsLargeFiles(t *testing.T) {
	root := t.TempDir()
	content := []byte("\x00big.example.com\x00")
	if err := os.WriteFile(filepath.Join(root, "big.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	recs, err := Scan(context.Background(), root, &ScanConfig{MaxFileSize: int64(len(content))})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("oversized file was scanned: %q", domains(recs))
	}
}

func TestScan_Errors(t *testing.T) {
	if _, err := Scan(context.Background(), " ", nil); !errors.Is(err, ErrEmptyRoot) {
		t.Errorf("empty root error = %v", err)
	}
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("missing root returned no error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, writeTree(t), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled scan error = %v", err)
	}
}
