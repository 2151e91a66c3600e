// Package discovery finds hostnames embedded in files on disk: string
// extraction over raw bytes, a domain validity filter and provenance
// labelling.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"netsift/internal/metrics"
	"netsift/internal/models"
)

// ErrEmptyRoot is returned when Scan is called without a directory.
var ErrEmptyRoot = errors.New("scan root is empty")

// skipExtensions are media, archive and package formats never worth reading.
var skipExtensions = map[string]bool{
	".bik": true, ".bk2": true, ".mp4": true, ".avi": true, ".mkv": true, ".webm": true, ".mov": true,
	".wav": true, ".mp3": true, ".ogg": true, ".wma": true, ".aac": true, ".flac": true,
	".png": true, ".jpg": true, ".jpeg": true, ".tga": true, ".dds": true, ".gif": true, ".psd": true,
	".zip": true, ".rar": true, ".7z": true, ".pak": true, ".vpk": true, ".cas": true, ".cab": true,
}

// ScanConfig controls the scanning behavior.
type ScanConfig struct {
	// Workers bounds parallel file reads. Defaults to runtime.NumCPU().
	Workers int
	// MaxFileSize skips files at or above this size. Defaults to 50 MiB.
	MaxFileSize int64
	// ProgressEvery emits a progress status after this many files.
	// Defaults to 50.
	ProgressEvery int
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
	// Sink receives one RecordAdded per unique domain plus status updates.
	Sink models.Sink
}

const defaultMaxFileSize = 50 << 20

func applyDefaults(cfg *ScanConfig) ScanConfig {
	var out ScanConfig
	if cfg != nil {
		out = *cfg
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = defaultMaxFileSize
	}
	if out.ProgressEvery <= 0 {
		out.ProgressEvery = 50
	}
	if out.Sink == nil {
		out.Sink = models.Discard
	}
	return out
}

// scanState is the set of domains already emitted in one scan.
type scanState struct {
	found sync.Map
	count atomic.Int64
}

func (s *scanState) add(domain string) bool {
	if _, loaded := s.found.LoadOrStore(domain, struct{}{}); loaded {
		return false
	}
	s.count.Add(1)
	return true
}

// Scan walks root and returns one record per unique domain found in the
// files beneath it. Unreadable files are skipped. Cancelling ctx stops the
// scan and returns the records found so far together with ctx.Err().
func Scan(ctx context.Context, root string, cfg *ScanConfig) ([]models.TrafficRecord, error) {
	config := applyDefaults(cfg)
	if strings.TrimSpace(root) == "" {
		return nil, ErrEmptyRoot
	}
	log := config.Logger.With().Str("component", "scan").Str("root", root).Logger()

	status := func(msg string) {
		config.Sink.Notify(models.StatusNotification(msg, time.Now()))
	}
	status("Scanning folder...")

	files, err := listFiles(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	total := len(files)
	log.Info().Int("files", total).Int("workers", config.Workers).Msg("scan started")

	state := &scanState{}
	var (
		mu      sync.Mutex
		records []models.TrafficRecord
		done    atomic.Int64
		wg      sync.WaitGroup
	)
	jobs := make(chan string)

	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				for _, rec := range scanFile(path, config.MaxFileSize, state, log) {
					config.Metrics.ScanFinding()
					mu.Lock()
					records = append(records, rec)
					mu.Unlock()
					config.Sink.Notify(models.RecordNotification(models.RecordAdded, rec))
				}
				config.Metrics.ScanFile()
				if c := done.Add(1); c%int64(config.ProgressEvery) == 0 {
					status(fmt.Sprintf("Scan: %d/%d | Found: %d", c, total, state.count.Load()))
				}
			}
		}()
	}

feed:
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		status(fmt.Sprintf("Scan cancelled. Found: %d", state.count.Load()))
		return records, err
	}
	log.Info().Int("unique", len(records)).Msg("scan finished")
	status(fmt.Sprintf("Done. Unique records found: %d", state.count.Load()))
	return records, nil
}

func listFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// unreadable subtrees are skipped
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if skipExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func scanFile(path string, maxSize int64, state *scanState, log zerolog.Logger) []models.TrafficRecord {
	info, err := os.Stat(path)
	if err != nil || info.Size() >= maxSize {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("read failed")
		return nil
	}

	var out []models.TrafficRecord
	for _, token := range ExtractStrings(data) {
		candidate := Clean(token)
		if candidate == "" || !IsValidDomain(candidate) {
			continue
		}
		domain := strings.ToLower(candidate)
		if !state.add(domain) {
			continue
		}
		out = append(out, newRecord(domain, path))
	}
	return out
}

func newRecord(domain, path string) models.TrafficRecord {
	p := Classify(domain, path)
	now := time.Now()
	return models.TrafficRecord{
		Timestamp:     now,
		FirstSeen:     now,
		RemoteAddress: models.AddressFile,
		Domain:        domain,
		Protocol:      p.Kind,
		TrafficType:   p.Kind,
		ProviderName:  filepath.Base(path),
		Status:        models.StatusFound,
		StatusColor:   p.Color,
	}
}
