package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxPageBytes  = 5 << 20
	defaultFetchParallel = 4
	defaultUserAgent     = "threatviz-knowledge/1.0"
)

// ErrNoDocuments is returned when ingest yields no text at all.
var ErrNoDocuments = types.NewError(types.NO_DOCUMENTS, "no reference documents loaded")

// IngesterConfig configures an Ingester. Zero values take defaults.
type IngesterConfig struct {
	HTTPClient *http.Client
	UserAgent  string

	// MaxPageBytes caps the size of a fetched web page.
	MaxPageBytes int64

	// Parallel bounds concurrent web fetches.
	Parallel int

	// Limiter paces outbound web fetches; nil means unlimited.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// Ingester loads heterogeneous sources into an ordered sequence of TextUnits.
type Ingester struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	parallel  int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewIngester creates an Ingester.
func NewIngester(cfg IngesterConfig) *Ingester {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxPageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPageBytes
	}
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = defaultFetchParallel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingester{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		parallel:  parallel,
		limiter:   cfg.Limiter,
		logger:    logger.With("component", "knowledge-ingester"),
	}
}

// Ingest loads every source and returns their text units in source order.
// Local files that do not exist are skipped with a warning; any other load
// failure aborts the ingest. If nothing usable remains the result is
// ErrNoDocuments.
func (ing *Ingester) Ingest(ctx context.Context, sources []Source) ([]TextUnit, error) {
	units, _, err := ing.IngestWithStats(ctx, sources)
	return units, err
}

// IngestWithStats is Ingest plus a summary of what was loaded.
func (ing *Ingester) IngestWithStats(ctx context.Context, sources []Source) ([]TextUnit, IngestStats, error) {
	start := time.Now()
	stats := IngestStats{Sources: len(sources)}

	if len(sources) == 0 {
		return nil, stats, types.WrapError(types.NO_DOCUMENTS, "no sources configured", ErrNoDocuments)
	}

	slots := make([][]TextUnit, len(sources))
	skipped := make([]bool, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.parallel)
	for i, src := range sources {
		g.Go(func() error {
			units, err := ing.load(gctx, src)
			if errors.Is(err, fs.ErrNotExist) {
				ing.logger.WarnContext(gctx, "reference source not found, skipping", "source", src.String())
				skipped[i] = true
				return nil
			}
			if err != nil {
				return types.WrapError(types.INGEST_FAILED, fmt.Sprintf("failed to load %s", src), err)
			}
			slots[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var units []TextUnit
	for i, slot := range slots {
		if skipped[i] {
			stats.Skipped++
		}
		for _, unit := range slot {
			if strings.TrimSpace(unit.Text) != "" {
				units = append(units, unit)
			}
		}
	}
	stats.Units = len(units)
	stats.Duration = time.Since(start)

	if len(units) == 0 {
		return nil, stats, types.WrapError(types.NO_DOCUMENTS, "sources produced no text", ErrNoDocuments)
	}

	ing.logger.InfoContext(ctx, "reference sources loaded",
		"sources", stats.Sources,
		"skipped", stats.Skipped,
		"units", stats.Units,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return units, stats, nil
}

func (ing *Ingester) load(ctx context.Context, src Source) ([]TextUnit, error) {
	switch src.Kind {
	case SourceText:
		return []TextUnit{{Source: src.Location, Kind: SourceText, Text: src.Text}}, nil
	case SourcePDF:
		return ing.loadPDF(src.Location)
	case SourceURL:
		return ing.loadURL(ctx, src.Location)
	case SourceJSON:
		data, err := readLocal(src.Location)
		if err != nil {
			return nil, err
		}
		return jsonUnits(src.Location, data, src.Selector)
	case SourceFile:
		return ing.loadFile(src)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (ing *Ingester) loadPDF(path string) ([]TextUnit, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	pages, err := extractPDF(path)
	if err != nil {
		return nil, err
	}
	units := make([]TextUnit, 0, len(pages))
	for i, text := range pages {
		units = append(units, TextUnit{
			Source: path,
			Kind:   SourcePDF,
			Title:  filepath.Base(path),
			Page:   i + 1,
			Text:   text,
		})
	}
	return units, nil
}

func (ing *Ingester) loadURL(ctx context.Context, url string) ([]TextUnit, error) {
	if ing.limiter != nil {
		if err := ing.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", ing.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := ing.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, ing.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		return []TextUnit{{Source: url, Kind: SourceURL, Text: string(body)}}, nil
	}

	title, text, err := extractHTML(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return []TextUnit{{Source: url, Kind: SourceURL, Title: title, Text: text}}, nil
}

func (ing *Ingester) loadFile(src Source) ([]TextUnit, error) {
	switch strings.ToLower(filepath.Ext(src.Location)) {
	case ".pdf":
		return ing.loadPDF(src.Location)
	case ".json":
		data, err := readLocal(src.Location)
		if err != nil {
			return nil, err
		}
		return jsonUnits(src.Location, data, src.Selector)
	}

	data, err := readLocal(src.Location)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(src.Location)) {
	case ".html", ".htm":
		title, text, err := extractHTML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return []TextUnit{{Source: src.Location, Kind: SourceFile, Title: title, Text: text}}, nil
	default:
		return []TextUnit{{
			Source: src.Location,
			Kind:   SourceFile,
			Title:  filepath.Base(src.Location),
			Text:   string(data),
		}}, nil
	}
}

func jsonUnits(location string, data []byte, selector string) ([]TextUnit, error) {
	records, err := extractJSON(data, selector)
	if err != nil {
		return nil, err
	}
	units := make([]TextUnit, 0, len(records))
	for _, record := range records {
		units = append(units, TextUnit{Source: location, Kind: SourceJSON, Text: record})
	}
	return units, nil
}
