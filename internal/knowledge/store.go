package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// StoreConfig wires a Store. Root, Embedder and Ingester are required.
type StoreConfig struct {
	// Root is the directory holding one subdirectory per named index.
	Root string

	Embedder embedder.Embedder
	Ingester *Ingester

	// ChunkOptions defaults to DefaultChunkOptions.
	ChunkOptions ChunkOptions

	// Corpus is ingested by RetrieveOrBuild when the named index is absent.
	Corpus []Source

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Store owns the on-disk lifecycle of named indexes. It holds no cached
// index state; every load reads the persisted artifact.
type Store struct {
	root     string
	embedder embedder.Embedder
	ingester *Ingester
	chunker  *Chunker
	corpus   []Source
	logger   *slog.Logger
	tracer   trace.Tracer

	builds singleflight.Group
}

// NewStore validates cfg and creates the index root if needed.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Root == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "index root directory is required")
	}
	if cfg.Embedder == nil {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "embedder is required")
	}
	if cfg.Ingester == nil {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "ingester is required")
	}

	opts := cfg.ChunkOptions
	if opts == (ChunkOptions{}) {
		opts = DefaultChunkOptions()
	}
	chunker, err := NewChunker(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to create index root", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("threatviz/knowledge")
	}

	return &Store{
		root:     cfg.Root,
		embedder: cfg.Embedder,
		ingester: cfg.Ingester,
		chunker:  chunker,
		corpus:   cfg.Corpus,
		logger:   logger.With("component", "knowledge-store"),
		tracer:   tracer,
	}, nil
}

// Path returns the directory a named index lives in. The live files sit in
// the generation that Path/CURRENT names.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether an index named name has been published. It does
// not verify the artifact; Load does. A damaged index still exists.
func (s *Store) Exists(name string) bool {
	if validateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.Path(name), currentFile))
	return err == nil && info.Mode().IsRegular()
}

// BuildAndPersist ingests sources, chunks and embeds them, and atomically
// replaces any existing index named name. The index is written to a new
// generation and published by swapping the CURRENT pointer, so readers see
// either the previous artifact or the new one.
func (s *Store) BuildAndPersist(ctx context.Context, name string, sources []Source) (*Index, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "threatviz.knowledge.build",
		trace.WithAttributes(
			attribute.String("index.name", name),
			attribute.Int("index.sources", len(sources)),
		))
	defer span.End()

	start := time.Now()
	ix, err := s.build(ctx, name, sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("index.chunks", ix.Len()))
	s.logger.InfoContext(ctx, "index built",
		"index.name", name,
		"chunks", ix.Len(),
		"dimensions", ix.manifest.Dimensions,
		"digest", ix.manifest.Digest,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ix, nil
}

func (s *Store) build(ctx context.Context, name string, sources []Source) (*Index, error) {
	units, err := s.ingester.Ingest(ctx, sources)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.Chunk(units)

	ix, err := BuildIndex(ctx, name, chunks, s.chunker.Options(), s.embedder)
	if err != nil {
		return nil, err
	}

	indexDir := s.Path(name)
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to create index directory", err)
	}
	staging, err := os.MkdirTemp(indexDir, stagingPattern)
	if err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to create staging directory", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
			// Only succeeds when no earlier generation exists.
			_ = os.Remove(indexDir)
		}
	}()

	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to prepare staging directory", err)
	}
	if err := ix.persist(ctx, staging); err != nil {
		return nil, err
	}
	gen, err := publishGeneration(indexDir, staging)
	if err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to publish index", err)
	}
	published = true

	if err := pruneGenerations(indexDir, gen); err != nil {
		s.logger.WarnContext(ctx, "failed to remove old index generations", "index.name", name, "error", err)
	}
	return ix, nil
}

// Load reads and verifies the persisted index named name. A missing index is
// ErrIndexNotFound; anything unreadable is INDEX_CORRUPT.
func (s *Store) Load(ctx context.Context, name string) (*Index, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	ix, err := s.loadCurrent(ctx, name)
	if err != nil {
		// A concurrent publish can prune the generation CURRENT named when
		// it was read. The second read resolves the pointer again.
		ix, err = s.loadCurrent(ctx, name)
	}
	if err != nil {
		if !errors.Is(err, ErrIndexNotFound) {
			s.logger.ErrorContext(ctx, "persisted index failed verification", "index.name", name, "error", err)
		}
		return nil, err
	}
	return ix, nil
}

func (s *Store) loadCurrent(ctx context.Context, name string) (*Index, error) {
	dir, err := currentGeneration(s.Path(name))
	if err != nil {
		return nil, err
	}
	ix, err := loadIndex(ctx, dir, s.embedder)
	if errors.Is(err, ErrIndexNotFound) {
		return nil, types.NewError(types.INDEX_CORRUPT,
			fmt.Sprintf("index pointer names generation %s, which holds no manifest", filepath.Base(dir)))
	}
	return ix, err
}

// RetrieveOrBuild queries the index named name, building it from the
// configured corpus first if it does not exist. Concurrent first callers in
// this process share one build; separate processes may race, and the last
// publisher wins.
func (s *Store) RetrieveOrBuild(ctx context.Context, name, text string, k int) (string, error) {
	ctx, span := s.tracer.Start(ctx, "threatviz.knowledge.query",
		trace.WithAttributes(
			attribute.String("index.name", name),
			attribute.Int("index.k", k),
		))
	defer span.End()

	ix, err := s.loadOrBuild(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	result, err := ix.Retrieve(ctx, text, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}

// loadOrBuild joins concurrent first callers on one build. The build runs
// detached from any single caller's cancellation, and each caller stops
// waiting when its own ctx ends.
func (s *Store) loadOrBuild(ctx context.Context, name string) (*Index, error) {
	if s.Exists(name) {
		return s.Load(ctx, name)
	}

	buildCtx := context.WithoutCancel(ctx)
	results := s.builds.DoChan(name, func() (any, error) {
		if s.Exists(name) {
			return s.Load(buildCtx, name)
		}
		s.logger.InfoContext(buildCtx, "index absent, building from default corpus",
			"index.name", name, "sources", len(s.corpus))
		return s.BuildAndPersist(buildCtx, name, s.corpus)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "joined in-flight index build", "index.name", name)
		}
		return res.Val.(*Index), nil
	}
}

// Status describes the named index without loading its vectors.
func (s *Store) Status(name string) (*Status, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	status := &Status{Name: name, Path: s.Path(name)}

	dir, err := currentGeneration(s.Path(name))
	var m *Manifest
	if err == nil {
		status.Generation = filepath.Base(dir)
		m, err = readManifest(dir)
	}
	switch {
	case errors.Is(err, ErrIndexNotFound) && status.Generation == "":
		status.Health = types.Degraded("index has not been built")
	case err != nil:
		status.Exists = true
		status.Health = types.Unhealthy(err.Error())
	default:
		status.Exists = true
		status.Manifest = m
		status.Health = types.Healthy(fmt.Sprintf("%d chunks, %d dimensions", m.Chunks, m.Dimensions))
	}
	return status, nil
}

// Retriever binds a Store to one index name for use as a pipeline dependency.
func (s *Store) Retriever(name string) *Retriever {
	return &Retriever{store: s, name: name}
}

// Retriever serves top-k context from a single named index, building it on
// first use.
type Retriever struct {
	store *Store
	name  string
}

// Retrieve returns the k nearest chunks for query, joined nearest first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	return r.store.RetrieveOrBuild(ctx, r.name, query, k)
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid index name %q: use letters, digits, '.', '_' or '-'", name))
	}
	return nil
}
