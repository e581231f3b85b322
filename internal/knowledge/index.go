package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/fsx"
	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/knowledge/vector"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// DefaultTopK is the number of chunks returned when callers do not choose.
const DefaultTopK = 5

const embedBatchSize = 64

// ErrCodeInvalidQuery marks a rejected query argument such as k < 1.
const ErrCodeInvalidQuery types.ErrorCode = "INVALID_QUERY"

// ErrIndexCorrupt matches any load failure of a persisted index.
var ErrIndexCorrupt = types.NewError(types.INDEX_CORRUPT, "persisted index is unreadable")

// ErrIndexNotFound is returned by Load when no index of that name exists.
var ErrIndexNotFound = types.NewError(types.INDEX_NOT_FOUND, "index not found")

// Index is an in-memory set of (embedding, chunk) pairs in corpus order.
// It is immutable once built or loaded and safe for concurrent queries.
type Index struct {
	manifest Manifest
	records  []vector.Record
	embedder embedder.Embedder
}

// BuildIndex embeds every chunk with emb and returns the resulting index.
// All vectors must share one dimension.
func BuildIndex(ctx context.Context, name string, chunks []Chunk, opts ChunkOptions, emb embedder.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, types.WrapError(types.NO_DOCUMENTS, "cannot build an index from zero chunks", ErrNoDocuments)
	}

	records := make([]vector.Record, len(chunks))
	dims := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}
		vecs, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, types.NewError(types.EMBEDDING_FAILED,
				fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vecs), len(texts)))
		}

		for i, vec := range vecs {
			if dims == 0 {
				dims = len(vec)
			}
			if len(vec) == 0 || len(vec) != dims {
				return nil, types.NewError(types.EMBEDDING_FAILED,
					fmt.Sprintf("chunk %d embedded to %d dimensions, expected %d", start+i, len(vec), dims))
			}
			c := chunks[start+i]
			records[start+i] = vector.Record{
				Ordinal:   c.Ordinal,
				Source:    c.Source,
				Title:     c.Title,
				Page:      c.Page,
				Content:   c.Text,
				Embedding: vec,
			}
		}
	}

	digest, err := corpusDigest(chunks)
	if err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to digest corpus", err)
	}

	return &Index{
		manifest: Manifest{
			Version:      manifestVersion,
			Name:         name,
			Model:        emb.Model(),
			Dimensions:   dims,
			Chunks:       len(records),
			ChunkSize:    opts.Size,
			ChunkOverlap: opts.Overlap,
			Sources:      distinctSources(chunks),
			Digest:       digest,
			BuiltAt:      time.Now().UTC(),
		},
		records:  records,
		embedder: emb,
	}, nil
}

// Manifest returns the index description.
func (ix *Index) Manifest() Manifest {
	return ix.manifest
}

// Len returns the number of chunks.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Query embeds text and returns the k nearest chunks, nearest first. Fewer
// than k hits are returned only when the index holds fewer than k chunks.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k < 1 {
		return nil, types.NewError(ErrCodeInvalidQuery, fmt.Sprintf("k must be at least 1, got %d", k))
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != ix.manifest.Dimensions {
		return nil, types.NewError(types.EMBEDDING_FAILED,
			fmt.Sprintf("query embedded to %d dimensions, index has %d", len(vec), ix.manifest.Dimensions))
	}

	results := vector.Nearest(ix.records, vec, k)
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Rank:     i + 1,
			Distance: r.Distance,
			Chunk: Chunk{
				Ordinal: r.Record.Ordinal,
				Source:  r.Record.Source,
				Title:   r.Record.Title,
				Page:    r.Record.Page,
				Text:    r.Record.Content,
			},
		}
	}
	return hits, nil
}

// Retrieve runs Query and joins the hit texts, nearest first, separated by a
// blank line.
func (ix *Index) Retrieve(ctx context.Context, text string, k int) (string, error) {
	hits, err := ix.Query(ctx, text, k)
	if err != nil {
		return "", err
	}
	return JoinHits(hits), nil
}

// JoinHits concatenates hit texts in rank order.
func JoinHits(hits []Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}

// persist writes the index into dir, which must already exist. The database
// goes first and the manifest last.
func (ix *Index) persist(ctx context.Context, dir string) error {
	store, err := vector.Create(ctx, filepath.Join(dir, databaseFile))
	if err != nil {
		return err
	}
	if err := store.WriteAll(ctx, ix.records); err != nil {
		store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to close index database", err)
	}

	data, err := json.MarshalIndent(ix.manifest, "", "  ")
	if err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to encode manifest", err)
	}
	if err := fsx.WriteFileAtomic(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to write manifest", err)
	}
	return nil
}

// readManifest returns ErrIndexNotFound when dir holds no manifest and
// INDEX_CORRUPT when the manifest is present but unusable.
func readManifest(dir string) (*Manifest, error) {
	// #nosec G304 -- dir is derived from the configured index root.
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to decode manifest", err)
	}
	switch {
	case m.Version != manifestVersion:
		return nil, types.NewError(types.INDEX_CORRUPT, fmt.Sprintf("unsupported manifest version %d", m.Version))
	case m.Dimensions <= 0:
		return nil, types.NewError(types.INDEX_CORRUPT, "manifest has no embedding dimension")
	case m.Chunks <= 0:
		return nil, types.NewError(types.INDEX_CORRUPT, "manifest records an empty index")
	}
	return &m, nil
}

// loadIndex reconstructs a persisted index and verifies it against its
// manifest. It never returns an empty index.
func loadIndex(ctx context.Context, dir string, emb embedder.Embedder) (*Index, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if m.Model != emb.Model() {
		return nil, types.NewError(types.INDEX_CORRUPT,
			fmt.Sprintf("index was built with %q but the configured embedder is %q", m.Model, emb.Model()))
	}
	if d := emb.Dimensions(); d != 0 && d != m.Dimensions {
		return nil, types.NewError(types.INDEX_CORRUPT,
			fmt.Sprintf("index has %d dimensions but the embedder produces %d", m.Dimensions, d))
	}

	store, err := vector.OpenReadOnly(ctx, filepath.Join(dir, databaseFile))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.ReadAll(ctx, m.Dimensions)
	if err != nil {
		return nil, err
	}
	if len(records) != m.Chunks {
		return nil, types.NewError(types.INDEX_CORRUPT,
			fmt.Sprintf("manifest records %d chunks but database holds %d", m.Chunks, len(records)))
	}

	chunks := make([]Chunk, len(records))
	for i, rec := range records {
		if rec.Ordinal != i {
			return nil, types.NewError(types.INDEX_CORRUPT, fmt.Sprintf("chunk ordinal gap at position %d", i))
		}
		chunks[i] = Chunk{Ordinal: rec.Ordinal, Source: rec.Source, Text: rec.Content}
	}
	digest, err := corpusDigest(chunks)
	if err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to digest stored chunks", err)
	}
	if digest != m.Digest {
		return nil, types.NewError(types.INDEX_CORRUPT, "stored chunks do not match manifest digest")
	}

	return &Index{manifest: *m, records: records, embedder: emb}, nil
}
