package knowledge

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/types"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// countingEmbedder records how many batch calls reach the wrapped embedder.
type countingEmbedder struct {
	embedder.Embedder
	batches atomic.Int32
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func testCorpus() []Source {
	return []Source{
		{Kind: SourceText, Location: "pasta", Text: "PASTA has seven stages: define objectives, define technical scope, application decomposition, threat analysis, vulnerability analysis, attack modeling, risk and impact analysis."},
		{Kind: SourceText, Location: "stride", Text: "STRIDE maps threats to spoofing, tampering, repudiation, information disclosure, denial of service and elevation of privilege."},
		{Kind: SourceText, Location: "mermaid", Text: "Mermaid flowchart syntax starts with flowchart TD and uses arrows like A --> B between quoted node labels."},
	}
}

func setupStore(t *testing.T) (*Store, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{Embedder: embedder.NewHashEmbedder(128)}
	store, err := NewStore(StoreConfig{
		Root:         filepath.Join(t.TempDir(), "indexes"),
		Embedder:     emb,
		Ingester:     NewIngester(IngesterConfig{}),
		ChunkOptions: ChunkOptions{Size: 120, Overlap: 20},
		Corpus:       testCorpus(),
	})
	require.NoError(t, err)
	return store, emb
}

func TestStore_BuildPersistLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	assert.False(t, store.Exists("refs"))

	built, err := store.BuildAndPersist(ctx, "refs", testCorpus())
	require.NoError(t, err)
	assert.True(t, store.Exists("refs"))
	assert.Greater(t, built.Len(), 3)

	loaded, err := store.Load(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, built.Len(), loaded.Len())
	assert.Equal(t, built.Manifest().Digest, loaded.Manifest().Digest)
	assert.Equal(t, "hash-bow", loaded.Manifest().Model)
	assert.Equal(t, 128, loaded.Manifest().Dimensions)
	assert.Equal(t, []string{"pasta", "stride", "mermaid"}, loaded.Manifest().Sources)

	before, err := built.Query(ctx, "STRIDE spoofing tampering", 3)
	require.NoError(t, err)
	after, err := loaded.Query(ctx, "STRIDE spoofing tampering", 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "stride", after[0].Chunk.Source)
}

func TestStore_QueryDeterministicAndRanked(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	ix, err := store.BuildAndPersist(ctx, "refs", testCorpus())
	require.NoError(t, err)

	first, err := ix.Query(ctx, "mermaid flowchart arrows", 5)
	require.NoError(t, err)
	require.Len(t, first, 5)
	for i := 0; i < 3; i++ {
		again, err := ix.Query(ctx, "mermaid flowchart arrows", 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Distance, first[i].Distance)
		assert.Equal(t, i+1, first[i].Rank)
	}
	assert.Equal(t, "mermaid", first[0].Chunk.Source)

	joined, err := ix.Retrieve(ctx, "mermaid flowchart arrows", 2)
	require.NoError(t, err)
	assert.Equal(t, first[0].Chunk.Text+"\n\n"+first[1].Chunk.Text, joined)
}

func TestStore_QueryRejectsNonPositiveK(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	ix, err := store.BuildAndPersist(ctx, "refs", testCorpus())
	require.NoError(t, err)

	_, err = ix.Query(ctx, "x", 0)
	assert.Equal(t, ErrCodeInvalidQuery, types.CodeOf(err))
}

func TestStore_QueryReturnsAllWhenFewerThanK(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	ix, err := store.BuildAndPersist(ctx, "tiny", []Source{{Kind: SourceText, Location: "t", Text: "short"}})
	require.NoError(t, err)

	hits, err := ix.Query(ctx, "short", DefaultTopK)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStore_BuildWithNoDocuments(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.BuildAndPersist(context.Background(), "empty", nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.False(t, store.Exists("empty"))

	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed builds must not leave staging directories")
}

func TestStore_LoadAbsent(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestStore_LoadFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, dir string)
	}{
		{
			name: "manifest garbage",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte("{not json"), 0o644))
			},
		},
		{
			name: "database deleted",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, databaseFile)))
			},
		},
		{
			name: "database truncated",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, databaseFile), []byte("SQLite format 3\x00"), 0o644))
			},
		},
		{
			name: "rows removed",
			corrupt: func(t *testing.T, dir string) {
				execSQL(t, filepath.Join(dir, databaseFile), `DELETE FROM chunks WHERE ordinal = 0`)
			},
		},
		{
			name: "chunk text tampered",
			corrupt: func(t *testing.T, dir string) {
				execSQL(t, filepath.Join(dir, databaseFile), `UPDATE chunks SET content = 'tampered' WHERE ordinal = 1`)
			},
		},
		{
			name: "pointer names a missing generation",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.RemoveAll(dir))
			},
		},
		{
			name: "pointer garbage",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(dir), currentFile), []byte("../../etc"), 0o644))
			},
		},
		{
			name: "manifest model mismatch",
			corrupt: func(t *testing.T, dir string) {
				path := filepath.Join(dir, manifestFile)
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				patched := strings.Replace(string(data), `"hash-bow"`, `"text-embedding-3-small"`, 1)
				require.NoError(t, os.WriteFile(path, []byte(patched), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := setupStore(t)
			_, err := store.BuildAndPersist(ctx, "refs", testCorpus())
			require.NoError(t, err)

			dir, err := currentGeneration(store.Path("refs"))
			require.NoError(t, err)
			tt.corrupt(t, dir)

			ix, err := store.Load(ctx, "refs")
			require.Error(t, err)
			assert.Nil(t, ix)
			assert.ErrorIs(t, err, ErrIndexCorrupt)

			_, err = store.RetrieveOrBuild(ctx, "refs", "anything", 1)
			assert.ErrorIs(t, err, ErrIndexCorrupt, "a corrupt index must not be silently rebuilt")
		})
	}
}

func TestStore_RetrieveOrBuildBuildsOnceThenLoads(t *testing.T) {
	ctx := context.Background()
	store, emb := setupStore(t)

	first, err := store.RetrieveOrBuild(ctx, "refs", "seven stages of PASTA", 2)
	require.NoError(t, err)
	assert.True(t, store.Exists("refs"))
	builds := emb.batches.Load()
	require.Greater(t, builds, int32(0))

	second, err := store.RetrieveOrBuild(ctx, "refs", "seven stages of PASTA", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, builds, emb.batches.Load(), "second call must load, not rebuild")
}

func TestStore_ConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	var wg sync.WaitGroup
	results := make([]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = store.RetrieveOrBuild(ctx, "refs", "STRIDE", 1)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "refs", entries[0].Name())
	assert.Len(t, generations(t, store.Path("refs")), 1)
}

// gatedEmbedder blocks every batch until release is closed.
type gatedEmbedder struct {
	embedder.Embedder
	started   chan struct{}
	release   chan struct{}
	once      sync.Once
	sawCancel atomic.Bool
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		g.sawCancel.Store(true)
		return nil, ctx.Err()
	}
	return g.Embedder.EmbedBatch(ctx, texts)
}

func TestStore_CanceledCallerDoesNotFailSharedBuild(t *testing.T) {
	emb := &gatedEmbedder{
		Embedder: embedder.NewHashEmbedder(128),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	store, err := NewStore(StoreConfig{
		Root:         filepath.Join(t.TempDir(), "indexes"),
		Embedder:     emb,
		Ingester:     NewIngester(IngesterConfig{}),
		ChunkOptions: ChunkOptions{Size: 120, Overlap: 20},
		Corpus:       testCorpus(),
	})
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.RetrieveOrBuild(firstCtx, "refs", "STRIDE", 1)
		firstErr <- err
	}()

	<-emb.started
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		text string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		text, err := store.RetrieveOrBuild(context.Background(), "refs", "STRIDE", 1)
		second <- result{text, err}
	}()

	close(emb.release)
	got := <-second
	require.NoError(t, got.err)
	assert.NotEmpty(t, got.text)
	assert.False(t, emb.sawCancel.Load(), "the shared build must not inherit the first caller's cancellation")
	assert.True(t, store.Exists("refs"))
}

func generations(t *testing.T, indexDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(indexDir)
	require.NoError(t, err)
	var gens []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), generationPrefix) {
			gens = append(gens, e.Name())
		}
	}
	return gens
}

func TestStore_RebuildReplacesArtifact(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.BuildAndPersist(ctx, "refs", testCorpus())
		require.NoError(t, err)
	}
	replacement, err := store.BuildAndPersist(ctx, "refs", []Source{{Kind: SourceText, Location: "only", Text: "replacement corpus"}})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, replacement.Manifest().Digest, loaded.Manifest().Digest)
	assert.Equal(t, 1, loaded.Len())

	gens := generations(t, store.Path("refs"))
	assert.Len(t, gens, keepGenerations, "older generations are pruned")
	status, err := store.Status("refs")
	require.NoError(t, err)
	assert.Equal(t, gens[len(gens)-1], status.Generation, "the newest generation is live")
}

func TestStore_LoadDuringRebuilds(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	small := []Source{{Kind: SourceText, Location: "only", Text: "replacement corpus"}}
	full, err := store.BuildAndPersist(ctx, "refs", testCorpus())
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				ix, err := store.Load(ctx, "refs")
				if err != nil {
					errs <- err
					return
				}
				if ix.Len() != 1 && ix.Len() != full.Len() {
					errs <- assert.AnError
					return
				}
			}
		}()
	}

	for i := 0; i < 6; i++ {
		corpus := testCorpus()
		if i%2 == 0 {
			corpus = small
		}
		_, err := store.BuildAndPersist(ctx, "refs", corpus)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "readers must never observe a half-published index")
	}
}

func TestStore_Status(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	status, err := store.Status("refs")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.Equal(t, types.HealthStateDegraded, status.Health.State)

	_, err = store.BuildAndPersist(ctx, "refs", testCorpus())
	require.NoError(t, err)

	status, err = store.Status("refs")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	require.NotNil(t, status.Manifest)
	assert.True(t, status.Health.IsHealthy())
	assert.Equal(t, 120, status.Manifest.ChunkSize)
	assert.Equal(t, 20, status.Manifest.ChunkOverlap)
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	store, _ := setupStore(t)

	for _, name := range []string{"", "../escape", ".hidden", "a/b"} {
		_, err := store.BuildAndPersist(context.Background(), name, testCorpus())
		assert.Error(t, err, name)
		assert.False(t, store.Exists(name))
	}
}

func TestStore_TracesBuild(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store, err := NewStore(StoreConfig{
		Root:     t.TempDir(),
		Embedder: embedder.NewHashEmbedder(32),
		Ingester: NewIngester(IngesterConfig{}),
		Corpus:   testCorpus(),
		Tracer:   provider.Tracer("test"),
	})
	require.NoError(t, err)

	_, err = store.RetrieveOrBuild(context.Background(), "refs", "PASTA", 1)
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{"threatviz.knowledge.build", "threatviz.knowledge.query"}, names)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(StoreConfig{Embedder: embedder.NewHashEmbedder(8), Ingester: NewIngester(IngesterConfig{})})
	assert.Error(t, err)

	_, err = NewStore(StoreConfig{Root: t.TempDir(), Ingester: NewIngester(IngesterConfig{})})
	assert.Error(t, err)

	_, err = NewStore(StoreConfig{
		Root:         t.TempDir(),
		Embedder:     embedder.NewHashEmbedder(8),
		Ingester:     NewIngester(IngesterConfig{}),
		ChunkOptions: ChunkOptions{Size: 10, Overlap: 10},
	})
	assert.Equal(t, types.INVALID_CHUNK_OPTIONS, types.CodeOf(err))
}

func execSQL(t *testing.T, path, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(stmt)
	require.NoError(t, err)
}
