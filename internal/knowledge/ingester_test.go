package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/types"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Flowchart Syntax</title><style>body{color:red}</style></head>
<body>
<nav>Home | Docs</nav>
<main>
<h1>Flowcharts</h1>
<p>Flowcharts are composed of <b>nodes</b> and edges.</p>
<script>var tracking = "should not appear";</script>
<pre><code>flowchart TD
    A["Start"] --> B["End"]</code></pre>
</main>
</body>
</html>`

func TestIngester_NoSources(t *testing.T) {
	_, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDocuments))
	assert.Equal(t, types.NO_DOCUMENTS, types.CodeOf(err))
}

func TestIngester_OnlyEmptyOrMissingSources(t *testing.T) {
	sources := []Source{
		{Kind: SourcePDF, Location: filepath.Join(t.TempDir(), "absent.pdf")},
		{Kind: SourceText, Location: "blank", Text: "   "},
	}
	_, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), sources)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestIngester_TextSources(t *testing.T) {
	units, stats, err := NewIngester(IngesterConfig{}).IngestWithStats(context.Background(), []Source{
		{Kind: SourceText, Location: "one", Text: "first"},
		{Kind: SourceText, Location: "two", Text: "second"},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "first", units[0].Text)
	assert.Equal(t, "second", units[1].Text)
	assert.Equal(t, 2, stats.Units)
	assert.Equal(t, 0, stats.Skipped)
}

func TestIngester_URLExtractsVisibleText(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	ing := NewIngester(IngesterConfig{UserAgent: "threatviz-test"})
	units, err := ing.Ingest(context.Background(), []Source{{Kind: SourceURL, Location: srv.URL}})
	require.NoError(t, err)
	require.Len(t, units, 1)

	unit := units[0]
	assert.Equal(t, "threatviz-test", gotUA)
	assert.Equal(t, "Flowchart Syntax", unit.Title)
	assert.Equal(t, SourceURL, unit.Kind)
	assert.Contains(t, unit.Text, "Flowcharts are composed of nodes and edges.")
	assert.Contains(t, unit.Text, "flowchart TD\n    A[\"Start\"] --> B[\"End\"]")
	assert.NotContains(t, unit.Text, "tracking")
	assert.NotContains(t, unit.Text, "color:red")
	assert.NotContains(t, unit.Text, "Home | Docs")
}

func TestIngester_URLFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), []Source{
		{Kind: SourceText, Location: "ok", Text: "fine"},
		{Kind: SourceURL, Location: srv.URL},
	})
	require.Error(t, err)
	assert.Equal(t, types.INGEST_FAILED, types.CodeOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestIngester_ConcurrentFetchesKeepSourceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// later paths answer sooner
		switch r.URL.Path {
		case "/a":
			time.Sleep(60 * time.Millisecond)
		case "/b":
			time.Sleep(30 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "page "+r.URL.Path)
	}))
	defer srv.Close()

	units, err := NewIngester(IngesterConfig{Parallel: 3}).Ingest(context.Background(), []Source{
		{Kind: SourceURL, Location: srv.URL + "/a"},
		{Kind: SourceURL, Location: srv.URL + "/b"},
		{Kind: SourceURL, Location: srv.URL + "/c"},
	})
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, []string{"page /a", "page /b", "page /c"}, []string{units[0].Text, units[1].Text, units[2].Text})
}

func TestIngester_JSONRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[{"name":"ada","role":"admin"},{"role":"viewer","name":"bob"}]}`), 0o600))

	units, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), []Source{
		{Kind: SourceJSON, Location: path, Selector: "$.users[*]"},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Contains(t, units[0].Text, "ada")
	assert.NotContains(t, units[0].Text, "bob")
	assert.Contains(t, units[1].Text, "bob")
	assert.Equal(t, SourceJSON, units[0].Kind)
}

func TestIngester_JSONInvalidSelector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o600))

	_, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), []Source{
		{Kind: SourceJSON, Location: path, Selector: "$[?("},
	})
	assert.Equal(t, types.INGEST_FAILED, types.CodeOf(err))
}

func TestIngester_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "page.html")
	mdPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(htmlPath, []byte(samplePage), 0o600))
	require.NoError(t, os.WriteFile(mdPath, []byte("# PASTA\n\nSeven stages."), 0o600))

	units, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), []Source{
		{Kind: SourceFile, Location: htmlPath},
		{Kind: SourceFile, Location: mdPath},
		{Kind: SourceFile, Location: filepath.Join(dir, "missing.txt")},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Flowchart Syntax", units[0].Title)
	assert.Equal(t, "# PASTA\n\nSeven stages.", units[1].Text)
}

func TestIngester_UnknownKind(t *testing.T) {
	_, err := NewIngester(IngesterConfig{}).Ingest(context.Background(), []Source{{Kind: "ftp", Location: "x"}})
	assert.Equal(t, types.INGEST_FAILED, types.CodeOf(err))
}
