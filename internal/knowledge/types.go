// Package knowledge turns reference documents into a persistent semantic
// index and serves top-k context for pipeline prompts.
//
// The lifecycle of a named index is: absent on disk, built from sources,
// persisted atomically, then loaded for every later query until the artifact
// is removed externally. Rebuilds are all-or-nothing.
package knowledge

import (
	"fmt"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// SourceKind identifies how a Source is loaded.
type SourceKind string

const (
	// SourcePDF is a local PDF file, one text unit per page.
	SourcePDF SourceKind = "pdf"
	// SourceURL is a web page fetched over HTTP and reduced to visible text.
	SourceURL SourceKind = "url"
	// SourceFile is a local text, markdown or HTML file.
	SourceFile SourceKind = "file"
	// SourceJSON is a local JSON document; Selector picks records with JSONPath.
	SourceJSON SourceKind = "json"
	// SourceText is inline text carried in the Source itself.
	SourceText SourceKind = "text"
)

// Source describes one reference input.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Location is a file path or URL. For SourceText it is a label.
	Location string `json:"location" yaml:"location" mapstructure:"location"`

	// Text is the content of a SourceText.
	Text string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`

	// Selector is a JSONPath expression for SourceJSON. Defaults to "$".
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty" mapstructure:"selector"`
}

// String returns a short human-readable description.
func (s Source) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.Location)
}

// TextUnit is a uniform piece of loaded text, such as a PDF page, a web page
// or a JSON record.
type TextUnit struct {
	Source string     `json:"source"`
	Kind   SourceKind `json:"kind"`
	Title  string     `json:"title,omitempty"`
	Page   int        `json:"page,omitempty"`
	Text   string     `json:"text"`
}

// Chunk is a fixed-length overlapping window of a TextUnit. Ordinal is the
// chunk's position in the full chunk sequence.
type Chunk struct {
	Ordinal int    `json:"ordinal"`
	Source  string `json:"source"`
	Title   string `json:"title,omitempty"`
	Page    int    `json:"page,omitempty"`
	Offset  int    `json:"offset"`
	Text    string `json:"text"`
}

// ChunkOptions configures the sliding window, measured in characters.
type ChunkOptions struct {
	Size    int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`
	Overlap int `json:"chunk_overlap" yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// DefaultChunkOptions returns an 800 character window with 100 characters of overlap.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: 800, Overlap: 100}
}

// Validate enforces 0 <= overlap < size.
func (o ChunkOptions) Validate() error {
	if o.Size <= 0 {
		return types.NewError(types.INVALID_CHUNK_OPTIONS, fmt.Sprintf("chunk size must be positive, got %d", o.Size))
	}
	if o.Overlap < 0 {
		return types.NewError(types.INVALID_CHUNK_OPTIONS, fmt.Sprintf("chunk overlap must be non-negative, got %d", o.Overlap))
	}
	if o.Overlap >= o.Size {
		return types.NewError(types.INVALID_CHUNK_OPTIONS,
			fmt.Sprintf("chunk overlap (%d) must be less than chunk size (%d)", o.Overlap, o.Size))
	}
	return nil
}

// Hit is one ranked query result.
type Hit struct {
	Rank     int     `json:"rank"`
	Distance float64 `json:"distance"`
	Chunk    Chunk   `json:"chunk"`
}

// Status describes a named index on disk.
type Status struct {
	Name       string             `json:"name"`
	Path       string             `json:"path"`
	Generation string             `json:"generation,omitempty"`
	Exists     bool               `json:"exists"`
	Manifest   *Manifest          `json:"manifest,omitempty"`
	Health     types.HealthStatus `json:"health"`
}

// IngestStats summarizes an ingest run.
type IngestStats struct {
	Sources  int           `json:"sources"`
	Skipped  int           `json:"skipped"`
	Units    int           `json:"units"`
	Duration time.Duration `json:"duration"`
}
