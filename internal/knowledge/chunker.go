package knowledge

import (
	"strings"
)

// Chunker splits text units into fixed-size overlapping windows. Boundaries
// are purely length based; no attempt is made to respect sentences or markup.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates opts and returns a Chunker.
func NewChunker(opts ChunkOptions) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{size: opts.Size, overlap: opts.Overlap}, nil
}

// Options returns the window configuration.
func (c *Chunker) Options() ChunkOptions {
	return ChunkOptions{Size: c.size, Overlap: c.overlap}
}

// Chunk splits units in order. Windows advance by size-overlap characters and
// never span two units. Units with only whitespace produce no chunks.
func (c *Chunker) Chunk(units []TextUnit) []Chunk {
	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(units))

	for _, unit := range units {
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}
		runes := []rune(unit.Text)
		for start := 0; start < len(runes); start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, Chunk{
				Ordinal: len(chunks),
				Source:  unit.Source,
				Title:   unit.Title,
				Page:    unit.Page,
				Offset:  start,
				Text:    string(runes[start:end]),
			})
			if end == len(runes) {
				break
			}
		}
	}

	return chunks
}

// ChunkUnits is a convenience wrapper around NewChunker and Chunk.
func ChunkUnits(units []TextUnit, opts ChunkOptions) ([]Chunk, error) {
	c, err := NewChunker(opts)
	if err != nil {
		return nil, err
	}
	return c.Chunk(units), nil
}
