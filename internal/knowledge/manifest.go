package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// manifestVersion is bumped whenever the on-disk layout changes.
const manifestVersion = 1

const (
	manifestFile = "manifest.json"
	databaseFile = "index.db"
)

// Manifest describes a persisted index. It is written last, so its presence
// marks a complete artifact.
type Manifest struct {
	Version      int       `json:"version"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	Dimensions   int       `json:"dimensions"`
	Chunks       int       `json:"chunks"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Sources      []string  `json:"sources"`
	Digest       string    `json:"digest"`
	BuiltAt      time.Time `json:"built_at"`
}

type digestEntry struct {
	Ordinal int    `json:"ordinal"`
	Source  string `json:"source"`
	Text    string `json:"text"`
}

// corpusDigest is a sha256 over the RFC 8785 canonical JSON form of the chunk
// sequence. Two builds from the same corpus share a digest.
func corpusDigest(chunks []Chunk) (string, error) {
	entries := make([]digestEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = digestEntry{Ordinal: c.Ordinal, Source: c.Source, Text: c.Text}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal digest entries: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize digest entries: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

func distinctSources(chunks []Chunk) []string {
	seen := make(map[string]bool)
	sources := []string{}
	for _, c := range chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	return sources
}
