// Package vector persists (embedding, chunk) pairs and answers exact
// nearest-neighbor queries over them.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Record is one indexed chunk with its embedding. Ordinal is the chunk's
// position in corpus order and is unique within an index.
type Record struct {
	Ordinal   int
	Source    string
	Title     string
	Page      int
	Content   string
	Embedding []float32
}

// Result is a Record paired with its distance from a query vector.
type Result struct {
	Record   Record
	Distance float64
}

// encodeEmbedding serializes a vector as little-endian float32 values.
func encodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding is the inverse of encodeEmbedding. It rejects buffers whose
// length does not match dims exactly.
func decodeEmbedding(data []byte, dims int) ([]float32, error) {
	if len(data) != dims*4 {
		return nil, fmt.Errorf("embedding blob is %d bytes, expected %d", len(data), dims*4)
	}
	embedding := make([]float32, dims)
	for i := range embedding {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding component %d is not finite", i)
		}
		embedding[i] = v
	}
	return embedding, nil
}
