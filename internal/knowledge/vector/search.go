package vector

import (
	"math"
	"sort"
)

// Nearest returns up to k records closest to query by Euclidean distance,
// nearest first. Equal distances keep corpus order, so results are fully
// deterministic for a fixed record set and query.
func Nearest(records []Record, query []float32, k int) []Result {
	if k <= 0 || len(records) == 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != len(query) {
			continue
		}
		results = append(results, Result{
			Record:   rec,
			Distance: euclidean(rec.Embedding, query),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.Ordinal < results[j].Record.Ordinal
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
