package dao

import (
	"math"
	"sort"

	"kokoronote/model"
)

// normalize returns a unit-length copy so dot product equals cosine similarity.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// topKBySimilarity scores candidates against the query vector and returns the
// k most similar, best first. 维度不一致的行直接跳过。
func topKBySimilarity(candidates []model.Note, query []float32, k int) []model.Note {
	if k <= 0 || len(query) == 0 {
		return nil
	}
	nq := normalize(query)
	type scored struct {
		note  model.Note
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, n := range candidates {
		if len(n.Embedding) != len(nq) {
			continue
		}
		ranked = append(ranked, scored{note: n, score: dotProduct(nq, normalize(n.Embedding))})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]model.Note, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.note)
	}
	return out
}
