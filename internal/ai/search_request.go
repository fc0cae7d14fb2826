package ai

import "strings"

// Bounds for model-proposed similarity queries. The model's output drives
// further data access, so it is treated as untrusted input.
const (
	maxSearchQueries    = 4
	maxSearchQueryRunes = 100
)

// SimilaritySearchRequest 模型提案的相似检索请求
type SimilaritySearchRequest struct {
	Queries []string `json:"queries"`
}

// Sanitize trims, deduplicates and bounds the proposed queries. An empty
// result means retrieval is skipped, never that the caller should fail.
func (r *SimilaritySearchRequest) Sanitize() []string {
	seen := make(map[string]struct{}, len(r.Queries))
	out := make([]string, 0, maxSearchQueries)
	for _, q := range r.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if runes := []rune(q); len(runes) > maxSearchQueryRunes {
			q = string(runes[:maxSearchQueryRunes])
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == maxSearchQueries {
			break
		}
	}
	return out
}
