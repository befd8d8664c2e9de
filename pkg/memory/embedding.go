package memory

import "math"

// CosineSimilarity scores two equal-length embedding vectors in [-1,1], a
// pure-Go helper available in the default modernc.org/sqlite build (see
// vec_cgo.go for the cgo extension-loading counterpart). Search does not
// call it: keyword hits are not re-ranked by embedding.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
