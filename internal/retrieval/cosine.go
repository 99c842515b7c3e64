package retrieval

import "math"

// cosineSimilarity returns dot(a,b) / (‖a‖·‖b‖) for equal-length vectors.
// A zero norm on either side yields 0 rather than a division fault; callers
// verify dimensions before calling, so the lengths are equal by construction.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
