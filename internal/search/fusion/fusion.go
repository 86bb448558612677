// Package fusion blends the lexical and vector score arrays into a single
// relevance signal: min-max normalisation of each array across the candidate
// set, then a weighted combination.
package fusion

import "math"

// DefaultAlpha is the blend weight used when the caller does not supply one.
// Alpha weights the lexical signal; 1-alpha weights the vector signal.
const DefaultAlpha = 0.5

// Normalize min-max scales scores into [0,1] across the slice. When every
// score is identical (including the empty and singleton cases) every
// normalised score is defined as 0, so degenerate sets never divide by zero
// or produce NaN.
func Normalize(scores []float64) []float64 {
	normalized := make([]float64, len(scores))
	if len(scores) == 0 {
		return normalized
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	spread := max - min
	if spread == 0 {
		return normalized
	}
	for i, s := range scores {
		normalized[i] = (s - min) / spread
	}
	return normalized
}

// ClampAlpha bounds the blend weight to [0,1]. A NaN weight falls back to
// DefaultAlpha rather than poisoning every fused score.
func ClampAlpha(alpha float64) float64 {
	if math.IsNaN(alpha) {
		return DefaultAlpha
	}
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// Blend combines two equal-length normalised score arrays into fused scores:
// alpha*lexical + (1-alpha)*vector.
func Blend(lexical, vector []float64, alpha float64) []float64 {
	alpha = ClampAlpha(alpha)
	fused := make([]float64, len(lexical))
	for i := range lexical {
		fused[i] = alpha*lexical[i] + (1-alpha)*vector[i]
	}
	return fused
}

// Fuse normalises both raw score arrays and blends them, returning the
// normalised arrays alongside the fused result.
func Fuse(lexical, vector []float64, alpha float64) (lexNorm, vecNorm, fused []float64) {
	lexNorm = Normalize(lexical)
	vecNorm = Normalize(vector)
	fused = Blend(lexNorm, vecNorm, alpha)
	return lexNorm, vecNorm, fused
}
