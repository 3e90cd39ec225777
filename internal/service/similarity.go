package service

import "math"

// Similarity maps a distance to a 0-100 presentation score, (1-d)*100 clamped.
// It assumes a cosine-like metric bounded in [0, 2]; for unbounded metrics the
// clamp still holds but the number stops meaning much. It is not a probability.
func Similarity(distance float64) float64 {
	s := (1 - distance) * 100
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

// roundTenth rounds to one decimal place for display.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
