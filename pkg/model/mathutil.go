package model

import "math"

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func pow(base float64, exp float32) float64 {
	return math.Pow(base, float64(exp))
}
