package ident

import "math"

// ShannonEntropy computes the symbol-frequency entropy of s in bits per
// symbol. It feeds audit logging and health checks only; generation never
// gates on it.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	var entropy float64
	for _, n := range freq {
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
