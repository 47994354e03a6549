package features

import "math"

// ShannonEntropy returns the entropy in bits per character of s, computed
// over its rune distribution. The empty string has entropy 0.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	count := map[rune]int{}
	n := 0
	for _, r := range s {
		count[r]++
		n++
	}
	h := 0.0
	total := float64(n)
	for _, c := range count {
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

// UniqueChars returns the number of distinct runes in s.
func UniqueChars(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
