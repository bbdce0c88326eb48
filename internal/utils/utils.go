package utils

import "fmt"

// ShortenString cuts s after l runes. l == 0 means no limit.
func ShortenString(s string, l int) string {
	r := []rune(s)
	if len(r) > l && l != 0 {
		return fmt.Sprintf("%s...", string(r[:l]))
	}
	return s
}

// MostOcc returns the most frequent element of s. Ties go to the element
// seen first. For an empty slice the zero value is returned.
func MostOcc[T comparable](s []T) T {
	var best T
	counts := map[T]int{}
	for _, e := range s {
		counts[e]++
	}
	max := 0
	for _, e := range s {
		if counts[e] > max {
			max = counts[e]
			best = e
		}
	}
	return best
}
