package utils

import (
	"testing"
)

func TestShortenString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "hello..."},
		{"hello", 10, "hello"},
		{"", 3, ""},
		{"abcdef", 0, "abcdef"},
		{"abcdef", 6, "abcdef"},
		{"abcdef", 3, "abc..."},
		{"Müller GmbH", 2, "Mü..."},
	}

	for _, tt := range tests {
		result := ShortenString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("ShortenString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestMostOcc_Int(t *testing.T) {
	tests := []struct {
		input    []int
		expected int
	}{
		{[]int{1, 2, 2, 3, 2, 4}, 2},
		{[]int{5, 5, 5, 5}, 5},
		{[]int{1, 2, 3, 4}, 1},
		{[]int{}, 0}, // zero value for int
	}

	for _, tt := range tests {
		result := MostOcc(tt.input)
		if result != tt.expected {
			t.Errorf("MostOcc(%v) = %v; want %v", tt.input, result, tt.expected)
		}
	}
}

func TestMostOcc_String(t *testing.T) {
	tests := []struct {
		input    []string
		expected string
	}{
		{[]string{"a", "b", "a", "c", "a"}, "a"},
		{[]string{"x", "y", "z"}, "x"},
		{[]string{"foo", "bar", "bar", "foo"}, "foo"},
		{[]string{}, ""}, // zero value for string
	}

	for _, tt := range tests {
		result := MostOcc(tt.input)
		if result != tt.expected {
			t.Errorf("MostOcc(%v) = %v; want %v", tt.input, result, tt.expected)
		}
	}
}
