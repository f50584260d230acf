package profile

import (
	"strconv"
	"strings"
)

const (
	MinAge = 16
	MaxAge = 45
)

// ValidString reports whether s has content after trimming.
func ValidString(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidAge reports whether n is inside the accepted age range.
func ValidAge(n int) bool {
	return n >= MinAge && n <= MaxAge
}

// ParseAge parses trimmed text as a whole number in the accepted range.
func ParseAge(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ValidAge(n) {
		return 0, false
	}
	return n, true
}
