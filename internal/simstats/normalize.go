package simstats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var unitSuffixes = []string{"GB", "MB", "KB"}

func stripUsageText(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case ',', '(', ')':
			return -1
		}
		return r
	}, text)

	for _, suffix := range unitSuffixes {
		cut := len(stripped) - len(suffix)
		if cut >= 0 && strings.EqualFold(stripped[cut:], suffix) {
			return stripped[:cut]
		}
	}
	return stripped
}

// ParseMb converts a usage figure as rendered by a portal into whole megabytes.
func ParseMb(text string, unit Unit) (int64, error) {
	numeral := stripUsageText(text)
	value, err := strconv.ParseFloat(numeral, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return -1, fmt.Errorf("%w: %q", ErrParseFailure, text)
	}
	if value < 0 {
		return -1, fmt.Errorf("%w: %q is negative", ErrParseFailure, text)
	}

	mb, err := unit.toMb(value)
	if err != nil {
		return -1, err
	}
	// math.Round rounds half away from zero
	return int64(math.Round(mb)), nil
}

// RawToMb is ParseMb with every failure collapsed into -1.
func RawToMb(text string, unit Unit) int64 {
	mb, err := ParseMb(text, unit)
	if err != nil {
		return -1
	}
	return mb
}
