package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatCell renders a cell as text. Floats use the shortest representation
// that reads back to the same value, in positional notation between 1e-4
// and 1e16 (always with a fractional part) and in exponent notation
// outside it, so whole values stay recognisable as real numbers.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return formatFloat(c)
	case float32:
		return formatFloat(float64(c))
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprint(c)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// isNumeric reports whether a cell is a number rather than text.
func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	}
	return false
}
