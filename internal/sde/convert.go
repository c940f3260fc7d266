package sde

// convert.go turns raw CSV cells into the values stored in the mirror.
//
// Cells come out of extract as strings and may be replaced by typed values
// (int64, float64) or nil during transform. The To* functions accept any of
// those forms so a transform only converts what it needs to inspect.
//
// Upstream dumps mark missing values in several ways depending on the tool
// that produced them: an empty cell, the MySQL marker \N, or the literal
// None/NULL/NaN strings. IsNull treats all of them alike.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullMarker is the MySQL dump marker for a missing value.
const NullMarker = `\N`

var nullMarkers = map[string]bool{
	"":     true,
	`\n`:   true,
	"none": true,
	"null": true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
}

// CleanCell trims whitespace and surrounding quotes from a raw cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// IsNull reports whether v represents a missing value.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return nullMarkers[strings.ToLower(CleanCell(x))]
	case float64:
		return math.IsNaN(x)
	default:
		return false
	}
}

// ParseBool reports the truth value of a cell. The second result is false
// when the cell is not a recognised boolean.
// Accepts true/false, t/f, yes/no, y/n and 1/0 in any case.
func ParseBool(v any) (value bool, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, x == 0 || x == 1
	case float64:
		return x != 0, x == 0 || x == 1
	case string:
		switch strings.ToLower(CleanCell(x)) {
		case "true", "t", "yes", "y", "1", "1.0":
			return true, true
		case "false", "f", "no", "n", "0", "0.0":
			return false, true
		}
	}
	return false, false
}

// IsTrue reports whether v is a recognised true value. Unrecognised and
// missing values are false.
func IsTrue(v any) bool {
	b, ok := ParseBool(v)
	return ok && b
}

// ToInt converts a cell to int64. Integral floats ("7.0") are accepted since
// some dump tools widen id columns that contain nulls.
func ToInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int64(x), nil
	case string:
		s := CleanCell(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// ToFloat converts a cell to float64.
func ToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(CleanCell(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// ToText converts a cell to its textual form.
func ToText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// joinKey normalises an id cell for join matching so "100" and "100.0"
// meet. Cells that are not integers join on their cleaned text.
func joinKey(v any) string {
	if i, err := ToInt(v); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return ToText(v)
}
