package grader

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// NumericTolerance is the absolute difference under which two numeric
// outputs are considered equal
const NumericTolerance = 0.001

// Compare reports whether an actual output matches the expected output.
// Layers are tried in order and the first applicable one decides:
// trimmed text equality, structural JSON equality, numeric tolerance,
// boolean equality. Anything else is a mismatch.
func Compare(actual, expected string) bool {
	a := strings.TrimSpace(actual)
	e := strings.TrimSpace(expected)

	if a == e {
		return true
	}

	if av, ok := parseStructural(a); ok {
		if ev, ok := parseStructural(e); ok {
			return reflect.DeepEqual(av, ev)
		}
	}

	if af, ok := parseNumber(a); ok {
		if ef, ok := parseNumber(e); ok {
			return math.Abs(af-ef) < NumericTolerance
		}
	}

	if isBoolToken(a) && isBoolToken(e) {
		return a == e
	}

	return false
}

func parseStructural(s string) (any, bool) {
	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func parseNumber(s string) (float64, bool) {
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isBoolToken(s string) bool {
	return s == "true" || s == "false"
}
