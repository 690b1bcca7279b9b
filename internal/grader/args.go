package grader

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern matches the numeric literals accepted in test-case strings:
// optional leading minus, integer or decimal, optional exponent.
var numberPattern = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// ParseArguments converts a test case input string into positional call
// arguments.
//
// Grammar:
//   - blank input yields no arguments
//   - a leading flat JSON array (up to the first ']') is one argument, and any
//     comma-separated tokens after it are further scalar arguments
//   - otherwise every comma-separated token is a scalar argument
//
// Scalars are coerced to float64, bool or string. Input that mentions a
// bracket but does not form a leading array degrades to a single string
// argument holding the raw input. ParseArguments never fails.
func ParseArguments(input string) []any {
	if strings.TrimSpace(input) == "" {
		return []any{}
	}

	if strings.ContainsAny(input, "[]") {
		args, ok := parseArrayFirst(input)
		if !ok {
			return []any{input}
		}
		return args
	}

	return coerceTokens(strings.Split(input, ","))
}

func parseArrayFirst(input string) ([]any, bool) {
	open := strings.Index(input, "[")
	if open < 0 || strings.TrimSpace(input[:open]) != "" {
		return nil, false
	}
	rel := strings.Index(input[open:], "]")
	if rel < 0 {
		return nil, false
	}
	end := open + rel

	var elems []any
	if err := json.Unmarshal([]byte(input[open:end+1]), &elems); err != nil {
		return nil, false
	}
	for _, e := range elems {
		switch e.(type) {
		case float64, string, bool, nil:
		default:
			return nil, false
		}
	}
	if elems == nil {
		elems = []any{}
	}

	args := []any{elems}
	rest := strings.TrimSpace(input[end+1:])
	if rest == "" {
		return args, true
	}
	if !strings.HasPrefix(rest, ",") || strings.ContainsAny(rest, "[]") {
		return nil, false
	}
	return append(args, coerceTokens(strings.Split(rest[1:], ","))...), true
}

func coerceTokens(tokens []string) []any {
	args := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		args = append(args, coerceScalar(tok))
	}
	return args
}

// coerceScalar maps a token to a number, boolean or (trimmed) string
func coerceScalar(tok string) any {
	tok = strings.TrimSpace(tok)
	if numberPattern.MatchString(tok) {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return f
		}
	}
	switch tok {
	case "true":
		return true
	case "false":
		return false
	}
	return tok
}
