package grader

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []any
	}{
		{"empty", "", []any{}},
		{"blank", "   ", []any{}},
		{"two numbers", "2,3", []any{2.0, 3.0}},
		{"negative number", "-5,3", []any{-5.0, 3.0}},
		{"floats and exponents", "1.5, .5,1e3", []any{1.5, 0.5, 1000.0}},
		{"single string", "racecar", []any{"racecar"}},
		{"sentence", "A man a plan a canal Panama", []any{"A man a plan a canal Panama"}},
		{"booleans", "true,false", []any{true, false}},
		{"empty token", "a, ,b", []any{"a", "", "b"}},
		{"array only", "[1,5,3,9,2]", []any{[]any{1.0, 5.0, 3.0, 9.0, 2.0}}},
		{"array then scalar", "[1,3,5,7,9],5", []any{[]any{1.0, 3.0, 5.0, 7.0, 9.0}, 5.0}},
		{"array then several scalars", "[2,7], 9, x", []any{[]any{2.0, 7.0}, 9.0, "x"}},
		{"string array", `["a","b"],true`, []any{[]any{"a", "b"}, true}},
		{"empty array", "[]", []any{[]any{}}},
		{"unterminated array", "[1,2", []any{"[1,2"}},
		{"stray closing bracket", "1,2]", []any{"1,2]"}},
		{"array not first", "x,[1,2]", []any{"x,[1,2]"}},
		{"nested array", "[1,[2]]", []any{"[1,[2]]"}},
		{"invalid array literal", "[a,b]", []any{"[a,b]"}},
		{"numeric-looking words", "12abc,-", []any{"12abc", "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseArguments(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseArguments(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseArguments_NumericPairs(t *testing.T) {
	pairs := [][2]float64{{0, 0}, {10, 15}, {-1, -2}, {3.25, 100}}
	for _, p := range pairs {
		input := strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
		got := ParseArguments(input)
		want := []any{p[0], p[1]}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseArguments(%q) mismatch (-want +got):\n%s", input, diff)
		}
	}
}
