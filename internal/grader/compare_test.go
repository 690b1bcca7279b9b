package grader

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"exact", "5", "5", true},
		{"surrounding whitespace", "  Hello, World!\n", "Hello, World!", true},
		{"integer vs float", "5", "5.0", true},
		{"float rounding", "0.30000000000000004", "0.3", true},
		{"outside tolerance", "1", "1.01", false},
		{"just inside tolerance", "1.0009", "1", true},
		{"array spacing", "[1,2,3]", "[1, 2, 3]", true},
		{"array order matters", "[1,2]", "[2,1]", false},
		{"array numeric forms", "[0,1]", "[0.0, 1]", true},
		{"object spacing", `{"a":1,"b":[2]}`, `{ "b": [2], "a": 1 }`, true},
		{"array vs object", "[]", "{}", false},
		{"booleans differ", "true", "false", false},
		{"booleans equal", "true", " true ", true},
		{"boolean vs number", "true", "1", false},
		{"strings differ", "abc", "abd", false},
		{"malformed structural equal text", "[1,2", "[1,2", true},
		{"malformed structural", "[1,2", "[1,2]", false},
		{"undefined vs number", "undefined", "5", false},
		{"both empty", "", "", true},
		{"NaN never numeric", "NaN", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.actual, tt.expected); got != tt.want {
				t.Errorf("Compare(%q, %q) = %v, want %v", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}
