package main

import "testing"

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "[░░░░]"},
		{0.5, "[██░░]"},
		{1, "[████]"},
		{1.7, "[████]"},
		{-0.2, "[░░░░]"},
	}
	for _, tt := range tests {
		if got := renderProgressBar(tt.value, 4); got != tt.want {
			t.Errorf("renderProgressBar(%v, 4) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"sum.js", "javascript"},
		{"dir/fib.PY", "python"},
		{"main.mjs", "javascript"},
		{"notes.txt", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := languageFromPath(tt.path); got != tt.want {
			t.Errorf("languageFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
