package domain

import (
	"fmt"
	"strings"
	"time"
)

// Task is a coding challenge definition
type Task struct {
	ID            string
	Title         string
	Description   string
	Instructions  string
	Difficulty    Difficulty
	Language      Language
	XPReward      int
	EstimatedTime int // minutes
	Tags          []string
	StarterCode   map[Language]string
	Hints         []string
	TestCases     []TestCase

	// EntryPoint names the solution function when known. Empty means the
	// grader discovers it from its candidate list.
	EntryPoint string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TestCase is one input/expected-output pair
type TestCase struct {
	ID          string `json:"id"`
	Input       string `json:"input"`
	Expected    string `json:"expected"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// Difficulty is an ordered challenge difficulty
type Difficulty string

const (
	DifficultyBeginner Difficulty = "beginner"
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyExpert   Difficulty = "expert"
)

// Rank returns the position of the difficulty in the ordering, or -1 if unknown
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	case DifficultyExpert:
		return 4
	default:
		return -1
	}
}

// IsValid reports whether d is a known difficulty
func (d Difficulty) IsValid() bool {
	return d.Rank() >= 0
}

// Less reports whether d sorts before other
func (d Difficulty) Less(other Difficulty) bool {
	return d.Rank() < other.Rank()
}

// AllDifficulties returns the difficulties in ascending order
func AllDifficulties() []Difficulty {
	return []Difficulty{
		DifficultyBeginner,
		DifficultyEasy,
		DifficultyMedium,
		DifficultyHard,
		DifficultyExpert,
	}
}

// Validate checks the fields the grader and progress tracking rely on
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if !t.Difficulty.IsValid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidTask, t.Difficulty)
	}
	if !t.Language.IsValid() {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidTask, t.Language)
	}
	if t.XPReward <= 0 {
		return fmt.Errorf("%w: xp reward must be positive", ErrInvalidTask)
	}
	if len(t.TestCases) == 0 {
		return fmt.Errorf("%w: at least one test case is required", ErrInvalidTask)
	}
	return nil
}

// HasTag reports whether the task carries the tag (case-insensitive)
func (t *Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if strings.EqualFold(tg, tag) {
			return true
		}
	}
	return false
}

// VisibleTestCases returns the test cases that may be shown to users
func (t *Task) VisibleTestCases() []TestCase {
	var out []TestCase
	for _, tc := range t.TestCases {
		if !tc.Hidden {
			out = append(out, tc)
		}
	}
	return out
}

// Clone returns a deep copy so callers cannot mutate stored tasks
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Hints = append([]string(nil), t.Hints...)
	c.TestCases = append([]TestCase(nil), t.TestCases...)
	if t.StarterCode != nil {
		c.StarterCode = make(map[Language]string, len(t.StarterCode))
		for k, v := range t.StarterCode {
			c.StarterCode[k] = v
		}
	}
	return &c
}
