package domain

import "time"

// ExecutionResult is the verdict for one grading run
type ExecutionResult struct {
	Success     bool          `json:"success"`
	Output      string        `json:"output"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	PassedTests int           `json:"passed_tests"`
	TotalTests  int           `json:"total_tests"`
	TestResults []TestResult  `json:"test_results"`
}

// TestResult is the outcome of a single test case
type TestResult struct {
	TestCase TestCase `json:"test_case"`
	Passed   bool     `json:"passed"`
	Actual   string   `json:"actual"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs,omitempty"` // console output captured during the call
}

// Failed returns the results that did not pass
func (r *ExecutionResult) Failed() []TestResult {
	var out []TestResult
	for _, tr := range r.TestResults {
		if !tr.Passed {
			out = append(out, tr)
		}
	}
	return out
}

// Redacted returns a copy safe to show to the submitter: hidden cases keep
// their verdict but lose input, expected and actual values.
func (r *ExecutionResult) Redacted() *ExecutionResult {
	c := *r
	c.TestResults = make([]TestResult, len(r.TestResults))
	for i, tr := range r.TestResults {
		if tr.TestCase.Hidden {
			tr.TestCase.Input = ""
			tr.TestCase.Expected = ""
			tr.Actual = ""
			tr.Logs = nil
			if tr.Error != "" {
				tr.Error = "hidden test failed"
			}
		}
		c.TestResults[i] = tr
	}
	return &c
}

// FailedRun builds the whole-run failure verdict
func FailedRun(total int, msg string, elapsed time.Duration) *ExecutionResult {
	return &ExecutionResult{
		Success:     false,
		Error:       msg,
		Duration:    elapsed,
		PassedTests: 0,
		TotalTests:  total,
		TestResults: []TestResult{},
	}
}

// Submission is a persisted grading run for one user and task
type Submission struct {
	ID          string
	UserID      string
	TaskID      string
	Language    Language
	Source      string
	Status      SubmissionStatus
	Result      *ExecutionResult
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SubmissionStatus tracks async grading state
type SubmissionStatus string

const (
	SubmissionQueued    SubmissionStatus = "queued"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)
