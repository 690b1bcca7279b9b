package api

import (
	"sort"
	"time"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

type testCaseView struct {
	ID          string `json:"id"`
	Input       string `json:"input,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

type taskView struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Instructions  string            `json:"instructions,omitempty"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Language      domain.Language   `json:"language"`
	XPReward      int               `json:"xp_reward"`
	EstimatedTime int               `json:"estimated_time"`
	Tags          []string          `json:"tags"`
	StarterCode   map[string]string `json:"starter_code"`
	Hints         []string          `json:"hints,omitempty"`
	TestCases     []testCaseView    `json:"test_cases"`
	EntryPoint    string            `json:"entry_point,omitempty"`
	Active        bool              `json:"active"`
	Completed     bool              `json:"completed"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// newTaskView renders a task. Unless full is set, hidden cases lose their
// input and expected values.
func newTaskView(t *domain.Task, full bool) taskView {
	v := taskView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Instructions:  t.Instructions,
		Difficulty:    t.Difficulty,
		Language:      t.Language,
		XPReward:      t.XPReward,
		EstimatedTime: t.EstimatedTime,
		Tags:          t.Tags,
		StarterCode:   make(map[string]string, len(t.StarterCode)),
		Hints:         t.Hints,
		TestCases:     make([]testCaseView, 0, len(t.TestCases)),
		Active:        t.Active,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	for lang, code := range t.StarterCode {
		v.StarterCode[string(lang)] = code
	}
	for _, tc := range t.TestCases {
		cv := testCaseView{ID: tc.ID, Description: tc.Description, Hidden: tc.Hidden}
		if full || !tc.Hidden {
			cv.Input = tc.Input
			cv.Expected = tc.Expected
		}
		v.TestCases = append(v.TestCases, cv)
	}
	if full {
		v.EntryPoint = t.EntryPoint
		v.CreatedAt = timePtr(t.CreatedAt)
		v.UpdatedAt = timePtr(t.UpdatedAt)
	}
	return v
}

type taskProgressView struct {
	TaskID      string          `json:"task_id"`
	Completed   bool            `json:"completed"`
	Attempts    int             `json:"attempts"`
	PassedTests int             `json:"passed_tests"`
	TotalTests  int             `json:"total_tests"`
	BestTimeMS  int64           `json:"best_time_ms,omitempty"`
	Language    domain.Language `json:"language,omitempty"`
	LastCode    string          `json:"last_code,omitempty"`
	LastAttempt *time.Time      `json:"last_attempt,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

type progressView struct {
	UserID         string             `json:"user_id"`
	TotalXP        int                `json:"total_xp"`
	Level          int                `json:"level"`
	XPToNextLevel  int                `json:"xp_to_next_level"`
	CurrentStreak  int                `json:"current_streak"`
	CompletedTasks []string           `json:"completed_tasks"`
	LastActivity   *time.Time         `json:"last_activity,omitempty"`
	Rank           int                `json:"rank,omitempty"`
	Tasks          []taskProgressView `json:"tasks"`
}

func newProgressView(p *domain.UserProgress) progressView {
	v := progressView{
		UserID:         p.UserID,
		TotalXP:        p.TotalXP,
		Level:          p.Level,
		XPToNextLevel:  p.XPToNextLevel(),
		CurrentStreak:  p.CurrentStreak,
		CompletedTasks: p.CompletedTasks,
		LastActivity:   timePtr(p.LastActivity),
		Tasks:          make([]taskProgressView, 0, len(p.Tasks)),
	}
	if v.CompletedTasks == nil {
		v.CompletedTasks = []string{}
	}
	for _, tp := range p.Tasks {
		v.Tasks = append(v.Tasks, taskProgressView{
			TaskID:      tp.TaskID,
			Completed:   tp.Completed,
			Attempts:    tp.Attempts,
			PassedTests: tp.PassedTests,
			TotalTests:  tp.TotalTests,
			BestTimeMS:  tp.BestTime.Milliseconds(),
			Language:    tp.Language,
			LastCode:    tp.LastCode,
			LastAttempt: timePtr(tp.LastAttempt),
			CompletedAt: tp.CompletedAt,
		})
	}
	sort.Slice(v.Tasks, func(i, j int) bool { return v.Tasks[i].TaskID < v.Tasks[j].TaskID })
	return v
}

type submissionView struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"user_id"`
	TaskID      string                  `json:"task_id"`
	Language    domain.Language         `json:"language"`
	Status      domain.SubmissionStatus `json:"status"`
	Source      string                  `json:"source,omitempty"`
	Result      *domain.ExecutionResult `json:"result,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// newSubmissionView renders a submission; hidden case details are removed
// unless full is set.
func newSubmissionView(sub *domain.Submission, full bool) submissionView {
	v := submissionView{
		ID:          sub.ID,
		UserID:      sub.UserID,
		TaskID:      sub.TaskID,
		Language:    sub.Language,
		Status:      sub.Status,
		Source:      sub.Source,
		CreatedAt:   sub.CreatedAt,
		CompletedAt: sub.CompletedAt,
	}
	if sub.Result != nil {
		v.Result = sub.Result
		if !full {
			v.Result = sub.Result.Redacted()
		}
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
