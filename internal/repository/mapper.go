package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// -----------------------------------------------------------------------------
// Task Mappers
// -----------------------------------------------------------------------------

// taskRow mirrors a row of the tasks table
type taskRow struct {
	ID            string
	Title         string
	Description   string
	Instructions  string
	Difficulty    string
	Language      string
	XPReward      int
	EstimatedTime int
	EntryPoint    string
	Tags          []string
	Hints         []string
	StarterCode   pqtype.NullRawMessage
	TestCases     pqtype.NullRawMessage
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// mapTaskToDomain converts a row to a domain Task
func mapTaskToDomain(r taskRow) (*domain.Task, error) {
	t := &domain.Task{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Instructions:  r.Instructions,
		Difficulty:    domain.Difficulty(r.Difficulty),
		Language:      domain.Language(r.Language),
		XPReward:      r.XPReward,
		EstimatedTime: r.EstimatedTime,
		EntryPoint:    r.EntryPoint,
		Tags:          r.Tags,
		Hints:         r.Hints,
		StarterCode:   map[domain.Language]string{},
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if r.StarterCode.Valid {
		var starter map[string]string
		if err := json.Unmarshal(r.StarterCode.RawMessage, &starter); err != nil {
			return nil, fmt.Errorf("unmarshal starter code: %w", err)
		}
		for lang, code := range starter {
			t.StarterCode[domain.Language(lang)] = code
		}
	}

	if r.TestCases.Valid {
		if err := json.Unmarshal(r.TestCases.RawMessage, &t.TestCases); err != nil {
			return nil, fmt.Errorf("unmarshal test cases: %w", err)
		}
	}

	return t, nil
}

// mapTaskToRow converts a domain Task to a row
func mapTaskToRow(t *domain.Task) (taskRow, error) {
	r := taskRow{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Instructions:  t.Instructions,
		Difficulty:    string(t.Difficulty),
		Language:      string(t.Language),
		XPReward:      t.XPReward,
		EstimatedTime: t.EstimatedTime,
		EntryPoint:    t.EntryPoint,
		Tags:          nonNil(t.Tags),
		Hints:         nonNil(t.Hints),
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}

	if len(t.StarterCode) > 0 {
		starter := make(map[string]string, len(t.StarterCode))
		for lang, code := range t.StarterCode {
			starter[string(lang)] = code
		}
		raw, err := json.Marshal(starter)
		if err != nil {
			return taskRow{}, fmt.Errorf("marshal starter code: %w", err)
		}
		r.StarterCode = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	cases := t.TestCases
	if cases == nil {
		cases = []domain.TestCase{}
	}
	raw, err := json.Marshal(cases)
	if err != nil {
		return taskRow{}, fmt.Errorf("marshal test cases: %w", err)
	}
	r.TestCases = pqtype.NullRawMessage{RawMessage: raw, Valid: true}

	return r, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timeToPtr maps the zero time to NULL
func timeToPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func ptrToTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
