package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// SubmissionStore records grading runs.
type SubmissionStore struct {
	db *DB
}

// NewSubmissionStore creates a SQLite-backed submission store.
func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// TaskSubmissionStats aggregates submissions for one task
type TaskSubmissionStats struct {
	TaskID    string  `json:"task_id"`
	Attempts  int     `json:"attempts"`
	Passed    int     `json:"passed"`
	PassRate  float64 `json:"pass_rate"`
	AvgTimeMS float64 `json:"avg_time_ms"`
}

// SubmissionStats aggregates all completed submissions
type SubmissionStats struct {
	Total    int                   `json:"total"`
	Passed   int                   `json:"passed"`
	Failed   int                   `json:"failed"`
	Pending  int                   `json:"pending"`
	PassRate float64               `json:"pass_rate"`
	Users    int                   `json:"users"`
	ByTask   []TaskSubmissionStats `json:"by_task"`
}

// Create inserts a submission. An empty ID is assigned and an unset status
// becomes queued.
func (s *SubmissionStore) Create(ctx context.Context, sub *domain.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = domain.SubmissionQueued
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, task_id, language, source, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.TaskID, string(sub.Language), sub.Source, string(sub.Status), sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	if sub.Result != nil {
		return s.Complete(ctx, sub.ID, sub.Result)
	}
	return nil
}

// Complete stores the verdict for a submission.
func (s *SubmissionStore) Complete(ctx context.Context, id string, result *domain.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	// a run-level error carries no per-case results
	status := domain.SubmissionCompleted
	if len(result.TestResults) == 0 && result.Error != "" {
		status = domain.SubmissionFailed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, success = ?, passed_tests = ?, total_tests = ?,
			duration_ms = ?, error = ?, result = ?, completed_at = ?
		WHERE id = ?`,
		string(status), result.Success, result.PassedTests, result.TotalTests,
		result.Duration.Milliseconds(), result.Error, string(payload), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSubmissionNotFound, id)
	}
	return nil
}

const submissionColumns = `id, user_id, task_id, language, source, status, result, created_at, completed_at`

// Get returns a submission by ID.
func (s *SubmissionStore) Get(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSubmissionNotFound, id)
	}
	return sub, err
}

// ListByUser returns the user's most recent submissions first.
func (s *SubmissionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs := []*domain.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Stats aggregates submission outcomes overall and per task.
func (s *SubmissionStore) Stats(ctx context.Context) (*SubmissionStats, error) {
	stats := &SubmissionStats{ByTask: []TaskSubmissionStats{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT user_id)
		FROM submissions`).Scan(&stats.Total, &stats.Passed, &stats.Pending, &stats.Users)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	stats.Failed = stats.Total - stats.Passed - stats.Pending
	if graded := stats.Total - stats.Pending; graded > 0 {
		stats.PassRate = float64(stats.Passed) / float64(graded)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM submissions
		WHERE status != 'queued'
		GROUP BY task_id
		ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("query task stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts TaskSubmissionStats
		if err := rows.Scan(&ts.TaskID, &ts.Attempts, &ts.Passed, &ts.AvgTimeMS); err != nil {
			return nil, fmt.Errorf("scan task stats: %w", err)
		}
		if ts.Attempts > 0 {
			ts.PassRate = float64(ts.Passed) / float64(ts.Attempts)
		}
		stats.ByTask = append(stats.ByTask, ts)
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*domain.Submission, error) {
	var (
		sub         domain.Submission
		lang        string
		status      string
		result      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.TaskID, &lang, &sub.Source, &status,
		&result, &sub.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	sub.Language = domain.Language(lang)
	sub.Status = domain.SubmissionStatus(status)
	if completedAt.Valid {
		at := completedAt.Time
		sub.CompletedAt = &at
	}
	if result.Valid && result.String != "" {
		var r domain.ExecutionResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		sub.Result = &r
	}
	return &sub, nil
}
