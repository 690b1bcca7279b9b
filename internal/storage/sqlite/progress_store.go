package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/progress"
)

var _ progress.Store = (*ProgressStore)(nil)

// ProgressStore persists user progress.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save upserts the user row and every task row in one transaction.
func (s *ProgressStore) Save(ctx context.Context, p *domain.UserProgress) error {
	completed, err := json.Marshal(p.CompletedTasks)
	if err != nil {
		return fmt.Errorf("marshal completed tasks: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress (user_id, total_xp, level, completed, current_streak,
			last_activity, last_solved_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_xp=excluded.total_xp,
			level=excluded.level,
			completed=excluded.completed,
			current_streak=excluded.current_streak,
			last_activity=excluded.last_activity,
			last_solved_at=excluded.last_solved_at,
			updated_at=excluded.updated_at`,
		p.UserID, p.TotalXP, p.Level, string(completed), p.CurrentStreak,
		nullTime(p.LastActivity), nullTime(p.LastSolvedAt), updated,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	for _, tp := range p.Tasks {
		var completedAt any
		if tp.CompletedAt != nil {
			completedAt = *tp.CompletedAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_progress (user_id, task_id, completed, attempts,
				passed_tests, total_tests, best_time_ms, last_code, language,
				last_attempt, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, task_id) DO UPDATE SET
				completed=excluded.completed,
				attempts=excluded.attempts,
				passed_tests=excluded.passed_tests,
				total_tests=excluded.total_tests,
				best_time_ms=excluded.best_time_ms,
				last_code=excluded.last_code,
				language=excluded.language,
				last_attempt=excluded.last_attempt,
				completed_at=excluded.completed_at`,
			p.UserID, tp.TaskID, tp.Completed, tp.Attempts,
			tp.PassedTests, tp.TotalTests, tp.BestTime.Milliseconds(), tp.LastCode, string(tp.Language),
			nullTime(tp.LastAttempt), completedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert task progress %s: %w", tp.TaskID, err)
		}
	}

	return tx.Commit()
}

// Get loads a user's progress with all task rows.
func (s *ProgressStore) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	var (
		p            = domain.NewUserProgress(userID)
		completed    string
		lastActivity sql.NullTime
		lastSolved   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total_xp, level, completed, current_streak, last_activity,
			last_solved_at, updated_at
		FROM progress WHERE user_id = ?`, userID).
		Scan(&p.TotalXP, &p.Level, &completed, &p.CurrentStreak, &lastActivity, &lastSolved, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProgressNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	if err := json.Unmarshal([]byte(completed), &p.CompletedTasks); err != nil {
		return nil, fmt.Errorf("unmarshal completed tasks: %w", err)
	}
	p.LastActivity = lastActivity.Time
	p.LastSolvedAt = lastSolved.Time

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, completed, attempts, passed_tests, total_tests,
			best_time_ms, last_code, language, last_attempt, completed_at
		FROM task_progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query task progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tp          domain.TaskProgress
			bestMS      int64
			lang        string
			lastAttempt sql.NullTime
			completedAt sql.NullTime
		)
		if err := rows.Scan(&tp.TaskID, &tp.Completed, &tp.Attempts, &tp.PassedTests, &tp.TotalTests,
			&bestMS, &tp.LastCode, &lang, &lastAttempt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task progress: %w", err)
		}
		tp.BestTime = time.Duration(bestMS) * time.Millisecond
		tp.Language = domain.Language(lang)
		tp.LastAttempt = lastAttempt.Time
		if completedAt.Valid {
			at := completedAt.Time
			tp.CompletedAt = &at
		}
		p.Tasks[tp.TaskID] = &tp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task progress: %w", err)
	}

	return p, nil
}

// Users lists every user with stored progress, highest XP first.
func (s *ProgressStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM progress ORDER BY total_xp DESC, user_id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// Delete removes a user's progress and task rows.
func (s *ProgressStore) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM progress WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProgressNotFound, userID)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
