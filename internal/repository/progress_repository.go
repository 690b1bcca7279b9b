package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/progress"
)

// ProgressRepository implements progress.Store on PostgreSQL
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Get retrieves a user's progress with its task rows
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p := domain.NewUserProgress(userID)
	var lastActivity, lastSolved *time.Time

	err := r.pool.QueryRow(ctx, `
		SELECT total_xp, level, completed_tasks, current_streak, last_activity,
			last_solved_at, updated_at
		FROM user_progress WHERE user_id = $1`, userID).
		Scan(&p.TotalXP, &p.Level, &p.CompletedTasks, &p.CurrentStreak, &lastActivity, &lastSolved, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProgressNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	p.LastActivity = ptrToTime(lastActivity)
	p.LastSolvedAt = ptrToTime(lastSolved)

	rows, err := r.pool.Query(ctx, `
		SELECT task_id, completed, attempts, passed_tests, total_tests, best_time_ms,
			last_code, language, last_attempt, completed_at
		FROM user_task_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query task progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tp          domain.TaskProgress
			bestMS      int64
			lang        string
			lastAttempt *time.Time
		)
		if err := rows.Scan(&tp.TaskID, &tp.Completed, &tp.Attempts, &tp.PassedTests, &tp.TotalTests,
			&bestMS, &tp.LastCode, &lang, &lastAttempt, &tp.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task progress: %w", err)
		}
		tp.BestTime = time.Duration(bestMS) * time.Millisecond
		tp.Language = domain.Language(lang)
		tp.LastAttempt = ptrToTime(lastAttempt)
		p.Tasks[tp.TaskID] = &tp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task progress: %w", err)
	}

	return p, nil
}

// Save upserts the user and task rows in one transaction
func (r *ProgressRepository) Save(ctx context.Context, p *domain.UserProgress) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, total_xp, level, completed_tasks, current_streak,
			last_activity, last_solved_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			total_xp = EXCLUDED.total_xp,
			level = EXCLUDED.level,
			completed_tasks = EXCLUDED.completed_tasks,
			current_streak = EXCLUDED.current_streak,
			last_activity = EXCLUDED.last_activity,
			last_solved_at = EXCLUDED.last_solved_at,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.TotalXP, p.Level, nonNil(p.CompletedTasks), p.CurrentStreak,
		timeToPtr(p.LastActivity), timeToPtr(p.LastSolvedAt), updated)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	batch := &pgx.Batch{}
	for _, tp := range p.Tasks {
		batch.Queue(`
			INSERT INTO user_task_progress (user_id, task_id, completed, attempts, passed_tests,
				total_tests, best_time_ms, last_code, language, last_attempt, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, task_id) DO UPDATE SET
				completed = EXCLUDED.completed,
				attempts = EXCLUDED.attempts,
				passed_tests = EXCLUDED.passed_tests,
				total_tests = EXCLUDED.total_tests,
				best_time_ms = EXCLUDED.best_time_ms,
				last_code = EXCLUDED.last_code,
				language = EXCLUDED.language,
				last_attempt = EXCLUDED.last_attempt,
				completed_at = EXCLUDED.completed_at`,
			p.UserID, tp.TaskID, tp.Completed, tp.Attempts, tp.PassedTests,
			tp.TotalTests, tp.BestTime.Milliseconds(), tp.LastCode, string(tp.Language),
			timeToPtr(tp.LastAttempt), tp.CompletedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert task progress: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

// Ensure ProgressRepository implements progress.Store
var _ progress.Store = (*ProgressRepository)(nil)
