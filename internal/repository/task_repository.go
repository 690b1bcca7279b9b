package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// TaskRepository implements task.Store on PostgreSQL
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, instructions, difficulty, language,
	xp_reward, estimated_time, entry_point, tags, hints, starter_code, test_cases,
	active, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var r taskRow
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Instructions, &r.Difficulty, &r.Language,
		&r.XPReward, &r.EstimatedTime, &r.EntryPoint, pq.Array(&r.Tags), pq.Array(&r.Hints),
		&r.StarterCode, &r.TestCases, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return mapTaskToDomain(r)
}

// List returns matching tasks ordered by difficulty, then title
func (r *TaskRepository) List(ctx context.Context, filter task.Filter) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1 OR active)
		  AND ($2 = '' OR difficulty = $2)
		  AND ($3 = '' OR EXISTS (SELECT 1 FROM unnest(tags) tag WHERE lower(tag) = lower($3)))`,
		filter.IncludeInactive, string(filter.Difficulty), filter.Tag)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if filter.Matches(t) {
			tasks = append(tasks, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	task.SortTasks(tasks)
	return tasks, nil
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	row, err := mapTaskToRow(t)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		row.ID, row.Title, row.Description, row.Instructions, row.Difficulty, row.Language,
		row.XPReward, row.EstimatedTime, row.EntryPoint, pq.Array(row.Tags), pq.Array(row.Hints),
		row.StarterCode, row.TestCases, row.Active, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", domain.ErrTaskExists, t.ID)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update replaces an existing task, keeping its creation time
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	row, err := mapTaskToRow(t)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET title = $2, description = $3, instructions = $4, difficulty = $5,
			language = $6, xp_reward = $7, estimated_time = $8, entry_point = $9, tags = $10,
			hints = $11, starter_code = $12, test_cases = $13, active = $14, updated_at = $15
		WHERE id = $1`,
		row.ID, row.Title, row.Description, row.Instructions, row.Difficulty,
		row.Language, row.XPReward, row.EstimatedTime, row.EntryPoint, pq.Array(row.Tags),
		pq.Array(row.Hints), row.StarterCode, row.TestCases, row.Active, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, t.ID)
	}
	return nil
}

// Delete deactivates a task
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return nil
}

// Ensure TaskRepository implements task.Store
var _ task.Store = (*TaskRepository)(nil)
