package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Filter narrows a task listing. Zero values match everything.
type Filter struct {
	Difficulty      domain.Difficulty
	Tag             string
	Language        domain.Language
	IncludeInactive bool
}

// Matches reports whether t passes the filter
func (f Filter) Matches(t *domain.Task) bool {
	if !f.IncludeInactive && !t.Active {
		return false
	}
	if f.Difficulty != "" && t.Difficulty != f.Difficulty {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	if f.Language != "" && t.Language != f.Language {
		if _, ok := t.StarterCode[f.Language]; !ok {
			return false
		}
	}
	return true
}

// Store persists task definitions
type Store interface {
	List(ctx context.Context, filter Filter) ([]*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}

// Catalog is the in-memory task store
type Catalog struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	now   func() time.Time
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
}

// Seed adds tasks from a loader, replacing entries with the same ID
func (c *Catalog) Seed(l *Loader) (int, error) {
	tasks, err := l.LoadAll()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, t := range tasks {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		c.tasks[t.ID] = t
	}
	return len(tasks), nil
}

// List returns matching tasks ordered by difficulty, then title
func (c *Catalog) List(_ context.Context, filter Filter) ([]*domain.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	SortTasks(out)
	return out, nil
}

// Get returns a copy of the task, including inactive ones
func (c *Catalog) Get(_ context.Context, id string) (*domain.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// Create validates and stores a new task. An empty ID is assigned.
func (c *Catalog) Create(_ context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrTaskExists, t.ID)
	}
	now := c.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	c.tasks[t.ID] = t.Clone()
	return nil
}

// Update replaces an existing task
func (c *Catalog) Update(_ context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.tasks[t.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, t.ID)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = c.now()
	c.tasks[t.ID] = t.Clone()
	return nil
}

// Delete deactivates the task. Submissions and progress referencing it stay valid.
func (c *Catalog) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	t.Active = false
	t.UpdatedAt = c.now()
	return nil
}

// SortTasks orders tasks by difficulty rank, then case-insensitive title
func SortTasks(tasks []*domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Difficulty != b.Difficulty {
			return a.Difficulty.Less(b.Difficulty)
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
}

// SeedStore creates the loader's tasks that s does not hold yet and
// returns how many were added. Existing tasks are left untouched so admin
// edits survive restarts.
func SeedStore(ctx context.Context, s Store, l *Loader) (int, error) {
	tasks, err := l.LoadAll()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, t := range tasks {
		err := s.Create(ctx, t)
		switch {
		case err == nil:
			added++
		case errors.Is(err, domain.ErrTaskExists):
		default:
			return added, fmt.Errorf("seed task %s: %w", t.ID, err)
		}
	}
	return added, nil
}
