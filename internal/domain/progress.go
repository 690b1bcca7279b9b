package domain

import "time"

// XPPerLevel is the XP needed to advance one level
const XPPerLevel = 200

// LevelForXP returns the level reached with the given total XP
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// UserProgress aggregates a user's achievements
type UserProgress struct {
	UserID         string
	TotalXP        int
	Level          int
	CompletedTasks []string
	CurrentStreak  int
	LastActivity   time.Time
	LastSolvedAt   time.Time // last passing attempt; drives the streak
	Tasks          map[string]*TaskProgress
	UpdatedAt      time.Time
}

// TaskProgress tracks one user's attempts at one task
type TaskProgress struct {
	TaskID      string
	Completed   bool
	Attempts    int
	PassedTests int
	TotalTests  int
	BestTime    time.Duration
	LastCode    string
	Language    Language
	LastAttempt time.Time
	CompletedAt *time.Time
}

// NewUserProgress returns an empty level-1 record
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:         userID,
		Level:          1,
		CompletedTasks: []string{},
		Tasks:          make(map[string]*TaskProgress),
	}
}

// HasCompleted reports whether the task was already solved
func (p *UserProgress) HasCompleted(taskID string) bool {
	for _, id := range p.CompletedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// XPToNextLevel returns the XP still missing for the next level
func (p *UserProgress) XPToNextLevel() int {
	return p.Level*XPPerLevel - p.TotalXP
}

// Clone returns a deep copy
func (p *UserProgress) Clone() *UserProgress {
	c := *p
	c.CompletedTasks = append([]string{}, p.CompletedTasks...)
	c.Tasks = make(map[string]*TaskProgress, len(p.Tasks))
	for id, tp := range p.Tasks {
		t := *tp
		if tp.CompletedAt != nil {
			at := *tp.CompletedAt
			t.CompletedAt = &at
		}
		c.Tasks[id] = &t
	}
	return &c
}
