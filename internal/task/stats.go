package task

import (
	"context"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Stats summarizes a task store
type Stats struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	ByDifficulty map[string]int `json:"by_difficulty"`
	TotalXP      int            `json:"total_xp"`
	TestCases    int            `json:"test_cases"`
}

// ComputeStats aggregates every task in the store, active or not.
// ByDifficulty and TotalXP only count active tasks.
func ComputeStats(ctx context.Context, s Store) (Stats, error) {
	tasks, err := s.List(ctx, Filter{IncludeInactive: true})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:        len(tasks),
		ByDifficulty: make(map[string]int),
	}
	for _, d := range domain.AllDifficulties() {
		stats.ByDifficulty[string(d)] = 0
	}
	for _, t := range tasks {
		stats.TestCases += len(t.TestCases)
		if !t.Active {
			continue
		}
		stats.Active++
		stats.ByDifficulty[string(t.Difficulty)]++
		stats.TotalXP += t.XPReward
	}
	return stats, nil
}
