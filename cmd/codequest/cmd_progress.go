package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

func cmdProgress() error {
	l, err := openLocal(true)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	p, err := l.progress.Get(ctx, localUser)
	if err != nil {
		return err
	}

	into := float64(p.TotalXP%domain.XPPerLevel) / float64(domain.XPPerLevel)
	fmt.Printf("Level %d  %s  %d XP (%d to next level)\n", p.Level, renderProgressBar(into, 20), p.TotalXP, p.XPToNextLevel())
	fmt.Printf("Streak: %d day(s)\n", p.CurrentStreak)
	fmt.Printf("Completed: %d task(s)\n", len(p.CompletedTasks))

	if len(p.Tasks) == 0 {
		fmt.Println("\nNo attempts yet. Try 'codequest tasks'.")
		return nil
	}

	ids := make([]string, 0, len(p.Tasks))
	for id := range p.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("\nAttempts:")
	for _, id := range ids {
		tp := p.Tasks[id]
		title := id
		if t, err := l.catalog.Get(ctx, id); err == nil {
			title = t.Title
		}
		mark := " "
		if tp.Completed {
			mark = "✓"
		}
		line := fmt.Sprintf("  %s %-28s %d attempt(s), last %d/%d", mark, title, tp.Attempts, tp.PassedTests, tp.TotalTests)
		if tp.BestTime > 0 {
			line += fmt.Sprintf(", best %s", tp.BestTime.Round(time.Millisecond))
		}
		fmt.Println(line)
	}
	return nil
}
