package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/task"
)

func cmdTasks(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "show":
			if len(args) < 2 {
				return fmt.Errorf("task ID required")
			}
			return cmdTasksShow(args[1])
		case "stats":
			return cmdTasksStats()
		case "validate":
			if len(args) < 2 {
				return fmt.Errorf("pack directory required")
			}
			return cmdTasksValidate(args[1])
		}
	}
	return cmdTasksList(args)
}

func cmdTasksList(args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	difficulty := fs.String("difficulty", "", "only this difficulty")
	tag := fs.String("tag", "", "only tasks with this tag")
	lang := fs.String("lang", "", "only tasks with starter code in this language")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := task.Filter{Difficulty: domain.Difficulty(*difficulty), Tag: *tag}
	if *lang != "" {
		l, err := domain.ParseLanguage(*lang)
		if err != nil {
			return err
		}
		filter.Language = l
	}

	l, err := openLocal(true)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	tasks, err := l.catalog.List(ctx, filter)
	if err != nil {
		return err
	}
	p, err := l.progress.Get(ctx, localUser)
	if err != nil {
		return err
	}

	fmt.Println("Challenges:")
	for _, t := range tasks {
		mark := " "
		if p.HasCompleted(t.ID) {
			mark = "✓"
		}
		fmt.Printf("  %s %-4s %-28s %-9s %4d XP  %s\n", mark, t.ID, t.Title, t.Difficulty, t.XPReward, strings.Join(t.Tags, ", "))
	}
	fmt.Println("\nUse 'codequest tasks show <id>' for details")
	return nil
}

func cmdTasksShow(id string) error {
	l, err := openLocal(false)
	if err != nil {
		return err
	}
	defer l.Close()

	t, err := l.catalog.Get(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", t.Title)
	fmt.Printf("ID:         %s\n", t.ID)
	fmt.Printf("Difficulty: %s\n", t.Difficulty)
	fmt.Printf("Reward:     %d XP (~%d min)\n", t.XPReward, t.EstimatedTime)
	fmt.Printf("Tags:       %s\n", strings.Join(t.Tags, ", "))
	fmt.Printf("\n%s\n", strings.TrimSpace(t.Instructions))

	fmt.Println("\nExamples:")
	for _, tc := range t.VisibleTestCases() {
		fmt.Printf("  %s -> %s\n", tc.Input, tc.Expected)
	}

	langs := make([]string, 0, len(t.StarterCode))
	for lang := range t.StarterCode {
		langs = append(langs, string(lang))
	}
	sort.Strings(langs)
	for _, lang := range langs {
		fmt.Printf("\nStarter (%s):\n%s", lang, t.StarterCode[domain.Language(lang)])
	}
	return nil
}

func cmdTasksStats() error {
	l, err := openLocal(false)
	if err != nil {
		return err
	}
	defer l.Close()

	stats, err := task.ComputeStats(context.Background(), l.catalog)
	if err != nil {
		return err
	}

	fmt.Printf("Tasks:      %d (%d active)\n", stats.Total, stats.Active)
	fmt.Printf("Test cases: %d\n", stats.TestCases)
	fmt.Printf("XP on offer: %d\n\n", stats.TotalXP)
	for _, d := range domain.AllDifficulties() {
		n := stats.ByDifficulty[string(d)]
		share := 0.0
		if stats.Active > 0 {
			share = float64(n) / float64(stats.Active)
		}
		fmt.Printf("  %-9s %s %d\n", d, renderProgressBar(share, 20), n)
	}
	return nil
}

func cmdTasksValidate(dir string) error {
	tasks, err := task.NewLoader(dir).LoadAll()
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d tasks valid\n", len(tasks))
	return nil
}
