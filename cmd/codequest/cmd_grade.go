package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// languageFromPath guesses the language from a file extension
func languageFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	}
	return ""
}

func cmdGrade(args []string) error {
	fs := flag.NewFlagSet("grade", flag.ContinueOnError)
	lang := fs.String("lang", "", "solution language (default: from the file extension)")
	verbose := fs.Bool("v", false, "show console output of every test")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: codequest grade [-lang L] <task-id> <file>")
	}
	taskID, file := fs.Arg(0), fs.Arg(1)

	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read solution: %w", err)
	}

	l, err := openLocal(true)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	t, err := l.catalog.Get(ctx, taskID)
	if err != nil {
		return err
	}

	raw := *lang
	if raw == "" {
		raw = languageFromPath(file)
	}
	language := t.Language
	if raw != "" {
		if language, err = domain.ParseLanguage(raw); err != nil {
			return err
		}
	}

	result := l.grader.Grade(ctx, string(source), t, language)
	printResult(t, result, *verbose)

	outcome, err := l.progress.RecordAttempt(ctx, localUser, t, result, language, string(source))
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	if outcome.FirstCompletion {
		fmt.Printf("\n+%d XP! Total %d XP, level %d\n", outcome.XPAwarded, outcome.Progress.TotalXP, outcome.Progress.Level)
		if outcome.LeveledUp {
			fmt.Println("Level up!")
		}
	}

	if !result.Success {
		return fmt.Errorf("%d of %d tests failed", result.TotalTests-result.PassedTests, result.TotalTests)
	}
	return nil
}

func printResult(t *domain.Task, result *domain.ExecutionResult, verbose bool) {
	fmt.Printf("%s (%s)\n\n", t.Title, t.Difficulty)
	if result.Error != "" {
		fmt.Printf("✗ %s\n", result.Error)
	}

	for i, tr := range result.TestResults {
		mark := "✓"
		if !tr.Passed {
			mark = "✗"
		}
		name := tr.TestCase.Description
		if name == "" {
			name = tr.TestCase.ID
		}

		fmt.Printf("  %s %d. %s\n", mark, i+1, name)
		if !tr.Passed {
			switch {
			case tr.TestCase.Hidden:
				fmt.Println("      hidden test")
			case tr.Error != "":
				fmt.Printf("      input:    %s\n      error:    %s\n", tr.TestCase.Input, tr.Error)
			default:
				fmt.Printf("      input:    %s\n      expected: %s\n      actual:   %s\n",
					tr.TestCase.Input, tr.TestCase.Expected, tr.Actual)
			}
		}
		if verbose && !tr.TestCase.Hidden {
			for _, line := range tr.Logs {
				fmt.Printf("      | %s\n", line)
			}
		}
	}

	fmt.Printf("\n%d/%d tests passed in %s\n", result.PassedTests, result.TotalTests, result.Duration.Round(time.Millisecond))
}
