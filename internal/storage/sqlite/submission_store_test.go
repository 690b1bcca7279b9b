package sqlite

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

func newSubmission(user, task string) *domain.Submission {
	return &domain.Submission{
		UserID:   user,
		TaskID:   task,
		Language: domain.LanguageJavaScript,
		Source:   "function sum(a, b) { return a + b; }",
	}
}

func gradedResult(passed, total int) *domain.ExecutionResult {
	r := &domain.ExecutionResult{
		Success:     passed == total,
		PassedTests: passed,
		TotalTests:  total,
		Duration:    20 * time.Millisecond,
	}
	for i := 0; i < total; i++ {
		r.TestResults = append(r.TestResults, domain.TestResult{
			TestCase: domain.TestCase{ID: "c", Input: "1,2", Expected: "3"},
			Passed:   i < passed,
			Actual:   "3",
		})
	}
	return r
}

func TestSubmissionStore_CreateComplete(t *testing.T) {
	store := NewSubmissionStore(openTestDB(t))
	ctx := context.Background()

	sub := newSubmission("u1", "2")
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sub.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	queued, err := store.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if queued.Status != domain.SubmissionQueued || queued.Result != nil || queued.CompletedAt != nil {
		t.Errorf("queued submission = %+v", queued)
	}

	if err := store.Complete(ctx, sub.ID, gradedResult(2, 2)); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, err := store.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.SubmissionCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.Result == nil || !got.Result.Success || len(got.Result.TestResults) != 2 {
		t.Errorf("Result = %+v, want stored verdict", got.Result)
	}
	if got.Result.Duration != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", got.Result.Duration)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if got.Source != sub.Source || got.Language != domain.LanguageJavaScript {
		t.Errorf("Source/Language = %q/%q", got.Source, got.Language)
	}
}

func TestSubmissionStore_RunLevelFailure(t *testing.T) {
	store := NewSubmissionStore(openTestDB(t))
	ctx := context.Background()

	sub := newSubmission("u1", "2")
	sub.Result = domain.FailedRun(4, "SyntaxError: Unexpected token", time.Millisecond)
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, _ := store.Get(ctx, sub.ID)
	if got.Status != domain.SubmissionFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Result.Error != "SyntaxError: Unexpected token" {
		t.Errorf("Error = %q", got.Result.Error)
	}
}

func TestSubmissionStore_NotFound(t *testing.T) {
	store := NewSubmissionStore(openTestDB(t))
	ctx := context.Background()

	if _, err := store.Get(ctx, "ghost"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Errorf("Get() error = %v, want ErrSubmissionNotFound", err)
	}
	if err := store.Complete(ctx, "ghost", gradedResult(1, 1)); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Errorf("Complete() error = %v, want ErrSubmissionNotFound", err)
	}
}

func TestSubmissionStore_ListByUser(t *testing.T) {
	store := NewSubmissionStore(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, task := range []string{"1", "2", "3"} {
		sub := newSubmission("u1", task)
		sub.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		store.Create(ctx, sub)
	}
	store.Create(ctx, newSubmission("u2", "1"))

	got, err := store.ListByUser(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TaskID != "3" || got[1].TaskID != "2" {
		t.Errorf("order = %s, %s; want newest first", got[0].TaskID, got[1].TaskID)
	}

	none, err := store.ListByUser(ctx, "nobody", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("ListByUser(nobody) = %v, %v; want empty", none, err)
	}
}

func TestSubmissionStore_Stats(t *testing.T) {
	store := NewSubmissionStore(openTestDB(t))
	ctx := context.Background()

	cases := []struct {
		user, task string
		result     *domain.ExecutionResult
	}{
		{"u1", "1", gradedResult(2, 2)},
		{"u1", "2", gradedResult(1, 4)},
		{"u2", "2", gradedResult(4, 4)},
		{"u2", "2", nil},
	}
	for _, c := range cases {
		sub := newSubmission(c.user, c.task)
		sub.Result = c.result
		if err := store.Create(ctx, sub); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 4 || stats.Passed != 2 || stats.Failed != 1 || stats.Pending != 1 {
		t.Errorf("totals = %+v", stats)
	}
	if stats.Users != 2 {
		t.Errorf("Users = %d, want 2", stats.Users)
	}
	if math.Abs(stats.PassRate-2.0/3.0) > 1e-9 {
		t.Errorf("PassRate = %v, want 2/3", stats.PassRate)
	}
	if len(stats.ByTask) != 2 {
		t.Fatalf("ByTask = %+v, want 2 tasks", stats.ByTask)
	}
	if ts := stats.ByTask[1]; ts.TaskID != "2" || ts.Attempts != 2 || ts.Passed != 1 || ts.PassRate != 0.5 {
		t.Errorf("task 2 stats = %+v", ts)
	}
	if ts := stats.ByTask[0]; ts.AvgTimeMS != 20 {
		t.Errorf("task 1 AvgTimeMS = %v, want 20", ts.AvgTimeMS)
	}
}

func TestSubmissionStore_EmptyStats(t *testing.T) {
	stats, err := NewSubmissionStore(openTestDB(t)).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 0 || stats.PassRate != 0 || len(stats.ByTask) != 0 {
		t.Errorf("Stats() = %+v, want zero", stats)
	}
}
