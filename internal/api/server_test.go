package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/grader"
	"github.com/felixgeelhaar/codequest/internal/leaderboard"
	"github.com/felixgeelhaar/codequest/internal/progress"
	"github.com/felixgeelhaar/codequest/internal/queue"
	"github.com/felixgeelhaar/codequest/internal/storage/sqlite"
	"github.com/felixgeelhaar/codequest/internal/task"
)

const sumSolution = "function sum(a, b) { return a + b; }"

func init() {
	gin.SetMode(gin.TestMode)
}

// memSubmissions is an in-memory SubmissionStore
type memSubmissions struct {
	mu   sync.Mutex
	subs map[string]*domain.Submission
}

func newMemSubmissions() *memSubmissions {
	return &memSubmissions{subs: make(map[string]*domain.Submission)}
}

func (m *memSubmissions) Create(_ context.Context, sub *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = domain.SubmissionQueued
	}
	sub.CreatedAt = time.Now()
	if sub.Result != nil {
		sub.Status = domain.SubmissionCompleted
	}
	c := *sub
	m.subs[sub.ID] = &c
	return nil
}

func (m *memSubmissions) Complete(_ context.Context, id string, result *domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	now := time.Now()
	sub.Result = result
	sub.Status = domain.SubmissionCompleted
	sub.CompletedAt = &now
	return nil
}

func (m *memSubmissions) Get(_ context.Context, id string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	c := *sub
	return &c, nil
}

func (m *memSubmissions) ListByUser(_ context.Context, userID string, _ int) ([]*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Submission
	for _, sub := range m.subs {
		if sub.UserID == userID {
			c := *sub
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSubmissions) Stats(context.Context) (*sqlite.SubmissionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &sqlite.SubmissionStats{Total: len(m.subs)}, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []*queue.GradeJob
	err  error
}

func (f *fakeJobs) PublishGradeJob(_ context.Context, job *queue.GradeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type testEnv struct {
	server      *Server
	deps        Deps
	issuer      *auth.Issuer
	submissions *memSubmissions
	board       *leaderboard.Board
	jobs        *fakeJobs
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()

	catalog := task.NewCatalog()
	if _, err := catalog.Seed(task.BuiltinLoader()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	board := leaderboard.NewWithClient(client, "")

	hash, err := auth.HashPassphrase("open sesame")
	if err != nil {
		t.Fatalf("HashPassphrase() error = %v", err)
	}

	env := &testEnv{
		issuer:      auth.NewIssuer("test-secret", time.Hour),
		submissions: newMemSubmissions(),
		board:       board,
		jobs:        &fakeJobs{},
	}
	env.deps = Deps{
		Tasks:               catalog,
		Grader:              grader.NewService(grader.DefaultConfig()),
		Progress:            progress.NewService(progress.NewMemoryStore(), progress.WithLeaderboard(board)),
		Submissions:         env.submissions,
		Leaderboard:         board,
		Issuer:              env.issuer,
		AdminPassphraseHash: hash,
	}
	for _, fn := range configure {
		fn(&env.deps)
	}
	env.server = NewServer(env.deps)
	return env
}

func (e *testEnv) token(t *testing.T, user string, admin bool) string {
	t.Helper()
	tok, _, err := e.issuer.Issue(user, admin)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all", "", http.StatusOK, 8},
		{"beginner", "?difficulty=beginner", http.StatusOK, 2},
		{"python alias", "?language=py", http.StatusOK, 8},
		{"tag", "?tag=strings", http.StatusOK, 3},
		{"bad difficulty", "?difficulty=impossible", http.StatusBadRequest, 0},
		{"bad language", "?language=cobol", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/tasks"+tt.query, "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				body := decode[ErrorResponse](t, rec)
				if body.Error == nil || body.Error.Code != "BAD_REQUEST" {
					t.Errorf("error = %+v, want BAD_REQUEST", body.Error)
				}
				return
			}
			body := decode[struct {
				Tasks []taskView `json:"tasks"`
				Count int        `json:"count"`
			}](t, rec)
			if body.Count != tt.wantCount || len(body.Tasks) != tt.wantCount {
				t.Errorf("count = %d (%d tasks), want %d", body.Count, len(body.Tasks), tt.wantCount)
			}
		})
	}
}

func TestGetTask_RedactsHiddenCases(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	v := decode[taskView](t, rec)
	if len(v.TestCases) != 4 {
		t.Fatalf("test cases = %d, want 4", len(v.TestCases))
	}
	for _, tc := range v.TestCases {
		if tc.Hidden && (tc.Input != "" || tc.Expected != "") {
			t.Errorf("hidden case %s leaked input %q expected %q", tc.ID, tc.Input, tc.Expected)
		}
		if !tc.Hidden && tc.Input == "" {
			t.Errorf("visible case %s lost its input", tc.ID)
		}
	}
	if v.StarterCode["python"] == "" {
		t.Error("expected python starter code")
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/tasks/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", rec.Code)
	}
}

func TestCreateSubmission_Sync(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice", false)

	rec := env.do(t, http.MethodPost, "/api/v1/submissions", token,
		SubmitRequest{TaskID: "2", Language: "javascript", Source: sumSolution})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	resp := decode[SubmitResponse](t, rec)
	if !resp.Result.Success || resp.Result.PassedTests != 4 || resp.Result.TotalTests != 4 {
		t.Errorf("result = %+v, want 4/4 success", resp.Result)
	}
	if !resp.FirstCompletion || resp.XPAwarded != 75 {
		t.Errorf("first completion = %v xp = %d, want true 75", resp.FirstCompletion, resp.XPAwarded)
	}
	if resp.Progress == nil || resp.Progress.TotalXP != 75 {
		t.Errorf("progress = %+v, want 75 XP", resp.Progress)
	}
	for _, tr := range resp.Result.TestResults {
		if tr.TestCase.Hidden && (tr.TestCase.Input != "" || tr.Actual != "") {
			t.Errorf("hidden result %s not redacted: %+v", tr.TestCase.ID, tr)
		}
	}

	if resp.SubmissionID == "" {
		t.Fatal("expected a submission id")
	}
	stored, err := env.submissions.Get(context.Background(), resp.SubmissionID)
	if err != nil {
		t.Fatalf("stored submission: %v", err)
	}
	if stored.UserID != "alice" || stored.Result == nil {
		t.Errorf("stored = %+v, want alice with result", stored)
	}

	// a second pass awards nothing
	rec = env.do(t, http.MethodPost, "/api/v1/submissions", token,
		SubmitRequest{TaskID: "2", Source: sumSolution})
	resp = decode[SubmitResponse](t, rec)
	if resp.XPAwarded != 0 || resp.FirstCompletion {
		t.Errorf("re-solve xp = %d first = %v, want 0 false", resp.XPAwarded, resp.FirstCompletion)
	}

	rank, err := env.board.Rank(context.Background(), "alice")
	if err != nil || rank != 1 {
		t.Errorf("leaderboard rank = %d, %v, want 1", rank, err)
	}
}

func TestCreateSubmission_Failures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		req         any
		wantStatus  int
		wantSuccess bool
		wantError   bool
	}{
		{"missing source", map[string]string{"task_id": "2"}, http.StatusBadRequest, false, false},
		{"unknown task", SubmitRequest{TaskID: "99", Source: sumSolution}, http.StatusNotFound, false, false},
		{"wrong answer", SubmitRequest{TaskID: "2", Source: "function sum(a, b) { return a - b; }"}, http.StatusOK, false, false},
		{"unknown language", SubmitRequest{TaskID: "2", Language: "cobol", Source: sumSolution}, http.StatusOK, false, true},
		{"python", SubmitRequest{TaskID: "2", Language: "python", Source: "def sum(a, b):\n    return a + b\n"}, http.StatusOK, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/submissions", "", tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			resp := decode[SubmitResponse](t, rec)
			if resp.Result.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", resp.Result.Success, tt.wantSuccess)
			}
			if (resp.Result.Error != "") != tt.wantError {
				t.Errorf("error = %q, want error %v", resp.Result.Error, tt.wantError)
			}
			if resp.Result.TotalTests != 4 {
				t.Errorf("total = %d, want 4", resp.Result.TotalTests)
			}
		})
	}
}

func TestCreateSubmission_Async(t *testing.T) {
	jobs := &fakeJobs{}
	env := newTestEnv(t, func(d *Deps) { d.Jobs = jobs })
	token := env.token(t, "bob", false)

	rec := env.do(t, http.MethodPost, "/api/v1/submissions?async=true", token,
		SubmitRequest{TaskID: "2", Source: sumSolution})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["job_id"] == "" || body["submission_id"] == "" {
		t.Fatalf("body = %v, want job and submission ids", body)
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("published %d jobs, want 1", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.UserID != "bob" || job.TaskID != "2" || job.Language != domain.LanguageJavaScript {
		t.Errorf("job = %+v", job)
	}

	// simulate the worker answering
	result := env.deps.Grader.Grade(context.Background(), job.Source, mustTask(t, env, "2"), job.Language)
	err := env.server.ApplyResult(context.Background(), &queue.GradeResult{
		JobID:        job.ID,
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		TaskID:       job.TaskID,
		Language:     job.Language,
		Status:       queue.StatusCompleted,
		Result:       result,
	})
	if err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/submissions/"+body["submission_id"], token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get submission status = %d", rec.Code)
	}
	sub := decode[submissionView](t, rec)
	if sub.Status != domain.SubmissionCompleted || sub.Result == nil || !sub.Result.Success {
		t.Errorf("submission = %+v, want completed success", sub)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/progress", token, nil)
	pv := decode[progressView](t, rec)
	if pv.TotalXP != 75 {
		t.Errorf("progress xp = %d, want 75", pv.TotalXP)
	}
}

func TestCreateSubmission_AsyncPublishFailure(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("broker down")}
	env := newTestEnv(t, func(d *Deps) { d.Jobs = jobs })

	rec := env.do(t, http.MethodPost, "/api/v1/submissions?async=1", "",
		SubmitRequest{TaskID: "2", Source: sumSolution})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	subs, _ := env.submissions.ListByUser(context.Background(), middleware.AnonymousUser, 10)
	if len(subs) != 1 || subs[0].Result == nil || subs[0].Result.Success {
		t.Errorf("submissions = %+v, want one failed run", subs)
	}
}

func TestCreateSubmission_AsyncWithoutQueueGradesInline(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/submissions?async=true", "",
		SubmitRequest{TaskID: "2", Source: sumSolution})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGetSubmission_Ownership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, "alice", false)

	rec := env.do(t, http.MethodPost, "/api/v1/submissions", alice, SubmitRequest{TaskID: "2", Source: sumSolution})
	id := decode[SubmitResponse](t, rec).SubmissionID

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"owner", alice, http.StatusOK},
		{"other user", env.token(t, "mallory", false), http.StatusNotFound},
		{"anonymous", "", http.StatusNotFound},
		{"admin", env.token(t, "root", true), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodGet, "/api/v1/submissions/"+id, tt.token, nil); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	rec = env.do(t, http.MethodGet, "/api/v1/submissions", alice, nil)
	list := decode[struct {
		Submissions []submissionView `json:"submissions"`
	}](t, rec)
	if len(list.Submissions) != 1 {
		t.Errorf("listed %d submissions, want 1", len(list.Submissions))
	}
}

func TestProgressAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/progress", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	pv := decode[progressView](t, rec)
	if pv.UserID != middleware.AnonymousUser || pv.Level != 1 || pv.TotalXP != 0 {
		t.Errorf("fresh progress = %+v", pv)
	}

	ctx := context.Background()
	_ = env.board.Set(ctx, "alice", 500)
	_ = env.board.Set(ctx, "bob", 300)

	rec = env.do(t, http.MethodGet, "/api/v1/leaderboard?limit=1", "", nil)
	body := decode[struct {
		Enabled bool                `json:"enabled"`
		Entries []leaderboard.Entry `json:"entries"`
	}](t, rec)
	if !body.Enabled || len(body.Entries) != 1 || body.Entries[0].UserID != "alice" {
		t.Errorf("leaderboard = %+v, want alice first", body)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/leaderboard?limit=zero", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	noBoard := newTestEnv(t, func(d *Deps) { d.Leaderboard = nil })
	rec = noBoard.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["enabled"] != false {
		t.Errorf("disabled leaderboard = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminUnlock(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/unlock", "", UnlockRequest{Passphrase: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong passphrase status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/admin/unlock", "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing passphrase status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/admin/unlock", "", UnlockRequest{Passphrase: "open sesame"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	token := decode[map[string]string](t, rec)["token"]
	id, err := env.issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !id.Admin || id.UserID != middleware.AnonymousUser {
		t.Errorf("identity = %+v, want admin local", id)
	}

	disabled := newTestEnv(t, func(d *Deps) { d.AdminPassphraseHash = "" })
	rec = disabled.do(t, http.MethodPost, "/api/v1/admin/unlock", "", UnlockRequest{Passphrase: "open sesame"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("disabled unlock status = %d, want 403", rec.Code)
	}
}

func TestAdminTasks(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", true)

	newTask := TaskRequest{
		ID:          "reverse",
		Title:       "Reverse String",
		Description: "Reverse a string",
		Difficulty:  "Easy",
		XPReward:    100,
		Tags:        []string{"strings"},
		StarterCode: map[string]string{"js": "function reverseString(s) {}"},
		TestCases: []domain.TestCase{
			{Input: `"abc"`, Expected: "cba"},
			{Input: `"racecar"`, Expected: "racecar", Hidden: true},
		},
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/admin/tasks", env.token(t, "alice", false), newTask); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin create status = %d, want 403", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/admin/tasks", admin, newTask)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	created := decode[taskView](t, rec)
	if created.TestCases[1].Input == "" || created.TestCases[0].ID != "case-1" {
		t.Errorf("admin view = %+v, want full test cases with ids", created.TestCases)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/admin/tasks", admin, newTask); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	invalid := newTask
	invalid.ID = "broken"
	invalid.XPReward = 0
	if rec := env.do(t, http.MethodPost, "/api/v1/admin/tasks", admin, invalid); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create status = %d, want 400", rec.Code)
	}

	// the new task is gradeable
	rec = env.do(t, http.MethodPost, "/api/v1/submissions", "",
		SubmitRequest{TaskID: "reverse", Source: "function reverseString(s) { return s.split('').reverse().join(''); }"})
	if resp := decode[SubmitResponse](t, rec); !resp.Result.Success {
		t.Errorf("grading new task = %+v, want success", resp.Result)
	}

	update := newTask
	update.Title = "Reverse It"
	rec = env.do(t, http.MethodPut, "/api/v1/admin/tasks/reverse", admin, update)
	if rec.Code != http.StatusOK || decode[taskView](t, rec).Title != "Reverse It" {
		t.Errorf("update = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/admin/tasks/missing", admin, update); rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/admin/tasks/reverse", admin, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/tasks/reverse", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted task status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/admin/tasks?include_inactive=true", admin, nil)
	if body := decode[struct {
		Count int `json:"count"`
	}](t, rec); body.Count != 9 {
		t.Errorf("admin list count = %d, want 9", body.Count)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", true)

	env.do(t, http.MethodPost, "/api/v1/submissions", "", SubmitRequest{TaskID: "2", Source: sumSolution})

	rec := env.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		Tasks       task.Stats             `json:"tasks"`
		Submissions sqlite.SubmissionStats `json:"submissions"`
	}](t, rec)
	if body.Tasks.Active != 8 || body.Submissions.Total != 1 {
		t.Errorf("stats = %+v", body)
	}
}

func TestRateLimitedSubmissions(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = &middleware.RateLimitConfig{
			RequestsPerMinute:          100,
			ExpensiveRequestsPerMinute: 1,
			BurstMultiplier:            1,
		}
	})

	req := SubmitRequest{TaskID: "2", Source: sumSolution}
	if rec := env.do(t, http.MethodPost, "/api/v1/submissions", "", req); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/submissions", "", req); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/tasks", "", nil); rec.Code != http.StatusOK {
		t.Errorf("general route status = %d, want 200", rec.Code)
	}
}

func TestApplyResult_FailedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sub := &domain.Submission{UserID: "carol", TaskID: "2", Language: domain.LanguageJavaScript, Source: "x"}
	if err := env.submissions.Create(ctx, sub); err != nil {
		t.Fatal(err)
	}

	err := env.server.ApplyResult(ctx, &queue.GradeResult{
		JobID:        uuid.New(),
		SubmissionID: sub.ID,
		UserID:       "carol",
		TaskID:       "2",
		Language:     domain.LanguageJavaScript,
		Status:       queue.StatusTimeout,
	})
	if err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	got, _ := env.submissions.Get(ctx, sub.ID)
	if got.Result == nil || got.Result.Success || got.Result.TotalTests != 4 || got.Result.Error != "grading timeout" {
		t.Errorf("result = %+v, want failed run over 4 tests", got.Result)
	}

	// unknown tasks are dropped rather than retried
	if err := env.server.ApplyResult(ctx, &queue.GradeResult{TaskID: "gone", UserID: "carol"}); err != nil {
		t.Errorf("ApplyResult(unknown task) error = %v, want nil", err)
	}
}

func mustTask(t *testing.T, env *testEnv, id string) *domain.Task {
	t.Helper()
	tk, err := env.deps.Tasks.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return tk
}
