// Package mcp exposes the task catalog and the grader to editors over the
// Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/progress"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// Grader grades one submission against a task
type Grader interface {
	Grade(ctx context.Context, source string, t *domain.Task, lang domain.Language) *domain.ExecutionResult
}

// Server wraps the MCP server with codequest functionality
type Server struct {
	mcpServer *server.Server
	tasks     task.Store
	grader    Grader
	progress  *progress.Service
	userID    string
	logger    *zap.Logger
}

// Config contains configuration for the MCP server. Progress is optional;
// without it grading results are not recorded.
type Config struct {
	Tasks    task.Store
	Grader   Grader
	Progress *progress.Service
	UserID   string
	Version  string
	Logger   *zap.Logger
}

// NewServer creates a new MCP server for codequest
func NewServer(cfg Config) *Server {
	s := &Server{
		tasks:    cfg.Tasks,
		grader:   cfg.Grader,
		progress: cfg.Progress,
		userID:   cfg.UserID,
		logger:   cfg.Logger,
	}
	if s.userID == "" {
		s.userID = "local"
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "codequest",
		Version: version,
	}, server.WithInstructions(`
codequest grades solutions to coding challenges against their test cases.

Available tools:
- codequest_list_tasks: List challenges, optionally filtered by difficulty, tag or language
- codequest_get_task: Show one challenge with its instructions, starter code and visible tests
- codequest_grade: Grade a solution and report per-test results

Solutions are JavaScript or a Python subset. The solution must define the
function named in the task's entry point.
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("codequest_list_tasks").
		Description("List coding challenges ordered by difficulty").
		Handler(s.handleListTasks)

	s.mcpServer.Tool("codequest_get_task").
		Description("Get a coding challenge with instructions, starter code and visible test cases").
		Handler(s.handleGetTask)

	s.mcpServer.Tool("codequest_grade").
		Description("Grade a solution against every test case of a challenge").
		Handler(s.handleGrade)
}

// Input/Output types for tools

type ListTasksInput struct {
	Difficulty string `json:"difficulty,omitempty" jsonschema:"description=Only tasks of this difficulty,enum=beginner,enum=easy,enum=medium,enum=hard,enum=expert"`
	Tag        string `json:"tag,omitempty" jsonschema:"description=Only tasks with this tag"`
	Language   string `json:"language,omitempty" jsonschema:"description=Only tasks with starter code in this language"`
}

type TaskSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	XPReward   int      `json:"xp_reward"`
	Tags       []string `json:"tags"`
}

type ListTasksOutput struct {
	Tasks []TaskSummary `json:"tasks"`
}

type GetTaskInput struct {
	TaskID   string `json:"task_id" jsonschema:"description=Task ID from codequest_list_tasks"`
	Language string `json:"language,omitempty" jsonschema:"description=Language for the starter code (default: the task language)"`
}

type TestCaseOutput struct {
	Input       string `json:"input"`
	Expected    string `json:"expected"`
	Description string `json:"description,omitempty"`
}

type GetTaskOutput struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Instructions string           `json:"instructions"`
	Difficulty   string           `json:"difficulty"`
	EntryPoint   string           `json:"entry_point,omitempty"`
	StarterCode  string           `json:"starter_code"`
	Hints        []string         `json:"hints,omitempty"`
	TestCases    []TestCaseOutput `json:"test_cases"`
	HiddenTests  int              `json:"hidden_tests"`
}

type GradeInput struct {
	TaskID   string `json:"task_id" jsonschema:"description=Task ID to grade against"`
	Language string `json:"language,omitempty" jsonschema:"description=Solution language (default: javascript),enum=javascript,enum=python"`
	Source   string `json:"source" jsonschema:"description=Complete solution source code"`
}

type GradeOutput struct {
	Success     bool     `json:"success"`
	PassedTests int      `json:"passed_tests"`
	TotalTests  int      `json:"total_tests"`
	Error       string   `json:"error,omitempty"`
	Failures    []string `json:"failures,omitempty"`
	XPAwarded   int      `json:"xp_awarded,omitempty"`
	Summary     string   `json:"summary"`
}

// Tool handlers

func (s *Server) handleListTasks(ctx context.Context, input ListTasksInput) (ListTasksOutput, error) {
	filter := task.Filter{
		Difficulty: domain.Difficulty(strings.ToLower(input.Difficulty)),
		Tag:        input.Tag,
	}
	if input.Language != "" {
		lang, err := domain.ParseLanguage(input.Language)
		if err != nil {
			return ListTasksOutput{}, err
		}
		filter.Language = lang
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return ListTasksOutput{}, fmt.Errorf("list tasks: %w", err)
	}

	out := ListTasksOutput{Tasks: make([]TaskSummary, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, TaskSummary{
			ID:         t.ID,
			Title:      t.Title,
			Difficulty: string(t.Difficulty),
			XPReward:   t.XPReward,
			Tags:       t.Tags,
		})
	}
	return out, nil
}

func (s *Server) activeTask(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return t, nil
}

func (s *Server) handleGetTask(ctx context.Context, input GetTaskInput) (GetTaskOutput, error) {
	t, err := s.activeTask(ctx, input.TaskID)
	if err != nil {
		return GetTaskOutput{}, err
	}

	lang := t.Language
	if input.Language != "" {
		if lang, err = domain.ParseLanguage(input.Language); err != nil {
			return GetTaskOutput{}, err
		}
	}

	out := GetTaskOutput{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Instructions: t.Instructions,
		Difficulty:   string(t.Difficulty),
		EntryPoint:   t.EntryPoint,
		StarterCode:  t.StarterCode[lang],
		Hints:        t.Hints,
		TestCases:    []TestCaseOutput{},
	}
	for _, tc := range t.TestCases {
		if tc.Hidden {
			out.HiddenTests++
			continue
		}
		out.TestCases = append(out.TestCases, TestCaseOutput{
			Input:       tc.Input,
			Expected:    tc.Expected,
			Description: tc.Description,
		})
	}
	return out, nil
}

func (s *Server) handleGrade(ctx context.Context, input GradeInput) (GradeOutput, error) {
	if strings.TrimSpace(input.Source) == "" {
		return GradeOutput{}, fmt.Errorf("%w: source is required", domain.ErrInvalidInput)
	}
	t, err := s.activeTask(ctx, input.TaskID)
	if err != nil {
		return GradeOutput{}, err
	}

	lang := t.Language
	if input.Language != "" {
		lang, err = domain.ParseLanguage(input.Language)
		if err != nil {
			lang = domain.Language(input.Language)
		}
	}

	result := s.grader.Grade(ctx, input.Source, t, lang).Redacted()
	out := GradeOutput{
		Success:     result.Success,
		PassedTests: result.PassedTests,
		TotalTests:  result.TotalTests,
		Error:       result.Error,
	}
	for _, tr := range result.Failed() {
		out.Failures = append(out.Failures, describeFailure(tr))
	}

	if s.progress != nil {
		outcome, err := s.progress.RecordAttempt(ctx, s.userID, t, result, lang, input.Source)
		if err != nil {
			s.logger.Warn("failed to record attempt", zap.String("task_id", t.ID), zap.Error(err))
		} else {
			out.XPAwarded = outcome.XPAwarded
		}
	}

	out.Summary = fmt.Sprintf("%d/%d tests passed", result.PassedTests, result.TotalTests)
	if result.Success {
		out.Summary += " - solved!"
	}
	return out, nil
}

func describeFailure(tr domain.TestResult) string {
	name := tr.TestCase.Description
	if name == "" {
		name = tr.TestCase.ID
	}
	if tr.TestCase.Hidden {
		return name + ": hidden test failed"
	}
	if tr.Error != "" {
		return fmt.Sprintf("%s: input %s: %s", name, tr.TestCase.Input, tr.Error)
	}
	return fmt.Sprintf("%s: input %s: expected %s, got %s", name, tr.TestCase.Input, tr.TestCase.Expected, tr.Actual)
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
