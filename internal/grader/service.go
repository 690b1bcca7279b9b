package grader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// DefaultCandidates are the solution names probed when a task does not
// declare its entry point
var DefaultCandidates = []string{
	"helloWorld",
	"sum",
	"findMax",
	"isPalindrome",
	"fibonacci",
	"binarySearch",
	"twoSum",
	"isValid",
	"reverseString",
	"factorial",
}

// Config holds grader configuration
type Config struct {
	Timeout          time.Duration // per test case
	MaxCallStackSize int
	Candidates       []string
	MaxConcurrent    int // concurrent grading runs, 0 disables the limit
	MaxQueue         int
	QueueTimeout     time.Duration
}

// DefaultConfig returns default grader configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Second,
		MaxCallStackSize: 1024,
		Candidates:       DefaultCandidates,
		MaxConcurrent:    4,
		MaxQueue:         16,
		QueueTimeout:     10 * time.Second,
	}
}

// Service grades submissions against a task's test cases
type Service struct {
	config   Config
	registry *ExecutorRegistry
	invoker  *Invoker
	bulkhead bulkhead.Bulkhead[*domain.ExecutionResult]
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRegistry replaces the executor registry
func WithRegistry(r *ExecutorRegistry) Option {
	return func(s *Service) { s.registry = r }
}

// NewService creates a new grading service
func NewService(cfg Config, opts ...Option) *Service {
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultCandidates
	}
	s := &Service{
		config:   cfg,
		registry: NewExecutorRegistry(),
		invoker: NewInvoker(InvokerConfig{
			Timeout:          cfg.Timeout,
			MaxCallStackSize: cfg.MaxCallStackSize,
		}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.MaxConcurrent > 0 {
		queueTimeout := cfg.QueueTimeout
		if queueTimeout <= 0 {
			queueTimeout = 10 * time.Second
		}
		s.bulkhead = bulkhead.New[*domain.ExecutionResult](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxQueue,
			QueueTimeout:  queueTimeout,
		})
	}
	return s
}

// Languages returns the languages this service can grade
func (s *Service) Languages() []domain.Language {
	return s.registry.SupportedLanguages()
}

// Grade runs source against every test case of task. It always returns a
// well-formed result; faults are reported inside it.
func (s *Service) Grade(ctx context.Context, source string, task *domain.Task, lang domain.Language) (result *domain.ExecutionResult) {
	start := time.Now()
	if task == nil {
		return domain.FailedRun(0, "no task to grade against", time.Since(start))
	}
	total := len(task.TestCases)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grading run panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", r))
			result = domain.FailedRun(total, fmt.Sprintf("grading failed: %v", r), time.Since(start))
		}
	}()

	exec, err := s.registry.Get(lang)
	if err != nil {
		return domain.FailedRun(total, err.Error(), time.Since(start))
	}

	if s.bulkhead == nil {
		return s.run(ctx, exec, source, task, start)
	}

	result, err = s.bulkhead.Execute(ctx, func(ctx context.Context) (*domain.ExecutionResult, error) {
		return s.run(ctx, exec, source, task, start), nil
	})
	if err != nil {
		s.logger.Warn("grading rejected", zap.String("task_id", task.ID), zap.Error(err))
		return domain.FailedRun(total, "grader is busy: "+err.Error(), time.Since(start))
	}
	return result
}

func (s *Service) run(ctx context.Context, exec Executor, source string, task *domain.Task, start time.Time) (result *domain.ExecutionResult) {
	total := len(task.TestCases)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grading run panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", r))
			result = domain.FailedRun(total, fmt.Sprintf("grading failed: %v", r), time.Since(start))
		}
	}()

	js := exec.Prepare(source)
	candidates := s.candidates(task)

	result = &domain.ExecutionResult{
		TotalTests:  total,
		TestResults: make([]domain.TestResult, 0, total),
	}
	outputs := make([]string, 0, total)

	for _, tc := range task.TestCases {
		tr := s.runCase(ctx, js, candidates, tc)
		if tr.Passed {
			result.PassedTests++
		}
		outputs = append(outputs, tr.Actual)
		result.TestResults = append(result.TestResults, tr)
	}

	result.Success = result.PassedTests == total
	result.Output = strings.Join(outputs, "\n")
	result.Duration = time.Since(start)

	s.logger.Debug("graded submission",
		zap.String("task_id", task.ID),
		zap.String("language", exec.Language().String()),
		zap.Int("passed", result.PassedTests),
		zap.Int("total", total),
		zap.Duration("duration", result.Duration))
	return result
}

// runCase grades one test case; panics are contained to the case
func (s *Service) runCase(ctx context.Context, js string, candidates []string, tc domain.TestCase) (tr domain.TestResult) {
	tr.TestCase = tc
	defer func() {
		if r := recover(); r != nil {
			tr.Passed = false
			tr.Actual = ""
			tr.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	args := ParseArguments(tc.Input)
	inv := s.invoker.Invoke(ctx, js, candidates, args)
	tr.Logs = inv.Logs
	if inv.Err != nil {
		tr.Error = inv.Err.Error()
		return tr
	}

	tr.Actual = inv.Output
	tr.Passed = Compare(inv.Output, tc.Expected)
	return tr
}

// candidates returns the probe order for task: its declared entry point
// first, then the configured list
func (s *Service) candidates(task *domain.Task) []string {
	if task.EntryPoint == "" {
		return s.config.Candidates
	}
	names := make([]string, 0, len(s.config.Candidates)+1)
	names = append(names, task.EntryPoint)
	for _, n := range s.config.Candidates {
		if n != task.EntryPoint {
			names = append(names, n)
		}
	}
	return names
}
