// Package api serves the codequest HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/leaderboard"
	"github.com/felixgeelhaar/codequest/internal/progress"
	"github.com/felixgeelhaar/codequest/internal/queue"
	"github.com/felixgeelhaar/codequest/internal/storage/sqlite"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// Grader grades one submission against a task
type Grader interface {
	Grade(ctx context.Context, source string, t *domain.Task, lang domain.Language) *domain.ExecutionResult
}

// SubmissionStore persists grading runs
type SubmissionStore interface {
	Create(ctx context.Context, sub *domain.Submission) error
	Complete(ctx context.Context, id string, result *domain.ExecutionResult) error
	Get(ctx context.Context, id string) (*domain.Submission, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Submission, error)
	Stats(ctx context.Context) (*sqlite.SubmissionStats, error)
}

// Leaderboard ranks users by XP
type Leaderboard interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
	Rank(ctx context.Context, userID string) (int, error)
}

// JobPublisher hands grading to the async workers
type JobPublisher interface {
	PublishGradeJob(ctx context.Context, job *queue.GradeJob) error
}

// Deps are the services behind the routes. Submissions, Leaderboard and
// Jobs are optional.
type Deps struct {
	Tasks               task.Store
	Grader              Grader
	Progress            *progress.Service
	Submissions         SubmissionStore
	Leaderboard         Leaderboard
	Jobs                JobPublisher
	Issuer              *auth.Issuer
	AdminPassphraseHash string
	JobTimeout          time.Duration
	RateLimit           *middleware.RateLimitConfig // nil disables rate limiting
	Logger              *zap.Logger
}

// Server routes HTTP requests to the codequest services
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

// NewServer creates a server with every route registered
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.JobTimeout <= 0 {
		deps.JobTimeout = 30 * time.Second
	}

	s := &Server{
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.Use(
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.Recovery(),
	)
	r.NoRoute(func(c *gin.Context) {
		notFound(c, "route")
	})

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1", middleware.Authenticate(s.deps.Issuer))
	expensive := []gin.HandlerFunc{}
	if rl := s.deps.RateLimit; rl != nil {
		v1.Use(middleware.RateLimit(rl.RequestsPerMinute, rl.BurstMultiplier))
		expensive = append(expensive, middleware.RateLimit(rl.ExpensiveRequestsPerMinute, rl.BurstMultiplier))
	}

	v1.GET("/tasks", s.listTasks)
	v1.GET("/tasks/:id", s.getTask)

	v1.POST("/submissions", append(expensive, s.createSubmission)...)
	v1.GET("/submissions", s.listSubmissions)
	v1.GET("/submissions/:id", s.getSubmission)

	v1.GET("/progress", s.getProgress)
	v1.GET("/leaderboard", s.getLeaderboard)

	v1.POST("/admin/unlock", append(expensive, s.unlockAdmin)...)

	admin := v1.Group("/admin", middleware.RequireAdmin())
	admin.GET("/tasks", s.adminListTasks)
	admin.POST("/tasks", s.adminCreateTask)
	admin.PUT("/tasks/:id", s.adminUpdateTask)
	admin.DELETE("/tasks/:id", s.adminDeleteTask)
	admin.GET("/stats", s.adminStats)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"features": gin.H{
			"submissions": s.deps.Submissions != nil,
			"leaderboard": s.deps.Leaderboard != nil,
			"queue":       s.deps.Jobs != nil,
			"admin":       s.deps.AdminPassphraseHash != "",
		},
	})
}

func identity(c *gin.Context) *auth.Identity {
	if id := middleware.GetIdentity(c); id != nil {
		return id
	}
	return &auth.Identity{UserID: middleware.AnonymousUser}
}
