package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// UnlockRequest is the request body for admin unlock
type UnlockRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// TaskRequest is the admin payload for creating or replacing a task
type TaskRequest struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Instructions  string            `json:"instructions"`
	Difficulty    string            `json:"difficulty"`
	Language      string            `json:"language"`
	XPReward      int               `json:"xp_reward"`
	EstimatedTime int               `json:"estimated_time"`
	Tags          []string          `json:"tags"`
	StarterCode   map[string]string `json:"starter_code"`
	Hints         []string          `json:"hints"`
	TestCases     []domain.TestCase `json:"test_cases"`
	EntryPoint    string            `json:"entry_point"`
	Active        *bool             `json:"active"`
}

// toDomain converts the payload. Validation is left to the store.
func (r *TaskRequest) toDomain() (*domain.Task, error) {
	lang := domain.LanguageJavaScript
	if r.Language != "" {
		l, err := domain.ParseLanguage(r.Language)
		if err != nil {
			return nil, err
		}
		lang = l
	}

	t := &domain.Task{
		ID:            strings.TrimSpace(r.ID),
		Title:         r.Title,
		Description:   r.Description,
		Instructions:  r.Instructions,
		Difficulty:    domain.Difficulty(strings.ToLower(r.Difficulty)),
		Language:      lang,
		XPReward:      r.XPReward,
		EstimatedTime: r.EstimatedTime,
		Tags:          r.Tags,
		StarterCode:   make(map[domain.Language]string, len(r.StarterCode)),
		Hints:         r.Hints,
		TestCases:     r.TestCases,
		EntryPoint:    r.EntryPoint,
		Active:        r.Active == nil || *r.Active,
	}
	for i := range t.TestCases {
		if t.TestCases[i].ID == "" {
			t.TestCases[i].ID = "case-" + strconv.Itoa(i+1)
		}
	}
	for key, code := range r.StarterCode {
		l, err := domain.ParseLanguage(key)
		if err != nil {
			return nil, err
		}
		t.StarterCode[l] = code
	}
	return t, nil
}

func (s *Server) unlockAdmin(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "passphrase is required")
		return
	}

	if err := auth.CheckPassphrase(s.deps.AdminPassphraseHash, req.Passphrase); err != nil {
		middleware.LoggerFrom(c).Warn("admin unlock refused", zap.Error(err))
		writeDomainError(c, err)
		return
	}

	userID := identity(c).UserID
	token, exp, err := s.deps.Issuer.Issue(userID, true)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	middleware.LoggerFrom(c).Info("admin unlocked", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) adminListTasks(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}
	filter.IncludeInactive = c.Query("include_inactive") == "true"

	tasks, err := s.deps.Tasks.List(c.Request.Context(), filter)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t, true))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views, "count": len(views)})
}

func (s *Server) bindTask(c *gin.Context) (*domain.Task, bool) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}
	t, err := req.toDomain()
	if err != nil {
		writeDomainError(c, err)
		return nil, false
	}
	return t, true
}

func (s *Server) adminCreateTask(c *gin.Context) {
	t, ok := s.bindTask(c)
	if !ok {
		return
	}
	if err := s.deps.Tasks.Create(c.Request.Context(), t); err != nil {
		writeDomainError(c, err)
		return
	}
	middleware.LoggerFrom(c).Info("task created", zap.String("task_id", t.ID))
	c.JSON(http.StatusCreated, newTaskView(t, true))
}

func (s *Server) adminUpdateTask(c *gin.Context) {
	t, ok := s.bindTask(c)
	if !ok {
		return
	}
	t.ID = c.Param("id")
	if err := s.deps.Tasks.Update(c.Request.Context(), t); err != nil {
		writeDomainError(c, err)
		return
	}

	updated, err := s.deps.Tasks.Get(c.Request.Context(), t.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskView(updated, true))
}

func (s *Server) adminDeleteTask(c *gin.Context) {
	if err := s.deps.Tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeDomainError(c, err)
		return
	}
	middleware.LoggerFrom(c).Info("task deactivated", zap.String("task_id", c.Param("id")))
	c.Status(http.StatusNoContent)
}

func (s *Server) adminStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := task.ComputeStats(ctx, s.deps.Tasks)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	resp := gin.H{"tasks": stats}
	if s.deps.Submissions != nil {
		subStats, err := s.deps.Submissions.Stats(ctx)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp["submissions"] = subStats
	}
	c.JSON(http.StatusOK, resp)
}
