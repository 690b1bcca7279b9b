package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/queue"
)

// SubmitRequest is the request body for grading a solution
type SubmitRequest struct {
	TaskID   string `json:"task_id" binding:"required"`
	Language string `json:"language"`
	Source   string `json:"source" binding:"required"`
}

// SubmitResponse is returned for a synchronous grading run
type SubmitResponse struct {
	SubmissionID    string                  `json:"submission_id,omitempty"`
	Result          *domain.ExecutionResult `json:"result"`
	Progress        *progressView           `json:"progress,omitempty"`
	XPAwarded       int                     `json:"xp_awarded"`
	FirstCompletion bool                    `json:"first_completion"`
	LeveledUp       bool                    `json:"leveled_up"`
}

// submissionLanguage resolves the requested language. Unknown tags are kept
// verbatim so the grader reports them as a failed run.
func submissionLanguage(raw string, t *domain.Task) domain.Language {
	if strings.TrimSpace(raw) == "" {
		return t.Language
	}
	if lang, err := domain.ParseLanguage(raw); err == nil {
		return lang
	}
	return domain.Language(raw)
}

func (s *Server) createSubmission(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	t, err := s.deps.Tasks.Get(ctx, req.TaskID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !t.Active {
		notFound(c, "task")
		return
	}

	userID := identity(c).UserID
	lang := submissionLanguage(req.Language, t)
	sub := &domain.Submission{
		UserID:   userID,
		TaskID:   t.ID,
		Language: lang,
		Source:   req.Source,
	}
	logger := middleware.LoggerFrom(c).With(zap.String("task_id", t.ID), zap.String("user_id", userID))

	if async, _ := strconv.ParseBool(c.Query("async")); async && s.deps.Jobs != nil && s.deps.Submissions != nil {
		s.enqueue(c, sub, t, logger)
		return
	}

	result := s.deps.Grader.Grade(ctx, req.Source, t, lang)
	sub.Result = result
	if s.deps.Submissions != nil {
		if err := s.deps.Submissions.Create(ctx, sub); err != nil {
			logger.Error("failed to persist submission", zap.Error(err))
			sub.ID = ""
		}
	}

	resp := SubmitResponse{
		SubmissionID: sub.ID,
		Result:       result.Redacted(),
	}
	outcome, err := s.deps.Progress.RecordAttempt(ctx, userID, t, result, lang, req.Source)
	if err != nil {
		logger.Error("failed to record progress", zap.Error(err))
	} else {
		pv := newProgressView(outcome.Progress)
		resp.Progress = &pv
		resp.XPAwarded = outcome.XPAwarded
		resp.FirstCompletion = outcome.FirstCompletion
		resp.LeveledUp = outcome.LeveledUp
	}

	logger.Info("submission graded",
		zap.Bool("success", result.Success),
		zap.Int("passed", result.PassedTests),
		zap.Int("total", result.TotalTests),
		zap.Duration("duration", result.Duration))
	c.JSON(http.StatusOK, resp)
}

// enqueue stores a queued submission and publishes its grade job
func (s *Server) enqueue(c *gin.Context, sub *domain.Submission, t *domain.Task, logger *zap.Logger) {
	ctx := c.Request.Context()
	sub.Status = domain.SubmissionQueued
	if err := s.deps.Submissions.Create(ctx, sub); err != nil {
		writeDomainError(c, err)
		return
	}

	job := &queue.GradeJob{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		TaskID:       sub.TaskID,
		Language:     sub.Language,
		Source:       sub.Source,
		Timeout:      int(s.deps.JobTimeout.Seconds()),
		CreatedAt:    time.Now(),
	}
	if err := s.deps.Jobs.PublishGradeJob(ctx, job); err != nil {
		failed := domain.FailedRun(len(t.TestCases), "grading queue unavailable", 0)
		if cerr := s.deps.Submissions.Complete(ctx, sub.ID, failed); cerr != nil {
			logger.Error("failed to mark submission failed", zap.Error(cerr))
		}
		unavailable(c, "grading queue unavailable", err)
		return
	}

	logger.Info("submission queued", zap.String("job_id", job.ID.String()), zap.String("submission_id", sub.ID))
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        job.ID.String(),
		"submission_id": sub.ID,
		"status":        domain.SubmissionQueued,
	})
}

func (s *Server) getSubmission(c *gin.Context) {
	if s.deps.Submissions == nil {
		notFound(c, "submission")
		return
	}

	sub, err := s.deps.Submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	id := identity(c)
	if sub.UserID != id.UserID && !id.Admin {
		notFound(c, "submission")
		return
	}
	c.JSON(http.StatusOK, newSubmissionView(sub, id.Admin))
}

func (s *Server) listSubmissions(c *gin.Context) {
	if s.deps.Submissions == nil {
		c.JSON(http.StatusOK, gin.H{"submissions": []submissionView{}})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	id := identity(c)
	subs, err := s.deps.Submissions.ListByUser(c.Request.Context(), id.UserID, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	views := make([]submissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, newSubmissionView(sub, id.Admin))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": views})
}

// ApplyResult stores an async grading result and records the attempt. It
// is the queue result handler on the API side.
func (s *Server) ApplyResult(ctx context.Context, r *queue.GradeResult) error {
	t, err := s.deps.Tasks.Get(ctx, r.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			s.logger.Warn("result for unknown task dropped", zap.String("task_id", r.TaskID))
			return nil
		}
		return err
	}

	result := r.Result
	if result == nil {
		msg := r.Error
		if msg == "" {
			msg = fmt.Sprintf("grading %s", r.Status)
		}
		result = domain.FailedRun(len(t.TestCases), msg, r.Duration)
	}

	if s.deps.Submissions != nil && r.SubmissionID != "" {
		if err := s.deps.Submissions.Complete(ctx, r.SubmissionID, result); err != nil {
			return fmt.Errorf("complete submission %s: %w", r.SubmissionID, err)
		}
	}

	if _, err := s.deps.Progress.RecordAttempt(ctx, r.UserID, t, result, r.Language, ""); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}
