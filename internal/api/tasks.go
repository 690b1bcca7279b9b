package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// filterFromQuery reads difficulty, tag and language query parameters
func filterFromQuery(c *gin.Context) (task.Filter, bool) {
	var f task.Filter
	if d := c.Query("difficulty"); d != "" {
		f.Difficulty = domain.Difficulty(d)
		if !f.Difficulty.IsValid() {
			badRequest(c, "unknown difficulty: "+d)
			return f, false
		}
	}
	if l := c.Query("language"); l != "" {
		lang, err := domain.ParseLanguage(l)
		if err != nil {
			badRequest(c, err.Error())
			return f, false
		}
		f.Language = lang
	}
	f.Tag = c.Query("tag")
	return f, true
}

func (s *Server) listTasks(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}

	tasks, err := s.deps.Tasks.List(c.Request.Context(), filter)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	var completed func(string) bool
	if p, err := s.deps.Progress.Get(c.Request.Context(), identity(c).UserID); err == nil {
		completed = p.HasCompleted
	} else {
		middleware.LoggerFrom(c).Warn("progress unavailable for task list", zap.Error(err))
	}

	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		v := newTaskView(t, false)
		if completed != nil {
			v.Completed = completed(t.ID)
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views, "count": len(views)})
}

func (s *Server) getTask(c *gin.Context) {
	t, err := s.deps.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !t.Active {
		notFound(c, "task")
		return
	}

	v := newTaskView(t, false)
	if p, err := s.deps.Progress.Get(c.Request.Context(), identity(c).UserID); err == nil {
		v.Completed = p.HasCompleted(t.ID)
	}
	c.JSON(http.StatusOK, v)
}
