package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/leaderboard"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

func (s *Server) getProgress(c *gin.Context) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	p, err := s.deps.Progress.Get(ctx, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	v := newProgressView(p)
	if s.deps.Leaderboard != nil {
		rank, err := s.deps.Leaderboard.Rank(ctx, userID)
		if err != nil {
			middleware.LoggerFrom(c).Warn("leaderboard rank unavailable", zap.Error(err))
		}
		v.Rank = rank
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) getLeaderboard(c *gin.Context) {
	if s.deps.Leaderboard == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "entries": []leaderboard.Entry{}})
		return
	}

	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboardSize)))
	if err != nil || n <= 0 {
		badRequest(c, "limit must be a positive integer")
		return
	}
	n = min(n, maxLeaderboardSize)

	entries, err := s.deps.Leaderboard.Top(c.Request.Context(), n)
	if err != nil {
		unavailable(c, "leaderboard unavailable", err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "entries": entries})
}
