package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/api/middleware"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
	"masjidgo/internal/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
	log         *logger.Logger
}

func NewLeaderboardHandler(leaderboard *services.LeaderboardService, baseLog *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		log:         baseLog.With("handler", "LeaderboardHandler"),
	}
}

// Global handles GET /leaderboard/global
func (h *LeaderboardHandler) Global(c *gin.Context) {
	h.board(c, repository.PeriodGlobal)
}

// Monthly handles GET /leaderboard/monthly
func (h *LeaderboardHandler) Monthly(c *gin.Context) {
	h.board(c, repository.PeriodMonthly)
}

func (h *LeaderboardHandler) board(c *gin.Context, period repository.Period) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}

	list := h.leaderboard.Global
	if period == repository.PeriodMonthly {
		list = h.leaderboard.Monthly
	}
	entries, err := list(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "entries": entries})
}

// Me handles GET /leaderboard/me?period=global|monthly
func (h *LeaderboardHandler) Me(c *gin.Context) {
	period := repository.Period(c.DefaultQuery("period", string(repository.PeriodGlobal)))
	info, err := h.leaderboard.Rank(c.Request.Context(), middleware.GetUserID(c), period)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Snapshot handles GET /leaderboard/snapshots/:month
func (h *LeaderboardHandler) Snapshot(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	month := c.Param("month")
	rows, err := h.leaderboard.Snapshot(c.Request.Context(), month, q.Limit, q.Offset)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "entries": rows})
}
