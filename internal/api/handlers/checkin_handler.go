package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/api/middleware"
	"masjidgo/internal/logger"
	"masjidgo/internal/services"
)

type CheckinHandler struct {
	checkins *services.CheckinService
	log      *logger.Logger
}

func NewCheckinHandler(checkins *services.CheckinService, baseLog *logger.Logger) *CheckinHandler {
	return &CheckinHandler{
		checkins: checkins,
		log:      baseLog.With("handler", "CheckinHandler"),
	}
}

// CheckIn handles POST /pois/:id/checkin
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	var req coordinates
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must carry lat and lng")
		return
	}

	res, err := h.checkins.CheckIn(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), *req.Lat, *req.Lng)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CheckOut handles POST /pois/:id/checkout. The open visit is found by user;
// the path id only names the masjid the client believes it is at.
func (h *CheckinHandler) CheckOut(c *gin.Context) {
	var req coordinates
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must carry lat and lng")
		return
	}

	res, err := h.checkins.CheckOut(c.Request.Context(), middleware.GetUserID(c), *req.Lat, *req.Lng)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if id := c.Param("id"); id != "" && id != res.Visit.MasjidID {
		h.log.Warn("checkout path does not match open visit", "path_id", id, "masjid_id", res.Visit.MasjidID)
	}
	c.JSON(http.StatusOK, res)
}

// Active handles GET /checkins/active
func (h *CheckinHandler) Active(c *gin.Context) {
	visit, err := h.checkins.ActiveVisit(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": visit != nil, "visit": visit})
}

// History handles GET /checkins/history?limit&offset
func (h *CheckinHandler) History(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	visits, err := h.checkins.History(c.Request.Context(), middleware.GetUserID(c), q.Limit, q.Offset)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": visits, "count": len(visits)})
}
