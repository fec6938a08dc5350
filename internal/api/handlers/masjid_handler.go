package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/logger"
	"masjidgo/internal/services"
)

type MasjidHandler struct {
	masjids *services.MasjidService
	log     *logger.Logger
}

func NewMasjidHandler(masjids *services.MasjidService, baseLog *logger.Logger) *MasjidHandler {
	return &MasjidHandler{
		masjids: masjids,
		log:     baseLog.With("handler", "MasjidHandler"),
	}
}

type nearbyQuery struct {
	coordinates
	RadiusKm float64 `form:"radius"`
}

// Nearby handles GET /pois/nearby?lat&lng&radius
func (h *MasjidHandler) Nearby(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "lat and lng query parameters are required")
		return
	}
	res, err := h.masjids.Nearby(c.Request.Context(), *q.Lat, *q.Lng, q.RadiusKm)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res, "count": len(res)})
}

// CheckinEligible handles GET /pois/checkin?lat&lng
func (h *MasjidHandler) CheckinEligible(c *gin.Context) {
	var q coordinates
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "lat and lng query parameters are required")
		return
	}
	res, err := h.masjids.CheckinEligible(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res, "count": len(res)})
}

type searchQuery struct {
	Q     string `form:"q"`
	Limit int    `form:"limit"`
}

// Search handles GET /pois/search?q&limit
func (h *MasjidHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid search parameters")
		return
	}
	res, err := h.masjids.Search(c.Request.Context(), q.Q, q.Limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res, "count": len(res)})
}

// Region handles GET /pois/region/:state?district=
func (h *MasjidHandler) Region(c *gin.Context) {
	res, err := h.masjids.ByRegion(c.Request.Context(), c.Param("state"), c.Query("district"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res, "count": len(res)})
}

// Get handles GET /pois/:id
func (h *MasjidHandler) Get(c *gin.Context) {
	m, err := h.masjids.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
