package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/api/middleware"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/services"
)

// ProfileHandler serves the caller's own profile and achievements.
type ProfileHandler struct {
	profiles     *services.ProfileService
	achievements *services.AchievementService
	log          *logger.Logger
}

func NewProfileHandler(profiles *services.ProfileService, achievements *services.AchievementService, baseLog *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles:     profiles,
		achievements: achievements,
		log:          baseLog.With("handler", "ProfileHandler"),
	}
}

// Me handles GET /profile/me
func (h *ProfileHandler) Me(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMe handles PATCH /profile/me
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	var prefs entities.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		badRequest(c, "invalid preferences body")
		return
	}
	p, err := h.profiles.UpdatePreferences(c.Request.Context(), middleware.GetUserID(c), prefs)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Catalog handles GET /achievements
func (h *ProfileHandler) Catalog(c *gin.Context) {
	defs, err := h.achievements.Catalog(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": defs})
}

// MyAchievements handles GET /achievements/me
func (h *ProfileHandler) MyAchievements(c *gin.Context) {
	statuses, err := h.achievements.Progress(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	unlocked := 0
	for _, st := range statuses {
		if st.IsUnlocked {
			unlocked++
		}
	}
	c.JSON(http.StatusOK, gin.H{"achievements": statuses, "unlocked": unlocked, "total": len(statuses)})
}
