package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/api/handlers"
	"masjidgo/internal/api/middleware"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
)

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	masjids     *handlers.MasjidHandler
	checkins    *handlers.CheckinHandler
	leaderboard *handlers.LeaderboardHandler
	profiles    *handlers.ProfileHandler

	jwtSecret      string
	checkinLimiter *middleware.RateLimiter
	allowedOrigins []string
	metrics        *metrics.Metrics
	log            *logger.Logger
}

// RouterDeps groups what NewRouter needs beyond the handlers.
type RouterDeps struct {
	JWTSecret      string
	CheckinLimiter *middleware.RateLimiter
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Log            *logger.Logger
}

func NewRouter(
	masjids *handlers.MasjidHandler,
	checkins *handlers.CheckinHandler,
	leaderboard *handlers.LeaderboardHandler,
	profiles *handlers.ProfileHandler,
	deps RouterDeps,
) *Router {
	if deps.CheckinLimiter == nil {
		deps.CheckinLimiter = middleware.NewRateLimiter(1, 5)
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	return &Router{
		masjids:        masjids,
		checkins:       checkins,
		leaderboard:    leaderboard,
		profiles:       profiles,
		jwtSecret:      deps.JWTSecret,
		checkinLimiter: deps.CheckinLimiter,
		allowedOrigins: deps.AllowedOrigins,
		metrics:        deps.Metrics,
		log:            deps.Log,
	}
}

// Setup registers every route. Directory and leaderboard reads are public;
// everything about the caller needs a bearer token, and check-in/checkout are
// additionally rate limited per user.
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(gin.Recovery(), middleware.RequestLogger(r.log), middleware.CORS(r.allowedOrigins), r.metrics.Middleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	auth := middleware.JWTAuth(r.jwtSecret)

	pois := engine.Group("/pois")
	{
		pois.GET("/nearby", r.masjids.Nearby)
		pois.GET("/checkin", r.masjids.CheckinEligible)
		pois.GET("/search", r.masjids.Search)
		pois.GET("/region/:state", r.masjids.Region)
		pois.GET("/:id", r.masjids.Get)

		visits := pois.Group("/:id", auth, r.checkinLimiter.Middleware())
		visits.POST("/checkin", r.checkins.CheckIn)
		visits.POST("/checkout", r.checkins.CheckOut)
	}

	checkins := engine.Group("/checkins", auth)
	{
		checkins.GET("/active", r.checkins.Active)
		checkins.GET("/history", r.checkins.History)
	}

	board := engine.Group("/leaderboard")
	{
		board.GET("/global", r.leaderboard.Global)
		board.GET("/monthly", r.leaderboard.Monthly)
		board.GET("/snapshots/:month", r.leaderboard.Snapshot)
		board.GET("/me", auth, r.leaderboard.Me)
	}

	achievements := engine.Group("/achievements")
	{
		achievements.GET("", r.profiles.Catalog)
		achievements.GET("/me", auth, r.profiles.MyAchievements)
	}

	profile := engine.Group("/profile", auth)
	{
		profile.GET("/me", r.profiles.Me)
		profile.PATCH("/me", r.profiles.UpdateMe)
	}
}
