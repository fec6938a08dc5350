package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"masjidgo/internal/api"
	"masjidgo/internal/api/handlers"
	"masjidgo/internal/api/middleware"
	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/geo"
	"masjidgo/internal/jobs"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
	"masjidgo/internal/repository"
	"masjidgo/internal/repository/gormstore"
	"masjidgo/internal/repository/memory"
	"masjidgo/internal/repository/redisstore"
	"masjidgo/internal/services"
)

// stores is the storage wiring chosen from config.
type stores struct {
	directory    repository.DirectoryStore
	profiles     repository.ProfileStore
	visits       repository.VisitStore
	achievements repository.AchievementStore
	stats        repository.StatsStore
	snapshots    repository.SnapshotStore
	locks        repository.LockManager

	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repositories
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// Initialize geo index and services
	index := geo.NewIndex(st.directory, cfg.Geo, m, log)
	masjidService := services.NewMasjidService(index, log)
	if err := loadDirectory(ctx, cfg.Storage, masjidService); err != nil {
		return err
	}

	achievementService := services.NewAchievementService(st.achievements, st.profiles, m, log)
	if err := achievementService.Seed(ctx, entities.DefaultAchievementCatalog()); err != nil {
		return err
	}
	scoring := services.NewScoring(cfg.Scoring)
	checkinService := services.NewCheckinService(index, services.CheckinStores{
		Profiles: st.profiles,
		Visits:   st.visits,
		Stats:    st.stats,
		Locks:    st.locks,
	}, achievementService, scoring, cfg.Checkin, m, log)
	leaderboardService := services.NewLeaderboardService(st.profiles, st.snapshots, cfg.Leaderboard, log)
	profileService := services.NewProfileService(st.profiles, log)

	// Batch jobs
	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(cfg.Jobs, leaderboardService, st.locks, scoring.Location(), m, log)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	// Setup router
	router := api.NewRouter(
		handlers.NewMasjidHandler(masjidService, log),
		handlers.NewCheckinHandler(checkinService, log),
		handlers.NewLeaderboardHandler(leaderboardService, log),
		handlers.NewProfileHandler(profileService, achievementService, log),
		api.RouterDeps{
			JWTSecret:      cfg.Auth.JWTSecret,
			CheckinLimiter: middleware.NewRateLimiter(cfg.Auth.CheckinRateRPS, cfg.Auth.CheckinRateBurst),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Metrics:        m,
			Log:            log,
		},
	)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	router.Setup(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Port, "db_driver", cfg.Storage.DBDriver, "redis", cfg.Storage.RedisAddr != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores picks the relational stores by DB_DRIVER and moves the
// directory and locks onto redis when REDIS_ADDR is set.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Storage.DBDriver {
	case "", "memory":
		st.profiles = memory.NewProfileRepository()
		st.visits = memory.NewVisitRepository()
		st.achievements = memory.NewAchievementRepository(st.profiles)
		st.stats = memory.NewStatsRepository()
		st.snapshots = memory.NewSnapshotRepository()
		log.Warn("using in-memory stores; state is lost on restart")
	default:
		db, err := gormstore.Open(cfg.Storage, log)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			st.closers = append(st.closers, func() { _ = sqlDB.Close() })
		}
		st.profiles = gormstore.NewProfileStore(db, log)
		st.visits = gormstore.NewVisitStore(db, log)
		st.achievements = gormstore.NewAchievementStore(db, log)
		st.stats = gormstore.NewStatsStore(db, log)
		st.snapshots = gormstore.NewSnapshotStore(db, log)
	}

	var client *redis.Client
	if cfg.Storage.RedisAddr != "" {
		c, err := redisstore.NewClient(ctx, cfg.Storage)
		if err != nil {
			st.close()
			return nil, err
		}
		client = c
		st.closers = append(st.closers, func() { _ = client.Close() })
	}

	if client != nil {
		st.directory = redisstore.NewDirectoryStore(client, log)
		st.locks = redisstore.NewLockManager(client)
	} else {
		st.directory = memory.NewDirectoryRepository()
		lm := memory.NewLockManager(time.Second)
		st.locks = lm
		st.closers = append(st.closers, lm.Stop)
	}
	return st, nil
}

func loadDirectory(ctx context.Context, cfg config.StorageConfig, masjids *services.MasjidService) error {
	if cfg.DirectorySeedFile != "" {
		_, err := masjids.LoadDirectoryFile(ctx, cfg.DirectorySeedFile)
		return err
	}
	_, err := masjids.LoadSampleDirectory(ctx)
	return err
}
