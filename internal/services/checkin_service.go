package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/geo"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

const lockPollInterval = 25 * time.Millisecond

// PrayerDetector reports whether an instant at a location falls inside a
// prayer window, and which one.
type PrayerDetector interface {
	Detect(at time.Time, loc entities.Location) (bool, string)
}

// NoPrayerTimes never detects a prayer window.
type NoPrayerTimes struct{}

func (NoPrayerTimes) Detect(time.Time, entities.Location) (bool, string) { return false, "" }

// CheckinStores groups the stores the check-in flow writes to.
type CheckinStores struct {
	Profiles repository.ProfileStore
	Visits   repository.VisitStore
	Stats    repository.StatsStore
	Locks    repository.LockManager
}

// CheckinResult is returned by a successful check-in.
type CheckinResult struct {
	Visit          *entities.Visit  `json:"visit"`
	Masjid         *entities.Masjid `json:"masjid"`
	DistanceMeters float64          `json:"distance_meters"`
	BasePoints     int              `json:"base_points"`
	BonusPoints    int              `json:"bonus_points"`
	IsFirstVisit   bool             `json:"is_first_visit"`
}

// CheckoutResult is returned by a checkout. Profile and NewAchievements are
// best effort: they are empty when the corresponding follow-up step failed.
type CheckoutResult struct {
	Visit           *entities.Visit                   `json:"visit"`
	PointsEarned    int                               `json:"points_earned"`
	DistanceMeters  float64                           `json:"distance_meters"`
	RadiusMeters    float64                           `json:"radius_meters"`
	InProximity     bool                              `json:"in_proximity"`
	Profile         *entities.UserProfile             `json:"profile,omitempty"`
	NewAchievements []*entities.AchievementDefinition `json:"new_achievements"`
}

// CheckinService runs the visit state machine:
//
//	no open visit ──CheckIn──▶ open ──CheckOut──▶ completed | incomplete
//
// Go Learning Note — Layered Guards:
// The per-user lock serializes requests of one user across replicas. The
// store's one-open-visit constraint is still the last word: if the lock
// expired under a slow request, CreateOpen refuses the second visit.
type CheckinService struct {
	index        *geo.Index
	stores       CheckinStores
	achievements *AchievementService
	scoring      *Scoring
	prayer       PrayerDetector
	cfg          config.CheckinConfig
	metrics      *metrics.Metrics
	log          *logger.Logger
	clock        func() time.Time
}

func NewCheckinService(
	index *geo.Index,
	stores CheckinStores,
	achievements *AchievementService,
	scoring *Scoring,
	cfg config.CheckinConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *CheckinService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &CheckinService{
		index:        index,
		stores:       stores,
		achievements: achievements,
		scoring:      scoring,
		prayer:       NoPrayerTimes{},
		cfg:          cfg,
		metrics:      m,
		log:          log.With("service", "CheckinService"),
		clock:        time.Now,
	}
}

// CheckIn opens a visit for userID at masjidID if the user has no open visit
// and stands inside the masjid's admission radius. The radius boundary is
// inclusive.
func (s *CheckinService) CheckIn(ctx context.Context, userID, masjidID string, lat, lng float64) (*CheckinResult, error) {
	loc := entities.NewLocation(lat, lng)
	if err := validateRequest(userID, loc); err != nil {
		return nil, s.refuse("checkin", err)
	}
	if strings.TrimSpace(masjidID) == "" {
		return nil, s.refuse("checkin", validationError("masjid id is required"))
	}

	profile, err := s.stores.Profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}

	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, s.refuse("checkin", err)
	}
	defer release()

	open, err := s.stores.Visits.GetOpenByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get open visit: %w", err)
	}
	if open != nil {
		return nil, s.refuse("checkin", conflictError(CodeAlreadyCheckedIn,
			fmt.Sprintf("Already checked in at %s. Check out first", open.MasjidName)))
	}

	masjid, err := s.index.Get(ctx, masjidID)
	if errors.Is(err, repository.ErrMasjidNotFound) || (err == nil && !masjid.IsActive) {
		return nil, s.refuse("checkin", notFoundError(CodeMasjidNotFound, "Masjid not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("get masjid: %w", err)
	}

	distance := geo.Distance(lat, lng, masjid.Location.Latitude, masjid.Location.Longitude)
	if distance > masjid.Radius() {
		return nil, s.refuse("checkin", tooFarError(distance, masjid.Radius()))
	}

	previous, err := s.stores.Visits.CountByProfileAndMasjid(ctx, profile.ID, masjid.ID)
	if err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	firstVisit := previous == 0

	now := s.clock()
	prayerTime, prayerName := s.prayer.Detect(now, loc)
	base := s.scoring.Base(true)
	bonus := s.scoring.Bonus(firstVisit, prayerTime)

	visit := entities.NewVisit(utils.GenerateID(), profile.ID, masjid, now, loc, base, bonus, firstVisit)
	visit.IsPrayerTime = prayerTime
	visit.PrayerName = prayerName

	if err := s.stores.Visits.CreateOpen(ctx, visit); err != nil {
		if errors.Is(err, repository.ErrOpenVisitExists) {
			return nil, s.refuse("checkin", conflictError(CodeAlreadyCheckedIn, "Already checked in. Check out first"))
		}
		return nil, fmt.Errorf("create visit: %w", err)
	}

	s.metrics.CheckinOutcome("checkin", "ok")
	s.log.Info("checked in",
		"user_id", userID,
		"masjid_id", masjid.ID,
		"distance_m", distance,
		"first_visit", firstVisit,
	)
	return &CheckinResult{
		Visit:          visit,
		Masjid:         masjid,
		DistanceMeters: distance,
		BasePoints:     base,
		BonusPoints:    bonus,
		IsFirstVisit:   firstVisit,
	}, nil
}

// CheckOut closes the user's open visit. Once the visit is closed the call
// succeeds: failures of the follow-up steps (profile stats, achievements,
// daily stats) are logged and counted but do not reopen the visit.
func (s *CheckinService) CheckOut(ctx context.Context, userID string, lat, lng float64) (*CheckoutResult, error) {
	loc := entities.NewLocation(lat, lng)
	if err := validateRequest(userID, loc); err != nil {
		return nil, s.refuse("checkout", err)
	}

	profile, err := s.stores.Profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, s.refuse("checkout", notFoundError(CodeProfileNotFound, "Profile not found. Check in first"))
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, s.refuse("checkout", err)
	}
	defer release()

	visit, err := s.stores.Visits.GetOpenByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get open visit: %w", err)
	}
	if visit == nil {
		return nil, s.refuse("checkout", conflictError(CodeNoActiveVisit, "No active check-in found"))
	}

	center, radius := visit.CheckinLocation, float64(entities.DefaultCheckinRadiusMeters)
	if masjid, err := s.index.Get(ctx, visit.MasjidID); err == nil {
		center, radius = masjid.Location, masjid.Radius()
	} else {
		s.log.Warn("masjid lookup failed at checkout, using check-in location",
			"user_id", userID, "masjid_id", visit.MasjidID, "error", err)
	}

	distance := geo.Distance(lat, lng, center.Latitude, center.Longitude)
	inProximity := distance <= radius
	now := s.clock()

	if err := visit.Close(now, loc, inProximity, s.scoring.Base(inProximity)); err != nil {
		return nil, s.refuse("checkout", conflictError(CodeNoActiveVisit, "No active check-in found"))
	}
	if err := s.stores.Visits.Close(ctx, visit); err != nil {
		if errors.Is(err, repository.ErrVisitNotOpen) {
			return nil, s.refuse("checkout", conflictError(CodeNoActiveVisit, "No active check-in found"))
		}
		return nil, fmt.Errorf("close visit: %w", err)
	}

	result := &CheckoutResult{
		Visit:           visit,
		PointsEarned:    visit.ActualPointsEarned,
		DistanceMeters:  distance,
		RadiusMeters:    radius,
		InProximity:     inProximity,
		NewAchievements: []*entities.AchievementDefinition{},
	}
	s.followUp(ctx, userID, visit, now, result)

	s.metrics.CheckinOutcome("checkout", string(visit.Status))
	s.log.Info("checked out",
		"user_id", userID,
		"masjid_id", visit.MasjidID,
		"status", visit.Status,
		"points", visit.ActualPointsEarned,
		"duration_min", visit.DurationMinutes,
	)
	return result, nil
}

// followUp runs the post-checkout steps in order: profile stats, then
// achievements, then daily stats. Achievements are only evaluated against a
// profile that was updated by this checkout.
func (s *CheckinService) followUp(ctx context.Context, userID string, visit *entities.Visit, now time.Time, result *CheckoutResult) {
	profile, err := s.stores.Profiles.UpdateStats(ctx, userID, func(p *entities.UserProfile) error {
		s.scoring.ApplyVisit(p, visit.ActualPointsEarned, visit.IsFirstVisit, now)
		return nil
	})
	if err != nil {
		s.followUpFailed("profile_stats", userID, visit, err)
	} else {
		result.Profile = profile

		unlocked, err := s.achievements.Evaluate(ctx, profile)
		if len(unlocked) > 0 {
			result.NewAchievements = unlocked
			if fresh, err := s.stores.Profiles.GetByUserID(ctx, userID); err == nil {
				result.Profile = fresh
			}
		}
		if err != nil {
			s.followUpFailed("achievements", userID, visit, err)
		}
	}

	day := entities.DayKey(now.In(s.scoring.Location()))
	if err := s.stores.Stats.IncrementDaily(ctx, visit.MasjidID, day, visit.ActualPointsEarned); err != nil {
		s.followUpFailed("daily_stats", userID, visit, err)
	}
}

func (s *CheckinService) followUpFailed(step, userID string, visit *entities.Visit, err error) {
	s.metrics.FollowupFailed(step)
	s.log.Error("checkout follow-up failed",
		"step", step,
		"user_id", userID,
		"visit_id", visit.ID,
		"error", err,
	)
}

// ActiveVisit returns the user's open visit, or nil.
func (s *CheckinService) ActiveVisit(ctx context.Context, userID string) (*entities.Visit, error) {
	profile, err := s.stores.Profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	visit, err := s.stores.Visits.GetOpenByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get open visit: %w", err)
	}
	return visit, nil
}

// History returns a page of the user's visits, newest check-in first. The
// limit defaults to the configured page size and is capped at 100.
func (s *CheckinService) History(ctx context.Context, userID string, limit, offset int) ([]*entities.Visit, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	profile, err := s.stores.Profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return []*entities.Visit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	visits, err := s.stores.Visits.ListByProfile(ctx, profile.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}

// lockUser takes the per-user lock, polling until LockWait runs out. The
// returned func releases it with a context that outlives a cancelled request.
func (s *CheckinService) lockUser(ctx context.Context, userID string) (func(), error) {
	key := "checkin:" + userID
	wait := time.NewTimer(s.cfg.LockWait)
	defer wait.Stop()
	poll := time.NewTicker(lockPollInterval)
	defer poll.Stop()

	for {
		token, ok, err := s.stores.Locks.AcquireLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				if err := s.stores.Locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("release lock failed", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait.C:
			return nil, conflictError(CodeCheckinInProgress, "Another check-in request is in progress")
		case <-poll.C:
		}
	}
}

// refuse counts business refusals by code and passes infrastructure errors
// through untouched.
func (s *CheckinService) refuse(op string, err error) error {
	if se, ok := AsError(err); ok {
		s.metrics.CheckinOutcome(op, strings.ToLower(se.Code))
		s.log.Debug("request refused", "op", op, "code", se.Code, "message", se.Message)
	}
	return err
}

func validateRequest(userID string, loc entities.Location) error {
	if strings.TrimSpace(userID) == "" {
		return validationError("user id is required")
	}
	if err := loc.Validate(); err != nil {
		return validationError("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	return nil
}
