package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

const (
	maxAliasLength    = 30
	maxFullNameLength = 100
)

type ProfileService struct {
	profiles repository.ProfileStore
	log      *logger.Logger
}

func NewProfileService(profiles repository.ProfileStore, log *logger.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		log:      log.With("service", "ProfileService"),
	}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*entities.UserProfile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, notFoundError(CodeProfileNotFound, "Profile not found. Check in first")
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdatePreferences changes the leaderboard display settings. Text fields
// are trimmed; an empty alias clears it.
func (s *ProfileService) UpdatePreferences(ctx context.Context, userID string, prefs entities.Preferences) (*entities.UserProfile, error) {
	if prefs.Alias != nil {
		alias := strings.TrimSpace(*prefs.Alias)
		if utf8.RuneCountInString(alias) > maxAliasLength {
			return nil, validationError("alias must be at most %d characters", maxAliasLength)
		}
		prefs.Alias = &alias
	}
	if prefs.FullName != nil {
		name := strings.TrimSpace(*prefs.FullName)
		if utf8.RuneCountInString(name) > maxFullNameLength {
			return nil, validationError("full name must be at most %d characters", maxFullNameLength)
		}
		prefs.FullName = &name
	}

	p, err := s.profiles.UpdatePreferences(ctx, userID, prefs)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, notFoundError(CodeProfileNotFound, "Profile not found. Check in first")
	}
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	s.log.Info("preferences updated", "user_id", userID)
	return p, nil
}
