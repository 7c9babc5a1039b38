package service

import (
	"context"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
)

// UserService owns user profiles, viewing preferences and swipe counters.
type UserService struct {
	users   UserStore
	cache   Cache
	tracker EventTracker
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, cache Cache, tracker EventTracker) *UserService {
	return &UserService{users: users, cache: cache, tracker: tracker}
}

// GetProfile returns the user's profile, preferences and aggregates.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdatePreferences replaces the user's viewing preferences and evicts their
// cached feed pages so the next request reflects them.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, p models.UserPreferences) error {
	switch p.DataUsage {
	case "", models.DataUsageLow, models.DataUsageMedium, models.DataUsageHigh:
	default:
		return apperr.Newf(apperr.KindValidation, "unknown data usage tier %q", p.DataUsage)
	}

	if err := s.users.Ensure(ctx, userID); err != nil {
		return err
	}
	if err := s.users.UpdatePreferences(ctx, userID, p); err != nil {
		return err
	}
	s.cache.InvalidateByTags(ctx, userTag(userID))
	return nil
}

// RecordSwipe bumps the user's swipe counter and emits the matching event.
// A right swipe opens a card, a left swipe dismisses it.
func (s *UserService) RecordSwipe(ctx context.Context, userID, titleID string, right bool) error {
	if err := s.users.Ensure(ctx, userID); err != nil {
		return err
	}
	if err := s.users.RecordSwipe(ctx, userID, right); err != nil {
		return err
	}

	eventType := models.EventSwipeLeft
	if right {
		eventType = models.EventSwipeRight
	}
	s.tracker.Track(models.AnalyticsEvent{
		UserID:    userID,
		EventType: eventType,
		ContentID: titleID,
	})
	return nil
}
