package service

import (
	"context"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
)

// TitleWriter is the admin write surface over titles.
type TitleWriter interface {
	Upsert(ctx context.Context, t *models.Title) error
}

// EpisodeWriter is the admin write surface over episodes.
type EpisodeWriter interface {
	Upsert(ctx context.Context, e *models.Episode) error
}

// AdminService handles catalog writes from the admin endpoints. Every write
// evicts the title's tag set and the shared feed caches so readers never see
// a stale card longer than one request.
type AdminService struct {
	titles   TitleWriter
	episodes EpisodeWriter
	cache    Cache
}

// NewAdminService creates an AdminService.
func NewAdminService(titles TitleWriter, episodes EpisodeWriter, cache Cache) *AdminService {
	return &AdminService{titles: titles, episodes: episodes, cache: cache}
}

// SaveTitle validates and upserts one title.
func (s *AdminService) SaveTitle(ctx context.Context, t *models.Title) error {
	if t.ID == "" || t.Title == "" {
		return apperr.New(apperr.KindValidation, "id and title are required")
	}
	if t.Status == "" {
		t.Status = models.StatusDraft
	}
	if err := s.titles.Upsert(ctx, t); err != nil {
		return err
	}
	s.cache.InvalidateByTags(ctx, titleTag(t.ID), feedTag)
	return nil
}

// SaveEpisode validates and upserts one episode.
func (s *AdminService) SaveEpisode(ctx context.Context, e *models.Episode) error {
	if e.ID == "" || e.TitleID == "" {
		return apperr.New(apperr.KindValidation, "id and title_id are required")
	}
	if e.SeasonNumber < 1 || e.EpisodeNumber < 1 {
		return apperr.New(apperr.KindValidation, "season_number and episode_number must be positive")
	}
	if err := s.episodes.Upsert(ctx, e); err != nil {
		return err
	}
	s.cache.InvalidateByTags(ctx, titleTag(e.TitleID), feedTag)
	return nil
}
