package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shortreel-backend/internal/cache"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
)

// Megabytes per minute of playback at each quality tier, used to estimate
// the download cost of warming a card's upcoming episodes.
var qualityMBPerMinute = map[string]float64{
	"480p":  0.5,
	"720p":  1.2,
	"1080p": 2.5,
	"4k":    6.0,
}

const (
	prefetchPlanTTL     = 20 * time.Minute
	userPrefetchPlanTTL = 10 * time.Minute
	// Per-user plan keys carry a time bucket so repeat calls within the
	// bucket hit while old plans age out naturally.
	userPlanBucket = 10 * time.Minute
)

// PrefetchService selects the next few episodes per feed card, picks a
// low-bandwidth rendition for each and estimates the byte cost, so clients
// can warm buffers while the user is still deciding whether to play.
type PrefetchService struct {
	episodes EpisodeStore
	watch    WatchStore
	cache    Cache
	cfg      config.PrefetchConfig
}

// NewPrefetchService creates a PrefetchService.
func NewPrefetchService(episodes EpisodeStore, watch WatchStore, c Cache, cfg config.PrefetchConfig) *PrefetchService {
	return &PrefetchService{episodes: episodes, watch: watch, cache: c, cfg: cfg}
}

// AttachPlans computes and attaches a prefetch plan to the first MaxCards
// cards of a page. A per-card failure attaches an empty plan and moves on;
// prefetch never aborts a feed.
func (s *PrefetchService) AttachPlans(ctx context.Context, cards []models.Card, userID string) {
	limit := s.cfg.MaxCards
	if limit > len(cards) {
		limit = len(cards)
	}
	for i := 0; i < limit; i++ {
		card := &cards[i]
		if card.FirstEpisode == nil {
			continue
		}
		plan, err := s.PlanForTitle(ctx, card.Title.ID,
			card.FirstEpisode.SeasonNumber, card.FirstEpisode.EpisodeNumber,
			userID, s.cfg.EpisodesPerCard)
		if err != nil {
			slog.Warn("prefetch plan failed", "title_id", card.Title.ID, "error", err)
			plan = &models.PrefetchPlan{
				TitleID:         card.Title.ID,
				Episodes:        []models.PrefetchEpisode{},
				PrefetchQuality: s.cfg.DefaultQuality,
			}
		}
		card.Prefetch = plan
	}
}

// PlanForTitle builds a plan of up to count published episodes after
// (season, number), with the user's progress overlaid when userID is given.
// The title-level plan (without overlay) is cached for ~20 minutes.
func (s *PrefetchService) PlanForTitle(ctx context.Context, titleID string, season, number int, userID string, count int) (*models.PrefetchPlan, error) {
	if count < 1 || count > 5 {
		count = s.cfg.EpisodesPerCard
	}

	planKey := fmt.Sprintf("prefetch:episode:%s:%d:%d:%d", titleID, season, number, count)

	var plan models.PrefetchPlan
	if err := s.cache.Get(ctx, planKey, &plan); err != nil {
		if err != cache.ErrMiss {
			slog.Warn("prefetch cache read failed", "title_id", titleID, "error", err)
		}
		episodes, err := s.episodes.EpisodesAfter(ctx, titleID, season, number, count)
		if err != nil {
			return nil, err
		}
		plan = s.buildPlan(titleID, episodes)
		s.cache.SetWithTags(ctx, planKey, plan, prefetchPlanTTL, []string{titleTag(titleID)})
	}

	if userID != "" {
		if err := s.overlayProgress(ctx, userID, &plan); err != nil {
			slog.Warn("prefetch progress overlay failed", "user_id", userID, "error", err)
		}
	}
	return &plan, nil
}

// SmartPlan sizes the plan to the user's binge behaviour: the rolling 7-day
// average of episodes per session picks how deep to prefetch. The plan
// continues from (season, currentEpisode).
func (s *PrefetchService) SmartPlan(ctx context.Context, userID, titleID string, season, currentEpisode int) (*models.PrefetchPlan, error) {
	if season < 1 {
		season = 1
	}
	avg, err := s.watch.AvgEpisodesPerSession(ctx, userID, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		slog.Warn("binge average lookup failed", "user_id", userID, "error", err)
		avg = 0
	}

	depth := 3
	switch {
	case avg < 2:
		depth = 2
	case avg > 5:
		depth = 7
	}

	bucket := time.Now().UTC().Truncate(userPlanBucket).Unix()
	userKey := fmt.Sprintf("prefetch:%s:%d", userID, bucket)

	var plan models.PrefetchPlan
	if err := s.cache.Get(ctx, userKey, &plan); err == nil && plan.TitleID == titleID {
		return &plan, nil
	}

	episodes, err := s.episodes.EpisodesAfter(ctx, titleID, season, currentEpisode, depth)
	if err != nil {
		return nil, err
	}
	plan = s.buildPlan(titleID, episodes)
	if err := s.overlayProgress(ctx, userID, &plan); err != nil {
		slog.Warn("prefetch progress overlay failed", "user_id", userID, "error", err)
	}

	s.cache.SetWithTags(ctx, userKey, plan, userPrefetchPlanTTL,
		[]string{userTag(userID), titleTag(titleID)})
	return &plan, nil
}

// buildPlan maps episodes to prefetch entries with decreasing priority and
// sums the estimated megabytes at prefetch quality.
func (s *PrefetchService) buildPlan(titleID string, episodes []models.Episode) models.PrefetchPlan {
	plan := models.PrefetchPlan{
		TitleID:         titleID,
		Episodes:        make([]models.PrefetchEpisode, 0, len(episodes)),
		PrefetchQuality: s.cfg.DefaultQuality,
		EpisodesPerCard: s.cfg.EpisodesPerCard,
	}

	for i, ep := range episodes {
		prefetchURL, quality := s.prefetchURL(&ep)
		entry := models.PrefetchEpisode{
			EpisodeID:     ep.ID,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
			Title:         ep.Title,
			Duration:      ep.Duration,
			ThumbnailURL:  ep.ThumbnailURL,
			PrefetchURL:   prefetchURL,
			StreamURL:     s.streamURL(&ep),
			Quality:       quality,
			Priority:      len(episodes) - i,
		}
		plan.Episodes = append(plan.Episodes, entry)
		plan.EstimatedMB += estimateMB(ep.Duration, quality)
	}
	return plan
}

// prefetchURL picks the cheapest rendition: the preferred low quality if
// present, else the lowest available variant, else the master URL.
func (s *PrefetchService) prefetchURL(ep *models.Episode) (string, string) {
	if v, ok := ep.VariantByResolution(s.cfg.DefaultQuality); ok {
		return v.URL, v.Resolution
	}
	if v, ok := ep.LowestVariant(); ok {
		return v.URL, v.Resolution
	}
	return ep.VideoURL, s.cfg.DefaultQuality
}

// streamURL picks the rendition playback switches to: 720p when present,
// else the first variant, else the master URL.
func (s *PrefetchService) streamURL(ep *models.Episode) string {
	if v, ok := ep.VariantByResolution("720p"); ok {
		return v.URL
	}
	if len(ep.QualityVariants) > 0 {
		return ep.QualityVariants[0].URL
	}
	return ep.VideoURL
}

// overlayProgress attaches the user's position/percentage/completion to
// each plan entry with a single batched read.
func (s *PrefetchService) overlayProgress(ctx context.Context, userID string, plan *models.PrefetchPlan) error {
	ids := make([]string, len(plan.Episodes))
	for i, ep := range plan.Episodes {
		ids[i] = ep.EpisodeID
	}
	records, err := s.watch.ProgressForEpisodes(ctx, userID, ids)
	if err != nil {
		return err
	}
	for i := range plan.Episodes {
		if rec, ok := records[plan.Episodes[i].EpisodeID]; ok {
			plan.Episodes[i].Progress = &models.ProgressOverlay{
				CurrentPosition:   rec.CurrentPosition,
				PercentageWatched: rec.PercentageWatched,
				IsCompleted:       rec.IsCompleted,
			}
		}
	}
	return nil
}

// estimateMB converts a duration at a quality tier into megabytes.
// Unknown tiers fall back to the 720p rate.
func estimateMB(durationSeconds int, quality string) float64 {
	rate, ok := qualityMBPerMinute[quality]
	if !ok {
		rate = qualityMBPerMinute["720p"]
	}
	return float64(durationSeconds) / 60 * rate
}
