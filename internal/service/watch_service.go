package service

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
)

// keyedMutex serializes writes per (userID, episodeID) with a fixed set of
// striped locks. Reads never take these locks.
type keyedMutex struct {
	shards [64]sync.Mutex
}

func (m *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &m.shards[h.Sum32()%uint32(len(m.shards))]
	mu.Lock()
	return mu
}

// WatchService owns watch-progress state: the 80% completion rule, the
// continue-watching window, likes, shares and rating aggregation.
type WatchService struct {
	watch    WatchStore
	episodes EpisodeStore
	titles   TitleStore
	users    UserStore
	cache    Cache
	tracker  EventTracker
	cfg      config.FeedConfig

	locks keyedMutex
}

// NewWatchService creates a WatchService.
func NewWatchService(watch WatchStore, episodes EpisodeStore, titles TitleStore,
	users UserStore, cache Cache, tracker EventTracker, cfg config.FeedConfig) *WatchService {
	return &WatchService{
		watch:    watch,
		episodes: episodes,
		titles:   titles,
		users:    users,
		cache:    cache,
		tracker:  tracker,
		cfg:      cfg,
	}
}

func watchKey(userID, episodeID string) string {
	return userID + "|" + episodeID
}

// ProgressUpdate carries one progress write from the client.
type ProgressUpdate struct {
	Position        int    `json:"current_position"`
	SessionDuration int64  `json:"session_duration"`
	WatchedVia      string `json:"watched_via"`
	PauseCount      int    `json:"pause_count"`
	SeekCount       int    `json:"seek_count"`
	BufferingTime   int64  `json:"buffering_time"`
}

// StartWatching begins or resumes playback: the record is created if absent
// and a session is opened. Emits video_start.
func (s *WatchService) StartWatching(ctx context.Context, userID, episodeID, quality, watchedVia string) (*models.WatchRecord, error) {
	mu := s.locks.lock(watchKey(userID, episodeID))
	defer mu.Unlock()

	rec, err := s.ensureRecord(ctx, userID, episodeID, watchedVia)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.Session.LastWatchedAt = now
	rec.Session.TotalSessions++
	if rec.Status != models.WatchStatusCompleted {
		rec.Status = models.WatchStatusWatching
	}
	if err := s.watch.UpdateProgress(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.episodes.IncrementViews(ctx, episodeID); err != nil {
		slog.Warn("episode view increment failed", "episode_id", episodeID, "error", err)
	}
	if err := s.titles.IncrementViews(ctx, rec.TitleID); err != nil {
		slog.Warn("title view increment failed", "title_id", rec.TitleID, "error", err)
	}

	s.cache.InvalidateByTags(ctx, userTag(userID))
	s.tracker.Track(models.AnalyticsEvent{
		UserID:    userID,
		EventType: models.EventVideoStart,
		ContentID: rec.TitleID,
		EpisodeID: episodeID,
		EventData: map[string]any{"quality": quality, "watched_via": watchedVia},
	})
	return rec, nil
}

// UpdateProgress applies a progress write under the per-record lock.
// Position is monotonic non-decreasing; crossing the completion threshold
// completes the record exactly once.
func (s *WatchService) UpdateProgress(ctx context.Context, userID, episodeID string, upd ProgressUpdate) (*models.WatchRecord, error) {
	if upd.Position < 0 {
		return nil, apperr.New(apperr.KindValidation, "current_position must be non-negative")
	}

	mu := s.locks.lock(watchKey(userID, episodeID))
	defer mu.Unlock()

	rec, err := s.ensureRecord(ctx, userID, episodeID, upd.WatchedVia)
	if err != nil {
		return nil, err
	}

	s.applyPosition(rec, upd.Position)

	now := time.Now().UTC()
	rec.Session.LastWatchedAt = now
	if upd.SessionDuration > 0 {
		n := rec.Session.TotalSessions + 1
		rec.Session.AverageSessionLength =
			(rec.Session.AverageSessionLength*float64(n-1) + float64(upd.SessionDuration)) / float64(n)
		rec.Session.TotalSessions = n
		rec.Engagement.SessionDuration += upd.SessionDuration
	}

	justCompleted := s.maybeComplete(rec, now)

	if err := s.watch.UpdateProgress(ctx, rec); err != nil {
		return nil, err
	}
	if upd.PauseCount > 0 || upd.SeekCount > 0 || upd.BufferingTime > 0 {
		delta := models.EngagementDelta{
			PauseCount:    upd.PauseCount,
			SeekCount:     upd.SeekCount,
			BufferingTime: upd.BufferingTime,
		}
		if err := s.watch.AddEngagement(ctx, userID, episodeID, delta); err != nil {
			slog.Warn("engagement update failed", "user_id", userID, "episode_id", episodeID, "error", err)
		}
	}

	if justCompleted {
		s.onCompletion(ctx, rec, upd.SessionDuration)
	}
	if upd.SessionDuration > 0 {
		if err := s.episodes.AddWatchTime(ctx, episodeID, upd.SessionDuration); err != nil {
			slog.Warn("episode watch time update failed", "episode_id", episodeID, "error", err)
		}
	}

	s.cache.InvalidateByTags(ctx, userTag(userID))
	return rec, nil
}

// MarkCompleted force-completes a record (explicit end-of-playback call).
// An explicit completion counts as fully watched: the position jumps to the
// end of the episode. Idempotent: a second call keeps the original
// completedAt.
func (s *WatchService) MarkCompleted(ctx context.Context, userID, episodeID string, finalPosition int, totalWatchTime int64) (*models.WatchRecord, error) {
	mu := s.locks.lock(watchKey(userID, episodeID))
	defer mu.Unlock()

	rec, err := s.ensureRecord(ctx, userID, episodeID, "")
	if err != nil {
		return nil, err
	}

	if finalPosition > 0 {
		s.applyPosition(rec, finalPosition)
	}

	now := time.Now().UTC()
	rec.Session.LastWatchedAt = now
	justCompleted := false
	if !rec.IsCompleted {
		if rec.TotalDuration > 0 {
			rec.CurrentPosition = rec.TotalDuration
		}
		rec.PercentageWatched = 100
		rec.IsCompleted = true
		rec.Status = models.WatchStatusCompleted
		completedAt := now
		rec.Session.CompletedAt = &completedAt
		justCompleted = true
	}

	if err := s.watch.UpdateProgress(ctx, rec); err != nil {
		return nil, err
	}
	if justCompleted {
		s.onCompletion(ctx, rec, totalWatchTime)
	}

	s.cache.InvalidateByTags(ctx, userTag(userID))
	s.tracker.Track(models.AnalyticsEvent{
		UserID:    userID,
		EventType: models.EventVideoEnd,
		ContentID: rec.TitleID,
		EpisodeID: episodeID,
	})
	return rec, nil
}

// ToggleLike flips the user's like flag on an episode and moves the episode,
// title and user counters by ±1. Two calls are a no-op pair.
func (s *WatchService) ToggleLike(ctx context.Context, userID, episodeID string) (bool, int64, error) {
	mu := s.locks.lock(watchKey(userID, episodeID))
	defer mu.Unlock()

	rec, err := s.ensureRecord(ctx, userID, episodeID, "")
	if err != nil {
		return false, 0, err
	}

	liked := !rec.Liked
	delta := 1
	if !liked {
		delta = -1
	}

	if err := s.watch.SetLiked(ctx, userID, episodeID, liked); err != nil {
		return false, 0, err
	}
	likes, err := s.episodes.AdjustLikes(ctx, episodeID, delta)
	if err != nil {
		return false, 0, err
	}
	if err := s.titles.AdjustLikes(ctx, rec.TitleID, delta); err != nil {
		slog.Warn("title like adjust failed", "title_id", rec.TitleID, "error", err)
	}
	if err := s.users.AdjustLikes(ctx, userID, delta); err != nil {
		slog.Warn("user like adjust failed", "user_id", userID, "error", err)
	}

	s.cache.InvalidateByTags(ctx, titleTag(rec.TitleID))
	if liked {
		s.tracker.Track(models.AnalyticsEvent{
			UserID:    userID,
			EventType: models.EventLike,
			ContentID: rec.TitleID,
			EpisodeID: episodeID,
		})
	}
	return liked, likes, nil
}

// Share marks the record shared and bumps the share counters.
func (s *WatchService) Share(ctx context.Context, userID, episodeID, method string) error {
	mu := s.locks.lock(watchKey(userID, episodeID))
	defer mu.Unlock()

	rec, err := s.ensureRecord(ctx, userID, episodeID, "")
	if err != nil {
		return err
	}

	if err := s.watch.SetShared(ctx, userID, episodeID); err != nil {
		return err
	}
	if err := s.titles.IncrementShares(ctx, rec.TitleID); err != nil {
		slog.Warn("title share increment failed", "title_id", rec.TitleID, "error", err)
	}
	if err := s.users.IncrementShares(ctx, userID); err != nil {
		slog.Warn("user share increment failed", "user_id", userID, "error", err)
	}

	s.cache.InvalidateByTags(ctx, titleTag(rec.TitleID))
	s.tracker.Track(models.AnalyticsEvent{
		UserID:    userID,
		EventType: models.EventShare,
		ContentID: rec.TitleID,
		EpisodeID: episodeID,
		EventData: map[string]any{"share_method": method},
	})
	return nil
}

// SetRating stores a 1..5 rating. Requires a prior watch record on any
// episode of the title; the title aggregate is recomputed atomically.
func (s *WatchService) SetRating(ctx context.Context, userID, titleID string, rating int) (float64, int64, error) {
	if rating < 1 || rating > 5 {
		return 0, 0, apperr.New(apperr.KindValidation, "rating must be between 1 and 5")
	}

	avg, count, err := s.watch.ApplyRating(ctx, userID, titleID, rating)
	if err != nil {
		return 0, 0, err
	}

	s.cache.InvalidateByTags(ctx, userTag(userID), titleTag(titleID))
	return avg, count, nil
}

// AddEngagement applies a batch of engagement counter increments.
func (s *WatchService) AddEngagement(ctx context.Context, userID, episodeID string, d models.EngagementDelta) error {
	return s.watch.AddEngagement(ctx, userID, episodeID, d)
}

// GetContinueWatching returns the user's records strictly between the
// configured percentage bounds, most recent first. Lock-free read.
func (s *WatchService) GetContinueWatching(ctx context.Context, userID string, limit int) ([]models.WatchRecord, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > models.MaxFeedPageSize {
		limit = models.MaxFeedPageSize
	}
	return s.watch.ContinueWatching(ctx, userID, s.cfg.ContinueMinPercent, s.cfg.ContinueMaxPercent, limit)
}

// GetUserProgressOnTitle returns the user's records across a title's
// episodes in sequence order.
func (s *WatchService) GetUserProgressOnTitle(ctx context.Context, userID, titleID string) ([]models.WatchRecord, error) {
	return s.watch.ListByUserTitle(ctx, userID, titleID)
}

// GetWatchlist returns the user's records, optionally filtered by status.
func (s *WatchService) GetWatchlist(ctx context.Context, userID, status string, page, limit int) ([]models.WatchRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > models.MaxFeedPageSize {
		limit = models.MaxFeedPageSize
	}
	return s.watch.ListWatchlist(ctx, userID, status, page, limit)
}

// ClearHistory bulk deletes records and evicts every cache entry tagged
// with the user.
func (s *WatchService) ClearHistory(ctx context.Context, userID, titleID string, olderThanDays int) (int64, error) {
	var olderThan *time.Time
	if olderThanDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
		olderThan = &cutoff
	}
	deleted, err := s.watch.ClearHistory(ctx, userID, titleID, olderThan)
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateByTags(ctx, userTag(userID))
	return deleted, nil
}

// ensureRecord loads the (userID, episodeID) record, creating it from the
// episode when absent. Callers must hold the per-key lock.
func (s *WatchService) ensureRecord(ctx context.Context, userID, episodeID, watchedVia string) (*models.WatchRecord, error) {
	rec, err := s.watch.Get(ctx, userID, episodeID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, err
	}

	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if err := s.users.Ensure(ctx, userID); err != nil {
		slog.Warn("ensure user failed", "user_id", userID, "error", err)
	}

	now := time.Now().UTC()
	rec = &models.WatchRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		TitleID:       ep.TitleID,
		EpisodeID:     episodeID,
		SeasonNumber:  ep.SeasonNumber,
		EpisodeNumber: ep.EpisodeNumber,
		TotalDuration: ep.Duration,
		Status:        models.WatchStatusWatching,
		WatchedVia:    watchedVia,
		Session: models.SessionInfo{
			StartedAt:     now,
			LastWatchedAt: now,
		},
	}
	if err := s.watch.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyPosition raises the position monotonically and recomputes the
// watched percentage, clamped to [0, 100].
func (s *WatchService) applyPosition(rec *models.WatchRecord, position int) {
	if position > rec.CurrentPosition {
		rec.CurrentPosition = position
	}
	if rec.TotalDuration > 0 {
		if rec.CurrentPosition > rec.TotalDuration {
			rec.CurrentPosition = rec.TotalDuration
		}
		pct := 100 * float64(rec.CurrentPosition) / float64(rec.TotalDuration)
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		rec.PercentageWatched = pct
	}
}

// maybeComplete applies the completion rule. Completion happens at most
// once; the original completedAt is never re-stamped.
func (s *WatchService) maybeComplete(rec *models.WatchRecord, now time.Time) bool {
	if rec.IsCompleted || rec.PercentageWatched < s.cfg.CompletionThreshold {
		return false
	}
	rec.IsCompleted = true
	rec.Status = models.WatchStatusCompleted
	completedAt := now
	rec.Session.CompletedAt = &completedAt
	return true
}

// onCompletion refreshes the fraction-of-completed-views rates and the
// user's viewing totals after a record first completes.
func (s *WatchService) onCompletion(ctx context.Context, rec *models.WatchRecord, watchTime int64) {
	if err := s.episodes.RefreshCompletionRate(ctx, rec.EpisodeID); err != nil {
		slog.Warn("episode completion rate refresh failed", "episode_id", rec.EpisodeID, "error", err)
	}
	if err := s.titles.RefreshCompletionRate(ctx, rec.TitleID); err != nil {
		slog.Warn("title completion rate refresh failed", "title_id", rec.TitleID, "error", err)
	}
	if err := s.users.AddWatchTime(ctx, rec.UserID, watchTime, true); err != nil {
		slog.Warn("user watch time update failed", "user_id", rec.UserID, "error", err)
	}
}
