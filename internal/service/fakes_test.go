package service

import (
	"context"
	"sync"
	"time"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
	"shortreel-backend/internal/repository"
)

// In-memory fakes for the store interfaces. Each fake records the calls the
// tests care about and keeps everything else as trivial as possible.

type fakeTitleStore struct {
	byID         map[string]*models.Title
	personalized []models.Title
	trending     []models.Title
	popular      []models.Title
	fresh        []models.Title

	mu              sync.Mutex
	lastPoolFilters []repository.PoolFilter
	refreshedTitles []string
	poolErr         error
	poolDelay       time.Duration
}

func newFakeTitleStore() *fakeTitleStore {
	return &fakeTitleStore{byID: map[string]*models.Title{}}
}

func (f *fakeTitleStore) GetByID(_ context.Context, id string) (*models.Title, error) {
	if t, ok := f.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperr.ErrTitleNotFound
}

func (f *fakeTitleStore) pool(ctx context.Context, filter repository.PoolFilter, titles []models.Title) ([]models.Title, error) {
	if f.poolDelay > 0 {
		select {
		case <-time.After(f.poolDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.lastPoolFilters = append(f.lastPoolFilters, filter)
	f.mu.Unlock()
	if f.poolErr != nil {
		return nil, f.poolErr
	}

	excluded := make(map[string]struct{}, len(filter.ExcludeTitleIDs))
	for _, id := range filter.ExcludeTitleIDs {
		excluded[id] = struct{}{}
	}
	out := make([]models.Title, 0, len(titles))
	for _, t := range titles {
		if _, skip := excluded[t.ID]; !skip {
			out = append(out, t)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeTitleStore) PersonalizedPool(ctx context.Context, filter repository.PoolFilter) ([]models.Title, error) {
	return f.pool(ctx, filter, f.personalized)
}

func (f *fakeTitleStore) TrendingPool(ctx context.Context, filter repository.PoolFilter, _ time.Time) ([]models.Title, error) {
	return f.pool(ctx, filter, f.trending)
}

func (f *fakeTitleStore) PopularPool(ctx context.Context, filter repository.PoolFilter) ([]models.Title, error) {
	return f.pool(ctx, filter, f.popular)
}

func (f *fakeTitleStore) FreshPool(ctx context.Context, filter repository.PoolFilter, _ time.Time) ([]models.Title, error) {
	return f.pool(ctx, filter, f.fresh)
}

func (f *fakeTitleStore) Featured(_ context.Context, _ int) ([]models.Title, error) {
	return f.popular, nil
}

func (f *fakeTitleStore) EditorsPicks(_ context.Context, _ int) ([]models.Title, error) {
	return f.popular, nil
}

func (f *fakeTitleStore) PopularByGenre(_ context.Context, _, _ string, _ int) ([]models.Title, error) {
	return f.popular, nil
}

func (f *fakeTitleStore) Similar(_ context.Context, _ *models.Title, _ int) ([]models.Title, error) {
	return f.popular, nil
}

func (f *fakeTitleStore) Search(_ context.Context, _ models.SearchParams) ([]models.Title, int, error) {
	return f.popular, len(f.popular), nil
}

func (f *fakeTitleStore) IncrementViews(_ context.Context, _ string) error     { return nil }
func (f *fakeTitleStore) AdjustLikes(_ context.Context, _ string, _ int) error { return nil }
func (f *fakeTitleStore) IncrementShares(_ context.Context, _ string) error    { return nil }

func (f *fakeTitleStore) RefreshCompletionRate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshedTitles = append(f.refreshedTitles, id)
	return nil
}

type fakeEpisodeStore struct {
	byID   map[string]*models.Episode
	firsts map[string]models.Episode
	after  []models.Episode

	mu                sync.Mutex
	refreshedEpisodes []string
}

func newFakeEpisodeStore() *fakeEpisodeStore {
	return &fakeEpisodeStore{
		byID:   map[string]*models.Episode{},
		firsts: map[string]models.Episode{},
	}
}

func (f *fakeEpisodeStore) GetByID(_ context.Context, id string) (*models.Episode, error) {
	if e, ok := f.byID[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, apperr.ErrEpisodeNotFound
}

func (f *fakeEpisodeStore) FirstEpisodes(_ context.Context, titleIDs []string) (map[string]models.Episode, error) {
	out := make(map[string]models.Episode, len(titleIDs))
	for _, id := range titleIDs {
		if ep, ok := f.firsts[id]; ok {
			out[id] = ep
		}
	}
	return out, nil
}

func (f *fakeEpisodeStore) EpisodesAfter(_ context.Context, titleID string, season, number, limit int) ([]models.Episode, error) {
	out := make([]models.Episode, 0, limit)
	for _, ep := range f.after {
		if ep.TitleID != titleID {
			continue
		}
		if ep.SeasonNumber > season || (ep.SeasonNumber == season && ep.EpisodeNumber > number) {
			out = append(out, ep)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEpisodeStore) ListByTitle(_ context.Context, titleID string, _, _, _ int) ([]models.Episode, int, error) {
	out := make([]models.Episode, 0)
	for _, ep := range f.after {
		if ep.TitleID == titleID {
			out = append(out, ep)
		}
	}
	return out, len(out), nil
}

func (f *fakeEpisodeStore) AdjustLikes(_ context.Context, _ string, delta int) (int64, error) {
	return int64(delta), nil
}

func (f *fakeEpisodeStore) IncrementViews(_ context.Context, _ string) error        { return nil }
func (f *fakeEpisodeStore) AddWatchTime(_ context.Context, _ string, _ int64) error { return nil }

func (f *fakeEpisodeStore) RefreshCompletionRate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshedEpisodes = append(f.refreshedEpisodes, id)
	return nil
}

type fakeUserStore struct {
	byID   map[string]*models.User
	swipes []bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: map[string]*models.User{}}
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.ErrUserNotFound
}

func (f *fakeUserStore) Ensure(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		f.byID[id] = &models.User{ID: id}
	}
	return nil
}

func (f *fakeUserStore) UpdatePreferences(_ context.Context, id string, p models.UserPreferences) error {
	if u, ok := f.byID[id]; ok {
		u.Preferences = p
	}
	return nil
}

func (f *fakeUserStore) AddWatchTime(_ context.Context, id string, seconds int64, completedVideo bool) error {
	if u, ok := f.byID[id]; ok {
		u.Analytics.TotalWatchTime += seconds
		if completedVideo {
			u.Analytics.VideosWatched++
		}
	}
	return nil
}

func (f *fakeUserStore) AdjustLikes(_ context.Context, id string, delta int) error {
	if u, ok := f.byID[id]; ok {
		u.Engagement.Likes += int64(delta)
	}
	return nil
}

func (f *fakeUserStore) IncrementShares(_ context.Context, id string) error {
	if u, ok := f.byID[id]; ok {
		u.Engagement.Shares++
	}
	return nil
}

func (f *fakeUserStore) RecordSwipe(_ context.Context, _ string, right bool) error {
	f.swipes = append(f.swipes, right)
	return nil
}

type fakeWatchStore struct {
	mu      sync.Mutex
	records map[string]*models.WatchRecord
	watched []string
	avg     float64

	ratingAvg   float64
	ratingCount int64
	ratingErr   error
}

func newFakeWatchStore() *fakeWatchStore {
	return &fakeWatchStore{records: map[string]*models.WatchRecord{}}
}

func (f *fakeWatchStore) key(userID, episodeID string) string { return userID + "|" + episodeID }

func (f *fakeWatchStore) Get(_ context.Context, userID, episodeID string) (*models.WatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[f.key(userID, episodeID)]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperr.ErrRecordNotFound
}

func (f *fakeWatchStore) Insert(_ context.Context, w *models.WatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	f.records[f.key(w.UserID, w.EpisodeID)] = &cp
	return nil
}

func (f *fakeWatchStore) UpdateProgress(_ context.Context, w *models.WatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.records[f.key(w.UserID, w.EpisodeID)]
	if !ok {
		return apperr.ErrRecordNotFound
	}
	// Mirror the SQL guards: GREATEST on position, COALESCE on completed_at.
	if w.CurrentPosition > stored.CurrentPosition {
		stored.CurrentPosition = w.CurrentPosition
	}
	stored.PercentageWatched = w.PercentageWatched
	stored.IsCompleted = w.IsCompleted
	stored.Status = w.Status
	stored.Session.LastWatchedAt = w.Session.LastWatchedAt
	if stored.Session.CompletedAt == nil {
		stored.Session.CompletedAt = w.Session.CompletedAt
	}
	stored.Session.TotalSessions = w.Session.TotalSessions
	stored.Session.AverageSessionLength = w.Session.AverageSessionLength
	stored.Engagement.SessionDuration = w.Engagement.SessionDuration
	return nil
}

func (f *fakeWatchStore) AddEngagement(_ context.Context, userID, episodeID string, d models.EngagementDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.records[f.key(userID, episodeID)]
	if !ok {
		return apperr.ErrRecordNotFound
	}
	stored.Engagement.PauseCount += d.PauseCount
	stored.Engagement.SeekCount += d.SeekCount
	stored.Engagement.BufferingTime += d.BufferingTime
	return nil
}

func (f *fakeWatchStore) SetLiked(_ context.Context, userID, episodeID string, liked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.records[f.key(userID, episodeID)]; ok {
		stored.Liked = liked
		return nil
	}
	return apperr.ErrRecordNotFound
}

func (f *fakeWatchStore) SetShared(_ context.Context, userID, episodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.records[f.key(userID, episodeID)]; ok {
		stored.Shared = true
		return nil
	}
	return apperr.ErrRecordNotFound
}

func (f *fakeWatchStore) ApplyRating(_ context.Context, _, _ string, _ int) (float64, int64, error) {
	if f.ratingErr != nil {
		return 0, 0, f.ratingErr
	}
	return f.ratingAvg, f.ratingCount, nil
}

func (f *fakeWatchStore) ContinueWatching(_ context.Context, userID string, minPct, maxPct float64, limit int) ([]models.WatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.WatchRecord, 0)
	for _, r := range f.records {
		if r.UserID != userID {
			continue
		}
		if r.Status != models.WatchStatusWatching && r.Status != models.WatchStatusPaused {
			continue
		}
		if r.PercentageWatched > minPct && r.PercentageWatched < maxPct {
			out = append(out, *r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeWatchStore) ListByUserTitle(_ context.Context, userID, titleID string) ([]models.WatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.WatchRecord, 0)
	for _, r := range f.records {
		if r.UserID == userID && r.TitleID == titleID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeWatchStore) ListWatchlist(_ context.Context, userID, status string, _, _ int) ([]models.WatchRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.WatchRecord, 0)
	for _, r := range f.records {
		if r.UserID != userID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeWatchStore) WatchedTitleIDs(_ context.Context, _ string) ([]string, error) {
	return f.watched, nil
}

func (f *fakeWatchStore) ProgressForEpisodes(_ context.Context, userID string, episodeIDs []string) (map[string]models.WatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.WatchRecord, len(episodeIDs))
	for _, id := range episodeIDs {
		if r, ok := f.records[f.key(userID, id)]; ok {
			out[id] = *r
		}
	}
	return out, nil
}

func (f *fakeWatchStore) AvgEpisodesPerSession(_ context.Context, _ string, _ time.Time) (float64, error) {
	return f.avg, nil
}

func (f *fakeWatchStore) ClearHistory(_ context.Context, userID, titleID string, olderThan *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k, r := range f.records {
		if r.UserID != userID {
			continue
		}
		if titleID != "" && r.TitleID != titleID {
			continue
		}
		if olderThan != nil && !r.Session.LastWatchedAt.Before(*olderThan) {
			continue
		}
		delete(f.records, k)
		deleted++
	}
	return deleted, nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (f *fakeTracker) Track(event models.AnalyticsEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeTracker) eventsOfType(eventType string) []models.AnalyticsEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AnalyticsEvent, 0)
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
