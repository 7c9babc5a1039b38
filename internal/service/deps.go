package service

import (
	"context"
	"time"

	"shortreel-backend/internal/models"
	"shortreel-backend/internal/repository"
)

// Consumer-side interfaces over the repositories and cache so services can
// be exercised against in-memory fakes. The concrete repository types
// satisfy them directly.

// TitleStore is the title catalog surface the services need.
type TitleStore interface {
	GetByID(ctx context.Context, id string) (*models.Title, error)
	PersonalizedPool(ctx context.Context, f repository.PoolFilter) ([]models.Title, error)
	TrendingPool(ctx context.Context, f repository.PoolFilter, since time.Time) ([]models.Title, error)
	PopularPool(ctx context.Context, f repository.PoolFilter) ([]models.Title, error)
	FreshPool(ctx context.Context, f repository.PoolFilter, since time.Time) ([]models.Title, error)
	Featured(ctx context.Context, limit int) ([]models.Title, error)
	EditorsPicks(ctx context.Context, limit int) ([]models.Title, error)
	PopularByGenre(ctx context.Context, genre, language string, limit int) ([]models.Title, error)
	Similar(ctx context.Context, src *models.Title, limit int) ([]models.Title, error)
	Search(ctx context.Context, p models.SearchParams) ([]models.Title, int, error)
	IncrementViews(ctx context.Context, id string) error
	AdjustLikes(ctx context.Context, id string, delta int) error
	IncrementShares(ctx context.Context, id string) error
	RefreshCompletionRate(ctx context.Context, id string) error
}

// EpisodeStore is the episode surface the services need.
type EpisodeStore interface {
	GetByID(ctx context.Context, id string) (*models.Episode, error)
	FirstEpisodes(ctx context.Context, titleIDs []string) (map[string]models.Episode, error)
	EpisodesAfter(ctx context.Context, titleID string, season, number, limit int) ([]models.Episode, error)
	ListByTitle(ctx context.Context, titleID string, season, page, limit int) ([]models.Episode, int, error)
	AdjustLikes(ctx context.Context, id string, delta int) (int64, error)
	IncrementViews(ctx context.Context, id string) error
	AddWatchTime(ctx context.Context, id string, seconds int64) error
	RefreshCompletionRate(ctx context.Context, id string) error
}

// UserStore is the user surface the services need.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Ensure(ctx context.Context, id string) error
	UpdatePreferences(ctx context.Context, id string, p models.UserPreferences) error
	AddWatchTime(ctx context.Context, id string, seconds int64, completedVideo bool) error
	AdjustLikes(ctx context.Context, id string, delta int) error
	IncrementShares(ctx context.Context, id string) error
	RecordSwipe(ctx context.Context, id string, right bool) error
}

// WatchStore is the watch-record surface the services need.
type WatchStore interface {
	Get(ctx context.Context, userID, episodeID string) (*models.WatchRecord, error)
	Insert(ctx context.Context, w *models.WatchRecord) error
	UpdateProgress(ctx context.Context, w *models.WatchRecord) error
	AddEngagement(ctx context.Context, userID, episodeID string, d models.EngagementDelta) error
	SetLiked(ctx context.Context, userID, episodeID string, liked bool) error
	SetShared(ctx context.Context, userID, episodeID string) error
	ApplyRating(ctx context.Context, userID, titleID string, rating int) (float64, int64, error)
	ContinueWatching(ctx context.Context, userID string, minPct, maxPct float64, limit int) ([]models.WatchRecord, error)
	ListByUserTitle(ctx context.Context, userID, titleID string) ([]models.WatchRecord, error)
	ListWatchlist(ctx context.Context, userID, status string, page, limit int) ([]models.WatchRecord, int, error)
	WatchedTitleIDs(ctx context.Context, userID string) ([]string, error)
	ProgressForEpisodes(ctx context.Context, userID string, episodeIDs []string) (map[string]models.WatchRecord, error)
	AvgEpisodesPerSession(ctx context.Context, userID string, since time.Time) (float64, error)
	ClearHistory(ctx context.Context, userID, titleID string, olderThan *time.Time) (int64, error)
}

// Cache is the cache-aside surface (see internal/cache).
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string) error
	SetWithTags(ctx context.Context, key string, value any, ttl time.Duration, tags []string)
	InvalidateByTags(ctx context.Context, tags ...string)
}

// EventTracker records analytics events; implementations never block.
type EventTracker interface {
	Track(event models.AnalyticsEvent)
}

// Cache tag helpers shared by the services.
func userTag(userID string) string   { return "user:" + userID }
func titleTag(titleID string) string { return "title:" + titleID }

const feedTag = "feed"
