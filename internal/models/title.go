package models

import "time"

// Title status values. Only published titles are visible to the feed.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
	StatusPrivate   = "private"
)

// Title content types.
const (
	TypeMovie     = "movie"
	TypeSeries    = "series"
	TypeWebSeries = "web-series"
)

// Title represents a movie, series or web-series stored in our database.
type Title struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Genres      []string   `json:"genres"`
	Languages   []string   `json:"languages"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	AgeRating   string     `json:"age_rating"`
	Tags        []string   `json:"tags"`
	CastMembers []string   `json:"cast"`
	Director    string     `json:"director"`
	Premium     bool       `json:"premium"`
	PublishedAt *time.Time `json:"published_at"`
	Status      string     `json:"status"`

	Analytics TitleAnalytics `json:"analytics"`
	Feed      FeedSettings   `json:"feed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleAnalytics holds per-title aggregate counters.
type TitleAnalytics struct {
	TotalViews      int64   `json:"total_views"`
	TotalLikes      int64   `json:"total_likes"`
	TotalShares     int64   `json:"total_shares"`
	AverageRating   float64 `json:"average_rating"`
	TotalRatings    int64   `json:"total_ratings"`
	PopularityScore float64 `json:"popularity_score"`
	TrendingScore   float64 `json:"trending_score"`
	CompletionRate  float64 `json:"completion_rate"`
}

// FeedSettings controls how a title participates in the random feed.
type FeedSettings struct {
	IsInRandomFeed         bool     `json:"is_in_random_feed"`
	FeedPriority           int      `json:"feed_priority"`
	FeedWeight             float64  `json:"feed_weight"`
	IsFeatured             bool     `json:"is_featured"`
	IsEditorsPick          bool     `json:"is_editors_pick"`
	GeographicRestrictions []string `json:"geographic_restrictions,omitempty"`
}

// TitleSummary is the compact shape embedded in feed cards and lists.
type TitleSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Genres        []string   `json:"genres"`
	Languages     []string   `json:"languages"`
	Type          string     `json:"type"`
	Category      string     `json:"category"`
	AgeRating     string     `json:"age_rating"`
	PublishedAt   *time.Time `json:"published_at"`
	TotalViews    int64      `json:"total_views"`
	TotalLikes    int64      `json:"total_likes"`
	AverageRating float64    `json:"average_rating"`
	EpisodeCount  int        `json:"episode_count"`
}

// Summary projects a Title down to its card shape.
func (t *Title) Summary() TitleSummary {
	return TitleSummary{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Genres:        t.Genres,
		Languages:     t.Languages,
		Type:          t.Type,
		Category:      t.Category,
		AgeRating:     t.AgeRating,
		PublishedAt:   t.PublishedAt,
		TotalViews:    t.Analytics.TotalViews,
		TotalLikes:    t.Analytics.TotalLikes,
		AverageRating: t.Analytics.AverageRating,
	}
}
