package models

import "time"

// Data usage tiers controlling default playback quality.
const (
	DataUsageLow    = "low"
	DataUsageMedium = "medium"
	DataUsageHigh   = "high"
)

// UserPreferences are the per-user feed and playback settings.
type UserPreferences struct {
	PreferredGenres    []string `json:"preferred_genres"`
	PreferredLanguages []string `json:"preferred_languages"`
	AutoPlay           bool     `json:"auto_play"`
	DataUsage          string   `json:"data_usage"`
}

// GenreCount is one entry of a user's favourite-genre histogram.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserAnalytics tracks aggregate viewing behaviour per user.
type UserAnalytics struct {
	TotalWatchTime         int64        `json:"total_watch_time"`
	VideosWatched          int64        `json:"videos_watched"`
	AverageSessionDuration float64      `json:"average_session_duration"`
	FavoriteGenres         []GenreCount `json:"favorite_genres"`
}

// UserEngagement tracks interaction counters per user.
type UserEngagement struct {
	Likes                  int64   `json:"likes"`
	Shares                 int64   `json:"shares"`
	SwipeRight             int64   `json:"swipe_right"`
	SwipeLeft              int64   `json:"swipe_left"`
	AverageVideoCompletion float64 `json:"average_video_completion"`
}

// User is typically anonymous, identified by a stable device-generated id.
type User struct {
	ID          string          `json:"id"`
	Premium     bool            `json:"premium"`
	Preferences UserPreferences `json:"preferences"`
	Analytics   UserAnalytics   `json:"analytics"`
	Engagement  UserEngagement  `json:"engagement"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
