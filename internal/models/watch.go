package models

import "time"

// Watch record statuses.
const (
	WatchStatusWatching  = "watching"
	WatchStatusCompleted = "completed"
	WatchStatusDropped   = "dropped"
	WatchStatusPaused    = "paused"
)

// SessionInfo tracks per-record viewing session aggregates.
type SessionInfo struct {
	StartedAt            time.Time  `json:"started_at"`
	LastWatchedAt        time.Time  `json:"last_watched_at"`
	CompletedAt          *time.Time `json:"completed_at"`
	TotalSessions        int        `json:"total_sessions"`
	AverageSessionLength float64    `json:"average_session_length"`
}

// WatchEngagement tracks interaction counters on a single record.
// All counters are monotonic and commutative under batched updates.
type WatchEngagement struct {
	SessionDuration int64 `json:"session_duration"`
	PauseCount      int   `json:"pause_count"`
	SeekCount       int   `json:"seek_count"`
	BufferingTime   int64 `json:"buffering_time"`
}

// WatchRecord is the single mutable hot spot: one per (userID, episodeID).
// CurrentPosition never decreases; crossing 80% completes the record exactly once.
type WatchRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	TitleID       string `json:"title_id"`
	EpisodeID     string `json:"episode_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`

	CurrentPosition   int     `json:"current_position"` // seconds
	TotalDuration     int     `json:"total_duration"`
	PercentageWatched float64 `json:"percentage_watched"`
	IsCompleted       bool    `json:"is_completed"`
	Status            string  `json:"status"`
	WatchedVia        string  `json:"watched_via"`

	Rating *int `json:"rating,omitempty"` // 1..5
	Liked  bool `json:"liked"`
	Shared bool `json:"shared"`

	Session    SessionInfo     `json:"session_info"`
	Engagement WatchEngagement `json:"engagement"`
}

// EngagementDelta is a batch of engagement counter increments.
type EngagementDelta struct {
	PauseCount    int   `json:"pause_count"`
	SeekCount     int   `json:"seek_count"`
	BufferingTime int64 `json:"buffering_time"`
}

// ProgressOverlay is the per-episode progress attached to prefetch plans
// and episode listings when a userID is supplied.
type ProgressOverlay struct {
	CurrentPosition   int     `json:"current_position"`
	PercentageWatched float64 `json:"percentage_watched"`
	IsCompleted       bool    `json:"is_completed"`
}
