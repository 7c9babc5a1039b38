package models

import "time"

// Analytics event types accepted by the tracker.
const (
	EventVideoStart   = "video_start"
	EventVideoEnd     = "video_end"
	EventVideoPause   = "video_pause"
	EventVideoResume  = "video_resume"
	EventSwipeLeft    = "swipe_left"
	EventSwipeRight   = "swipe_right"
	EventTapEpisode   = "tap_episode"
	EventLike         = "like"
	EventShare        = "share"
	EventAppOpen      = "app_open"
	EventAppClose     = "app_close"
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventContentView  = "content_view"
	EventSearch       = "search"
	EventError        = "error"
	EventBufferStart  = "buffer_start"
	EventBufferEnd    = "buffer_end"
)

// Analytics event categories.
const (
	CategoryUserInteraction = "user_interaction"
	CategoryVideoPlayback   = "video_playback"
	CategoryNavigation      = "navigation"
	CategoryEngagement      = "engagement"
	CategoryPerformance     = "performance"
)

// AnalyticsEvent is one tracked client or server-side event.
type AnalyticsEvent struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	EventType  string         `json:"event_type"`
	Category   string         `json:"category"`
	ContentID  string         `json:"content_id,omitempty"`
	EpisodeID  string         `json:"episode_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	EventData  map[string]any `json:"event_data,omitempty"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
	Location   string         `json:"location,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ValidEventTypes is the closed set of accepted event types.
var ValidEventTypes = map[string]bool{
	EventVideoStart: true, EventVideoEnd: true, EventVideoPause: true,
	EventVideoResume: true, EventSwipeLeft: true, EventSwipeRight: true,
	EventTapEpisode: true, EventLike: true, EventShare: true,
	EventAppOpen: true, EventAppClose: true, EventSessionStart: true,
	EventSessionEnd: true, EventContentView: true, EventSearch: true,
	EventError: true, EventBufferStart: true, EventBufferEnd: true,
}
