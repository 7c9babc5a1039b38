package models

// PrefetchEpisode is one upcoming episode in a prefetch plan. PrefetchURL is
// the lowest-bandwidth rendition for warming buffers; StreamURL is what the
// client switches to once the user actually plays.
type PrefetchEpisode struct {
	EpisodeID     string           `json:"episode_id"`
	SeasonNumber  int              `json:"season_number"`
	EpisodeNumber int              `json:"episode_number"`
	Title         string           `json:"title"`
	Duration      int              `json:"duration"`
	ThumbnailURL  string           `json:"thumbnail_url"`
	PrefetchURL   string           `json:"prefetch_url"`
	StreamURL     string           `json:"stream_url"`
	Quality       string           `json:"quality"`
	Priority      int              `json:"priority"`
	Progress      *ProgressOverlay `json:"progress,omitempty"`
}

// PrefetchPlan is the per-card block of upcoming episodes plus the estimated
// download cost of warming them all at prefetch quality.
type PrefetchPlan struct {
	TitleID         string            `json:"title_id"`
	Episodes        []PrefetchEpisode `json:"episodes"`
	EstimatedMB     float64           `json:"estimated_mb"`
	PrefetchQuality string            `json:"prefetch_quality"`
	EpisodesPerCard int               `json:"episodes_per_card"`
}
