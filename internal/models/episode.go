package models

import "time"

// QualityVariant is one transcoded rendition of an episode.
type QualityVariant struct {
	Resolution string `json:"resolution"`
	URL        string `json:"url"`
	FileSize   int64  `json:"file_size"`
	Bitrate    int    `json:"bitrate"`
}

// StreamingOptions tune client-side playback behaviour.
type StreamingOptions struct {
	PreloadEnabled  bool `json:"preload_enabled"`
	PreloadDuration int  `json:"preload_duration"`
	ChunkSize       int  `json:"chunk_size"`
	AdaptiveBitrate bool `json:"adaptive_bitrate"`
}

// EpisodeAnalytics holds per-episode aggregate counters.
type EpisodeAnalytics struct {
	TotalViews     int64     `json:"total_views"`
	TotalWatchTime int64     `json:"total_watch_time"`
	CompletionRate float64   `json:"completion_rate"`
	DropOffPoints  []float64 `json:"drop_off_points"`
	TotalLikes     int64     `json:"total_likes"`
}

// Episode represents a single episode of a title.
// (SeasonNumber, EpisodeNumber) is unique per title and defines sequencing.
type Episode struct {
	ID            string `json:"id"`
	TitleID       string `json:"title_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Duration      int    `json:"duration"` // seconds
	ThumbnailURL  string `json:"thumbnail_url"`
	VideoURL      string `json:"video_url"` // master URL, fallback when no variant fits
	Status        string `json:"status"`

	QualityVariants []QualityVariant `json:"quality_variants"`
	Streaming       StreamingOptions `json:"streaming_options"`
	Analytics       EpisodeAnalytics `json:"analytics"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VariantByResolution returns the variant with the given resolution, if present.
func (e *Episode) VariantByResolution(res string) (QualityVariant, bool) {
	for _, v := range e.QualityVariants {
		if v.Resolution == res {
			return v, true
		}
	}
	return QualityVariant{}, false
}

// LowestVariant returns the lowest-bitrate variant, if any exist.
func (e *Episode) LowestVariant() (QualityVariant, bool) {
	if len(e.QualityVariants) == 0 {
		return QualityVariant{}, false
	}
	lowest := e.QualityVariants[0]
	for _, v := range e.QualityVariants[1:] {
		if resolutionRank(v.Resolution) < resolutionRank(lowest.Resolution) {
			lowest = v
		}
	}
	return lowest, true
}

func resolutionRank(res string) int {
	switch res {
	case "144p":
		return 1
	case "240p":
		return 2
	case "360p":
		return 3
	case "480p":
		return 4
	case "720p":
		return 5
	case "1080p":
		return 6
	case "4k":
		return 7
	default:
		return 8
	}
}
