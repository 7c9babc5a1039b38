package models

// Feed sources identify which candidate pool produced a card.
const (
	FeedSourcePersonalized = "personalized"
	FeedSourceTrending     = "trending"
	FeedSourcePopular      = "popular"
	FeedSourceFresh        = "fresh"
)

// Card is one feed item: a title summary, its first episode, algorithm
// metadata and an optional prefetch plan. Algorithm metadata lives here,
// never on the Title itself.
type Card struct {
	Title          TitleSummary  `json:"title"`
	FirstEpisode   *Episode      `json:"first_episode"`
	FeedSource     string        `json:"_feed_source"`
	AlgorithmScore float64       `json:"_algorithm_score"`
	Prefetch       *PrefetchPlan `json:"_prefetch,omitempty"`
}

// FeedPage is a derived, never persisted, ordered sequence of cards.
type FeedPage struct {
	Cards  []Card `json:"cards"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Count  int    `json:"count"`
}

// ScoredTitle pairs a title with its pool attribution during ranking.
type ScoredTitle struct {
	Title      Title
	FeedSource string
	Score      float64
}

// FeedParams holds the inputs of a feed request. The cache key is built
// from every field, so two requests differing in any input never collide.
type FeedParams struct {
	UserID           string   `json:"user_id"`
	Limit            int      `json:"limit"`
	Offset           int      `json:"offset"`
	OverrideGenre    string   `json:"genre"`
	OverrideLanguage string   `json:"language"`
	PreferredGenres  []string `json:"preferred_genres,omitempty"`
	PreferredLangs   []string `json:"preferred_languages,omitempty"`
	ExcludeWatched   bool     `json:"exclude_watched"`
}

// MaxFeedPageSize caps any single feed or search page.
const MaxFeedPageSize = 100

// Validate sets defaults and clamps parameters.
func (p *FeedParams) Validate() {
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > MaxFeedPageSize {
		p.Limit = MaxFeedPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// SearchParams holds the inputs of a search request.
type SearchParams struct {
	Query    string `json:"q"`
	Genre    string `json:"genre"`
	Language string `json:"language"`
	Type     string `json:"type"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	UserID   string `json:"user_id"`
}

// Validate sets defaults and clamps parameters.
func (p *SearchParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > MaxFeedPageSize {
		p.Limit = MaxFeedPageSize
	}
}

// SearchResult is a paginated search response.
type SearchResult struct {
	Query        string         `json:"query"`
	Page         int            `json:"page"`
	Limit        int            `json:"limit"`
	TotalResults int            `json:"total_results"`
	Data         []TitleSummary `json:"data"`
}
