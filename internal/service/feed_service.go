package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/cache"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
	"shortreel-backend/internal/repository"
)

const (
	trendingWindow = 7 * 24 * time.Hour
	freshWindow    = 30 * 24 * time.Hour

	feedTTLAuthenticated = 15 * time.Minute
	feedTTLAnonymous     = 30 * time.Minute
	searchTTL            = 30 * time.Minute
)

// FeedService is the public entry point of the feed pipeline: it resolves
// preferences, fans out the candidate pools, ranks, attaches first episodes
// and prefetch plans, and caches the assembled page.
type FeedService struct {
	titles   TitleStore
	episodes EpisodeStore
	users    UserStore
	watch    WatchStore
	cache    Cache
	tracker  EventTracker
	ranker   *Ranker
	prefetch *PrefetchService
	cacheCfg config.CacheConfig
}

// NewFeedService creates a FeedService.
func NewFeedService(titles TitleStore, episodes EpisodeStore, users UserStore,
	watch WatchStore, c Cache, tracker EventTracker, ranker *Ranker,
	prefetch *PrefetchService, cacheCfg config.CacheConfig) *FeedService {
	return &FeedService{
		titles:   titles,
		episodes: episodes,
		users:    users,
		watch:    watch,
		cache:    c,
		tracker:  tracker,
		ranker:   ranker,
		prefetch: prefetch,
		cacheCfg: cacheCfg,
	}
}

// GetFeed assembles one personalized feed page. The cache key covers every
// input; on a hit nothing below the cache runs. The cache being down only
// costs latency, never correctness.
func (s *FeedService) GetFeed(ctx context.Context, p models.FeedParams) (*models.FeedPage, error) {
	p.Validate()

	key := feedCacheKey(p)
	var page models.FeedPage
	if err := s.cache.Get(ctx, key, &page); err == nil {
		return &page, nil
	}

	prefs, err := s.resolvePreferences(ctx, p)
	if err != nil {
		return nil, err
	}

	filter := repository.PoolFilter{
		Genres:    prefs.PreferredGenres,
		Languages: prefs.PreferredLanguages,
	}
	if p.ExcludeWatched && p.UserID != "" {
		watched, err := s.watch.WatchedTitleIDs(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		filter.ExcludeTitleIDs = watched
	}

	candidates, err := s.runPools(ctx, filter, p.Limit+p.Offset)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(candidates, prefs, p.Offset, p.Limit)

	cards, err := s.attachFirstEpisodes(ctx, ranked)
	if err != nil {
		return nil, err
	}

	s.prefetch.AttachPlans(ctx, cards, p.UserID)

	page = models.FeedPage{
		Cards:  cards,
		Limit:  p.Limit,
		Offset: p.Offset,
		Count:  len(cards),
	}

	ttl := feedTTLAnonymous
	tags := []string{feedTag}
	if p.UserID != "" {
		ttl = feedTTLAuthenticated
		tags = append(tags, userTag(p.UserID))
	}
	s.cache.SetWithTags(ctx, key, page, ttl, tags)

	s.tracker.Track(models.AnalyticsEvent{
		UserID:    p.UserID,
		EventType: models.EventContentView,
		EventData: map[string]any{
			"cards":  len(cards),
			"limit":  p.Limit,
			"offset": p.Offset,
		},
	})
	return &page, nil
}

// runPools evaluates the four candidate pools concurrently under the
// request deadline. A deadline expiry cancels the surviving pools and
// surfaces Timeout; a half-built page is never returned.
func (s *FeedService) runPools(ctx context.Context, base repository.PoolFilter, pageSize int) ([]models.ScoredTitle, error) {
	nPersonalized, nTrending, nPopular, nFresh := poolSplit(pageSize)
	now := time.Now().UTC()

	var personalized, trending, popular, fresh []models.Title

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		f := base
		f.Limit = nPersonalized
		var err error
		personalized, err = s.titles.PersonalizedPool(ctx, f)
		return err
	})
	p.Go(func(ctx context.Context) error {
		f := base
		f.Genres, f.Languages = nil, nil
		f.Limit = nTrending
		var err error
		trending, err = s.titles.TrendingPool(ctx, f, now.Add(-trendingWindow))
		return err
	})
	p.Go(func(ctx context.Context) error {
		f := base
		f.Genres, f.Languages = nil, nil
		f.Limit = nPopular
		var err error
		popular, err = s.titles.PopularPool(ctx, f)
		return err
	})
	p.Go(func(ctx context.Context) error {
		f := base
		f.Genres, f.Languages = nil, nil
		f.Limit = nFresh
		var err error
		fresh, err = s.titles.FreshPool(ctx, f, now.Add(-freshWindow))
		return err
	})

	if err := p.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.ErrTimeout
		}
		return nil, err
	}

	// Concatenation order decides attribution for duplicated titles.
	candidates := make([]models.ScoredTitle, 0,
		len(personalized)+len(trending)+len(popular)+len(fresh))
	for _, t := range personalized {
		candidates = append(candidates, models.ScoredTitle{Title: t, FeedSource: models.FeedSourcePersonalized})
	}
	for _, t := range trending {
		candidates = append(candidates, models.ScoredTitle{Title: t, FeedSource: models.FeedSourceTrending})
	}
	for _, t := range popular {
		candidates = append(candidates, models.ScoredTitle{Title: t, FeedSource: models.FeedSourcePopular})
	}
	for _, t := range fresh {
		candidates = append(candidates, models.ScoredTitle{Title: t, FeedSource: models.FeedSourceFresh})
	}
	return candidates, nil
}

// attachFirstEpisodes resolves each title's first published episode with
// one batched query. A title without a resolvable first episode is dropped
// from the page rather than failing it.
func (s *FeedService) attachFirstEpisodes(ctx context.Context, ranked []models.ScoredTitle) ([]models.Card, error) {
	ids := make([]string, len(ranked))
	for i, st := range ranked {
		ids[i] = st.Title.ID
	}
	firsts, err := s.episodes.FirstEpisodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(ranked))
	for _, st := range ranked {
		first, ok := firsts[st.Title.ID]
		if !ok {
			slog.Debug("dropping card without playable first episode", "title_id", st.Title.ID)
			continue
		}
		summary := st.Title.Summary()
		cards = append(cards, models.Card{
			Title:          summary,
			FirstEpisode:   &first,
			FeedSource:     st.FeedSource,
			AlgorithmScore: st.Score,
		})
	}
	return cards, nil
}

// resolvePreferences loads the user's stored preferences and applies any
// per-request overrides. Anonymous requests get empty preferences.
func (s *FeedService) resolvePreferences(ctx context.Context, p models.FeedParams) (models.UserPreferences, error) {
	var prefs models.UserPreferences
	if p.UserID != "" {
		user, err := s.users.GetByID(ctx, p.UserID)
		if err == nil {
			prefs = user.Preferences
		} else if !errors.Is(err, apperr.ErrUserNotFound) {
			return prefs, err
		}
	}
	if len(p.PreferredGenres) > 0 {
		prefs.PreferredGenres = p.PreferredGenres
	}
	if len(p.PreferredLangs) > 0 {
		prefs.PreferredLanguages = p.PreferredLangs
	}
	if p.OverrideGenre != "" {
		prefs.PreferredGenres = []string{p.OverrideGenre}
	}
	if p.OverrideLanguage != "" {
		prefs.PreferredLanguages = []string{p.OverrideLanguage}
	}
	return prefs, nil
}

// GetTrending returns the trending rail for a timeframe ("24h", "7d", "30d").
func (s *FeedService) GetTrending(ctx context.Context, timeframe string, limit int) ([]models.TitleSummary, error) {
	limit = clampLimit(limit)
	window := trendingWindow
	switch timeframe {
	case "24h":
		window = 24 * time.Hour
	case "30d":
		window = freshWindow
	case "", "7d":
		timeframe = "7d"
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown timeframe %q", timeframe)
	}

	key := fmt.Sprintf("feed:trending:%s:%d", timeframe, limit)
	var out []models.TitleSummary
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}

	titles, err := s.titles.TrendingPool(ctx, repository.PoolFilter{Limit: limit},
		time.Now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}
	out = summarize(titles)
	s.cache.SetWithTags(ctx, key, out, time.Duration(s.cacheCfg.MediumTTL)*time.Second, []string{feedTag})
	return out, nil
}

// GetFeatured returns the featured rail.
func (s *FeedService) GetFeatured(ctx context.Context, limit int) ([]models.TitleSummary, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("feed:featured:%d", limit)
	var out []models.TitleSummary
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	titles, err := s.titles.Featured(ctx, limit)
	if err != nil {
		return nil, err
	}
	out = summarize(titles)
	s.cache.SetWithTags(ctx, key, out, time.Duration(s.cacheCfg.LongTTL)*time.Second, []string{feedTag})
	return out, nil
}

// GetEditorsPicks returns the editors-pick rail.
func (s *FeedService) GetEditorsPicks(ctx context.Context, limit int) ([]models.TitleSummary, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("feed:editors:%d", limit)
	var out []models.TitleSummary
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	titles, err := s.titles.EditorsPicks(ctx, limit)
	if err != nil {
		return nil, err
	}
	out = summarize(titles)
	s.cache.SetWithTags(ctx, key, out, time.Duration(s.cacheCfg.LongTTL)*time.Second, []string{feedTag})
	return out, nil
}

// GetPopularByGenre returns the popularity rail for one genre.
func (s *FeedService) GetPopularByGenre(ctx context.Context, genre, language string, limit int) ([]models.TitleSummary, error) {
	if genre == "" {
		return nil, apperr.New(apperr.KindValidation, "genre is required")
	}
	limit = clampLimit(limit)
	key := fmt.Sprintf("feed:genre:%s:%s:%d", genre, language, limit)
	var out []models.TitleSummary
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	titles, err := s.titles.PopularByGenre(ctx, genre, language, limit)
	if err != nil {
		return nil, err
	}
	out = summarize(titles)
	s.cache.SetWithTags(ctx, key, out, time.Duration(s.cacheCfg.MediumTTL)*time.Second, []string{feedTag})
	return out, nil
}

// GetSimilar returns titles related to the source by category, genre, cast
// or director.
func (s *FeedService) GetSimilar(ctx context.Context, titleID string, limit int) ([]models.TitleSummary, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("feed:similar:%s:%d", titleID, limit)
	var out []models.TitleSummary
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}

	src, err := s.titles.GetByID(ctx, titleID)
	if err != nil {
		return nil, err
	}
	titles, err := s.titles.Similar(ctx, src, limit)
	if err != nil {
		return nil, err
	}
	out = summarize(titles)
	s.cache.SetWithTags(ctx, key, out, time.Duration(s.cacheCfg.MediumTTL)*time.Second,
		[]string{feedTag, titleTag(titleID)})
	return out, nil
}

// Search performs a case-insensitive substring search over the catalog.
// Queries shorter than two characters are rejected.
func (s *FeedService) Search(ctx context.Context, p models.SearchParams) (*models.SearchResult, error) {
	p.Query = strings.TrimSpace(p.Query)
	if len(p.Query) < 2 {
		return nil, apperr.New(apperr.KindValidation, "search query must be at least 2 characters")
	}
	p.Validate()

	key := fmt.Sprintf("search:%s:%s:%s:%s:%d:%d",
		strings.ToLower(p.Query), p.Genre, p.Language, p.Type, p.Page, p.Limit)
	var result models.SearchResult
	if err := s.cache.Get(ctx, key, &result); err == nil {
		return &result, nil
	}

	titles, total, err := s.titles.Search(ctx, p)
	if err != nil {
		return nil, err
	}
	result = models.SearchResult{
		Query:        p.Query,
		Page:         p.Page,
		Limit:        p.Limit,
		TotalResults: total,
		Data:         summarize(titles),
	}
	s.cache.Set(ctx, key, result, searchTTL)

	s.tracker.Track(models.AnalyticsEvent{
		UserID:    p.UserID,
		EventType: models.EventSearch,
		EventData: map[string]any{"query": p.Query, "results": total},
	})
	return &result, nil
}

// TitleDetails is a title with the requesting user's progress overlaid.
type TitleDetails struct {
	Title        models.Title         `json:"title"`
	UserProgress []models.WatchRecord `json:"user_progress,omitempty"`
}

// GetTitleDetails returns one published title, with the user's per-episode
// progress when userID is given. Unpublished, region-blocked and unpaid
// premium titles are not served.
func (s *FeedService) GetTitleDetails(ctx context.Context, titleID, userID, region string) (*TitleDetails, error) {
	key := fmt.Sprintf("content:title:%s", titleID)
	var title models.Title
	if err := s.cache.Get(ctx, key, &title); err != nil {
		if err != cache.ErrMiss {
			slog.Warn("title cache read failed", "title_id", titleID, "error", err)
		}
		t, err := s.titles.GetByID(ctx, titleID)
		if err != nil {
			return nil, err
		}
		title = *t
		s.cache.SetWithTags(ctx, key, title,
			time.Duration(s.cacheCfg.MediumTTL)*time.Second, []string{titleTag(titleID)})
	}

	if title.Status != models.StatusPublished {
		return nil, apperr.New(apperr.KindForbidden, "title is not available")
	}
	if err := s.authorizeTitle(ctx, &title, userID, region); err != nil {
		return nil, err
	}

	details := &TitleDetails{Title: title}
	if userID != "" {
		progress, err := s.watch.ListByUserTitle(ctx, userID, titleID)
		if err != nil {
			slog.Warn("user progress overlay failed", "user_id", userID, "error", err)
		} else {
			details.UserProgress = progress
		}
	}
	return details, nil
}

// EpisodePage is a paginated episode listing with optional progress overlay.
type EpisodePage struct {
	Episodes []models.Episode                  `json:"episodes"`
	Progress map[string]models.ProgressOverlay `json:"progress,omitempty"`
	Page     int                               `json:"page"`
	Limit    int                               `json:"limit"`
	Total    int                               `json:"total"`
}

// GetEpisodes lists a title's published episodes in sequence order.
func (s *FeedService) GetEpisodes(ctx context.Context, titleID string, season, page, limit int, userID string) (*EpisodePage, error) {
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit)

	episodes, total, err := s.episodes.ListByTitle(ctx, titleID, season, page, limit)
	if err != nil {
		return nil, err
	}

	result := &EpisodePage{Episodes: episodes, Page: page, Limit: limit, Total: total}
	if userID != "" && len(episodes) > 0 {
		ids := make([]string, len(episodes))
		for i, e := range episodes {
			ids[i] = e.ID
		}
		records, err := s.watch.ProgressForEpisodes(ctx, userID, ids)
		if err != nil {
			slog.Warn("episode progress overlay failed", "user_id", userID, "error", err)
		} else {
			overlay := make(map[string]models.ProgressOverlay, len(records))
			for id, rec := range records {
				overlay[id] = models.ProgressOverlay{
					CurrentPosition:   rec.CurrentPosition,
					PercentageWatched: rec.PercentageWatched,
					IsCompleted:       rec.IsCompleted,
				}
			}
			result.Progress = overlay
		}
	}
	return result, nil
}

// EpisodeDetails is an episode plus the stream URL chosen for the caller.
type EpisodeDetails struct {
	Episode   models.Episode          `json:"episode"`
	StreamURL string                  `json:"stream_url"`
	Quality   string                  `json:"quality"`
	Progress  *models.ProgressOverlay `json:"progress,omitempty"`
}

// GetEpisodeDetails returns one published episode with a stream URL picked
// from the requested quality, falling back through available variants. The
// parent title's premium and region gates apply to the episode.
func (s *FeedService) GetEpisodeDetails(ctx context.Context, episodeID, userID, quality, region string) (*EpisodeDetails, error) {
	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if ep.Status != models.StatusPublished {
		return nil, apperr.New(apperr.KindForbidden, "episode is not available")
	}

	title, err := s.titles.GetByID(ctx, ep.TitleID)
	if err != nil {
		return nil, err
	}
	if title.Status != models.StatusPublished {
		return nil, apperr.New(apperr.KindForbidden, "episode is not available")
	}
	if err := s.authorizeTitle(ctx, title, userID, region); err != nil {
		return nil, err
	}

	url, chosen := pickStreamURL(ep, quality)
	details := &EpisodeDetails{Episode: *ep, StreamURL: url, Quality: chosen}

	if userID != "" {
		rec, err := s.watch.Get(ctx, userID, episodeID)
		if err == nil {
			details.Progress = &models.ProgressOverlay{
				CurrentPosition:   rec.CurrentPosition,
				PercentageWatched: rec.PercentageWatched,
				IsCompleted:       rec.IsCompleted,
			}
		} else if !errors.Is(err, apperr.ErrRecordNotFound) {
			slog.Warn("episode progress lookup failed", "user_id", userID, "error", err)
		}
	}
	return details, nil
}

// authorizeTitle enforces the access gates on a title read: a region named
// in the title's geographic restrictions is blocked, and a premium title
// requires a premium user.
func (s *FeedService) authorizeTitle(ctx context.Context, t *models.Title, userID, region string) error {
	if region != "" && containsFold(t.Feed.GeographicRestrictions, region) {
		return apperr.New(apperr.KindForbidden, "title is not available in your region")
	}
	if !t.Premium {
		return nil
	}
	if userID == "" {
		return apperr.New(apperr.KindPaymentRequired, "premium subscription required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return apperr.New(apperr.KindPaymentRequired, "premium subscription required")
		}
		return err
	}
	if !user.Premium {
		return apperr.New(apperr.KindPaymentRequired, "premium subscription required")
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func pickStreamURL(ep *models.Episode, quality string) (string, string) {
	if quality != "" {
		if v, ok := ep.VariantByResolution(quality); ok {
			return v.URL, v.Resolution
		}
	}
	if v, ok := ep.VariantByResolution("720p"); ok {
		return v.URL, v.Resolution
	}
	if len(ep.QualityVariants) > 0 {
		v := ep.QualityVariants[0]
		return v.URL, v.Resolution
	}
	return ep.VideoURL, quality
}

func feedCacheKey(p models.FeedParams) string {
	return fmt.Sprintf("feed:%s:%d:%d:%s:%s:%s:%s:%t",
		p.UserID, p.Limit, p.Offset, p.OverrideGenre, p.OverrideLanguage,
		strings.Join(p.PreferredGenres, ","), strings.Join(p.PreferredLangs, ","),
		p.ExcludeWatched)
}

func summarize(titles []models.Title) []models.TitleSummary {
	out := make([]models.TitleSummary, len(titles))
	for i := range titles {
		out[i] = titles[i].Summary()
	}
	return out
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 20
	}
	if limit > models.MaxFeedPageSize {
		return models.MaxFeedPageSize
	}
	return limit
}
