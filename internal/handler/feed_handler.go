package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/models"
	"shortreel-backend/internal/service"
)

// FeedHandler handles HTTP requests for feed assembly and discovery rails.
type FeedHandler struct {
	feed     *service.FeedService
	watch    *service.WatchService
	prefetch *service.PrefetchService
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(feed *service.FeedService, watch *service.WatchService, prefetch *service.PrefetchService) *FeedHandler {
	return &FeedHandler{feed: feed, watch: watch, prefetch: prefetch}
}

// GetRandomFeed returns a personalized feed page.
// @Summary Get the random feed
// @Tags feed
// @Produce json
// @Param userId query string false "User ID for personalization"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Page offset" default(0)
// @Param genre query string false "Genre override"
// @Param language query string false "Language override"
// @Param excludeWatched query bool false "Exclude fully watched titles"
// @Success 200 {object} Response
// @Failure 504 {object} ErrorResponse
// @Router /api/feed/random [get]
func (h *FeedHandler) GetRandomFeed(c fiber.Ctx) error {
	params := models.FeedParams{
		UserID:           c.Query("userId"),
		Limit:            fiber.Query(c, "limit", 10),
		Offset:           fiber.Query(c, "offset", 0),
		OverrideGenre:    c.Query("genre"),
		OverrideLanguage: c.Query("language"),
		ExcludeWatched:   fiber.Query(c, "excludeWatched", false),
	}

	page, err := h.feed.GetFeed(c.Context(), params)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, page)
}

type personalizedFeedRequest struct {
	UserID      string                 `json:"userId"`
	Limit       int                    `json:"limit"`
	Offset      int                    `json:"offset"`
	Preferences models.UserPreferences `json:"preferences"`
}

// GetPersonalizedFeed returns a feed page with preferences from the body.
// @Summary Get a personalized feed with explicit preferences
// @Tags feed
// @Accept json
// @Produce json
// @Param request body personalizedFeedRequest true "Feed request"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/feed/personalized [post]
func (h *FeedHandler) GetPersonalizedFeed(c fiber.Ctx) error {
	var req personalizedFeedRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	params := models.FeedParams{
		UserID:          req.UserID,
		Limit:           req.Limit,
		Offset:          req.Offset,
		PreferredGenres: req.Preferences.PreferredGenres,
		PreferredLangs:  req.Preferences.PreferredLanguages,
		ExcludeWatched:  true,
	}

	page, err := h.feed.GetFeed(c.Context(), params)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, page)
}

// GetTrending returns the trending rail.
// @Summary Get trending titles
// @Tags feed
// @Produce json
// @Param limit query int false "Max results" default(20)
// @Param timeframe query string false "Window" Enums(24h,7d,30d) default(7d)
// @Success 200 {object} Response
// @Router /api/feed/trending [get]
func (h *FeedHandler) GetTrending(c fiber.Ctx) error {
	titles, err := h.feed.GetTrending(c.Context(),
		c.Query("timeframe"), fiber.Query(c, "limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, titles)
}

// GetPopularByGenre returns the popularity rail for one genre.
// @Summary Get popular titles in a genre
// @Tags feed
// @Produce json
// @Param genre path string true "Genre"
// @Param limit query int false "Max results" default(20)
// @Param language query string false "Language filter"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/feed/popular/{genre} [get]
func (h *FeedHandler) GetPopularByGenre(c fiber.Ctx) error {
	titles, err := h.feed.GetPopularByGenre(c.Context(),
		c.Params("genre"), c.Query("language"), fiber.Query(c, "limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, titles)
}

// GetContinueWatching returns the user's partially watched episodes.
// @Summary Get continue-watching entries
// @Tags feed
// @Produce json
// @Param userId path string true "User ID"
// @Param limit query int false "Max results" default(10)
// @Success 200 {object} Response
// @Router /api/feed/continue/{userId} [get]
func (h *FeedHandler) GetContinueWatching(c fiber.Ctx) error {
	records, err := h.watch.GetContinueWatching(c.Context(),
		c.Params("userId"), fiber.Query(c, "limit", 10))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, records)
}

// Search performs a catalog search.
// @Summary Search the catalog
// @Tags feed
// @Produce json
// @Param q query string true "Query (min 2 characters)"
// @Param genre query string false "Genre filter"
// @Param language query string false "Language filter"
// @Param type query string false "Content type" Enums(movie,series,web-series)
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/feed/search [get]
func (h *FeedHandler) Search(c fiber.Ctx) error {
	params := models.SearchParams{
		Query:    c.Query("q"),
		Genre:    c.Query("genre"),
		Language: c.Query("language"),
		Type:     c.Query("type"),
		Page:     fiber.Query(c, "page", 1),
		Limit:    fiber.Query(c, "limit", 20),
		UserID:   c.Query("userId"),
	}

	result, err := h.feed.Search(c.Context(), params)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, result)
}

// GetFeatured returns the featured rail.
// @Summary Get featured titles
// @Tags feed
// @Produce json
// @Param limit query int false "Max results" default(20)
// @Success 200 {object} Response
// @Router /api/feed/featured [get]
func (h *FeedHandler) GetFeatured(c fiber.Ctx) error {
	titles, err := h.feed.GetFeatured(c.Context(), fiber.Query(c, "limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, titles)
}

// GetEditorsPicks returns the editors-pick rail.
// @Summary Get editors picks
// @Tags feed
// @Produce json
// @Param limit query int false "Max results" default(20)
// @Success 200 {object} Response
// @Router /api/feed/editors-picks [get]
func (h *FeedHandler) GetEditorsPicks(c fiber.Ctx) error {
	titles, err := h.feed.GetEditorsPicks(c.Context(), fiber.Query(c, "limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, titles)
}

// GetSmartPrefetch returns a binge-sized prefetch plan for a user and title.
// @Summary Get a smart prefetch plan
// @Tags feed
// @Produce json
// @Param userId path string true "User ID"
// @Param titleId path string true "Title ID"
// @Param seasonNumber query int false "Season the user is on" default(1)
// @Param currentEpisode query int false "Episode the user is on" default(1)
// @Success 200 {object} Response
// @Router /api/feed/prefetch/{userId}/{titleId} [get]
func (h *FeedHandler) GetSmartPrefetch(c fiber.Ctx) error {
	plan, err := h.prefetch.SmartPlan(c.Context(),
		c.Params("userId"), c.Params("titleId"),
		fiber.Query(c, "seasonNumber", 1), fiber.Query(c, "currentEpisode", 1))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, plan)
}
