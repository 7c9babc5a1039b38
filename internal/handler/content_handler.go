package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/service"
)

// ContentHandler handles HTTP requests for title and episode reads.
type ContentHandler struct {
	feed *service.FeedService
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(feed *service.FeedService) *ContentHandler {
	return &ContentHandler{feed: feed}
}

// GetTitle returns one title with the requesting user's progress overlay.
// @Summary Get title details
// @Tags content
// @Produce json
// @Param titleId path string true "Title ID"
// @Param userId query string false "User ID for progress overlay"
// @Param region query string false "Client region code for geo restriction"
// @Success 200 {object} Response
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/content/{titleId} [get]
func (h *ContentHandler) GetTitle(c fiber.Ctx) error {
	details, err := h.feed.GetTitleDetails(c.Context(), c.Params("titleId"),
		c.Query("userId"), c.Query("region"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, details)
}

// GetEpisodes lists a title's episodes in sequence order.
// @Summary List episodes of a title
// @Tags content
// @Produce json
// @Param titleId path string true "Title ID"
// @Param seasonNumber query int false "Season filter (0 = all)"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param userId query string false "User ID for progress overlay"
// @Success 200 {object} Response
// @Router /api/content/{titleId}/episodes [get]
func (h *ContentHandler) GetEpisodes(c fiber.Ctx) error {
	page, err := h.feed.GetEpisodes(c.Context(), c.Params("titleId"),
		fiber.Query(c, "seasonNumber", 0),
		fiber.Query(c, "page", 1),
		fiber.Query(c, "limit", 20),
		c.Query("userId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, page)
}

// GetSimilar returns titles related to the source title.
// @Summary Get similar titles
// @Tags content
// @Produce json
// @Param titleId path string true "Title ID"
// @Param limit query int false "Max results" default(10)
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/content/{titleId}/similar [get]
func (h *ContentHandler) GetSimilar(c fiber.Ctx) error {
	titles, err := h.feed.GetSimilar(c.Context(), c.Params("titleId"), fiber.Query(c, "limit", 10))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, titles)
}

// GetEpisode returns one episode with a stream URL chosen for the caller.
// @Summary Get episode details
// @Tags content
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param userId query string false "User ID for progress overlay"
// @Param quality query string false "Preferred quality" Enums(480p,720p,1080p,4k)
// @Param region query string false "Client region code for geo restriction"
// @Success 200 {object} Response
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/episodes/{episodeId} [get]
func (h *ContentHandler) GetEpisode(c fiber.Ctx) error {
	details, err := h.feed.GetEpisodeDetails(c.Context(), c.Params("episodeId"),
		c.Query("userId"), c.Query("quality"), c.Query("region"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, details)
}
