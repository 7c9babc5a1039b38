package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/service"
)

// WatchHandler handles HTTP requests for playback progress and engagement.
type WatchHandler struct {
	watch *service.WatchService
}

// NewWatchHandler creates a new WatchHandler.
func NewWatchHandler(watch *service.WatchService) *WatchHandler {
	return &WatchHandler{watch: watch}
}

type startWatchingRequest struct {
	UserID     string `json:"userId"`
	Quality    string `json:"quality"`
	WatchedVia string `json:"watchedVia"`
}

// StartWatching begins or resumes playback of an episode.
// @Summary Start watching an episode
// @Tags watch
// @Accept json
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param request body startWatchingRequest true "Session info"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/episodes/{episodeId}/start [post]
func (h *WatchHandler) StartWatching(c fiber.Ctx) error {
	var req startWatchingRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}

	rec, err := h.watch.StartWatching(c.Context(), req.UserID, c.Params("episodeId"),
		req.Quality, req.WatchedVia)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rec)
}

type progressRequest struct {
	UserID string `json:"userId"`
	service.ProgressUpdate
}

// UpdateProgress applies a playback progress write.
// @Summary Update watch progress
// @Tags watch
// @Accept json
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param request body progressRequest true "Progress"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/episodes/{episodeId}/progress [put]
func (h *WatchHandler) UpdateProgress(c fiber.Ctx) error {
	var req progressRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}

	rec, err := h.watch.UpdateProgress(c.Context(), req.UserID, c.Params("episodeId"), req.ProgressUpdate)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rec)
}

type completeRequest struct {
	UserID         string `json:"userId"`
	FinalPosition  int    `json:"finalPosition"`
	TotalWatchTime int64  `json:"totalWatchTime"`
}

// MarkCompleted marks an episode as finished.
// @Summary Mark an episode completed
// @Tags watch
// @Accept json
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param request body completeRequest true "Final state"
// @Success 200 {object} Response
// @Router /api/episodes/{episodeId}/complete [post]
func (h *WatchHandler) MarkCompleted(c fiber.Ctx) error {
	var req completeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}

	rec, err := h.watch.MarkCompleted(c.Context(), req.UserID, c.Params("episodeId"),
		req.FinalPosition, req.TotalWatchTime)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rec)
}

type likeRequest struct {
	UserID string `json:"userId"`
}

// ToggleLike flips the user's like on an episode.
// @Summary Toggle a like
// @Tags watch
// @Accept json
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param request body likeRequest true "User"
// @Success 200 {object} Response
// @Router /api/episodes/{episodeId}/like [post]
func (h *WatchHandler) ToggleLike(c fiber.Ctx) error {
	var req likeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}

	liked, likes, err := h.watch.ToggleLike(c.Context(), req.UserID, c.Params("episodeId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"liked": liked, "total_likes": likes})
}

type shareRequest struct {
	UserID      string `json:"userId"`
	ShareMethod string `json:"shareMethod"`
}

// Share records a share of an episode.
// @Summary Share an episode
// @Tags watch
// @Accept json
// @Produce json
// @Param episodeId path string true "Episode ID"
// @Param request body shareRequest true "Share info"
// @Success 200 {object} Response
// @Router /api/episodes/{episodeId}/share [post]
func (h *WatchHandler) Share(c fiber.Ctx) error {
	var req shareRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}

	if err := h.watch.Share(c.Context(), req.UserID, c.Params("episodeId"), req.ShareMethod); err != nil {
		return fail(c, err)
	}
	return okMessage(c, nil, "shared")
}

// GetWatchlist returns the user's watch records.
// @Summary Get a user's watchlist
// @Tags watchlist
// @Produce json
// @Param userId path string true "User ID"
// @Param status query string false "Status filter" Enums(watching,paused,completed,dropped)
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} Response
// @Router /api/watchlist/{userId} [get]
func (h *WatchHandler) GetWatchlist(c fiber.Ctx) error {
	records, total, err := h.watch.GetWatchlist(c.Context(), c.Params("userId"),
		c.Query("status"), fiber.Query(c, "page", 1), fiber.Query(c, "limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"records": records, "total": total})
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// Rate stores a 1..5 rating for a title the user has watched.
// @Summary Rate a title
// @Tags watchlist
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param titleId path string true "Title ID"
// @Param request body rateRequest true "Rating"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/watchlist/{userId}/{titleId}/rate [post]
func (h *WatchHandler) Rate(c fiber.Ctx) error {
	var req rateRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	avg, count, err := h.watch.SetRating(c.Context(), c.Params("userId"), c.Params("titleId"), req.Rating)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"average_rating": avg, "total_ratings": count})
}

type clearHistoryRequest struct {
	TitleID       string `json:"titleId"`
	OlderThanDays int    `json:"older_than_days"`
}

// ClearHistory bulk deletes the user's watch records.
// @Summary Clear watch history
// @Tags watchlist
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body clearHistoryRequest false "Scope"
// @Success 200 {object} Response
// @Router /api/watchlist/{userId}/clear [delete]
func (h *WatchHandler) ClearHistory(c fiber.Ctx) error {
	var req clearHistoryRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	deleted, err := h.watch.ClearHistory(c.Context(), c.Params("userId"), req.TitleID, req.OlderThanDays)
	if err != nil {
		return fail(c, err)
	}
	return okMessage(c, fiber.Map{"deleted": deleted}, "history cleared")
}
