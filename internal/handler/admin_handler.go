package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/models"
	"shortreel-backend/internal/service"
)

// AdminHandler handles catalog writes from the admin endpoints. Routes using
// it sit behind the JWT guard.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// SaveTitle creates or updates a title.
// @Summary Upsert a title
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.Title true "Title"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/titles [put]
func (h *AdminHandler) SaveTitle(c fiber.Ctx) error {
	var title models.Title
	if err := c.Bind().Body(&title); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.admin.SaveTitle(c.Context(), &title); err != nil {
		return fail(c, err)
	}
	return okMessage(c, fiber.Map{"id": title.ID}, "title saved")
}

// SaveEpisode creates or updates an episode.
// @Summary Upsert an episode
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.Episode true "Episode"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/episodes [put]
func (h *AdminHandler) SaveEpisode(c fiber.Ctx) error {
	var episode models.Episode
	if err := c.Bind().Body(&episode); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.admin.SaveEpisode(c.Context(), &episode); err != nil {
		return fail(c, err)
	}
	return okMessage(c, fiber.Map{"id": episode.ID}, "episode saved")
}
