package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/models"
	"shortreel-backend/internal/service"
)

// UserHandler handles HTTP requests for user profiles and preferences.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GetProfile returns the user's profile and aggregates.
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/users/{userId} [get]
func (h *UserHandler) GetProfile(c fiber.Ctx) error {
	user, err := h.users.GetProfile(c.Context(), c.Params("userId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, user)
}

// UpdatePreferences replaces the user's viewing preferences.
// @Summary Update viewing preferences
// @Tags users
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body models.UserPreferences true "Preferences"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/users/{userId}/preferences [put]
func (h *UserHandler) UpdatePreferences(c fiber.Ctx) error {
	var prefs models.UserPreferences
	if err := c.Bind().Body(&prefs); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.users.UpdatePreferences(c.Context(), c.Params("userId"), prefs); err != nil {
		return fail(c, err)
	}
	return okMessage(c, nil, "preferences updated")
}

type swipeRequest struct {
	TitleID   string `json:"titleId"`
	Direction string `json:"direction"`
}

// RecordSwipe records a swipe on a feed card.
// @Summary Record a swipe
// @Tags users
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body swipeRequest true "Swipe"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/users/{userId}/swipe [post]
func (h *UserHandler) RecordSwipe(c fiber.Ctx) error {
	var req swipeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Direction != "left" && req.Direction != "right" {
		return badRequest(c, "direction must be left or right")
	}

	if err := h.users.RecordSwipe(c.Context(), c.Params("userId"), req.TitleID, req.Direction == "right"); err != nil {
		return fail(c, err)
	}
	return okMessage(c, nil, "swipe recorded")
}
