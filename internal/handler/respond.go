package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/apperr"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse documents the failure shape in swagger annotations.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func ok(c fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

func okMessage(c fiber.Ctx, data any, message string) error {
	return c.JSON(Response{Success: true, Data: data, Message: message})
}

// fail maps an error to its HTTP status. Internal errors are logged with the
// route; the client only sees the sanitized message.
func fail(c fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err)
	}
	return c.Status(status).JSON(Response{Success: false, Error: apperr.Message(err)})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{Success: false, Error: msg})
}
