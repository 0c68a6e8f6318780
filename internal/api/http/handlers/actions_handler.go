package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	"github.com/spec-kit/field-service/pkg/util"
)

// ActionsHandler serves the generic write endpoint.
type ActionsHandler struct {
	writer *dispatch.Writer
}

// NewActionsHandler constructs handler.
func NewActionsHandler(writer *dispatch.Writer) *ActionsHandler {
	return &ActionsHandler{writer: writer}
}

// Post handles POST /api/actions.
func (h *ActionsHandler) Post(c *fiber.Ctx) error {
	var req dispatch.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Domain == "" || req.Action == "" {
		return util.NewValidationError("domain and action required", nil)
	}
	out, err := h.writer.Execute(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}
