package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	"github.com/spec-kit/field-service/internal/api/dto"
)

// DataHandler serves the generic read endpoint.
type DataHandler struct {
	reader *dispatch.Reader
}

// NewDataHandler constructs handler.
func NewDataHandler(reader *dispatch.Reader) *DataHandler {
	return &DataHandler{reader: reader}
}

// Get handles GET /api/data.
func (h *DataHandler) Get(c *fiber.Ctx) error {
	req, err := dto.ReadRequestFromQuery(c.Queries())
	if err != nil {
		return err
	}
	out, err := h.reader.Read(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}
