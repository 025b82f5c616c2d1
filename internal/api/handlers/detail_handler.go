package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aws-agent/console/internal/dashboard"
)

type DetailHandler struct {
	session *dashboard.Session
}

func NewDetailHandler(session *dashboard.Session) *DetailHandler {
	return &DetailHandler{
		session: session,
	}
}

func (h *DetailHandler) Get(c *fiber.Ctx) error {
	rec, ok := h.session.Detail()
	if !ok {
		return c.JSON(fiber.Map{"open": false})
	}
	return c.JSON(fiber.Map{
		"open":           true,
		"recommendation": rec,
	})
}

func (h *DetailHandler) Open(c *fiber.Ctx) error {
	rec, err := h.session.OpenDetail(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"open":           true,
		"recommendation": rec,
	})
}

func (h *DetailHandler) Close(c *fiber.Ctx) error {
	h.session.CloseDetail()
	return c.JSON(fiber.Map{"open": false})
}
