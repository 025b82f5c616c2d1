package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/dashboard"
	"github.com/aws-agent/console/internal/listing"
	"github.com/aws-agent/console/pkg/logger"
)

type SessionHandler struct {
	session *dashboard.Session
}

func NewSessionHandler(session *dashboard.Session) *SessionHandler {
	return &SessionHandler{
		session: session,
	}
}

func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return badRequest(c, "Username and password are required")
	}

	if err := h.session.Login(c.UserContext(), req.Username, req.Password); err != nil {
		return respondError(c, err)
	}

	return c.JSON(h.session.Info())
}

func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	if err := h.session.Logout(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.session.Info())
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	return c.JSON(h.session.Info())
}

func (h *SessionHandler) SetView(c *fiber.Ctx) error {
	var req struct {
		View string `json:"view"`
	}

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	view, err := listing.ParseView(req.View)
	if err != nil {
		return badRequest(c, "Unknown view")
	}

	h.session.SetView(view)
	return c.JSON(h.session.Info())
}
