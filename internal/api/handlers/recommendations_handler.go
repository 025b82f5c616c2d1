package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aws-agent/console/internal/dashboard"
	"github.com/aws-agent/console/internal/listing"
)

const maxHistory = 100

type RecommendationsHandler struct {
	session *dashboard.Session
}

func NewRecommendationsHandler(session *dashboard.Session) *RecommendationsHandler {
	return &RecommendationsHandler{
		session: session,
	}
}

type listResponse struct {
	listing.State
	Pending []string `json:"pending"`
}

// controller picks the list named by ?view=, defaulting to the route being shown.
func (h *RecommendationsHandler) controller(c *fiber.Ctx) (*listing.Controller, error) {
	raw := c.Query("view")
	if raw == "" {
		return h.session.Controller(h.session.View()), nil
	}
	view, err := listing.ParseView(raw)
	if err != nil {
		return nil, err
	}
	return h.session.Controller(view), nil
}

func (h *RecommendationsHandler) respond(c *fiber.Ctx, state listing.State) error {
	return c.JSON(listResponse{
		State:   state,
		Pending: h.session.Coordinator().PendingIDs(),
	})
}

func (h *RecommendationsHandler) List(c *fiber.Ctx) error {
	ctrl, err := h.controller(c)
	if err != nil {
		return badRequest(c, "Unknown view")
	}
	return h.respond(c, ctrl.Load(c.UserContext()))
}

func (h *RecommendationsHandler) More(c *fiber.Ctx) error {
	ctrl, err := h.controller(c)
	if err != nil {
		return badRequest(c, "Unknown view")
	}
	state, _ := ctrl.RequestMore(c.UserContext())
	return h.respond(c, state)
}

// Sentinel receives visibility changes of rendered items; the last one triggers the next page.
func (h *RecommendationsHandler) Sentinel(c *fiber.Ctx) error {
	ctrl, err := h.controller(c)
	if err != nil {
		return badRequest(c, "Unknown view")
	}

	var req struct {
		ID      string `json:"id"`
		Visible bool   `json:"visible"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ID == "" {
		return badRequest(c, "id is required")
	}

	state, _ := ctrl.Intersect(c.UserContext(), req.ID, req.Visible)
	return h.respond(c, state)
}

func (h *RecommendationsHandler) Archive(c *fiber.Ctx) error {
	result, err := h.session.Archive(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *RecommendationsHandler) Unarchive(c *fiber.Ctx) error {
	result, err := h.session.Unarchive(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *RecommendationsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxHistory {
		return badRequest(c, "limit must be between 1 and 100")
	}

	records, err := h.session.RecentMutations(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"mutations": records,
	})
}
