package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aws-agent/console/internal/filters"
	"github.com/aws-agent/console/internal/gateway"
)

type FiltersHandler struct {
	store *filters.Store
}

func NewFiltersHandler(store *filters.Store) *FiltersHandler {
	return &FiltersHandler{
		store: store,
	}
}

type filtersResponse struct {
	Selection         filters.Selection  `json:"selection"`
	ActiveFilterCount int                `json:"activeFilterCount"`
	DropdownTerm      string             `json:"dropdownTerm"`
	Vocabulary        filters.Vocabulary `json:"vocabulary"`
	Error             string             `json:"error,omitempty"`
}

// Get returns the selection with the tag vocabulary narrowed by the debounced dropdown text.
// A failed vocabulary load still answers 200 with empty lists and the error message.
func (h *FiltersHandler) Get(c *fiber.Ctx) error {
	vocabulary, err := h.store.DropdownVocabulary(c.UserContext())

	resp := filtersResponse{
		Selection:         h.store.Selection(),
		ActiveFilterCount: h.store.ActiveFilterCount(),
		DropdownTerm:      h.store.DebouncedFilterSearchTerm(),
		Vocabulary:        vocabulary,
	}
	if err != nil {
		resp.Error = gateway.Message(err)
	}
	return c.JSON(resp)
}

func (h *FiltersHandler) SetSearch(c *fiber.Ctx) error {
	term, err := parseTerm(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	h.store.SetSearchTerm(term)
	return c.JSON(h.store.Selection())
}

func (h *FiltersHandler) SetDropdownSearch(c *fiber.Ctx) error {
	term, err := parseTerm(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	h.store.SetFilterSearchTerm(term)
	return c.JSON(h.store.Selection())
}

func (h *FiltersHandler) Toggle(c *fiber.Ctx) error {
	var req struct {
		Dimension string `json:"dimension"`
		Name      string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	dim, err := filters.ParseDimension(req.Dimension)
	if err != nil {
		return badRequest(c, "Unknown filter dimension")
	}
	if req.Name == "" {
		return badRequest(c, "Tag name is required")
	}

	selected, err := h.store.Toggle(dim, req.Name)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"selected":          selected,
		"selection":         h.store.Selection(),
		"activeFilterCount": h.store.ActiveFilterCount(),
	})
}

func (h *FiltersHandler) Clear(c *fiber.Ctx) error {
	h.store.ClearAllFilters()
	return c.JSON(h.store.Selection())
}

func parseTerm(c *fiber.Ctx) (string, error) {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.BodyParser(&req); err != nil {
		return "", err
	}
	return req.Term, nil
}
