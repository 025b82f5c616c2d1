package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/filters"
)

var (
	xssPattern       = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
	recommendationID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

type Config struct {
	MaxSearchLength     int
	MaxTagLength        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxSearchLength == 0 {
		cfg.MaxSearchLength = 256
	}
	if cfg.MaxTagLength == 0 {
		cfg.MaxTagLength = 256
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if (c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut) && len(c.Body()) > 0 {
			if !allowedContentType(c.Get(fiber.HeaderContentType), cfg.AllowedContentTypes) {
				return reject(c, fiber.StatusUnsupportedMediaType, "Unsupported content type")
			}
		}

		path := c.Path()

		if id, ok := recommendationIDFromPath(path); ok && !recommendationID.MatchString(id) {
			return reject(c, fiber.StatusBadRequest, "Invalid recommendation id")
		}

		switch {
		case c.Method() == fiber.MethodPut && (path == "/api/v1/filters/search" || path == "/api/v1/filters/dropdown-search"):
			var req struct {
				Term *string `json:"term"`
			}
			if err := c.BodyParser(&req); err != nil {
				return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
			}
			if req.Term == nil {
				return reject(c, fiber.StatusBadRequest, "term is required")
			}
			if len(*req.Term) > cfg.MaxSearchLength {
				return reject(c, fiber.StatusBadRequest, "Search term exceeds maximum length")
			}
			if xssPattern.MatchString(*req.Term) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", path),
				)
				return reject(c, fiber.StatusBadRequest, "Invalid search term")
			}

		case c.Method() == fiber.MethodPost && path == "/api/v1/filters/toggle":
			var req struct {
				Dimension string `json:"dimension"`
				Name      string `json:"name"`
			}
			if err := c.BodyParser(&req); err != nil {
				return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
			}
			if _, err := filters.ParseDimension(req.Dimension); err != nil {
				return reject(c, fiber.StatusBadRequest, "Unknown filter dimension")
			}
			if strings.TrimSpace(req.Name) == "" {
				return reject(c, fiber.StatusBadRequest, "Tag name is required")
			}
			if len(req.Name) > cfg.MaxTagLength {
				return reject(c, fiber.StatusBadRequest, "Tag name exceeds maximum length")
			}

		case c.Method() == fiber.MethodPost && path == "/api/v1/login":
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.BodyParser(&req); err != nil {
				return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
			}
			if strings.TrimSpace(req.Username) == "" || req.Password == "" {
				return reject(c, fiber.StatusBadRequest, "Username and password are required")
			}
		}

		return c.Next()
	}
}

// recommendationIDFromPath extracts the id from /api/v1/recommendations/:id/<action> and /api/v1/detail/:id.
func recommendationIDFromPath(path string) (string, bool) {
	if rest, ok := strings.CutPrefix(path, "/api/v1/detail/"); ok {
		return rest, true
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/recommendations/")
	if !ok {
		return "", false
	}
	id, action, found := strings.Cut(rest, "/")
	if !found || (action != "archive" && action != "unarchive") {
		return "", false
	}
	return id, true
}

func allowedContentType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
