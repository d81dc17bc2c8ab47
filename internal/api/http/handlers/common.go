package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/studio-desk/internal/auth"
	"github.com/spec-kit/studio-desk/internal/domain"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthenticated("authentication required")
	}
	return actor, nil
}

// pagination reads page and page_size, returning limit and offset.
func pagination(c *fiber.Ctx) (int, int, error) {
	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := positiveQuery(c, "page_size", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size, nil
}

func positiveQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, apperrors.NewValidationError(key+" must be a positive integer", map[string]any{"field": key})
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return &v
	}
	return nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}
