package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const maxPageLimit = 100

// Pagination holds pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset query params, also accepting page for offset-less clients.
func ParsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := parseInt(c.Query("limit"), defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset := parseInt(c.Query("offset"), -1)
	if offset < 0 {
		page := parseInt(c.Query("page", "1"), 1)
		if page <= 0 {
			page = 1
		}
		offset = (page - 1) * limit
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
