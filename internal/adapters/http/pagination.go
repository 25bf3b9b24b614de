package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Page is one slice of a listed collection.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination is the offset window of a Page.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// pageLimit reads ?limit, falling back to def when absent or outside 1..100.
func pageLimit(c *fiber.Ctx, def int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 || limit > 100 {
		return def
	}
	return limit
}

// pageWindow reads ?offset and ?limit.
func pageWindow(c *fiber.Ctx, def int) Pagination {
	return Pagination{Offset: max(c.QueryInt("offset", 0), 0), Limit: pageLimit(c, def)}
}

// sendPage writes items with RFC 8288 navigation links. A nil slice is sent
// as an empty array.
func sendPage[T any](c *fiber.Ctx, items []T, p Pagination) error {
	if items == nil {
		items = []T{}
	}

	rel := func(offset int, name string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, c.Path(), offset, p.Limit, name)
	}
	links := []string{rel(0, "first")}
	if p.Offset > 0 {
		links = append(links, rel(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, rel(p.Offset+p.Limit, "next"))
	}
	links = append(links, rel(max(p.Total-p.Limit, 0), "last"))
	c.Set("Link", strings.Join(links, ", "))

	return c.JSON(Page[T]{Data: items, Pagination: p})
}
