package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams extracts page/limit query parameters, defaulting to 20 per page.
func GetPaginationParams(c echo.Context) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("limit"))
	return NewPaginationParams(page, pageSize)
}

// NewPaginationParams clamps page to >= 1 and pageSize to (0, 100].
func NewPaginationParams(page, pageSize int) PaginationParams {
	if page <= 0 {
		page = 1
	}

	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// Window returns the [start, end) bounds of the page inside a slice of length n.
func (p PaginationParams) Window(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.PageSize
	if end > n {
		end = n
	}
	return start, end
}
