package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request. PageIndex
// is 1-based.
type Params struct {
	PageIndex int
	PageSize  int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	page, _ := strconv.Atoi(c.QueryParam("pageIndex"))
	if page < 1 {
		page = 1
	}

	return Params{PageIndex: page, PageSize: size}
}

// Offset returns the index of the first item of the page.
func (p Params) Offset() int {
	return (p.PageIndex - 1) * p.PageSize
}

// Window returns the [start, end) bounds of the page within total items.
func (p Params) Window(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.PageIndex < TotalPages(total, p.PageSize)
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.PageIndex > 1
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Response wraps a paginated API response in the success envelope.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	TotalCount int         `json:"totalCount"`
	TotalPages int         `json:"totalPages"`
	PageIndex  int         `json:"pageIndex"`
	PageSize   int         `json:"pageSize"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Success:    true,
		Data:       data,
		TotalCount: total,
		TotalPages: TotalPages(total, p.PageSize),
		PageIndex:  p.PageIndex,
		PageSize:   p.PageSize,
	}
}
