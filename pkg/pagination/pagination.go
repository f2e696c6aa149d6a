// Package pagination reads limit/offset (or page) query parameters and wraps
// list results in the envelope every list endpoint returns.
package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

// FromContext reads limit and offset from the query string. The clinic list
// screens send a 1-based page instead; an explicit offset wins over it.
func FromContext(c echo.Context) Params {
	limit := queryInt(c, "limit")
	if limit <= 0 {
		limit = DefaultLimit
	}
	p := Params{Limit: lo.Min([]int{limit, MaxLimit})}

	if c.QueryParam("offset") != "" {
		p.Offset = queryInt(c, "offset")
	} else if page := queryInt(c, "page"); page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	p.Offset = lo.Max([]int{p.Offset, 0})
	return p
}

func (p Params) hasNext(total int) bool { return p.Offset+p.Limit < total }

// Page is the 1-based page the offset falls on.
func (p Params) Page() int { return p.Offset/p.Limit + 1 }

// Pages is the number of pages needed for total rows, at least one.
func (p Params) Pages(total int) int {
	return lo.Max([]int{(total + p.Limit - 1) / p.Limit, 1})
}

// Links returns self, next and previous links. Filters in query are kept;
// page, limit and offset are replaced.
func (p Params) Links(basePath string, query url.Values, total int) []Link {
	filters := lo.OmitByKeys(query, []string{"page", "limit", "offset"})
	at := func(offset int) string {
		q := make(url.Values, len(filters)+2)
		for k, v := range filters {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(p.Limit))
		q.Set("offset", strconv.Itoa(offset))
		return basePath + "?" + q.Encode()
	}

	links := []Link{{Relation: "self", URL: at(p.Offset)}}
	if p.hasNext(total) {
		links = append(links, Link{Relation: "next", URL: at(p.Offset + p.Limit)})
	}
	if p.Offset > 0 {
		links = append(links, Link{Relation: "previous", URL: at(lo.Max([]int{p.Offset - p.Limit, 0}))})
	}
	return links
}

type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// Response is the list envelope.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
	Links   []Link      `json:"links,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	p := Params{Limit: lo.Max([]int{limit, 1}), Offset: offset}
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Page:    p.Page(),
		Pages:   p.Pages(total),
		HasMore: p.hasNext(total),
	}
}

// WithLinks attaches navigation links built from the request's path and
// filters.
func (r *Response) WithLinks(c echo.Context) *Response {
	p := Params{Limit: r.Limit, Offset: r.Offset}
	r.Links = p.Links(c.Request().URL.Path, c.QueryParams(), r.Total)
	return r
}
