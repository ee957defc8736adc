package services

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// PageQuery selects a slice of a listing.
type PageQuery struct {
	Offset int
	Limit  int
}

// ParsePageQuery reads offset/limit, or page/size when no offset is given.
// Invalid values fall back to the first page of DefaultPageSize items.
func ParsePageQuery(qp url.Values) PageQuery {
	q := PageQuery{Limit: DefaultPageSize}

	if n, ok := positive(qp.Get("limit")); ok {
		q.Limit = n
	} else if n, ok := positive(qp.Get("size")); ok {
		q.Limit = n
	}
	q.Limit = min(q.Limit, MaxPageSize)

	if v := qp.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			q.Offset = n
		}
		return q
	}
	if page, ok := positive(qp.Get("page")); ok {
		q.Offset = (page - 1) * q.Limit
	}
	return q
}

func positive(v string) (int, bool) {
	n, err := strconv.Atoi(v)
	return n, err == nil && n > 0
}

// Page is one slice of a listing with its position.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Paginate slices items according to q.
func Paginate[T any](items []T, q PageQuery) Page[T] {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	total := len(items)
	offset := min(max(q.Offset, 0), total)
	end := min(offset+limit, total)

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	if totalPages == 0 {
		totalPages = 1
	}

	sliced := make([]T, end-offset)
	copy(sliced, items[offset:end])
	return Page[T]{
		Items:       sliced,
		Page:        offset/limit + 1,
		Size:        limit,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     end < total,
		HasPrevious: offset > 0,
	}
}
