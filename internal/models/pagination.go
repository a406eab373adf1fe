package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// PageQuery is the common page/size pair accepted by list endpoints.
type PageQuery struct {
	Page     int
	PageSize int
}

// Normalize clamps the page parameters and returns the SQL offset.
func (q *PageQuery) Normalize() int {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return (q.Page - 1) * q.PageSize
}

// Pagination converts the query and a total count into response metadata.
func (q PageQuery) Pagination(total int) *Pagination {
	return &Pagination{Page: q.Page, PageSize: q.PageSize, TotalCount: total}
}
