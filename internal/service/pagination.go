package service

// PageParams are 1-based page/size query parameters, capped like the
// original API (size 1..100, default 5).
type PageParams struct {
	Page int
	Size int
}

func (p PageParams) normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = 5
	}
	if p.Size > 100 {
		p.Size = 100
	}
	return p
}

func (p PageParams) offset() int { return (p.Page - 1) * p.Size }

// Page is one page of results plus totals.
type Page[T any] struct {
	Result      []T   `json:"result"`
	CurrentPage int   `json:"current_page"`
	Size        int   `json:"size"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
}

func newPage[T any](items []T, params PageParams, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(params.Size) - 1) / int64(params.Size))
	return &Page[T]{
		Result:      items,
		CurrentPage: params.Page,
		Size:        params.Size,
		TotalPages:  pages,
		TotalItems:  total,
	}
}
