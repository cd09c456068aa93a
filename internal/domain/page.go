package domain

const (
	defaultPage  = 1
	defaultLimit = 10
)

// PageMeta is the pagination block shared by every paged listing.
type PageMeta struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	PageCount   int  `json:"pageCount"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Page is one page of results plus its metadata.
type Page[T any] struct {
	Items []T      `json:"data"`
	Meta  PageMeta `json:"meta"`
}

// ClampPage normalizes page and limit: values below 1 fall back to the
// defaults (page 1, limit 10).
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

// NewPageMeta computes the metadata for a listing. pageCount never drops
// below 1, so an empty result still reads as a single empty page.
func NewPageMeta(total, page, limit int) PageMeta {
	pageCount := (total + limit - 1) / limit
	if pageCount < 1 {
		pageCount = 1
	}
	return PageMeta{
		Total:       total,
		Page:        page,
		Limit:       limit,
		PageCount:   pageCount,
		HasNextPage: page < pageCount,
		HasPrevPage: page > 1 && total > 0,
	}
}

// NewPage assembles a page, normalizing a nil item slice so responses always
// serialize as an array.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewPageMeta(total, page, limit)}
}
