package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is an offset window over a newest-first listing.
type Page struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize clamps the window to [1, MaxLimit] with a non-negative offset.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type PageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Trim drops the look-ahead row fetched with Limit+1 and reports whether more rows exist.
func Trim[T any](items []T, page Page) ([]T, PageInfo) {
	info := PageInfo{Limit: page.Limit, Offset: page.Offset}
	if len(items) > page.Limit {
		info.HasMore = true
		items = items[:page.Limit]
	}
	return items, info
}
