package pagination

// Page is a 1-based page/limit request.
type Page struct {
	Number int
	Limit  int
}

// PageInfo is echoed back with offset listings.
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func (p Page) Normalize() Page {
	return Page{Number: max(p.Number, 1), Limit: NormalizeLimit(p.Limit)}
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Limit
}

func NewPageInfo(p Page, total int64) PageInfo {
	n := p.Normalize()
	limit := int64(n.Limit)
	return PageInfo{
		Page:  n.Number,
		Limit: n.Limit,
		Total: total,
		Pages: int((total + limit - 1) / limit),
	}
}
