package pagination

// Meta describes where a window sits in the full result set.
type Meta struct {
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	Shown       int  `json:"shown"`
	HasNext     bool `json:"has_next"`
}

// NewMeta builds metadata for a window of shown items out of total.
func NewMeta(p Params, total, shown int) Meta {
	offset, size := p.OffsetLimit()
	if size == 0 {
		size = total
	}

	meta := Meta{PageSize: size, TotalItems: total, Shown: shown, CurrentPage: 1}
	if size > 0 {
		meta.CurrentPage = offset/size + 1
		meta.TotalPages = (total + size - 1) / size
	}
	meta.HasNext = offset+shown < total
	return meta
}
