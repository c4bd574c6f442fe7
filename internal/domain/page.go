package domain

const DefaultPageSize = 10

var allowedPageSizes = map[int]bool{5: true, 10: true, 20: true, 50: true}

type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to 1-based numbering and the supported page sizes.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if !allowedPageSizes[p.Size] {
		p.Size = DefaultPageSize
	}
	return p
}

type Paginated[T any] struct {
	Items      []T `json:"items"`
	PageIndex  int `json:"page_index"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func (p Paginated[T]) HasPrevious() bool { return p.PageIndex > 1 }
func (p Paginated[T]) HasNext() bool     { return p.PageIndex < p.TotalPages }

// Paginate slices an already loaded collection.
func Paginate[T any](all []T, page Page) Paginated[T] {
	page = page.Normalize()
	total := len(all)
	pages := (total + page.Size - 1) / page.Size

	start := (page.Number - 1) * page.Size
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	items := make([]T, end-start)
	copy(items, all[start:end])
	return Paginated[T]{
		Items:      items,
		PageIndex:  page.Number,
		PageSize:   page.Size,
		TotalCount: total,
		TotalPages: pages,
	}
}
