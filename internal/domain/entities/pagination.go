package entities

// Pagination describes a page window over a counted result set
type Pagination struct {
	Page            int  `json:"page"`
	PageSize        int  `json:"page_size"`
	TotalCount      int  `json:"total_count"`
	TotalPages      int  `json:"total_pages"`
	HasNextPage     bool `json:"has_next_page"`
	HasPreviousPage bool `json:"has_previous_page"`
}

// TotalPages returns max(1, ceil(totalCount/pageSize))
func TotalPages(totalCount, pageSize int) int {
	if pageSize <= 0 || totalCount <= 0 {
		return 1
	}
	return (totalCount + pageSize - 1) / pageSize
}

// NewPagination builds pagination metadata for page of size pageSize
func NewPagination(page, pageSize, totalCount int) Pagination {
	if totalCount < 0 {
		totalCount = 0
	}
	totalPages := TotalPages(totalCount, pageSize)
	return Pagination{
		Page:            page,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// Offset returns the zero-based index of the first row on the page
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
