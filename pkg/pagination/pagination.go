package pagination

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit far from integer overflow.
	MaxPage = 100000
)

// Params holds page-based pagination parameters.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// New clamps page and limit into valid ranges and computes the offset.
// Non-positive values fall back to the defaults; page and limit are capped
// at MaxPage and MaxLimit.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Meta describes a page of results.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewMeta computes page metadata for total matching records.
func NewMeta(total int, params Params) Meta {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = total / params.Limit
		if total%params.Limit > 0 {
			totalPages++
		}
	}
	return Meta{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}
}
