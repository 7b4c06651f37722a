package databases

import "go.mongodb.org/mongo-driver/mongo/options"

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Paginate turns a 1-based page and a page size into find options
type Paginate struct {
	limit int64
	page  int64
}

// NewPaginate clamps limit to (0, maxPageLimit] and page to >= 1
func NewPaginate(limit, page int) *Paginate {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page < 1 {
		page = 1
	}
	return &Paginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

// FindOptions returns the limit/skip options for the page
func (mp *Paginate) FindOptions() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}
