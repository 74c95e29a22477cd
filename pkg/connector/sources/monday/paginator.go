package monday

import (
	"context"
	"iter"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

// Row is one decoded object from an API response
type Row = map[string]interface{}

// PageFunc fetches the page at a zero-based index
type PageFunc func(ctx context.Context, page int) ([]Row, error)

// Paginate yields the rows of consecutive pages starting at page 0. It stops
// after the first page holding fewer than pageSize rows, so a full last page
// costs one extra request that comes back empty. The sequence is lazy: no
// request is made until it is ranged over, each range starts again at page 0,
// and breaking out of the loop stops further requests. The first error ends
// the sequence.
func Paginate(ctx context.Context, fetch PageFunc, pageSize int) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if pageSize < 1 {
			yield(nil, errors.Newf(errors.ErrorTypeConfig, "page size must be positive, got %d", pageSize))
			return
		}
		for page := 0; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, errors.Wrap(err, errors.ErrorTypeTimeout, "pagination cancelled"))
				return
			}
			rows, err := fetch(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if len(rows) < pageSize {
				return
			}
		}
	}
}

// Single yields the rows of one unpaginated request
func Single(ctx context.Context, fetch PageFunc) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled"))
			return
		}
		rows, err := fetch(ctx, 0)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}
