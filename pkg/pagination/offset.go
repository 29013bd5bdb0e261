package pagination

import (
	"context"
	"fmt"
)

// OffsetPage is one page of a limit/offset collection such as the REST
// record list endpoints.
type OffsetPage[T any] struct {
	Items        []T
	Offset       int
	Count        int
	TotalResults int
	HasMore      bool
}

// OffsetFetcher fetches the page that starts at offset.
type OffsetFetcher[T any] func(ctx context.Context, limit, offset int) (*OffsetPage[T], error)

// CollectOffsetPages reads every page of an offset-paged collection in order.
func CollectOffsetPages[T any](ctx context.Context, limit int, fetch OffsetFetcher[T]) ([]T, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", limit)
	}

	var items []T
	offset := 0
	for {
		page, err := fetch(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch offset %d: %w", offset, err)
		}

		items = append(items, page.Items...)
		if !page.HasMore || len(page.Items) == 0 {
			return items, nil
		}
		offset += len(page.Items)
	}
}
