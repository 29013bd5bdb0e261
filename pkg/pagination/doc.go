// Package pagination fetches complete result sets from session-bound SuiteTalk
// search cursors.
//
// A search is opened once and then read page by page with the search id the
// remote issued for page 1. Pages of one search are fetched strictly in order
// and never concurrently. When a page times out the executor halves the page
// size and recomputes the page index so that the next request starts at or
// before the first record not yet returned:
//
//	records consumed = size * (index - 1)
//	next index       = records consumed / newSize + 1
//
// Records at the boundary between the old and new page grid may be returned
// twice; no deduplication is performed. A timeout at page size 1 ends the
// search with ErrPageSizeExhausted.
//
// Example usage:
//
//	exec := pagination.NewExecutor[soap.SearchRecord](suitetalkClient, logger)
//	results := exec.Search(ctx, query, 100, mark)
//	for rec, err := range results.All() {
//		if err != nil {
//			return err
//		}
//		handle(rec)
//	}
//
// Independent searches can run in parallel with Batch, and REST list
// endpoints that page by limit and offset are read with CollectOffsetPages.
package pagination
