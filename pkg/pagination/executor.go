package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/Sternrassler/suitetalk-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrSearchFailed is returned when the remote reports a non-success status
	// for a page.
	ErrSearchFailed = errors.New("remote search failed")

	// ErrPageSizeExhausted is returned when a page of size 1 still times out.
	ErrPageSizeExhausted = errors.New("page size exhausted")

	// ErrMissingSearchID is returned when a multi-page result arrives without
	// a cursor handle.
	ErrMissingSearchID = errors.New("multi-page search returned no search id")

	// ErrSequenceConsumed is returned when Results is iterated a second time.
	ErrSequenceConsumed = errors.New("search results already consumed")
)

// Prometheus metrics for paginated searches.
var (
	searchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suitetalk_search_pages_total",
		Help: "Total number of search pages fetched successfully",
	})

	searchPageShrinksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suitetalk_search_page_shrinks_total",
		Help: "Total number of page size reductions after a page timeout",
	})

	searchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitetalk_search_failures_total",
		Help: "Total number of searches that ended in an error by reason",
	}, []string{"reason"})
)

// Record is one raw record of a search page. Its contents are not interpreted.
type Record struct {
	Type       string
	InternalID string
	ExternalID string

	// Raw holds the record's native payload.
	Raw []byte
}

// Page is one page of a remote search cursor.
type Page struct {
	Success bool

	// StatusDetail carries the remote's message when Success is false.
	StatusDetail string

	SearchID     string
	TotalRecords int
	TotalPages   int
	PageIndex    int
	PageSize     int
	Records      []Record
}

// PageState tracks the position of a logical search on its cursor.
type PageState struct {
	SearchID   string
	PageIndex  int
	PageSize   int
	TotalPages int
}

// PageFetcher fetches single pages of a remote search. Implementations apply
// admission control and retries for transient errors, but must surface
// per-attempt timeouts as errors whose Timeout method returns true.
type PageFetcher[Q any] interface {
	// FetchFirst issues the initial search and returns page 1.
	FetchFirst(ctx context.Context, query Q, pageSize int, mark string) (*Page, error)

	// FetchMore returns page pageIndex of an open cursor.
	FetchMore(ctx context.Context, searchID string, pageIndex, pageSize int, mark string) (*Page, error)
}

// SearchError is the terminal error of a logical search.
type SearchError struct {
	Mark  string
	State PageState
	Err   error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("search %s failed at page %d (size %d): %v",
		e.Mark, e.State.PageIndex, e.State.PageSize, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// Executor runs logical searches page by page against a remote cursor.
type Executor[Q any] struct {
	fetcher PageFetcher[Q]
	logger  zerolog.Logger
}

// NewExecutor creates a search executor.
func NewExecutor[Q any](fetcher PageFetcher[Q], logger zerolog.Logger) *Executor[Q] {
	return &Executor[Q]{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Search prepares a logical search. No request is made until the returned
// Results is iterated.
func (e *Executor[Q]) Search(ctx context.Context, query Q, initialPageSize int, mark string) *Results {
	if initialPageSize < 1 {
		initialPageSize = 1
	}

	return &Results{
		run: func(yield func(Record, error) bool) {
			e.run(ctx, query, initialPageSize, mark, yield)
		},
	}
}

// Results is a lazy, single-use sequence of search records.
type Results struct {
	run      func(yield func(Record, error) bool)
	consumed atomic.Bool
}

// All returns the record sequence. Pages are fetched as iteration advances;
// stopping early abandons the remaining pages. A failed search yields one
// final error. Iterating a second time yields ErrSequenceConsumed.
func (r *Results) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(Record{}, ErrSequenceConsumed)
			return
		}
		r.run(yield)
	}
}

// Collect drains the sequence. On error the records read so far are
// discarded.
func (r *Results) Collect() ([]Record, error) {
	var records []Record
	for rec, err := range r.All() {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e *Executor[Q]) run(ctx context.Context, query Q, pageSize int, mark string, yield func(Record, error) bool) {
	state := PageState{PageIndex: 1, PageSize: pageSize}
	logger := logging.WithMark(e.logger, mark)

	fail := func(reason string, err error) {
		searchFailuresTotal.WithLabelValues(reason).Inc()
		logger.Warn().
			Err(err).
			Str("search_id", state.SearchID).
			Int("page_index", state.PageIndex).
			Int("page_size", state.PageSize).
			Msg("Search failed")
		yield(Record{}, &SearchError{Mark: mark, State: state, Err: err})
	}

	for {
		var (
			page *Page
			err  error
		)
		if state.SearchID == "" {
			page, err = e.fetcher.FetchFirst(ctx, query, state.PageSize, mark)
		} else {
			page, err = e.fetcher.FetchMore(ctx, state.SearchID, state.PageIndex, state.PageSize, mark)
		}

		if err != nil {
			if !isTimeout(err) || ctx.Err() != nil {
				fail("error", err)
				return
			}
			if state.PageSize <= 1 {
				fail("page_size_exhausted", fmt.Errorf("%w: %w", ErrPageSizeExhausted, err))
				return
			}

			newSize := HalfPageSize(state.PageSize)
			newIndex := NextPageIndex(PageInfo{Index: state.PageIndex, Size: state.PageSize}, newSize)
			searchPageShrinksTotal.Inc()
			logger.Warn().
				Str("search_id", state.SearchID).
				Int("page_index", state.PageIndex).
				Int("page_size", state.PageSize).
				Int("new_page_index", newIndex).
				Int("new_page_size", newSize).
				Msg("Page timed out - shrinking page size")

			state.PageIndex = newIndex
			state.PageSize = newSize
			continue
		}

		if !page.Success {
			fail("status", fmt.Errorf("%w: %s", ErrSearchFailed, page.StatusDetail))
			return
		}

		if state.SearchID == "" {
			state.SearchID = page.SearchID
		}
		state.TotalPages = page.TotalPages
		searchPagesTotal.Inc()

		logger.Debug().
			Str("search_id", state.SearchID).
			Int("page_index", state.PageIndex).
			Int("page_size", state.PageSize).
			Int("total_pages", state.TotalPages).
			Int("records", len(page.Records)).
			Msg("Search page fetched")

		for _, rec := range page.Records {
			if !yield(rec, nil) {
				return
			}
		}

		if state.PageIndex >= state.TotalPages {
			return
		}
		if state.SearchID == "" {
			fail("missing_search_id", ErrMissingSearchID)
			return
		}
		state.PageIndex++
	}
}

// isTimeout reports whether err carries a per-attempt timeout. The first
// error in the chain with a Timeout method decides.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
