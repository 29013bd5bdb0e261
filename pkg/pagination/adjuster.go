package pagination

// PageInfo identifies a page of a search cursor.
type PageInfo struct {
	// Index is 1-based.
	Index int
	Size  int
}

// Offset returns the number of records that precede this page.
func (p PageInfo) Offset() int {
	return (p.Index - 1) * p.Size
}

// HalfPageSize returns the page size to retry with after a timeout.
// It never drops below 1.
func HalfPageSize(size int) int {
	if half := size / 2; half > 1 {
		return half
	}
	return 1
}

// NextPageIndex maps a page at the old size onto the page at newSize that
// contains the first record of prev. The returned page starts at or before
// prev's offset, so no record is skipped; records between the two offsets are
// fetched again.
func NextPageIndex(prev PageInfo, newSize int) int {
	if newSize < 1 {
		newSize = 1
	}
	return prev.Size*(prev.Index-1)/newSize + 1
}
