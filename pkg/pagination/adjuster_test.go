package pagination

import (
	"testing"
)

func TestHalfPageSize(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{5, 2},
		{10, 5},
		{100, 50},
		{1000, 500},
		{0, 1},
	}

	for _, tt := range tests {
		if got := HalfPageSize(tt.size); got != tt.want {
			t.Errorf("HalfPageSize(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestNextPageIndex(t *testing.T) {
	tests := []struct {
		name    string
		prev    PageInfo
		newSize int
		want    int
	}{
		{"first page stays first", PageInfo{Index: 1, Size: 10}, 5, 1},
		{"second page of ten at five", PageInfo{Index: 2, Size: 10}, 5, 3},
		{"third page of hundred at fifty", PageInfo{Index: 3, Size: 100}, 50, 5},
		{"uneven split rounds down", PageInfo{Index: 2, Size: 5}, 2, 3},
		{"third page of five at two", PageInfo{Index: 3, Size: 5}, 2, 6},
		{"down to one", PageInfo{Index: 4, Size: 3}, 1, 10},
		{"same size", PageInfo{Index: 7, Size: 20}, 20, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextPageIndex(tt.prev, tt.newSize); got != tt.want {
				t.Errorf("NextPageIndex(%+v, %d) = %d, want %d", tt.prev, tt.newSize, got, tt.want)
			}
		})
	}
}

func TestNextPageIndex_FirstPageNeverMoves(t *testing.T) {
	for size := 1; size <= 1000; size++ {
		if got := NextPageIndex(PageInfo{Index: 1, Size: size}, HalfPageSize(size)); got != 1 {
			t.Fatalf("NextPageIndex({1, %d}, %d) = %d, want 1", size, HalfPageSize(size), got)
		}
	}
}

func TestNextPageIndex_NeverSkipsRecords(t *testing.T) {
	for size := 1; size <= 64; size++ {
		for index := 1; index <= 40; index++ {
			prev := PageInfo{Index: index, Size: size}
			consumed := prev.Offset()

			for newSize := 1; newSize <= size; newSize++ {
				next := PageInfo{Index: NextPageIndex(prev, newSize), Size: newSize}

				if next.Offset() > consumed {
					t.Fatalf("prev %+v newSize %d: next offset %d exceeds consumed %d",
						prev, newSize, next.Offset(), consumed)
				}
				// The overlap is always less than one new page.
				if consumed-next.Offset() >= newSize {
					t.Fatalf("prev %+v newSize %d: overlap %d >= new page size",
						prev, newSize, consumed-next.Offset())
				}
			}
		}
	}
}

func TestNextPageIndex_BoundaryOverlap(t *testing.T) {
	// Page 1 of size 5 consumed records 0..4. Shrinking to 2 resumes at page 3,
	// which starts at offset 4: record 4 is fetched a second time.
	prev := PageInfo{Index: 2, Size: 5}
	next := PageInfo{Index: NextPageIndex(prev, 2), Size: 2}

	if next.Index != 3 {
		t.Fatalf("NextPageIndex = %d, want 3", next.Index)
	}
	if overlap := prev.Offset() - next.Offset(); overlap != 1 {
		t.Errorf("overlap = %d records, want 1", overlap)
	}
}
