package paginator

import (
	"math"
	"reflect"
	"testing"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		items        int
		size         int
		page         int
		wantNumber   int
		wantItems    []int
		wantPages    int
		wantNext     bool
		wantPrevious bool
	}{
		{
			name:       "first page is full",
			items:      13,
			size:       10,
			page:       1,
			wantNumber: 1,
			wantItems:  seq(10),
			wantPages:  2,
			wantNext:   true,
		},
		{
			name:         "second page holds the remainder",
			items:        13,
			size:         10,
			page:         2,
			wantNumber:   2,
			wantItems:    []int{11, 12, 13},
			wantPages:    2,
			wantPrevious: true,
		},
		{
			name:       "zero clamps to first page",
			items:      13,
			size:       10,
			page:       0,
			wantNumber: 1,
			wantItems:  seq(10),
			wantPages:  2,
			wantNext:   true,
		},
		{
			name:       "negative clamps to first page",
			items:      13,
			size:       10,
			page:       -4,
			wantNumber: 1,
			wantItems:  seq(10),
			wantPages:  2,
			wantNext:   true,
		},
		{
			name:         "past the end serves the last page",
			items:        13,
			size:         10,
			page:         99,
			wantNumber:   2,
			wantItems:    []int{11, 12, 13},
			wantPages:    2,
			wantPrevious: true,
		},
		{
			name:       "empty sequence has one empty page",
			items:      0,
			size:       10,
			page:       3,
			wantNumber: 1,
			wantItems:  []int{},
			wantPages:  1,
		},
		{
			name:         "exact multiple has no trailing empty page",
			items:        20,
			size:         10,
			page:         3,
			wantNumber:   2,
			wantItems:    []int{11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			wantPages:    2,
			wantPrevious: true,
		},
		{
			name:         "non-positive size is treated as one",
			items:        3,
			size:         0,
			page:         2,
			wantNumber:   2,
			wantItems:    []int{2},
			wantPages:    3,
			wantNext:     true,
			wantPrevious: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := Paginate(seq(testCase.items), testCase.size, testCase.page)
			if got.Number != testCase.wantNumber {
				t.Fatalf("number = %d, want %d", got.Number, testCase.wantNumber)
			}
			if !reflect.DeepEqual(got.Items, testCase.wantItems) {
				t.Fatalf("items = %v, want %v", got.Items, testCase.wantItems)
			}
			if got.TotalPages != testCase.wantPages {
				t.Fatalf("total pages = %d, want %d", got.TotalPages, testCase.wantPages)
			}
			if got.TotalItems != testCase.items {
				t.Fatalf("total items = %d, want %d", got.TotalItems, testCase.items)
			}
			if got.HasNext != testCase.wantNext || got.HasPrevious != testCase.wantPrevious {
				t.Fatalf("next/previous = %v/%v, want %v/%v",
					got.HasNext, got.HasPrevious, testCase.wantNext, testCase.wantPrevious)
			}
		})
	}
}

func TestPaginateDeterministic(t *testing.T) {
	t.Parallel()

	items := seq(37)
	for page := -1; page <= 6; page++ {
		first := Paginate(items, DefaultPageSize, page)
		second := Paginate(items, DefaultPageSize, page)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("page %d differs between calls: %+v vs %+v", page, first, second)
		}
	}
}

func TestPaginatePageSizeInvariant(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 31; n++ {
		items := seq(n)
		first := Paginate(items, DefaultPageSize, 1)
		for page := 1; page <= first.TotalPages; page++ {
			got := Paginate(items, DefaultPageSize, page)
			if page < got.TotalPages && len(got.Items) != DefaultPageSize {
				t.Fatalf("n=%d page=%d: len = %d, want %d", n, page, len(got.Items), DefaultPageSize)
			}
			if page == got.TotalPages {
				if n == 0 && len(got.Items) != 0 {
					t.Fatalf("n=0: expected empty page, got %v", got.Items)
				}
				if n > 0 && (len(got.Items) < 1 || len(got.Items) > DefaultPageSize) {
					t.Fatalf("n=%d last page len = %d", n, len(got.Items))
				}
			}
		}
	}
}

func TestPaginateDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	items := seq(5)
	page := Paginate(items, 10, 1)
	items[0] = 100

	if page.Items[0] != 1 {
		t.Fatalf("page observed mutation of input: %v", page.Items)
	}
}

func TestParsePageNumber(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"":    1,
		"abc": 1,
		"2":   2,
		"0":   0,
		"-3":  -3,
		"1.5": 1,

		"99999999999999999999":  math.MaxInt,
		"+99999999999999999999": math.MaxInt,
		"-99999999999999999999": math.MinInt,
	}
	for raw, want := range tests {
		if got := ParsePageNumber(raw); got != want {
			t.Fatalf("ParsePageNumber(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestHugePageNumberServesLastPage(t *testing.T) {
	t.Parallel()

	items := make([]int, 25)
	page := Paginate(items, 10, ParsePageNumber("99999999999999999999"))
	if page.Number != 3 || len(page.Items) != 5 {
		t.Fatalf("huge page = %d (%d items), want last page 3 (5 items)", page.Number, len(page.Items))
	}

	page = Paginate(items, 10, ParsePageNumber("-99999999999999999999"))
	if page.Number != 1 {
		t.Fatalf("huge negative page = %d, want 1", page.Number)
	}
}
