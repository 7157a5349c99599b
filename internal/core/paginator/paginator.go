// Package paginator slices ordered sequences into fixed-size pages.
//
// Out-of-range page numbers never fail: anything below 1 is served as the
// first page and anything past the end is served as the last one.
package paginator

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultPageSize is the number of items shown per feed page.
const DefaultPageSize = 10

// Page is one bounded slice of an ordered sequence plus its position metadata.
type Page[T any] struct {
	Items       []T
	Number      int
	Size        int
	TotalItems  int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// Paginate returns page pageNumber of items. The returned page owns its items
// slice, so later changes to items are not visible through it.
func Paginate[T any](items []T, pageSize, pageNumber int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		// An empty sequence still has one (empty) page.
		totalPages = 1
	}

	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageNumber > totalPages {
		pageNumber = totalPages
	}

	start := (pageNumber - 1) * pageSize
	end := min(start+pageSize, total)

	slice := make([]T, 0, end-start)
	if start < end {
		slice = append(slice, items[start:end]...)
	}

	return Page[T]{
		Items:       slice,
		Number:      pageNumber,
		Size:        pageSize,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     pageNumber < totalPages,
		HasPrevious: pageNumber > 1,
	}
}

// ParsePageNumber reads a raw ?page= value. Missing or non-numeric input
// means the first page; numeric input is left for Paginate to clamp, even
// when it does not fit in an int.
func ParsePageNumber(raw string) int {
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	return 1
}
