package feed

import (
	"strconv"
	"strings"
)

// PageSize is the number of posts on every feed page
const PageSize = 10

// ParsePage reads a page number from a query value. Anything that is not an
// integer reads as page 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

// NumPages returns the number of pages for count items. An empty feed still
// has one (empty) page.
func NumPages(count int64) int {
	if count <= 0 {
		return 1
	}
	return int((count + PageSize - 1) / PageSize)
}

// ClampPage moves an out-of-range page number to the nearest valid page.
func ClampPage(number, numPages int) int {
	if number < 1 {
		return 1
	}
	if number > numPages {
		return numPages
	}
	return number
}

// Offset returns the index of the first item on a page
func Offset(number int) int {
	return (number - 1) * PageSize
}
