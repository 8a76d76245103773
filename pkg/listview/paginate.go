package listview

import (
	"encoding/json"
	"strconv"
)

// TotalPages returns ceil(n/perPage), or 0 for an empty list.
func TotalPages(n, perPage int) int {
	if n <= 0 || perPage <= 0 {
		return 0
	}
	return (n + perPage - 1) / perPage
}

// Slice returns the items on the 1-based page.
func Slice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 || page < 1 {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PageToken is a page number control, or an ellipsis gap between controls.
type PageToken struct {
	Number   int
	Ellipsis bool
}

// Ellipsis is the gap marker rendered between non-adjacent page numbers.
var Ellipsis = PageToken{Ellipsis: true}

// MarshalJSON renders numbers as JSON numbers and gaps as "...".
func (p PageToken) MarshalJSON() ([]byte, error) {
	if p.Ellipsis {
		return []byte(`"..."`), nil
	}
	return []byte(strconv.Itoa(p.Number)), nil
}

// UnmarshalJSON accepts either form produced by MarshalJSON.
func (p *PageToken) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PageToken{Ellipsis: s == "..."}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PageToken{Number: n}
	return nil
}

func (p PageToken) String() string {
	if p.Ellipsis {
		return "..."
	}
	return strconv.Itoa(p.Number)
}

// PageNumbers lays out pagination controls. Up to five pages are listed in
// full; beyond that the first and last pages are always shown with a window
// around current, or the four pages nearest the boundary current is close to.
func PageNumbers(current, total int) []PageToken {
	if total <= 0 {
		return []PageToken{}
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}
	if total <= 5 {
		return pageRange(1, total)
	}

	tokens := make([]PageToken, 0, 7)
	switch {
	case current <= 3:
		tokens = append(tokens, pageRange(1, 4)...)
		tokens = append(tokens, Ellipsis, PageToken{Number: total})
	case current >= total-2:
		tokens = append(tokens, PageToken{Number: 1}, Ellipsis)
		tokens = append(tokens, pageRange(total-3, total)...)
	default:
		tokens = append(tokens, PageToken{Number: 1}, Ellipsis)
		tokens = append(tokens, pageRange(current-1, current+1)...)
		tokens = append(tokens, Ellipsis, PageToken{Number: total})
	}
	return tokens
}

func pageRange(from, to int) []PageToken {
	out := make([]PageToken, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, PageToken{Number: n})
	}
	return out
}
