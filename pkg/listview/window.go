package listview

// DefaultPerPage is used when a window is created without a page size.
const DefaultPerPage = 10

// Window is the (current page, items per page) pair of a list view.
type Window struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// NewWindow starts on page 1.
func NewWindow(perPage int) Window {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return Window{Page: 1, PerPage: perPage}
}

// Reset moves back to the first page.
func (w *Window) Reset() {
	w.Page = 1
}

// Clamp keeps Page within [1, TotalPages(totalItems)].
func (w *Window) Clamp(totalItems int) {
	if w.PerPage <= 0 {
		w.PerPage = DefaultPerPage
	}
	pages := TotalPages(totalItems, w.PerPage)
	if pages == 0 {
		w.Page = 1
		return
	}
	if w.Page > pages {
		w.Page = pages
	}
	if w.Page < 1 {
		w.Page = 1
	}
}

// Goto moves to page, clamped to the available pages.
func (w *Window) Goto(page, totalItems int) {
	w.Page = page
	w.Clamp(totalItems)
}

// Resize changes the page size and returns to the first page.
func (w *Window) Resize(perPage int) {
	if perPage <= 0 || perPage == w.PerPage {
		return
	}
	w.PerPage = perPage
	w.Page = 1
}
