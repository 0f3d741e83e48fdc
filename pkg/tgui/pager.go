package tgui

import "fmt"

// Pages returns the number of pages needed for total items at the given page
// size. An empty list still has one (empty) page.
func Pages(total, size int) int {
	if size <= 0 {
		size = 10
	}
	if total <= 0 {
		return 1
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}

// ClampPage clamps a 1-based page number into [1, Pages(total, size)].
func ClampPage(page, total, size int) int {
	pages := Pages(total, size)
	if page < 1 {
		return 1
	}
	if page > pages {
		return pages
	}
	return page
}

// PageSlice returns the sub-slice for a 1-based page plus prev/next flags.
func PageSlice[T any](items []T, page, size int) (sub []T, hasPrev, hasNext bool) {
	if size <= 0 {
		size = 10
	}
	page = ClampPage(page, len(items), size)
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page > 1, end < len(items)
}

// PageLabel returns a compact, human-friendly pagination label for a
// 1-based page.
func PageLabel(page, total, size int) string {
	pages := Pages(total, size)
	page = ClampPage(page, total, size)
	return fmt.Sprintf("Page %d/%d", page, pages)
}
