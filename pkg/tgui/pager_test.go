package tgui

import "testing"

func TestPages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		total, size, want int
	}{
		{0, 5, 1},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{11, 5, 3},
		{10, 0, 1}, // size defaults to 10
	}
	for _, tt := range tests {
		if got := Pages(tt.total, tt.size); got != tt.want {
			t.Fatalf("Pages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	t.Parallel()
	if got := ClampPage(0, 12, 5); got != 1 {
		t.Fatalf("ClampPage(0) = %d, want 1", got)
	}
	if got := ClampPage(99, 12, 5); got != 3 {
		t.Fatalf("ClampPage(99) = %d, want 3", got)
	}
	if got := ClampPage(2, 12, 5); got != 2 {
		t.Fatalf("ClampPage(2) = %d, want 2", got)
	}
}

func TestPageSlice(t *testing.T) {
	t.Parallel()
	items := []int{1, 2, 3, 4, 5, 6, 7}

	sub, prev, next := PageSlice(items, 1, 3)
	if len(sub) != 3 || sub[0] != 1 || prev || !next {
		t.Fatalf("page 1: sub=%v prev=%v next=%v", sub, prev, next)
	}

	sub, prev, next = PageSlice(items, 3, 3)
	if len(sub) != 1 || sub[0] != 7 || !prev || next {
		t.Fatalf("page 3: sub=%v prev=%v next=%v", sub, prev, next)
	}

	// Out-of-range pages clamp instead of slicing past the end.
	sub, _, _ = PageSlice(items, 9, 3)
	if len(sub) != 1 || sub[0] != 7 {
		t.Fatalf("clamped page: sub=%v", sub)
	}
}

func TestCallbackData(t *testing.T) {
	t.Parallel()
	if got := Data("q", "show", "12"); got != "q:show:12" {
		t.Fatalf("Data = %q", got)
	}
	if got := Data("nav", "back", ""); got != "nav:back" {
		t.Fatalf("Data without payload = %q", got)
	}
	scope, action, payload := ParseData("q:show:12")
	if scope != "q" || action != "show" || payload != "12" {
		t.Fatalf("ParseData = %q %q %q", scope, action, payload)
	}
	scope, action, payload = ParseData("nav:back")
	if scope != "nav" || action != "back" || payload != "" {
		t.Fatalf("ParseData short = %q %q %q", scope, action, payload)
	}
}
