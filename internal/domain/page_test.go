package domain

import "testing"

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 10},
		{-3, -1, 1, 10},
		{2, 25, 2, 25},
		{1, 0, 1, 10},
		{0, 50, 1, 50},
	}
	for _, tt := range tests {
		page, limit := ClampPage(tt.page, tt.limit)
		if page != tt.wantPage || limit != tt.wantLimit {
			t.Errorf("ClampPage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.page, tt.limit, page, limit, tt.wantPage, tt.wantLimit)
		}
	}
}

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(0, 1, 10)
	if meta.PageCount != 1 {
		t.Fatalf("empty listing must still report one page, got %d", meta.PageCount)
	}
	if meta.HasNextPage || meta.HasPrevPage {
		t.Fatalf("unexpected neighbors on an empty listing: %+v", meta)
	}

	// An empty listing has no previous page no matter which page was asked for.
	meta = NewPageMeta(0, 5, 10)
	if meta.HasPrevPage {
		t.Fatalf("hasPrevPage must be false when total is 0, got %+v", meta)
	}
	if meta.HasNextPage || meta.PageCount != 1 {
		t.Fatalf("unexpected meta for an empty listing past page 1: %+v", meta)
	}

	meta = NewPageMeta(21, 2, 10)
	if meta.PageCount != 3 {
		t.Fatalf("expected 3 pages for 21 items at 10 per page, got %d", meta.PageCount)
	}
	if !meta.HasNextPage || !meta.HasPrevPage {
		t.Fatalf("page 2 of 3 has neighbors on both sides: %+v", meta)
	}

	meta = NewPageMeta(30, 3, 10)
	if meta.HasNextPage || !meta.HasPrevPage {
		t.Fatalf("last page must not advertise a next page: %+v", meta)
	}
}

func TestNewPageNormalizesNilItems(t *testing.T) {
	page := NewPage[*Personnel](nil, 0, 1, 10)
	if page.Items == nil {
		t.Fatal("items must serialize as an array, never null")
	}
}
