package api

import (
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "/api/incidents", 1, 50},
		{"explicit", "/api/incidents?page=3&per_page=25", 3, 25},
		{"per_page capped", "/api/incidents?per_page=9999", 1, 200},
		{"zero page ignored", "/api/incidents?page=0", 1, 50},
		{"negative ignored", "/api/incidents?page=-2&per_page=-5", 1, 50},
		{"garbage ignored", "/api/incidents?page=abc&per_page=xyz", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			p := ParsePagination(r)
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.PerPage != tt.wantPerPage {
				t.Errorf("PerPage = %d, want %d", p.PerPage, tt.wantPerPage)
			}
		})
	}
}

func TestPaginationOffset(t *testing.T) {
	p := PaginationParams{Page: 3, PerPage: 25}
	if got := p.Offset(); got != 50 {
		t.Errorf("Offset() = %d, want 50", got)
	}
}

func TestPaginationTotalPages(t *testing.T) {
	tests := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{100, 25, 4},
	}

	for _, tt := range tests {
		p := PaginationParams{Page: 1, PerPage: tt.perPage}
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) with per_page=%d = %d, want %d", tt.total, tt.perPage, got, tt.want)
		}
	}
}
