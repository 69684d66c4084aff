package main

import (
	"testing"

	"github.com/schoolhealth/nurse-console/internal/console"
)

func TestPagerHint(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		total int
		want  string
	}{
		{"empty", 1, 0, ""},
		{"single page", 1, 10, ""},
		{"first of many", 1, 25, "  [next]"},
		{"middle", 2, 25, "  [prev | next]"},
		{"last", 3, 25, "  [prev]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := console.View[struct{}]{
				TotalCount: tt.total,
				Query:      console.QueryState{PageIndex: tt.page, PageSize: 10},
			}
			if got := pagerHint(v); got != tt.want {
				t.Errorf("pagerHint = %q, want %q", got, tt.want)
			}
		})
	}
}
