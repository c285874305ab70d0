package search

import (
	"testing"
	"time"
)

func TestWithDateAppendsForTodayQueries(t *testing.T) {
	g := &GoogleSearcher{now: func() time.Time {
		return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	}}

	if got := g.withDate("今日天氣"); got != "今日天氣 2025-03-14" {
		t.Errorf("withDate = %q", got)
	}
	if got := g.withDate("香港新聞"); got != "香港新聞" {
		t.Errorf("date should not be appended, got %q", got)
	}
}

func TestNewGoogleRequiresCredentials(t *testing.T) {
	if _, err := NewGoogle(t.Context(), "", "engine", nil); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewGoogle(t.Context(), "key", "", nil); err == nil {
		t.Error("expected error without engine id")
	}
}
