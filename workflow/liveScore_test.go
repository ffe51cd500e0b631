package workflow

import (
	"testing"
	"time"
)

func TestScoreBands(t *testing.T) {
	cases := []struct {
		name  string
		got   string
		want  string
	}{
		{"excellent food cost", scoreBelow(purchaseScoreBands, v("22")).String(), "100"},
		{"band edge inclusive", scoreBelow(purchaseScoreBands, v("30")).String(), "80"},
		{"worst food cost", scoreBelow(purchaseScoreBands, v("55")).String(), "20"},
		{"excellent margin", scoreAbove(recipeScoreBands, v("80")).String(), "100"},
		{"mid margin", scoreAbove(recipeScoreBands, v("67")).String(), "60"},
		{"worst margin", scoreAbove(recipeScoreBands, v("10")).String(), "20"},
		{"break-even result", scoreAbove(financialScoreBands, v("0")).String(), "40"},
		{"loss-making", scoreAbove(financialScoreBands, v("-3")).String(), "20"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestIsReportStale(t *testing.T) {
	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

	previous := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	if isReportStale(previous, now) {
		t.Fatal("a report for the immediately preceding month is fresh")
	}
	current := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	if isReportStale(current, now) {
		t.Fatal("a report for the running month is fresh")
	}
	old := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !isReportStale(old, now) {
		t.Fatal("a two-month-old report is stale")
	}
}

func TestPenalizeFloorsAtZero(t *testing.T) {
	if got := penalize(v("25")); !got.Equal(v("15")) {
		t.Fatalf("expected 15, got %s", got)
	}
	if got := penalize(v("5")); !got.IsZero() {
		t.Fatalf("penalty must floor at zero, got %s", got)
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := daysInMonth(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)); got != 29 {
		t.Fatalf("expected 29 days in February 2024, got %d", got)
	}
	if got := daysInMonth(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)); got != 30 {
		t.Fatalf("expected 30 days in April, got %d", got)
	}
}
