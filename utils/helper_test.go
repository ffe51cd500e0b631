package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCleanSupplierName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"METRO Cash & Carry SAS", "METRO Cash & Carry"},
		{"  Ets Dupont  ", "Dupont"},
		{"TRANSGOURMET * n° 12345", "TRANSGOURMET"},
		{"SARL", "SARL"}, // everything stripped falls back to the raw name
	}
	for _, c := range cases {
		if got := CleanSupplierName(c.in); got != c.want {
			t.Errorf("CleanSupplierName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanProductName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Tomate grappe LOT x12", "Tomate grappe"},
		{"Mozzarella carton #", "Mozzarella"},
		{"Farine T55", "Farine T55"},
	}
	for _, c := range cases {
		if got := CleanProductName(c.in); got != c.want {
			t.Errorf("CleanProductName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("contact@metro.fr") {
		t.Fatal("valid address rejected")
	}
	if IsValidEmail("not-an-email") {
		t.Fatal("invalid address accepted")
	}
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(dec("10"), dec("4")); !got.Equal(dec("2.5")) {
		t.Fatalf("expected 2.5, got %s", got)
	}
	if got := SafeDiv(dec("10"), decimal.Zero); !got.IsZero() {
		t.Fatalf("division by zero must yield zero, got %s", got)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(dec("1"), dec("2")); !got.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", got)
	}
	if got := PercentChange(dec("2"), dec("1")); !got.Equal(dec("-50")) {
		t.Fatalf("expected -50, got %s", got)
	}
	if got := PercentChange(decimal.Zero, dec("5")); !got.IsZero() {
		t.Fatalf("no baseline means no percentage, got %s", got)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2026, time.January)
	if start.Day() != 1 || start.Month() != time.January {
		t.Fatalf("unexpected start %s", start)
	}
	if end.Month() != time.February || end.Day() != 1 {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestTruncateToDay(t *testing.T) {
	in := time.Date(2026, time.March, 5, 14, 30, 12, 99, time.UTC)
	got := TruncateToDay(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Day() != 5 {
		t.Fatalf("unexpected truncation %s", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("expected [3 1 2], got %v", got)
	}
}
