package workflow

import (
	"testing"
	"time"

	"github.com/chefbooks/foodcost_backend/models"
	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func v(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPlanLedgerWriteAppendsWhenNewest(t *testing.T) {
	entries := []ledgerEntry{
		{Id: 11, Date: day(1), Version: v("1")},
		{Id: 12, Date: day(5), Version: v("2")},
	}
	plan := planLedgerWrite(entries, day(10), models.HistoryTriggerImport)
	if plan.OverwriteId != 0 {
		t.Fatalf("expected append, got overwrite of %d", plan.OverwriteId)
	}
	if !plan.Version.Equal(v("3")) {
		t.Fatalf("expected version 3, got %s", plan.Version)
	}
	if !plan.Date.Equal(day(10)) {
		t.Fatalf("expected date %s, got %s", day(10), plan.Date)
	}
}

func TestPlanLedgerWriteOverwritesExactDate(t *testing.T) {
	entries := []ledgerEntry{
		{Id: 11, Date: day(1), Version: v("1")},
		{Id: 12, Date: day(5), Version: v("2")},
	}
	plan := planLedgerWrite(entries, day(5), models.HistoryTriggerImport)
	if plan.OverwriteId != 12 {
		t.Fatalf("expected overwrite of entry 12, got %d", plan.OverwriteId)
	}
	if !plan.Version.Equal(v("2")) {
		t.Fatalf("version must stay unchanged on overwrite, got %s", plan.Version)
	}
}

func TestPlanLedgerWriteOverwritesNearestFuture(t *testing.T) {
	entries := []ledgerEntry{
		{Id: 11, Date: day(1), Version: v("1")},
		{Id: 12, Date: day(10), Version: v("2")},
		{Id: 13, Date: day(20), Version: v("3")},
	}
	plan := planLedgerWrite(entries, day(4), models.HistoryTriggerImport)
	if plan.OverwriteId != 12 {
		t.Fatalf("expected overwrite of nearest future entry 12, got %d", plan.OverwriteId)
	}
	if !plan.Version.Equal(v("2")) {
		t.Fatalf("version must stay unchanged, got %s", plan.Version)
	}
	if !plan.Date.Equal(day(4)) {
		t.Fatalf("overwritten entry takes the target date, got %s", plan.Date)
	}
}

func TestPlanLedgerWriteManualAlwaysAppends(t *testing.T) {
	entries := []ledgerEntry{
		{Id: 11, Date: day(1), Version: v("1")},
		{Id: 12, Date: day(5), Version: v("2")},
	}
	plan := planLedgerWrite(entries, day(5), models.HistoryTriggerManual)
	if plan.OverwriteId != 0 {
		t.Fatalf("manual must append even on an exact date match, got overwrite of %d", plan.OverwriteId)
	}
	if !plan.Version.Equal(v("3")) {
		t.Fatalf("expected version 3, got %s", plan.Version)
	}
}

func TestPlanLedgerWriteEmptyLedger(t *testing.T) {
	plan := planLedgerWrite(nil, day(1), models.HistoryTriggerImport)
	if plan.OverwriteId != 0 || !plan.Version.Equal(v("1")) {
		t.Fatalf("first entry must be version 1, got overwrite=%d version=%s", plan.OverwriteId, plan.Version)
	}
}

func TestNextLedgerVersionCollapsesFractions(t *testing.T) {
	entries := []ledgerEntry{
		{Id: 1, Date: day(1), Version: v("1")},
		{Id: 2, Date: day(2), Version: v("2.5")},
	}
	if got := nextLedgerVersion(entries); !got.Equal(v("3")) {
		t.Fatalf("fractional 2.5 must collapse to integer 3, got %s", got)
	}
}

func TestIngredientCostBreakdown(t *testing.T) {
	unitCost, lossValue, perPortion := ingredientCostBreakdown(v("6.00"), v("2"), v("5"), v("4"))
	if !unitCost.Equal(v("12.60")) {
		t.Fatalf("expected unit cost 12.60, got %s", unitCost)
	}
	if !lossValue.Equal(v("0.60")) {
		t.Fatalf("expected loss value 0.60, got %s", lossValue)
	}
	if !perPortion.Equal(v("3.15")) {
		t.Fatalf("expected per-portion cost 3.15, got %s", perPortion)
	}
}

func TestIngredientCostBreakdownZeroPortions(t *testing.T) {
	_, _, perPortion := ingredientCostBreakdown(v("6"), v("1"), v("0"), decimal.Zero)
	if !perPortion.IsZero() {
		t.Fatalf("zero portions must not divide, got %s", perPortion)
	}
}
