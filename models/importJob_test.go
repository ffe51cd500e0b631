package models

import "testing"

func TestEffectiveUnitPrice(t *testing.T) {
	line := InvoiceLineInput{
		Quantity:       dec("2"),
		UnitPrice:      dec("10"),
		Discount:       dec("1"),
		DutiesAndTaxes: dec("0.5"),
	}
	// 10 + (-1 + 0.5) / 2 = 9.75
	if got := line.EffectiveUnitPrice(); !got.Equal(dec("9.75")) {
		t.Fatalf("expected 9.75, got %s", got)
	}

	plain := InvoiceLineInput{Quantity: dec("4"), UnitPrice: dec("3.20")}
	if got := plain.EffectiveUnitPrice(); !got.Equal(dec("3.20")) {
		t.Fatalf("expected 3.20, got %s", got)
	}
}

func TestLineCheck(t *testing.T) {
	if err := (&InvoiceLineInput{ProductName: "Tomate", Quantity: dec("0"), UnitPrice: dec("1")}).Check(); err == nil {
		t.Fatal("zero quantity must be rejected")
	}
	if err := (&InvoiceLineInput{ProductName: "Tomate", Quantity: dec("1"), UnitPrice: dec("-1")}).Check(); err == nil {
		t.Fatal("negative unit price must be rejected")
	}
	if err := (&InvoiceLineInput{ProductName: "Tomate", Quantity: dec("1"), UnitPrice: dec("2")}).Check(); err != nil {
		t.Fatalf("valid line rejected: %v", err)
	}
}
