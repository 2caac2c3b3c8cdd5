package priceengine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceFromReserves(t *testing.T) {
	base := decimal.NewFromInt(1000)
	quote := decimal.NewFromInt(5000)
	got := PriceFromReserves(base, quote)
	want := decimal.NewFromInt(5)
	if !got.Equal(want) {
		t.Fatalf("price = %s, want %s", got, want)
	}
}

func TestPriceFromReservesZeroBase(t *testing.T) {
	got := PriceFromReserves(decimal.Zero, decimal.NewFromInt(100))
	if !got.IsZero() {
		t.Fatalf("expected zero price for empty base reserve, got %s", got)
	}
}
