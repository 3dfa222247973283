package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func fixedDistance(km float64, durationMin int) DistanceFn {
	return func(ctx context.Context, origin, dest Point) (DistanceResult, error) {
		return DistanceResult{DistanceKm: km, DurationMin: durationMin}, nil
	}
}

func failingDistance(ctx context.Context, origin, dest Point) (DistanceResult, error) {
	return DistanceResult{}, errors.New("routing unavailable")
}

func TestPriceCartBreakdown(t *testing.T) {
	items := []LineItem{
		{
			ProductID:    1,
			UnitPrice:    decimal.RequireFromString("150.00"),
			OptionDeltas: []decimal.Decimal{decimal.RequireFromString("15.00")},
			Quantity:     1,
		},
	}

	quote, err := PriceCart(context.Background(), items, Point{}, Point{}, fixedDistance(2, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name     string
		got      decimal.Decimal
		expected string
	}{
		{"subtotal", quote.Subtotal, "165"},
		{"deliveryFee", quote.DeliveryFee, "25"},
		{"serviceFee", quote.ServiceFee, "8.25"},
		{"total", quote.Total, "198.25"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.got.Equal(decimal.RequireFromString(tc.expected)) {
				t.Fatalf("expected %s, got %s", tc.expected, tc.got)
			}
		})
	}

	if quote.DistanceIsFallback {
		t.Fatalf("expected live distance, got fallback")
	}
}

func TestCommissionSplit(t *testing.T) {
	subtotal := decimal.RequireFromString("165.00")
	rate := decimal.RequireFromString("12.50")

	commission, payout := CommissionSplit(subtotal, rate)
	if !commission.Equal(decimal.RequireFromString("20.63")) {
		t.Fatalf("expected commission 20.63, got %s", commission)
	}
	if !payout.Equal(decimal.RequireFromString("144.38")) {
		t.Fatalf("expected payout 144.38, got %s", payout)
	}
}

func TestPriceCartDistanceFallback(t *testing.T) {
	items := []LineItem{
		{ProductID: 1, UnitPrice: decimal.NewFromInt(100), Quantity: 1},
	}

	quote, err := PriceCart(context.Background(), items, Point{}, Point{}, failingDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.DistanceIsFallback {
		t.Fatalf("expected fallback distance")
	}
	if quote.DistanceKm != FallbackDistanceKm {
		t.Fatalf("expected %v km, got %v", FallbackDistanceKm, quote.DistanceKm)
	}
	// 15 + 5*5 = 40
	if !quote.DeliveryFee.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected delivery fee 40, got %s", quote.DeliveryFee)
	}
}

func TestDeliveryFeeFloor(t *testing.T) {
	cases := []struct {
		name     string
		km       float64
		expected string
	}{
		{"short trip floors at minimum", 0.5, "20"},
		{"exactly at floor", 1, "20"},
		{"past the floor", 2, "25"},
		{"long trip", 10.3, "66.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeliveryFee(tc.km); !got.Equal(decimal.RequireFromString(tc.expected)) {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestLineTotalRejectsNegative(t *testing.T) {
	_, err := LineTotal(decimal.NewFromInt(10), []decimal.Decimal{decimal.NewFromInt(-20)})
	if !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
}

func TestEstimateDeliveryWindow(t *testing.T) {
	cases := []struct {
		name        string
		travelMin   int
		itemCount   int
		expectedMin int
		expectedMax int
	}{
		{"small order with travel", 8, 1, 28, 38},
		{"prep adjustment kicks in", 10, 6, 36, 46},
		{"missing travel uses default", 0, 3, 35, 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotMin, gotMax := EstimateDeliveryWindow(tc.travelMin, tc.itemCount)
			if gotMin != tc.expectedMin || gotMax != tc.expectedMax {
				t.Fatalf("expected (%d, %d), got (%d, %d)", tc.expectedMin, tc.expectedMax, gotMin, gotMax)
			}
		})
	}
}

func TestPriceCartDeterminism(t *testing.T) {
	items := []LineItem{
		{ProductID: 1, UnitPrice: decimal.RequireFromString("99.99"), Quantity: 3,
			OptionDeltas: []decimal.Decimal{decimal.RequireFromString("0.01"), decimal.RequireFromString("12.50")}},
		{ProductID: 2, UnitPrice: decimal.RequireFromString("45.10"), Quantity: 2},
	}

	first, err := PriceCart(context.Background(), items, Point{}, Point{}, fixedDistance(3.7, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := PriceCart(context.Background(), items, Point{}, Point{}, fixedDistance(3.7, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Total.String() != second.Total.String() ||
		first.Subtotal.String() != second.Subtotal.String() ||
		first.DeliveryFee.String() != second.DeliveryFee.String() ||
		first.ServiceFee.String() != second.ServiceFee.String() {
		t.Fatalf("pricing is not deterministic: %+v vs %+v", first, second)
	}
}
