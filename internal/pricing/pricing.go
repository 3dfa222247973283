package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Delivery fee parameters. The fee grows linearly with road distance and is
// floored at MinDeliveryFee.
var (
	DeliveryBaseFee = decimal.NewFromInt(15)
	PerKmRate       = decimal.NewFromInt(5)
	MinDeliveryFee  = decimal.NewFromInt(20)
	ServiceFeeRate  = decimal.RequireFromString("0.05")
)

const (
	FallbackDistanceKm   = 5.0
	DefaultTravelMinutes = 15
	PrepBaseMinutes      = 20
)

var ErrNegativePrice = errors.New("computed line price is negative")

type Point struct {
	Latitude  float64
	Longitude float64
}

type LineItem struct {
	ProductID    int64
	UnitPrice    decimal.Decimal
	OptionDeltas []decimal.Decimal
	Quantity     int32
}

type DistanceResult struct {
	DistanceKm  float64
	DurationMin int
}

// DistanceFn is the routing query the engine is handed; it is the only I/O
// the engine performs.
type DistanceFn func(ctx context.Context, origin, dest Point) (DistanceResult, error)

type Quote struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Total       decimal.Decimal

	DistanceKm         float64
	DurationMin        int
	DistanceIsFallback bool

	EstimatedMinMinutes int
	EstimatedMaxMinutes int
}

// Round2 rounds half-up to two decimals; every monetary output passes through
// it after each component calculation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal is the unit price of one line: product price plus the sum of the
// selected modifier option deltas.
func LineTotal(unitPrice decimal.Decimal, optionDeltas []decimal.Decimal) (decimal.Decimal, error) {
	total := unitPrice
	for _, delta := range optionDeltas {
		total = total.Add(delta)
	}
	if total.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return Round2(total), nil
}

// PriceCart computes the full money breakdown for a cart destined to one
// address. A failing routing query degrades to a deterministic fallback of
// FallbackDistanceKm and the default travel duration.
func PriceCart(ctx context.Context, items []LineItem, origin, dest Point, distance DistanceFn) (Quote, error) {
	subtotal := decimal.Zero
	itemCount := 0
	for _, item := range items {
		line, err := LineTotal(item.UnitPrice, item.OptionDeltas)
		if err != nil {
			return Quote{}, err
		}
		subtotal = subtotal.Add(line.Mul(decimal.NewFromInt32(item.Quantity)))
		itemCount += int(item.Quantity)
	}
	subtotal = Round2(subtotal)

	quote := Quote{Subtotal: subtotal}

	result, err := DistanceResult{}, error(nil)
	if distance != nil {
		result, err = distance(ctx, origin, dest)
	}
	if distance == nil || err != nil {
		result = DistanceResult{DistanceKm: FallbackDistanceKm, DurationMin: DefaultTravelMinutes}
		quote.DistanceIsFallback = true
	}
	quote.DistanceKm = result.DistanceKm
	quote.DurationMin = result.DurationMin

	quote.DeliveryFee = DeliveryFee(result.DistanceKm)
	quote.ServiceFee = Round2(subtotal.Mul(ServiceFeeRate))
	quote.Total = Round2(subtotal.Add(quote.DeliveryFee).Add(quote.ServiceFee))

	quote.EstimatedMinMinutes, quote.EstimatedMaxMinutes = EstimateDeliveryWindow(result.DurationMin, itemCount)
	return quote, nil
}

func DeliveryFee(distanceKm float64) decimal.Decimal {
	fee := DeliveryBaseFee.Add(PerKmRate.Mul(decimal.NewFromFloat(distanceKm)))
	if fee.LessThan(MinDeliveryFee) {
		fee = MinDeliveryFee
	}
	return Round2(fee)
}

// EstimateDeliveryWindow returns the (min, max) minutes until delivery:
// kitchen prep grows with the item count, travel defaults when unknown.
func EstimateDeliveryWindow(travelMin int, itemCount int) (int, int) {
	prepAdj := (itemCount - 3) * 2
	if prepAdj < 0 {
		prepAdj = 0
	}
	if travelMin <= 0 {
		travelMin = DefaultTravelMinutes
	}
	minTotal := PrepBaseMinutes + prepAdj + travelMin
	return minTotal, minTotal + 10
}

// CommissionSplit freezes the restaurant settlement at assembly time:
// commission = subtotal × rate / 100, payout = subtotal − commission.
func CommissionSplit(subtotal decimal.Decimal, commissionRate decimal.Decimal) (commission decimal.Decimal, payout decimal.Decimal) {
	commission = Round2(subtotal.Mul(commissionRate).Div(decimal.NewFromInt(100)))
	payout = Round2(subtotal.Sub(subtotal.Mul(commissionRate).Div(decimal.NewFromInt(100))))
	return commission, payout
}
