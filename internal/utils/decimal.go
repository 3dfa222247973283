package utils

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func NumericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err == nil {
		return f.Float64
	}
	// fallback to string parse
	text, err := value.MarshalJSON()
	if err != nil {
		return 0
	}
	var out float64
	if _, err := fmt.Sscan(string(text), &out); err != nil {
		return 0
	}
	return out
}

// NumericToDecimal converts a scanned numeric into an exact decimal for money
// math. Invalid (NULL) values convert to zero.
func NumericToDecimal(value pgtype.Numeric) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	text, err := value.MarshalJSON()
	if err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Money renders a decimal the way numeric(10,2) columns and JSON bodies
// expect it.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
