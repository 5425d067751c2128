package pgxrepo

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericToFloat64 converts pgtype.Numeric to float64
func numericToFloat64(n pgtype.Numeric) float64 {
	f, _ := n.Float64Value()
	return f.Float64
}

// float64ToNumeric converts float64 to pgtype.Numeric
func float64ToNumeric(f float64) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	// Convert float64 to string with 2 decimal precision
	str := strconv.FormatFloat(f, 'f', 2, 64)
	if err := n.Scan(str); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}
