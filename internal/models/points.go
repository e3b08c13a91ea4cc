package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxSpent - как spent NUMERIC(12,2) в схеме Postgres
var MaxSpent = decimal.RequireFromString("9999999999.99")

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// pointsOf - целое число баллов из decimal; вне int64 - ErrValidation
func pointsOf(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxPoints) || d.LessThan(maxPoints.Neg()) {
		return 0, fmt.Errorf("%w: points value %s is out of range", ErrValidation, d.String())
	}
	return d.IntPart(), nil
}

// AddPoints - a + b без переполнения int64
func AddPoints(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: points total is out of range", ErrValidation)
	}
	return a + b, nil
}

// Credit применяет delta к балансу счета.
// Баланс не уходит ниже нуля и не переполняется; при ошибке счет не меняется.
func (a *Account) Credit(delta int64) error {
	points, err := AddPoints(a.Points, delta)
	if err != nil {
		return fmt.Errorf("%w: balance of %s would overflow", ErrValidation, a.Utorid)
	}
	if points < 0 {
		return fmt.Errorf("%w: balance of %s would become negative", ErrValidation, a.Utorid)
	}
	a.Points = points
	return nil
}
