package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromoAutomatic PromotionType = "automatic"
	PromoOneTime   PromotionType = "one-time"
)

func ParsePromotionType(s string) (PromotionType, error) {
	switch t := PromotionType(s); t {
	case PromoAutomatic, PromoOneTime:
		return t, nil
	}
	return "", fmt.Errorf("%w: promotion type must be automatic or one-time", ErrValidation)
}

// Акция: automatic применяется ко всем подходящим покупкам,
// one-time выбирается кассиром и используется счетом один раз
type Promotion struct {
	ID          int64            `json:"id" bson:"id"`
	Name        string           `json:"name" bson:"name"`
	Description string           `json:"description" bson:"description"`
	Type        PromotionType    `json:"type" bson:"type"`
	StartTime   *time.Time       `json:"startTime,omitempty" bson:"startTime,omitempty"`
	EndTime     time.Time        `json:"endTime" bson:"endTime"`
	MinSpending *decimal.Decimal `json:"minSpending,omitempty" bson:"-"`
	Rate        *decimal.Decimal `json:"rate,omitempty" bson:"-"`
	Points      int64            `json:"points,omitempty" bson:"points,omitempty"`
}

// ActiveAt: startTime <= t <= endTime, без startTime только t <= endTime
func (p Promotion) ActiveAt(t time.Time) bool {
	if p.StartTime != nil && t.Before(*p.StartTime) {
		return false
	}
	return !t.After(p.EndTime)
}

func (p Promotion) Started(t time.Time) bool {
	return p.StartTime == nil || !t.Before(*p.StartTime)
}

func (p Promotion) Ended(t time.Time) bool {
	return t.After(p.EndTime)
}

// Eligible - акция активна и сумма покупки не меньше minSpending
func (p Promotion) Eligible(spent decimal.Decimal, t time.Time) bool {
	if !p.ActiveAt(t) {
		return false
	}
	if p.MinSpending != nil && spent.LessThan(*p.MinSpending) {
		return false
	}
	return true
}

// Bonus - бонусные баллы к базовым
func (p Promotion) Bonus(base int64) (int64, error) {
	switch p.Type {
	case PromoAutomatic:
		if p.Rate == nil {
			return 0, nil
		}
		return pointsOf(decimal.NewFromInt(base).Mul(*p.Rate).Floor())
	case PromoOneTime:
		return p.Points, nil
	}
	return 0, nil
}

func (p Promotion) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: promotion name is required", ErrValidation)
	}
	if p.EndTime.IsZero() {
		return fmt.Errorf("%w: endTime is required", ErrValidation)
	}
	if p.StartTime != nil && !p.EndTime.After(*p.StartTime) {
		return fmt.Errorf("%w: endTime must be after startTime", ErrValidation)
	}
	if p.MinSpending != nil && p.MinSpending.IsNegative() {
		return fmt.Errorf("%w: minSpending must not be negative", ErrValidation)
	}
	switch p.Type {
	case PromoAutomatic:
		if p.Rate == nil || !p.Rate.IsPositive() {
			return fmt.Errorf("%w: automatic promotion needs a positive rate", ErrValidation)
		}
		if p.Points != 0 {
			return fmt.Errorf("%w: automatic promotion cannot carry points", ErrValidation)
		}
	case PromoOneTime:
		if p.Points <= 0 {
			return fmt.Errorf("%w: one-time promotion needs positive points", ErrValidation)
		}
		if p.Rate != nil {
			return fmt.Errorf("%w: one-time promotion cannot carry a rate", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: promotion type must be automatic or one-time", ErrValidation)
	}
	return nil
}
