package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TnxPurchase   TransactionType = "purchase"
	TnxTransfer   TransactionType = "transfer"
	TnxRedemption TransactionType = "redemption"
	TnxAdjustment TransactionType = "adjustment"
	TnxEvent      TransactionType = "event"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TnxPurchase, TnxTransfer, TnxRedemption, TnxAdjustment, TnxEvent:
		return true
	}
	return false
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrValidation, s)
	}
	return t, nil
}

// 1 балл за каждые 25 центов
var PointRate = decimal.RequireFromString("0.25")

// Транзакция - неизменяемая запись журнала баллов.
// Amount - изменение баланса владельца; у запроса на списание отрицательное
// и применяется только при обработке.
type Transaction struct {
	ID           int64            `json:"id"`
	Utorid       string           `json:"utorid"`
	Type         TransactionType  `json:"type"`
	Amount       int64            `json:"amount"`
	Spent        *decimal.Decimal `json:"spent,omitempty"`
	RelatedID    *int64           `json:"relatedId,omitempty"`
	PromotionIDs []int64          `json:"promotionIds"`
	Suspicious   bool             `json:"suspicious"`
	Processed    bool             `json:"processed"`
	Remark       string           `json:"remark"`
	CreatedBy    string           `json:"createdBy"`
	ProcessedBy  string           `json:"processedBy,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Applied - учтена ли транзакция в балансе владельца
func (t Transaction) Applied() bool {
	switch t.Type {
	case TnxPurchase:
		return !t.Suspicious
	case TnxRedemption:
		return t.Processed
	}
	return true
}

// Pending - запрос на списание, еще не обработанный кассиром
func (t Transaction) Pending() bool {
	return t.Type == TnxRedemption && !t.Processed
}

// BasePoints - floor(spent / 0.25)
func BasePoints(spent decimal.Decimal) (int64, error) {
	if !spent.IsPositive() {
		return 0, nil
	}
	q, _ := spent.QuoRem(PointRate, 0)
	return pointsOf(q)
}

// ValidateSpent - сумма покупки положительна и помещается в NUMERIC(12,2)
func ValidateSpent(spent decimal.Decimal) error {
	if !spent.IsPositive() {
		return fmt.Errorf("%w: spent must be a positive amount", ErrValidation)
	}
	if spent.GreaterThan(MaxSpent) {
		return fmt.Errorf("%w: spent must not exceed %s", ErrValidation, MaxSpent.StringFixed(2))
	}
	return nil
}

// Approve - единственный переход покупки suspicious true -> false
func (t *Transaction) Approve() error {
	if t.Type != TnxPurchase {
		return fmt.Errorf("%w: transaction %d is not a purchase", ErrConflict, t.ID)
	}
	if !t.Suspicious {
		return fmt.Errorf("%w: transaction %d is not suspicious", ErrConflict, t.ID)
	}
	t.Suspicious = false
	return nil
}

// Process - единственный переход списания pending -> processed
func (t *Transaction) Process(by string) error {
	if t.Type != TnxRedemption {
		return fmt.Errorf("%w: transaction %d is not a redemption", ErrValidation, t.ID)
	}
	if t.Processed {
		return fmt.Errorf("%w: redemption %d already processed", ErrConflict, t.ID)
	}
	t.Processed = true
	t.ProcessedBy = by
	return nil
}
