package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurchaseMessage - покупка с кассового терминала (топик purchases)
type PurchaseMessage struct {
	Utorid       string          `json:"utorid"`
	Spent        decimal.Decimal `json:"spent"`
	PromotionIDs []int64         `json:"promotionIds"`
	Remark       string          `json:"remark"`
	Cashier      string          `json:"cashier"`
}

// RedemptionMessage - команда кассы провести списание (очередь redemptions)
type RedemptionMessage struct {
	TransactionID int64  `json:"transactionId"`
	Cashier       string `json:"cashier"`
}

// RedemptionConfirm - ответ в очередь подтверждений
type RedemptionConfirm struct {
	TransactionID int64  `json:"transactionId"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// Intake - прием операций из брокеров от имени кассира из сообщения
type Intake struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	ledger *LedgerService
}

func NewIntake(logger *zap.Logger, db interf.LedgerStorage, ledger *LedgerService) *Intake {
	return &Intake{logger: logger, db: db, ledger: ledger}
}

func (i *Intake) Log(msg string, err error) {
	i.logger.Error(msg,
		zap.String("service", "intake"),
		zap.Error(err),
	)
}

// cashier - отправитель сообщения; права проверяет сама операция
func (i *Intake) cashier(ctx context.Context, utorid string) (model.Account, error) {
	if utorid == "" {
		return model.Account{}, fmt.Errorf("%w: cashier is required", model.ErrValidation)
	}
	account, err := i.db.GetAccount(ctx, utorid)
	if errors.Is(err, model.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: unknown cashier %s", model.ErrForbidden, utorid)
	}
	return account, err
}

// Purchase - сообщение из Kafka -> покупка
func (i *Intake) Purchase(ctx context.Context, raw []byte) (model.Transaction, error) {
	var msg PurchaseMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Transaction{}, fmt.Errorf("%w: purchase message is not correct: %s", model.ErrValidation, err.Error())
	}
	cashier, err := i.cashier(ctx, msg.Cashier)
	if err != nil {
		return model.Transaction{}, err
	}
	return i.ledger.CreatePurchase(ctx, cashier, PurchaseRequest{
		Utorid:       msg.Utorid,
		Spent:        msg.Spent,
		PromotionIDs: msg.PromotionIDs,
		Remark:       msg.Remark,
	})
}

// Redemption - сообщение из RabbitMQ -> обработка списания.
// Ошибка не возвращается, а попадает в подтверждение.
func (i *Intake) Redemption(ctx context.Context, raw []byte) RedemptionConfirm {
	var msg RedemptionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		i.Log("Redemption message", err)
		return RedemptionConfirm{Error: fmt.Sprintf("%s: message is not correct", model.ErrValidation)}
	}
	confirm := RedemptionConfirm{TransactionID: msg.TransactionID}
	cashier, err := i.cashier(ctx, msg.Cashier)
	if err == nil {
		_, err = i.ledger.ProcessRedemption(ctx, cashier, msg.TransactionID)
		if errors.Is(err, model.ErrConflict) && i.redeemedBy(ctx, msg.TransactionID, cashier.Utorid) {
			// повторная доставка уже проведенного списания
			i.logger.Info("Redemption already processed",
				zap.String("service", "intake"),
				zap.Int64("transaction", msg.TransactionID),
			)
			err = nil
		}
	}
	if err != nil {
		confirm.Error = err.Error()
		return confirm
	}
	confirm.Success = true
	return confirm
}

// redeemedBy - списание уже проведено этим кассиром
func (i *Intake) redeemedBy(ctx context.Context, id int64, cashier string) bool {
	tnx, err := i.db.GetTransaction(ctx, id)
	if err != nil {
		i.Log("Redemption reread", err)
		return false
	}
	return tnx.Type == model.TnxRedemption && tnx.Processed && tnx.ProcessedBy == cashier
}
