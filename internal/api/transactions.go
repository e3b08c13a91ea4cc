package api

import (
	"fmt"
	"net/http"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"github.com/shopspring/decimal"
)

// тело POST /transactions; поля зависят от type
type transactionRequest struct {
	Type         string           `json:"type"`
	Utorid       string           `json:"utorid"`
	Spent        *decimal.Decimal `json:"spent"`
	Amount       *int64           `json:"amount"`
	RelatedID    *int64           `json:"relatedId"`
	PromotionIDs []int64          `json:"promotionIds"`
	Remark       string           `json:"remark"`
}

type pointsRequest struct {
	Type   string `json:"type"`
	Amount *int64 `json:"amount"`
	Remark string `json:"remark"`
}

func (p pointsRequest) check(want model.TransactionType) (int64, error) {
	if p.Type != string(want) {
		return 0, fmt.Errorf("%w: type must be %s", model.ErrValidation, want)
	}
	if p.Amount == nil {
		return 0, fmt.Errorf("%w: amount is required", model.ErrValidation)
	}
	return *p.Amount, nil
}

type suspiciousRequest struct {
	Suspicious *bool `json:"suspicious"`
}

type processedRequest struct {
	Processed *bool `json:"processed"`
}

type awardRequest struct {
	Type   string `json:"type"`
	Utorid string `json:"utorid"`
	Amount *int64 `json:"amount"`
	Remark string `json:"remark"`
}

// Покупка или корректировка
func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "CreateTransactionHandler", err)
		return
	}

	var tnx model.Transaction
	var err error
	switch model.TransactionType(req.Type) {
	case model.TnxPurchase:
		if req.Spent == nil {
			h.fail(w, "CreateTransactionHandler", fmt.Errorf("%w: spent is required", model.ErrValidation))
			return
		}
		tnx, err = h.ledger.CreatePurchase(r.Context(), actor, services.PurchaseRequest{
			Utorid:       req.Utorid,
			Spent:        *req.Spent,
			PromotionIDs: req.PromotionIDs,
			Remark:       req.Remark,
		})
	case model.TnxAdjustment:
		if req.Amount == nil {
			h.fail(w, "CreateTransactionHandler", fmt.Errorf("%w: amount is required", model.ErrValidation))
			return
		}
		tnx, err = h.ledger.CreateAdjustment(r.Context(), actor, services.AdjustmentRequest{
			Utorid:    req.Utorid,
			Amount:    *req.Amount,
			RelatedID: req.RelatedID,
			Remark:    req.Remark,
		})
	default:
		err = fmt.Errorf("%w: type must be purchase or adjustment", model.ErrValidation)
	}
	if err != nil {
		h.fail(w, "CreateTransactionHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, tnx)
}

func transactionFilter(q *queryParams) model.TransactionFilter {
	filter := model.TransactionFilter{
		Name:        q.str("name"),
		CreatedBy:   q.str("createdBy"),
		Suspicious:  q.boolPtr("suspicious"),
		RelatedID:   q.int64Ptr("relatedId"),
		PromotionID: q.int64Ptr("promotionId"),
		Amount:      q.int64Ptr("amount"),
		Operator:    q.str("operator"),
		Page:        q.page(),
	}
	if typ := q.str("type"); typ != "" {
		parsed, err := model.ParseTransactionType(typ)
		if err != nil {
			q.errs = append(q.errs, err)
		}
		filter.Type = parsed
	}
	return filter
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := transactionFilter(q)
	if err := q.err(); err != nil {
		h.fail(w, "ListTransactionsHandler", err)
		return
	}
	list, err := h.ledger.ListTransactions(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "ListTransactionsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) OwnTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := transactionFilter(q)
	if err := q.err(); err != nil {
		h.fail(w, "OwnTransactionsHandler", err)
		return
	}
	list, err := h.ledger.ListOwnTransactions(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "OwnTransactionsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "GetTransactionHandler", err)
		return
	}
	tnx, err := h.ledger.GetTransaction(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "GetTransactionHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, tnx)
}

// Подтверждение подозрительной покупки; допустимо только suspicious=false
func (h *Handler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "ApproveHandler", err)
		return
	}
	var req suspiciousRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "ApproveHandler", err)
		return
	}
	if req.Suspicious == nil || *req.Suspicious {
		h.fail(w, "ApproveHandler", fmt.Errorf("%w: suspicious can only be set to false", model.ErrValidation))
		return
	}
	tnx, err := h.ledger.ApproveSuspicious(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "ApproveHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, tnx)
}

// Обработка запроса на списание кассиром
func (h *Handler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "ProcessHandler", err)
		return
	}
	var req processedRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "ProcessHandler", err)
		return
	}
	if req.Processed == nil || !*req.Processed {
		h.fail(w, "ProcessHandler", fmt.Errorf("%w: processed can only be set to true", model.ErrValidation))
		return
	}
	tnx, err := h.ledger.ProcessRedemption(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "ProcessHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, tnx)
}

// Запрос на списание своих баллов
func (h *Handler) RedemptionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req pointsRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "RedemptionHandler", err)
		return
	}
	amount, err := req.check(model.TnxRedemption)
	if err != nil {
		h.fail(w, "RedemptionHandler", err)
		return
	}
	tnx, err := h.ledger.RequestRedemption(r.Context(), actor, services.RedemptionRequest{Amount: amount, Remark: req.Remark})
	if err != nil {
		h.fail(w, "RedemptionHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, tnx)
}

// Перевод пользователю; в ответе запись отправителя
func (h *Handler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "TransferHandler", err)
		return
	}
	var req pointsRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "TransferHandler", err)
		return
	}
	amount, err := req.check(model.TnxTransfer)
	if err != nil {
		h.fail(w, "TransferHandler", err)
		return
	}
	recipient, err := h.accounts.Recipient(r.Context(), id)
	if err != nil {
		h.fail(w, "TransferHandler", err)
		return
	}
	debit, _, err := h.ledger.CreateTransfer(r.Context(), actor, services.TransferRequest{
		Recipient: recipient.Utorid,
		Amount:    amount,
		Remark:    req.Remark,
	})
	if err != nil {
		h.fail(w, "TransferHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, debit)
}

// Начисление баллов события: одному гостю или всем
func (h *Handler) AwardHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "AwardHandler", err)
		return
	}
	var req awardRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "AwardHandler", err)
		return
	}
	amount, err := pointsRequest{Type: req.Type, Amount: req.Amount}.check(model.TnxEvent)
	if err != nil {
		h.fail(w, "AwardHandler", err)
		return
	}
	tnxs, err := h.ledger.AwardEventPoints(r.Context(), actor, id, services.AwardRequest{
		Utorid: req.Utorid,
		Amount: amount,
		Remark: req.Remark,
	})
	if err != nil {
		h.fail(w, "AwardHandler", err)
		return
	}
	if req.Utorid != "" && len(tnxs) == 1 {
		writeJSON(w, http.StatusCreated, tnxs[0])
		return
	}
	writeJSON(w, http.StatusCreated, tnxs)
}
