package api

import (
	"net/http"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"github.com/shopspring/decimal"
)

type promotionPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Type        *string          `json:"type"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	MinSpending *decimal.Decimal `json:"minSpending"`
	Rate        *decimal.Decimal `json:"rate"`
	Points      *int64           `json:"points"`
}

func (h *Handler) CreatePromotionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var promo model.Promotion
	if err := decode(r, &promo); err != nil {
		h.fail(w, "CreatePromotionHandler", err)
		return
	}
	promo.ID = 0
	created, err := h.promotions.Create(r.Context(), actor, promo)
	if err != nil {
		h.fail(w, "CreatePromotionHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListPromotionsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := model.PromotionFilter{
		Name:    q.str("name"),
		Started: q.boolPtr("started"),
		Ended:   q.boolPtr("ended"),
		Page:    q.page(),
	}
	if typ := q.str("type"); typ != "" {
		parsed, err := model.ParsePromotionType(typ)
		if err != nil {
			q.errs = append(q.errs, err)
		}
		filter.Type = parsed
	}
	if err := q.err(); err != nil {
		h.fail(w, "ListPromotionsHandler", err)
		return
	}
	list, err := h.promotions.List(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "ListPromotionsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetPromotionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "GetPromotionHandler", err)
		return
	}
	promo, err := h.promotions.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "GetPromotionHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) UpdatePromotionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "UpdatePromotionHandler", err)
		return
	}
	var req promotionPatch
	if err = decode(r, &req); err != nil {
		h.fail(w, "UpdatePromotionHandler", err)
		return
	}
	patch := services.PromotionPatch{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      req.Points,
	}
	if req.Type != nil {
		typ, err := model.ParsePromotionType(*req.Type)
		if err != nil {
			h.fail(w, "UpdatePromotionHandler", err)
			return
		}
		patch.Type = &typ
	}
	promo, err := h.promotions.Update(r.Context(), actor, id, patch)
	if err != nil {
		h.fail(w, "UpdatePromotionHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) DeletePromotionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "DeletePromotionHandler", err)
		return
	}
	if err = h.promotions.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "DeletePromotionHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
