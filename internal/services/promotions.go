package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/policy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PromotionService - каталог акций
type PromotionService struct {
	logger *zap.Logger
	promos interf.PromotionStorage
	ledger interf.LedgerStorage
	now    func() time.Time
}

func NewPromotionService(logger *zap.Logger, promos interf.PromotionStorage, ledger interf.LedgerStorage) *PromotionService {
	return &PromotionService{logger, promos, ledger, time.Now}
}

func (s *PromotionService) WithClock(now func() time.Time) *PromotionService {
	s.now = now
	return s
}

func (s *PromotionService) Log(err error) {
	s.logger.Error("Promotions",
		zap.String("service", "promotions"),
		zap.Error(err),
	)
}

func (s *PromotionService) Create(ctx context.Context, actor model.Account, promo model.Promotion) (model.Promotion, error) {
	if err := policy.Check(actor, policy.ManagePromotions); err != nil {
		return model.Promotion{}, err
	}
	if err := promo.Validate(); err != nil {
		return model.Promotion{}, err
	}
	if promo.StartTime != nil && promo.StartTime.Before(s.now()) {
		return model.Promotion{}, fmt.Errorf("%w: startTime must not be in the past", model.ErrValidation)
	}
	promo.ID = 0
	if err := s.promos.CreatePromotion(ctx, &promo); err != nil {
		return model.Promotion{}, err
	}
	return promo, nil
}

// Get: обычный пользователь видит только активные и не использованные им акции
func (s *PromotionService) Get(ctx context.Context, actor model.Account, id int64) (model.Promotion, error) {
	promo, err := s.promos.GetPromotion(ctx, id)
	if err != nil {
		return model.Promotion{}, err
	}
	if actor.Role.AtLeast(model.RoleManager) {
		return promo, nil
	}
	visible, err := s.visibleTo(ctx, actor, []model.Promotion{promo})
	if err != nil {
		return model.Promotion{}, err
	}
	if len(visible) == 0 {
		return model.Promotion{}, fmt.Errorf("promotion %d %w", id, model.ErrNotFound)
	}
	return promo, nil
}

func (s *PromotionService) List(ctx context.Context, actor model.Account, filter model.PromotionFilter) (model.List[model.Promotion], error) {
	filter.Now = s.now()
	if actor.Role.AtLeast(model.RoleManager) {
		if filter.Started != nil && filter.Ended != nil {
			return model.List[model.Promotion]{}, fmt.Errorf("%w: started and ended cannot be combined", model.ErrValidation)
		}
		promos, count, err := s.promos.ListPromotions(ctx, filter)
		if err != nil {
			return model.List[model.Promotion]{}, err
		}
		return newList(promos, count), nil
	}

	// для обычного пользователя: активные сейчас, без использованных one-time
	page := filter.Page
	started, ended := true, false
	filter.Started, filter.Ended = &started, &ended
	filter.Page = model.Page{Page: 1, Limit: model.MaxLimit}
	var all []model.Promotion
	for {
		promos, count, err := s.promos.ListPromotions(ctx, filter)
		if err != nil {
			return model.List[model.Promotion]{}, err
		}
		all = append(all, promos...)
		if len(promos) == 0 || len(all) >= count {
			break
		}
		filter.Page.Page++
	}
	visible, err := s.visibleTo(ctx, actor, all)
	if err != nil {
		return model.List[model.Promotion]{}, err
	}
	return newList(pageOf(visible, page), len(visible)), nil
}

func (s *PromotionService) visibleTo(ctx context.Context, actor model.Account, promos []model.Promotion) ([]model.Promotion, error) {
	used, err := s.ledger.UsedPromotions(ctx, actor.Utorid)
	if err != nil {
		return nil, err
	}
	now := s.now()
	visible := make([]model.Promotion, 0, len(promos))
	for _, p := range promos {
		if !p.ActiveAt(now) {
			continue
		}
		if p.Type == model.PromoOneTime && slices.Contains(used, p.ID) {
			continue
		}
		visible = append(visible, p)
	}
	return visible, nil
}

// PromotionPatch - изменяемые поля; nil означает "не менять"
type PromotionPatch struct {
	Name        *string
	Description *string
	Type        *model.PromotionType
	StartTime   *time.Time
	EndTime     *time.Time
	MinSpending *decimal.Decimal
	Rate        *decimal.Decimal
	Points      *int64
}

// Update: завершенную акцию менять нельзя, у начавшейся - только endTime и описание
func (s *PromotionService) Update(ctx context.Context, actor model.Account, id int64, patch PromotionPatch) (model.Promotion, error) {
	if err := policy.Check(actor, policy.ManagePromotions); err != nil {
		return model.Promotion{}, err
	}
	promo, err := s.promos.GetPromotion(ctx, id)
	if err != nil {
		return model.Promotion{}, err
	}
	now := s.now()
	if promo.Ended(now) {
		return model.Promotion{}, fmt.Errorf("%w: promotion %d has ended", model.ErrConflict, id)
	}
	started := promo.Started(now)
	if started && (patch.Name != nil || patch.Type != nil || patch.StartTime != nil ||
		patch.MinSpending != nil || patch.Rate != nil || patch.Points != nil) {
		return model.Promotion{}, fmt.Errorf("%w: only endTime and description may change after start", model.ErrConflict)
	}

	if patch.Name != nil {
		promo.Name = *patch.Name
	}
	if patch.Description != nil {
		promo.Description = *patch.Description
	}
	if patch.Type != nil {
		promo.Type = *patch.Type
	}
	if patch.StartTime != nil {
		if patch.StartTime.Before(now) {
			return model.Promotion{}, fmt.Errorf("%w: startTime must not be in the past", model.ErrValidation)
		}
		promo.StartTime = patch.StartTime
	}
	if patch.EndTime != nil {
		if patch.EndTime.Before(now) {
			return model.Promotion{}, fmt.Errorf("%w: endTime must not be in the past", model.ErrValidation)
		}
		promo.EndTime = *patch.EndTime
	}
	if patch.MinSpending != nil {
		promo.MinSpending = patch.MinSpending
	}
	if patch.Rate != nil {
		promo.Rate = patch.Rate
	}
	if patch.Points != nil {
		promo.Points = *patch.Points
	}
	// смена типа сбрасывает поле другого типа
	switch promo.Type {
	case model.PromoAutomatic:
		if patch.Type != nil && patch.Points == nil {
			promo.Points = 0
		}
	case model.PromoOneTime:
		if patch.Type != nil && patch.Rate == nil {
			promo.Rate = nil
		}
	}
	if err := promo.Validate(); err != nil {
		return model.Promotion{}, err
	}
	if err := s.promos.UpdatePromotion(ctx, promo); err != nil {
		return model.Promotion{}, err
	}
	return promo, nil
}

// Delete: только еще не начавшиеся акции
func (s *PromotionService) Delete(ctx context.Context, actor model.Account, id int64) error {
	if err := policy.Check(actor, policy.ManagePromotions); err != nil {
		return err
	}
	promo, err := s.promos.GetPromotion(ctx, id)
	if err != nil {
		return err
	}
	if promo.Started(s.now()) {
		return fmt.Errorf("%w: promotion %d has already started", model.ErrConflict, id)
	}
	return s.promos.DeletePromotion(ctx, id)
}

func newList[T any](items []T, count int) model.List[T] {
	if items == nil {
		items = []T{}
	}
	return model.List[T]{Count: count, Results: items}
}

func pageOf[T any](items []T, p model.Page) []T {
	p = p.Normalize()
	from := p.Offset()
	if from >= len(items) {
		return []T{}
	}
	return items[from:min(from+p.Limit, len(items))]
}
