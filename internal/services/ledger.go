package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/policy"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/glkeru/loyalty/pay2win/internal/services"

// LedgerService - журнал транзакций и баланс счетов
type LedgerService struct {
	logger   *zap.Logger
	db       interf.LedgerStorage
	promos   interf.PromotionStorage
	cache    interf.CacheStorage
	notifier interf.LedgerNotifier
	now      func() time.Time
	tracer   trace.Tracer
}

func NewLedgerService(logger *zap.Logger, db interf.LedgerStorage, promos interf.PromotionStorage, cache interf.CacheStorage, notifier interf.LedgerNotifier) *LedgerService {
	return &LedgerService{
		logger:   logger,
		db:       db,
		promos:   promos,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
}

// WithClock подменяет источник времени (тесты, пересчет окон акций)
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func (s *LedgerService) Log(err error) {
	s.logger.Error("Ledger",
		zap.String("service", "ledger"),
		zap.Error(err),
	)
}

func (s *LedgerService) span(ctx context.Context, name string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, name)
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

type PurchaseRequest struct {
	Utorid       string
	Spent        decimal.Decimal
	PromotionIDs []int64
	Remark       string
}

// расчет начисления по покупке
type purchaseQuote struct {
	base    int64
	bonus   int64
	applied []int64
	oneTime []int64
}

// Покупка: базовые баллы плюс бонусы по акциям.
// У подозрительного счета транзакция записывается без начисления.
func (s *LedgerService) CreatePurchase(ctx context.Context, actor model.Account, req PurchaseRequest) (tnx model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.CreatePurchase")
	defer end(&err)

	if err = policy.Check(actor, policy.CreatePurchase); err != nil {
		return tnx, err
	}
	if err = model.ValidateSpent(req.Spent); err != nil {
		return tnx, err
	}
	now := s.now()

	// акции читаются до открытия транзакции БД
	quote, err := s.quotePurchase(ctx, req.Spent, req.PromotionIDs, now)
	if err != nil {
		return tnx, err
	}

	amount, err := model.AddPoints(quote.base, quote.bonus)
	if err != nil {
		return tnx, err
	}
	spent := req.Spent
	tnx = model.Transaction{
		Utorid:       req.Utorid,
		Type:         model.TnxPurchase,
		Amount:       amount,
		Spent:        &spent,
		PromotionIDs: quote.applied,
		Remark:       req.Remark,
		CreatedBy:    actor.Utorid,
		CreatedAt:    now,
	}

	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		owner, err := tx.LockAccount(ctx, req.Utorid)
		if err != nil {
			return err
		}
		for _, id := range quote.oneTime {
			used, err := tx.PromotionUsed(ctx, owner.Utorid, id)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("%w: promotion %d already used by %s", model.ErrValidation, id, owner.Utorid)
			}
		}
		tnx.Suspicious = owner.Suspicious
		if err := tx.InsertTransaction(ctx, &tnx); err != nil {
			return err
		}
		if tnx.Suspicious {
			return nil
		}
		if err := owner.Credit(tnx.Amount); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, owner)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.committed(ctx, "purchase", tnx)
	return tnx, nil
}

// quotePurchase: названные акции читаются параллельно, автоматические - одним запросом
func (s *LedgerService) quotePurchase(ctx context.Context, spent decimal.Decimal, ids []int64, now time.Time) (purchaseQuote, error) {
	base, err := model.BasePoints(spent)
	if err != nil {
		return purchaseQuote{}, err
	}
	q := purchaseQuote{base: base, applied: []int64{}}

	named := slices.Clone(ids)
	slices.Sort(named)
	named = slices.Compact(named)

	found := make([]model.Promotion, len(named))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range named {
		g.Go(func() error {
			promo, err := s.promos.GetPromotion(gctx, id)
			if err != nil {
				return err
			}
			found[i] = promo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return q, err
	}

	for _, promo := range found {
		if !promo.Eligible(spent, now) {
			return q, fmt.Errorf("%w: promotion %d does not apply to this purchase", model.ErrValidation, promo.ID)
		}
		if promo.Type == model.PromoOneTime {
			if err := q.addBonus(promo); err != nil {
				return q, err
			}
			q.applied = append(q.applied, promo.ID)
			q.oneTime = append(q.oneTime, promo.ID)
		}
	}

	// названная automatic акция входит в активные и применяется один раз
	auto, err := s.promos.ActivePromotions(ctx, now, model.PromoAutomatic)
	if err != nil {
		return q, err
	}
	for _, promo := range auto {
		if !promo.Eligible(spent, now) {
			continue
		}
		if err := q.addBonus(promo); err != nil {
			return q, err
		}
		q.applied = append(q.applied, promo.ID)
	}
	slices.Sort(q.applied)
	return q, nil
}

func (q *purchaseQuote) addBonus(promo model.Promotion) error {
	bonus, err := promo.Bonus(q.base)
	if err != nil {
		return err
	}
	q.bonus, err = model.AddPoints(q.bonus, bonus)
	return err
}

// Подтверждение подозрительной покупки и отложенное начисление
func (s *LedgerService) ApproveSuspicious(ctx context.Context, actor model.Account, id int64) (tnx model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.ApproveSuspicious")
	defer end(&err)

	if err = policy.Check(actor, policy.ApproveSuspicious); err != nil {
		return tnx, err
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		tnx, err = tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := tnx.Approve(); err != nil {
			return err
		}
		owner, err := tx.LockAccount(ctx, tnx.Utorid)
		if err != nil {
			return err
		}
		if err := owner.Credit(tnx.Amount); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, tnx); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, owner)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.committed(ctx, "approve", tnx)
	return tnx, nil
}

type AdjustmentRequest struct {
	Utorid    string
	Amount    int64
	RelatedID *int64
	Remark    string
}

// Корректировка баланса менеджером, применяется сразу
func (s *LedgerService) CreateAdjustment(ctx context.Context, actor model.Account, req AdjustmentRequest) (tnx model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.CreateAdjustment")
	defer end(&err)

	if err = policy.Check(actor, policy.CreateAdjustment); err != nil {
		return tnx, err
	}
	if req.Amount == 0 {
		return tnx, fmt.Errorf("%w: adjustment amount must not be zero", model.ErrValidation)
	}
	if strings.TrimSpace(req.Remark) == "" {
		return tnx, fmt.Errorf("%w: adjustment remark is required", model.ErrValidation)
	}

	tnx = model.Transaction{
		Utorid:       req.Utorid,
		Type:         model.TnxAdjustment,
		Amount:       req.Amount,
		RelatedID:    req.RelatedID,
		PromotionIDs: []int64{},
		Remark:       req.Remark,
		CreatedBy:    actor.Utorid,
		CreatedAt:    s.now(),
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		if req.RelatedID != nil {
			related, err := tx.LockTransaction(ctx, *req.RelatedID)
			if err != nil {
				return err
			}
			if related.Utorid != req.Utorid {
				return fmt.Errorf("%w: transaction %d belongs to another account", model.ErrValidation, related.ID)
			}
		}
		owner, err := tx.LockAccount(ctx, req.Utorid)
		if err != nil {
			return err
		}
		if owner.Points+req.Amount < 0 {
			return fmt.Errorf("%w: adjustment would leave %s with a negative balance", model.ErrValidation, owner.Utorid)
		}
		if err := owner.Credit(req.Amount); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &tnx); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, owner)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.committed(ctx, "adjustment", tnx)
	return tnx, nil
}

type TransferRequest struct {
	Recipient string
	Amount    int64
	Remark    string
}

// Перевод между счетами: две записи, обе или ни одной.
// Возвращает списание у отправителя и зачисление получателю.
func (s *LedgerService) CreateTransfer(ctx context.Context, actor model.Account, req TransferRequest) (debit model.Transaction, credit model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.CreateTransfer")
	defer end(&err)

	if err = policy.Check(actor, policy.Transfer); err != nil {
		return
	}
	if req.Amount <= 0 {
		err = fmt.Errorf("%w: transfer amount must be positive", model.ErrValidation)
		return
	}
	if req.Recipient == actor.Utorid {
		err = fmt.Errorf("%w: cannot transfer points to yourself", model.ErrValidation)
		return
	}

	now := s.now()
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		locked, err := lockAccounts(ctx, tx, actor.Utorid, req.Recipient)
		if err != nil {
			return err
		}
		sender, recipient := locked[actor.Utorid], locked[req.Recipient]
		if err := policy.RequireVerified(sender); err != nil {
			return err
		}
		if sender.Points < req.Amount {
			return fmt.Errorf("%w: insufficient points for transfer", model.ErrValidation)
		}
		if err := sender.Credit(-req.Amount); err != nil {
			return err
		}
		if err := recipient.Credit(req.Amount); err != nil {
			return err
		}

		debit = model.Transaction{
			Utorid:       sender.Utorid,
			Type:         model.TnxTransfer,
			Amount:       -req.Amount,
			PromotionIDs: []int64{},
			Remark:       req.Remark,
			CreatedBy:    sender.Utorid,
			CreatedAt:    now,
		}
		if err := tx.InsertTransaction(ctx, &debit); err != nil {
			return err
		}
		debitID := debit.ID
		credit = model.Transaction{
			Utorid:       recipient.Utorid,
			Type:         model.TnxTransfer,
			Amount:       req.Amount,
			RelatedID:    &debitID,
			PromotionIDs: []int64{},
			Remark:       req.Remark,
			CreatedBy:    sender.Utorid,
			CreatedAt:    now,
		}
		if err := tx.InsertTransaction(ctx, &credit); err != nil {
			return err
		}
		if err := tx.LinkTransaction(ctx, debit.ID, credit.ID); err != nil {
			return err
		}
		creditID := credit.ID
		debit.RelatedID = &creditID

		if err := tx.UpdateAccount(ctx, sender); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, recipient)
	})
	if err != nil {
		return model.Transaction{}, model.Transaction{}, err
	}

	s.committed(ctx, "transfer", debit, credit)
	return debit, credit, nil
}

// lockAccounts блокирует счета в порядке utorid
func lockAccounts(ctx context.Context, tx interf.LedgerTx, utorids ...string) (map[string]model.Account, error) {
	order := slices.Clone(utorids)
	slices.Sort(order)
	order = slices.Compact(order)

	locked := make(map[string]model.Account, len(order))
	for _, utorid := range order {
		account, err := tx.LockAccount(ctx, utorid)
		if err != nil {
			return nil, err
		}
		locked[utorid] = account
	}
	return locked, nil
}

type RedemptionRequest struct {
	Amount int64
	Remark string
}

// Запрос на списание: баланс не меняется до обработки кассиром
func (s *LedgerService) RequestRedemption(ctx context.Context, actor model.Account, req RedemptionRequest) (tnx model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.RequestRedemption")
	defer end(&err)

	if err = policy.Check(actor, policy.Redeem); err != nil {
		return tnx, err
	}
	if req.Amount <= 0 {
		return tnx, fmt.Errorf("%w: redemption amount must be positive", model.ErrValidation)
	}

	tnx = model.Transaction{
		Utorid:       actor.Utorid,
		Type:         model.TnxRedemption,
		Amount:       -req.Amount,
		PromotionIDs: []int64{},
		Remark:       req.Remark,
		CreatedBy:    actor.Utorid,
		CreatedAt:    s.now(),
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		owner, err := tx.LockAccount(ctx, actor.Utorid)
		if err != nil {
			return err
		}
		if err := policy.RequireVerified(owner); err != nil {
			return err
		}
		pending, err := tx.PendingRedemption(ctx, owner.Utorid)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: %s already has a pending redemption", model.ErrConflict, owner.Utorid)
		}
		if req.Amount > owner.Points {
			return fmt.Errorf("%w: redemption exceeds balance of %d", model.ErrValidation, owner.Points)
		}
		return tx.InsertTransaction(ctx, &tnx)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.committed(ctx, "redemption", tnx)
	return tnx, nil
}

// Обработка списания кассиром; повторная обработка - ErrConflict
func (s *LedgerService) ProcessRedemption(ctx context.Context, actor model.Account, id int64) (tnx model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.ProcessRedemption")
	defer end(&err)

	if err = policy.Check(actor, policy.ProcessRedemption); err != nil {
		return tnx, err
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		tnx, err = tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := tnx.Process(actor.Utorid); err != nil {
			return err
		}
		owner, err := tx.LockAccount(ctx, tnx.Utorid)
		if err != nil {
			return err
		}
		if owner.Points+tnx.Amount < 0 {
			return fmt.Errorf("%w: %s no longer has enough points for redemption %d", model.ErrValidation, owner.Utorid, tnx.ID)
		}
		if err := owner.Credit(tnx.Amount); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, tnx); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, owner)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.committed(ctx, "process", tnx)
	return tnx, nil
}

type AwardRequest struct {
	Utorid string // пусто - всем гостям
	Amount int64
	Remark string
}

// Начисление баллов гостям события из его бюджета, все или ничего
func (s *LedgerService) AwardEventPoints(ctx context.Context, actor model.Account, eventID int64, req AwardRequest) (tnxs []model.Transaction, err error) {
	ctx, end := s.span(ctx, "ledger.AwardEventPoints")
	defer end(&err)

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: award amount must be positive", model.ErrValidation)
	}
	now := s.now()

	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := policy.CanManageEvent(actor, event); err != nil {
			return err
		}

		var targets []string
		if req.Utorid != "" {
			guest, err := tx.LockAccount(ctx, req.Utorid)
			if err != nil {
				return err
			}
			if !event.IsGuest(guest.ID) {
				return fmt.Errorf("%w: %s is not a guest of event %d", model.ErrValidation, guest.Utorid, event.ID)
			}
			targets = []string{guest.Utorid}
		} else {
			if len(event.Guests) == 0 {
				return fmt.Errorf("%w: event %d has no guests", model.ErrValidation, event.ID)
			}
			for _, g := range event.Guests {
				targets = append(targets, g.Utorid)
			}
		}

		if err := event.Draw(req.Amount, len(targets)); err != nil {
			return err
		}
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		locked, err := lockAccounts(ctx, tx, targets...)
		if err != nil {
			return err
		}
		slices.Sort(targets)
		eventRef := event.ID
		tnxs = make([]model.Transaction, 0, len(targets))
		for _, utorid := range targets {
			guest := locked[utorid]
			if err := guest.Credit(req.Amount); err != nil {
				return err
			}
			tnx := model.Transaction{
				Utorid:       guest.Utorid,
				Type:         model.TnxEvent,
				Amount:       req.Amount,
				RelatedID:    &eventRef,
				PromotionIDs: []int64{},
				Remark:       req.Remark,
				CreatedBy:    actor.Utorid,
				CreatedAt:    now,
			}
			if err := tx.InsertTransaction(ctx, &tnx); err != nil {
				return err
			}
			if err := tx.UpdateAccount(ctx, guest); err != nil {
				return err
			}
			tnxs = append(tnxs, tnx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "event", tnxs...)
	return tnxs, nil
}

// Чтение

func (s *LedgerService) GetTransaction(ctx context.Context, actor model.Account, id int64) (model.Transaction, error) {
	tnx, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return model.Transaction{}, err
	}
	if tnx.Utorid != actor.Utorid {
		if err := policy.Check(actor, policy.ListTransactions); err != nil {
			return model.Transaction{}, err
		}
	}
	return tnx, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, actor model.Account, filter model.TransactionFilter) (model.List[model.Transaction], error) {
	if err := policy.Check(actor, policy.ListTransactions); err != nil {
		return model.List[model.Transaction]{}, err
	}
	return s.list(ctx, filter)
}

// ListOwnTransactions - история актора, фильтры по чужим полям игнорируются
func (s *LedgerService) ListOwnTransactions(ctx context.Context, actor model.Account, filter model.TransactionFilter) (model.List[model.Transaction], error) {
	filter.Utorid = actor.Utorid
	filter.Name = ""
	filter.CreatedBy = ""
	filter.Suspicious = nil
	return s.list(ctx, filter)
}

func (s *LedgerService) list(ctx context.Context, filter model.TransactionFilter) (model.List[model.Transaction], error) {
	if filter.Amount != nil && filter.Operator != "gte" && filter.Operator != "lte" {
		return model.List[model.Transaction]{}, fmt.Errorf("%w: operator must be gte or lte", model.ErrValidation)
	}
	tnxs, count, err := s.db.ListTransactions(ctx, filter)
	if err != nil {
		return model.List[model.Transaction]{}, err
	}
	if tnxs == nil {
		tnxs = []model.Transaction{}
	}
	return model.List[model.Transaction]{Count: count, Results: tnxs}, nil
}

// баланс
func (s *LedgerService) GetBalance(ctx context.Context, utorid string) (points int64, err error) {
	if s.cache != nil {
		points, err = s.cache.GetBalance(ctx, utorid)
		if err == nil {
			return points, nil
		}
	}
	account, err := s.db.GetAccount(ctx, utorid)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetBalance(ctx, utorid, account.Points); err != nil {
			s.Log(err)
		}
	}
	return account.Points, nil
}

// инвалидировать кэш баланса
func (s *LedgerService) InvalidateBalance(ctx context.Context, utorid string) error {
	if s.cache != nil {
		return s.cache.InvalidateBalance(ctx, utorid)
	}
	return nil
}

// после commit: кэш, уведомления, метрики; ошибки только логируются
func (s *LedgerService) committed(ctx context.Context, operation string, tnxs ...model.Transaction) {
	ledgerOperations.WithLabelValues(operation).Inc()
	for _, tnx := range tnxs {
		if tnx.Applied() {
			pointsMoved.WithLabelValues(string(tnx.Type)).Add(float64(abs(tnx.Amount)))
		}
		if err := s.InvalidateBalance(ctx, tnx.Utorid); err != nil {
			s.Log(err)
		}
		if s.notifier != nil {
			if err := s.notifier.TransactionCommitted(ctx, tnx); err != nil {
				s.Log(err)
			}
		}
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
