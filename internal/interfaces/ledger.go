package interfaces

import (
	"context"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
)

//go:generate mockgen -destination=./../services/mock_interfaces_test.go -package=services . CacheStorage,LedgerNotifier,ResetNotifier

// LedgerStorage - хранилище счетов, транзакций и событий.
// Все изменения выполняются внутри InTx одной транзакцией БД.
type LedgerStorage interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	GetAccount(ctx context.Context, utorid string) (model.Account, error)
	GetAccountByID(ctx context.Context, id int64) (model.Account, error)
	ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error)

	GetTransaction(ctx context.Context, id int64) (model.Transaction, error)
	ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, int, error)
	UsedPromotions(ctx context.Context, utorid string) ([]int64, error)

	GetEvent(ctx context.Context, id int64) (model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error)
}

// LedgerTx - операции внутри транзакции БД; Lock* блокируют строку до commit
type LedgerTx interface {
	LockAccount(ctx context.Context, utorid string) (model.Account, error)
	LockAccountByID(ctx context.Context, id int64) (model.Account, error)
	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccount(ctx context.Context, account model.Account) error

	LockTransaction(ctx context.Context, id int64) (model.Transaction, error)
	InsertTransaction(ctx context.Context, tnx *model.Transaction) error
	UpdateTransaction(ctx context.Context, tnx model.Transaction) error
	LinkTransaction(ctx context.Context, id int64, relatedID int64) error
	PendingRedemption(ctx context.Context, utorid string) (bool, error)
	PromotionUsed(ctx context.Context, utorid string, promotionID int64) (bool, error)

	LockEvent(ctx context.Context, id int64) (model.Event, error)
	CreateEvent(ctx context.Context, event *model.Event) error
	UpdateEvent(ctx context.Context, event model.Event) error
	DeleteEvent(ctx context.Context, id int64) error
	AddGuest(ctx context.Context, eventID int64, accountID int64) error
	RemoveGuest(ctx context.Context, eventID int64, accountID int64) error
	AddOrganizer(ctx context.Context, eventID int64, accountID int64) error
	RemoveOrganizer(ctx context.Context, eventID int64, accountID int64) error
}

// PromotionStorage - каталог акций
type PromotionStorage interface {
	CreatePromotion(ctx context.Context, promo *model.Promotion) error
	GetPromotion(ctx context.Context, id int64) (model.Promotion, error)
	UpdatePromotion(ctx context.Context, promo model.Promotion) error
	DeletePromotion(ctx context.Context, id int64) error
	ListPromotions(ctx context.Context, filter model.PromotionFilter) ([]model.Promotion, int, error)
	ActivePromotions(ctx context.Context, at time.Time, typ model.PromotionType) ([]model.Promotion, error)
}

type CacheStorage interface {
	GetBalance(ctx context.Context, utorid string) (points int64, err error)
	SetBalance(ctx context.Context, utorid string, points int64) (err error)
	InvalidateBalance(ctx context.Context, utorid string) error
}

// LedgerNotifier - уведомления о проведенных транзакциях
type LedgerNotifier interface {
	TransactionCommitted(ctx context.Context, tnx model.Transaction) error
}

// ResetNotifier - доставка токена сброса пароля владельцу счета
type ResetNotifier interface {
	ResetRequested(ctx context.Context, account model.Account, token string, expiresAt time.Time) error
}
