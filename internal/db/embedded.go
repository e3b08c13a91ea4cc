package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// EmbeddedDB - хранилище на SQLite для разработки и тестов.
// Одно соединение: все транзакции выполняются последовательно.
// Внутри InTx нельзя обращаться к EmbeddedDB напрямую, только через LedgerTx.
type EmbeddedDB struct {
	db     *gorm.DB
	logger *zap.Logger
}

type accountRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Utorid         string `gorm:"uniqueIndex;size:8;not null"`
	Name           string `gorm:"size:50;not null"`
	Email          string `gorm:"uniqueIndex;not null"`
	Birthday       string
	Role           string `gorm:"size:16;not null"`
	Points         int64  `gorm:"not null;default:0"`
	Verified       bool   `gorm:"not null;default:false"`
	Suspicious     bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	LastLogin      *time.Time
	PasswordHash   string
	ResetToken     string `gorm:"index"`
	ResetExpiresAt *time.Time
}

func (accountRow) TableName() string { return "accounts" }

type transactionRow struct {
	ID          int64               `gorm:"primaryKey;autoIncrement"`
	Utorid      string              `gorm:"index;not null"`
	Type        string              `gorm:"index;size:16;not null"`
	Amount      int64               `gorm:"not null"`
	Spent       decimal.NullDecimal `gorm:"type:text"`
	RelatedID   *int64              `gorm:"index"`
	Suspicious  bool                `gorm:"not null;default:false"`
	Processed   bool                `gorm:"not null;default:false"`
	Remark      string
	CreatedBy   string `gorm:"index;not null"`
	ProcessedBy string
	CreatedAt   time.Time
}

func (transactionRow) TableName() string { return "transactions" }

type transactionPromotionRow struct {
	TransactionID int64  `gorm:"primaryKey"`
	PromotionID   int64  `gorm:"primaryKey"`
	Utorid        string `gorm:"index;not null"`
}

func (transactionPromotionRow) TableName() string { return "transaction_promotions" }

type eventRow struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	Name         string
	Description  string
	Location     string
	StartTime    time.Time
	EndTime      time.Time
	Capacity     *int64
	PointsTotal  int64
	PointsRemain int64
	Published    bool
	CreatedAt    time.Time
}

func (eventRow) TableName() string { return "events" }

type eventGuestRow struct {
	EventID   int64 `gorm:"primaryKey"`
	AccountID int64 `gorm:"primaryKey"`
}

func (eventGuestRow) TableName() string { return "event_guests" }

type eventOrganizerRow struct {
	EventID   int64 `gorm:"primaryKey"`
	AccountID int64 `gorm:"primaryKey"`
}

func (eventOrganizerRow) TableName() string { return "event_organizers" }

type promotionRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	Name        string
	Description string
	Type        string `gorm:"index;size:16"`
	StartTime   *time.Time
	EndTime     time.Time
	MinSpending decimal.NullDecimal `gorm:"type:text"`
	Rate        decimal.NullDecimal `gorm:"type:text"`
	Points      int64
}

func (promotionRow) TableName() string { return "promotions" }

func NewEmbeddedDB(dsn string, logger *zap.Logger) (*EmbeddedDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("embedded database dsn is empty")
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = gdb.AutoMigrate(
		&accountRow{},
		&transactionRow{},
		&transactionPromotionRow{},
		&eventRow{},
		&eventGuestRow{},
		&eventOrganizerRow{},
		&promotionRow{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate embedded database: %w", err)
	}
	return &EmbeddedDB{gdb, logger}, nil
}

func (e *EmbeddedDB) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (e *EmbeddedDB) InTx(ctx context.Context, fn func(ctx context.Context, tx interf.LedgerTx) error) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &embeddedTx{tx})
	})
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, model.ErrNotFound)
	}
	return err
}

// Счета

func (e *EmbeddedDB) GetAccount(ctx context.Context, utorid string) (model.Account, error) {
	return getAccount(e.db.WithContext(ctx), "utorid = ?", utorid)
}

func (e *EmbeddedDB) GetAccountByID(ctx context.Context, id int64) (model.Account, error) {
	return getAccount(e.db.WithContext(ctx), "id = ?", id)
}

func getAccount(db *gorm.DB, where string, arg any) (model.Account, error) {
	var row accountRow
	if err := db.Where(where, arg).First(&row).Error; err != nil {
		return model.Account{}, notFound(err, "user")
	}
	return row.model(), nil
}

func (e *EmbeddedDB) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error) {
	q := e.db.WithContext(ctx).Model(&accountRow{})
	if filter.Name != "" {
		like := "%" + filter.Name + "%"
		q = q.Where("utorid LIKE ? OR name LIKE ?", like, like)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}
	if filter.Verified != nil {
		q = q.Where("verified = ?", *filter.Verified)
	}
	if filter.Activated != nil {
		if *filter.Activated {
			q = q.Where("last_login IS NOT NULL")
		} else {
			q = q.Where("last_login IS NULL")
		}
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	var rows []accountRow
	if err := q.Order("id").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	accounts := make([]model.Account, len(rows))
	for i, r := range rows {
		accounts[i] = r.model()
	}
	return accounts, int(total), nil
}

// Транзакции

func (e *EmbeddedDB) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return getTransaction(e.db.WithContext(ctx), id)
}

func getTransaction(db *gorm.DB, id int64) (model.Transaction, error) {
	var row transactionRow
	if err := db.First(&row, id).Error; err != nil {
		return model.Transaction{}, notFound(err, "transaction")
	}
	tnxs, err := withPromotions(db, []transactionRow{row})
	if err != nil {
		return model.Transaction{}, err
	}
	return tnxs[0], nil
}

func (e *EmbeddedDB) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, int, error) {
	db := e.db.WithContext(ctx)
	q := db.Model(&transactionRow{})
	if filter.Utorid != "" {
		q = q.Where("utorid = ?", filter.Utorid)
	}
	if filter.Name != "" {
		like := "%" + filter.Name + "%"
		q = q.Where("utorid IN (SELECT utorid FROM accounts WHERE utorid LIKE ? OR name LIKE ?)", like, like)
	}
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Suspicious != nil {
		q = q.Where("suspicious = ?", *filter.Suspicious)
	}
	if filter.RelatedID != nil {
		q = q.Where("related_id = ?", *filter.RelatedID)
	}
	if filter.PromotionID != nil {
		q = q.Where("id IN (SELECT transaction_id FROM transaction_promotions WHERE promotion_id = ?)", *filter.PromotionID)
	}
	if filter.Amount != nil {
		switch filter.Operator {
		case "lte":
			q = q.Where("amount <= ?", *filter.Amount)
		default:
			q = q.Where("amount >= ?", *filter.Amount)
		}
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	var rows []transactionRow
	if err := q.Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	tnxs, err := withPromotions(db, rows)
	if err != nil {
		return nil, 0, err
	}
	return tnxs, int(total), nil
}

func withPromotions(db *gorm.DB, rows []transactionRow) ([]model.Transaction, error) {
	tnxs := make([]model.Transaction, len(rows))
	if len(rows) == 0 {
		return tnxs, nil
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var links []transactionPromotionRow
	if err := db.Where("transaction_id IN ?", ids).Order("promotion_id").Find(&links).Error; err != nil {
		return nil, err
	}
	promos := make(map[int64][]int64, len(rows))
	for _, l := range links {
		promos[l.TransactionID] = append(promos[l.TransactionID], l.PromotionID)
	}
	for i, r := range rows {
		tnxs[i] = r.model(promos[r.ID])
	}
	return tnxs, nil
}

func (e *EmbeddedDB) UsedPromotions(ctx context.Context, utorid string) ([]int64, error) {
	var ids []int64
	err := e.db.WithContext(ctx).Model(&transactionPromotionRow{}).
		Where("utorid = ?", utorid).
		Distinct().
		Pluck("promotion_id", &ids).Error
	return ids, err
}

// События

func (e *EmbeddedDB) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	return getEvent(e.db.WithContext(ctx), id)
}

func getEvent(db *gorm.DB, id int64) (model.Event, error) {
	var row eventRow
	if err := db.First(&row, id).Error; err != nil {
		return model.Event{}, notFound(err, "event")
	}
	event := row.model()
	if err := loadRosters(db, &event); err != nil {
		return model.Event{}, err
	}
	return event, nil
}

func loadRosters(db *gorm.DB, event *model.Event) error {
	var err error
	event.Guests, err = roster(db, "event_guests", event.ID)
	if err != nil {
		return err
	}
	event.Organizers, err = roster(db, "event_organizers", event.ID)
	return err
}

func roster(db *gorm.DB, table string, eventID int64) ([]model.AccountRef, error) {
	refs := []model.AccountRef{}
	err := db.Table("accounts").
		Select("accounts.id, accounts.utorid, accounts.name").
		Joins("JOIN "+table+" r ON r.account_id = accounts.id").
		Where("r.event_id = ?", eventID).
		Order("accounts.id").
		Scan(&refs).Error
	return refs, err
}

// ListEvents: фильтры по времени и заполненности применяются в памяти
func (e *EmbeddedDB) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	db := e.db.WithContext(ctx)
	q := db.Model(&eventRow{})
	if filter.Name != "" {
		q = q.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Location != "" {
		q = q.Where("location LIKE ?", "%"+filter.Location+"%")
	}
	if filter.Published != nil {
		q = q.Where("published = ?", *filter.Published)
	}
	var rows []eventRow
	if err := q.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	var events []model.Event
	for _, r := range rows {
		event := r.model()
		if filter.Started != nil && event.Started(now) != *filter.Started {
			continue
		}
		if filter.Ended != nil && event.Ended(now) != *filter.Ended {
			continue
		}
		if err := loadRosters(db, &event); err != nil {
			return nil, 0, err
		}
		if !filter.ShowFull && event.Full() {
			continue
		}
		events = append(events, event)
	}
	return paginate(events, filter.Page), len(events), nil
}

func paginate[T any](items []T, p model.Page) []T {
	p = p.Normalize()
	from := p.Offset()
	if from >= len(items) {
		return []T{}
	}
	to := min(from+p.Limit, len(items))
	return items[from:to]
}

// Акции (PromotionStorage для встроенного режима)

func (e *EmbeddedDB) CreatePromotion(ctx context.Context, promo *model.Promotion) error {
	row := promotionFromModel(*promo)
	row.ID = 0
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	promo.ID = row.ID
	return nil
}

func (e *EmbeddedDB) GetPromotion(ctx context.Context, id int64) (model.Promotion, error) {
	var row promotionRow
	if err := e.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return model.Promotion{}, notFound(err, "promotion")
	}
	return row.model(), nil
}

func (e *EmbeddedDB) UpdatePromotion(ctx context.Context, promo model.Promotion) error {
	row := promotionFromModel(promo)
	res := e.db.WithContext(ctx).Model(&promotionRow{ID: promo.ID}).
		Select("name", "description", "type", "start_time", "end_time", "min_spending", "rate", "points").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("promotion %w", model.ErrNotFound)
	}
	return nil
}

func (e *EmbeddedDB) DeletePromotion(ctx context.Context, id int64) error {
	res := e.db.WithContext(ctx).Delete(&promotionRow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("promotion %w", model.ErrNotFound)
	}
	return nil
}

func (e *EmbeddedDB) ListPromotions(ctx context.Context, filter model.PromotionFilter) ([]model.Promotion, int, error) {
	q := e.db.WithContext(ctx).Model(&promotionRow{})
	if filter.Name != "" {
		q = q.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	var rows []promotionRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	var promos []model.Promotion
	for _, r := range rows {
		p := r.model()
		if filter.Started != nil && p.Started(now) != *filter.Started {
			continue
		}
		if filter.Ended != nil && p.Ended(now) != *filter.Ended {
			continue
		}
		promos = append(promos, p)
	}
	return paginate(promos, filter.Page), len(promos), nil
}

func (e *EmbeddedDB) ActivePromotions(ctx context.Context, at time.Time, typ model.PromotionType) ([]model.Promotion, error) {
	var rows []promotionRow
	if err := e.db.WithContext(ctx).Where("type = ?", string(typ)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	var promos []model.Promotion
	for _, r := range rows {
		if p := r.model(); p.ActiveAt(at) {
			promos = append(promos, p)
		}
	}
	return promos, nil
}

// embeddedTx - операции внутри транзакции gorm
type embeddedTx struct {
	tx *gorm.DB
}

func (t *embeddedTx) LockAccount(ctx context.Context, utorid string) (model.Account, error) {
	return getAccount(t.tx, "utorid = ?", utorid)
}

func (t *embeddedTx) LockAccountByID(ctx context.Context, id int64) (model.Account, error) {
	return getAccount(t.tx, "id = ?", id)
}

func (t *embeddedTx) CreateAccount(ctx context.Context, account *model.Account) error {
	row := accountFromModel(*account)
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := t.tx.Create(&row).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: user %s already exists", model.ErrConflict, account.Utorid)
		}
		return err
	}
	account.ID = row.ID
	account.CreatedAt = row.CreatedAt
	return nil
}

func (t *embeddedTx) UpdateAccount(ctx context.Context, account model.Account) error {
	row := accountFromModel(account)
	res := t.tx.Model(&accountRow{ID: account.ID}).
		Select("name", "email", "birthday", "role", "points", "verified", "suspicious",
			"last_login", "password_hash", "reset_token", "reset_expires_at").
		Updates(&row)
	if res.Error != nil {
		if strings.Contains(res.Error.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: email already in use", model.ErrConflict)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %w", model.ErrNotFound)
	}
	return nil
}

func (t *embeddedTx) LockTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return getTransaction(t.tx, id)
}

func (t *embeddedTx) InsertTransaction(ctx context.Context, tnx *model.Transaction) error {
	row := transactionFromModel(*tnx)
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := t.tx.Create(&row).Error; err != nil {
		return err
	}
	for _, pid := range tnx.PromotionIDs {
		link := transactionPromotionRow{TransactionID: row.ID, PromotionID: pid, Utorid: tnx.Utorid}
		if err := t.tx.Create(&link).Error; err != nil {
			return err
		}
	}
	tnx.ID = row.ID
	tnx.CreatedAt = row.CreatedAt
	return nil
}

// UpdateTransaction меняет только допустимые поля: suspicious и обработку списания
func (t *embeddedTx) UpdateTransaction(ctx context.Context, tnx model.Transaction) error {
	res := t.tx.Model(&transactionRow{ID: tnx.ID}).
		Select("suspicious", "processed", "processed_by").
		Updates(&transactionRow{Suspicious: tnx.Suspicious, Processed: tnx.Processed, ProcessedBy: tnx.ProcessedBy})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %w", model.ErrNotFound)
	}
	return nil
}

// LinkTransaction проставляет relatedId, если он еще пуст (парные записи перевода)
func (t *embeddedTx) LinkTransaction(ctx context.Context, id int64, relatedID int64) error {
	res := t.tx.Model(&transactionRow{}).
		Where("id = ? AND related_id IS NULL", id).
		Update("related_id", relatedID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: transaction %d is already linked", model.ErrConflict, id)
	}
	return nil
}

func (t *embeddedTx) PendingRedemption(ctx context.Context, utorid string) (bool, error) {
	var count int64
	err := t.tx.Model(&transactionRow{}).
		Where("utorid = ? AND type = ? AND processed = ?", utorid, string(model.TnxRedemption), false).
		Count(&count).Error
	return count > 0, err
}

func (t *embeddedTx) PromotionUsed(ctx context.Context, utorid string, promotionID int64) (bool, error) {
	var count int64
	err := t.tx.Model(&transactionPromotionRow{}).
		Where("utorid = ? AND promotion_id = ?", utorid, promotionID).
		Count(&count).Error
	return count > 0, err
}

func (t *embeddedTx) LockEvent(ctx context.Context, id int64) (model.Event, error) {
	return getEvent(t.tx, id)
}

func (t *embeddedTx) CreateEvent(ctx context.Context, event *model.Event) error {
	row := eventFromModel(*event)
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := t.tx.Create(&row).Error; err != nil {
		return err
	}
	event.ID = row.ID
	event.CreatedAt = row.CreatedAt
	return nil
}

func (t *embeddedTx) UpdateEvent(ctx context.Context, event model.Event) error {
	row := eventFromModel(event)
	res := t.tx.Model(&eventRow{ID: event.ID}).
		Select("name", "description", "location", "start_time", "end_time", "capacity",
			"points_total", "points_remain", "published").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %w", model.ErrNotFound)
	}
	return nil
}

func (t *embeddedTx) DeleteEvent(ctx context.Context, id int64) error {
	if err := t.tx.Where("event_id = ?", id).Delete(&eventGuestRow{}).Error; err != nil {
		return err
	}
	if err := t.tx.Where("event_id = ?", id).Delete(&eventOrganizerRow{}).Error; err != nil {
		return err
	}
	res := t.tx.Delete(&eventRow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %w", model.ErrNotFound)
	}
	return nil
}

func (t *embeddedTx) AddGuest(ctx context.Context, eventID int64, accountID int64) error {
	return t.tx.Create(&eventGuestRow{EventID: eventID, AccountID: accountID}).Error
}

func (t *embeddedTx) RemoveGuest(ctx context.Context, eventID int64, accountID int64) error {
	return t.tx.Delete(&eventGuestRow{EventID: eventID, AccountID: accountID}).Error
}

func (t *embeddedTx) AddOrganizer(ctx context.Context, eventID int64, accountID int64) error {
	return t.tx.Create(&eventOrganizerRow{EventID: eventID, AccountID: accountID}).Error
}

func (t *embeddedTx) RemoveOrganizer(ctx context.Context, eventID int64, accountID int64) error {
	return t.tx.Delete(&eventOrganizerRow{EventID: eventID, AccountID: accountID}).Error
}

// преобразования строк

func (r accountRow) model() model.Account {
	return model.Account{
		ID:             r.ID,
		Utorid:         r.Utorid,
		Name:           r.Name,
		Email:          r.Email,
		Birthday:       r.Birthday,
		Role:           model.Role(r.Role),
		Points:         r.Points,
		Verified:       r.Verified,
		Suspicious:     r.Suspicious,
		CreatedAt:      r.CreatedAt,
		LastLogin:      r.LastLogin,
		PasswordHash:   r.PasswordHash,
		ResetToken:     r.ResetToken,
		ResetExpiresAt: r.ResetExpiresAt,
	}
}

func accountFromModel(a model.Account) accountRow {
	return accountRow{
		ID:             a.ID,
		Utorid:         a.Utorid,
		Name:           a.Name,
		Email:          a.Email,
		Birthday:       a.Birthday,
		Role:           string(a.Role),
		Points:         a.Points,
		Verified:       a.Verified,
		Suspicious:     a.Suspicious,
		CreatedAt:      a.CreatedAt,
		LastLogin:      a.LastLogin,
		PasswordHash:   a.PasswordHash,
		ResetToken:     a.ResetToken,
		ResetExpiresAt: a.ResetExpiresAt,
	}
}

func (r transactionRow) model(promos []int64) model.Transaction {
	if promos == nil {
		promos = []int64{}
	}
	t := model.Transaction{
		ID:           r.ID,
		Utorid:       r.Utorid,
		Type:         model.TransactionType(r.Type),
		Amount:       r.Amount,
		RelatedID:    r.RelatedID,
		PromotionIDs: promos,
		Suspicious:   r.Suspicious,
		Processed:    r.Processed,
		Remark:       r.Remark,
		CreatedBy:    r.CreatedBy,
		ProcessedBy:  r.ProcessedBy,
		CreatedAt:    r.CreatedAt,
	}
	if r.Spent.Valid {
		spent := r.Spent.Decimal
		t.Spent = &spent
	}
	return t
}

func transactionFromModel(t model.Transaction) transactionRow {
	row := transactionRow{
		ID:          t.ID,
		Utorid:      t.Utorid,
		Type:        string(t.Type),
		Amount:      t.Amount,
		RelatedID:   t.RelatedID,
		Suspicious:  t.Suspicious,
		Processed:   t.Processed,
		Remark:      t.Remark,
		CreatedBy:   t.CreatedBy,
		ProcessedBy: t.ProcessedBy,
		CreatedAt:   t.CreatedAt,
	}
	if t.Spent != nil {
		row.Spent = decimal.NewNullDecimal(*t.Spent)
	}
	return row
}

func (r eventRow) model() model.Event {
	return model.Event{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Location:     r.Location,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Capacity:     r.Capacity,
		PointsTotal:  r.PointsTotal,
		PointsRemain: r.PointsRemain,
		Published:    r.Published,
		Organizers:   []model.AccountRef{},
		Guests:       []model.AccountRef{},
		CreatedAt:    r.CreatedAt,
	}
}

func eventFromModel(e model.Event) eventRow {
	return eventRow{
		ID:           e.ID,
		Name:         e.Name,
		Description:  e.Description,
		Location:     e.Location,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Capacity:     e.Capacity,
		PointsTotal:  e.PointsTotal,
		PointsRemain: e.PointsRemain,
		Published:    e.Published,
		CreatedAt:    e.CreatedAt,
	}
}

func (r promotionRow) model() model.Promotion {
	p := model.Promotion{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Type:        model.PromotionType(r.Type),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Points:      r.Points,
	}
	if r.MinSpending.Valid {
		v := r.MinSpending.Decimal
		p.MinSpending = &v
	}
	if r.Rate.Valid {
		v := r.Rate.Decimal
		p.Rate = &v
	}
	return p
}

func promotionFromModel(p model.Promotion) promotionRow {
	row := promotionRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.Type),
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Points:      p.Points,
	}
	if p.MinSpending != nil {
		row.MinSpending = decimal.NewNullDecimal(*p.MinSpending)
	}
	if p.Rate != nil {
		row.Rate = decimal.NewNullDecimal(*p.Rate)
	}
	return row
}
