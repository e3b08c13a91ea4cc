package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Schema - таблицы Postgres (cmd/admin migrate)
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               BIGSERIAL PRIMARY KEY,
	utorid           VARCHAR(8)  NOT NULL UNIQUE,
	name             VARCHAR(50) NOT NULL,
	email            TEXT        NOT NULL UNIQUE,
	birthday         TEXT        NOT NULL DEFAULT '',
	role             VARCHAR(16) NOT NULL,
	points           BIGINT      NOT NULL DEFAULT 0,
	verified         BOOLEAN     NOT NULL DEFAULT FALSE,
	suspicious       BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_login       TIMESTAMPTZ,
	password_hash    TEXT        NOT NULL DEFAULT '',
	reset_token      TEXT        NOT NULL DEFAULT '',
	reset_expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS accounts_reset_token ON accounts (reset_token);

CREATE TABLE IF NOT EXISTS transactions (
	id           BIGSERIAL PRIMARY KEY,
	utorid       VARCHAR(8)  NOT NULL REFERENCES accounts (utorid),
	type         VARCHAR(16) NOT NULL,
	amount       BIGINT      NOT NULL,
	spent        NUMERIC(12, 2),
	related_id   BIGINT,
	suspicious   BOOLEAN     NOT NULL DEFAULT FALSE,
	processed    BOOLEAN     NOT NULL DEFAULT FALSE,
	remark       TEXT        NOT NULL DEFAULT '',
	created_by   VARCHAR(8)  NOT NULL,
	processed_by TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transactions_utorid ON transactions (utorid);
CREATE INDEX IF NOT EXISTS transactions_created_by ON transactions (created_by);
CREATE INDEX IF NOT EXISTS transactions_pending ON transactions (utorid) WHERE type = 'redemption' AND NOT processed;

CREATE TABLE IF NOT EXISTS transaction_promotions (
	transaction_id BIGINT     NOT NULL REFERENCES transactions (id),
	promotion_id   BIGINT     NOT NULL,
	utorid         VARCHAR(8) NOT NULL,
	PRIMARY KEY (transaction_id, promotion_id)
);
CREATE INDEX IF NOT EXISTS transaction_promotions_usage ON transaction_promotions (utorid, promotion_id);

CREATE TABLE IF NOT EXISTS events (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT        NOT NULL,
	description   TEXT        NOT NULL DEFAULT '',
	location      TEXT        NOT NULL,
	start_time    TIMESTAMPTZ NOT NULL,
	end_time      TIMESTAMPTZ NOT NULL,
	capacity      BIGINT,
	points_total  BIGINT      NOT NULL,
	points_remain BIGINT      NOT NULL CHECK (points_remain >= 0),
	published     BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_guests (
	event_id   BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	PRIMARY KEY (event_id, account_id)
);

CREATE TABLE IF NOT EXISTS event_organizers (
	event_id   BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	PRIMARY KEY (event_id, account_id)
);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	accountColumns = []string{
		"id", "utorid", "name", "email", "birthday", "role", "points", "verified", "suspicious",
		"created_at", "last_login", "password_hash", "reset_token", "reset_expires_at",
	}
	transactionColumns = []string{
		"id", "utorid", "type", "amount", "spent", "related_id", "suspicious", "processed",
		"remark", "created_by", "processed_by", "created_at",
	}
	eventColumns = []string{
		"id", "name", "description", "location", "start_time", "end_time", "capacity",
		"points_total", "points_remain", "published", "created_at",
	}
)

// querier - общее у pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerDB - хранилище счетов, транзакций и событий в Postgres
type LedgerDB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewLedgerDB(ctx context.Context, dsn string, logger *zap.Logger) (*LedgerDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &LedgerDB{pool, logger}, nil
}

func (p *LedgerDB) Close() {
	p.pool.Close()
}

func (p *LedgerDB) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)
	if err != nil {
		p.logger.Error("Migrate error", zap.Error(err), zap.String("service", "Migrate"))
	}
	return err
}

// InTx - BEGIN ... COMMIT; при ошибке fn откат
func (p *LedgerDB) InTx(ctx context.Context, fn func(ctx context.Context, tx interf.LedgerTx) error) (err error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.logger.Error("Get connection error", zap.Error(err), zap.String("service", "InTx"))
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		p.logger.Error("Begin tx error", zap.Error(err), zap.String("service", "InTx"))
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &pgLedgerTx{tx: tx, logger: p.logger}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func logSQL(logger *zap.Logger, err error, sql string, args []any) {
	logger.Error("SQL error",
		zap.Error(err),
		zap.String("query", sql),
		zap.Any("args", args),
	)
}

// pgError переводит ошибки Postgres в ошибки домена
func pgError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %w", what, model.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s already exists", model.ErrConflict, what)
	}
	return err
}

// Счета

func (p *LedgerDB) GetAccount(ctx context.Context, utorid string) (model.Account, error) {
	return queryAccount(ctx, p.pool, p.logger, sq.Eq{"utorid": utorid}, false)
}

func (p *LedgerDB) GetAccountByID(ctx context.Context, id int64) (model.Account, error) {
	return queryAccount(ctx, p.pool, p.logger, sq.Eq{"id": id}, false)
}

func queryAccount(ctx context.Context, q querier, logger *zap.Logger, where sq.Eq, lock bool) (model.Account, error) {
	b := psql.Select(accountColumns...).From("accounts").Where(where)
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		logSQL(logger, err, sql, args)
		return model.Account{}, err
	}
	account, err := scanAccount(q.QueryRow(ctx, sql, args...))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		logSQL(logger, err, sql, args)
	}
	return account, pgError(err, "user")
}

func accountWhere(filter model.AccountFilter) sq.And {
	where := sq.And{}
	if filter.Name != "" {
		like := "%" + filter.Name + "%"
		where = append(where, sq.Or{sq.ILike{"utorid": like}, sq.ILike{"name": like}})
	}
	if filter.Role != "" {
		where = append(where, sq.Eq{"role": string(filter.Role)})
	}
	if filter.Verified != nil {
		where = append(where, sq.Eq{"verified": *filter.Verified})
	}
	if filter.Activated != nil {
		if *filter.Activated {
			where = append(where, sq.NotEq{"last_login": nil})
		} else {
			where = append(where, sq.Eq{"last_login": nil})
		}
	}
	return where
}

func (p *LedgerDB) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error) {
	where := accountWhere(filter)
	total, err := p.count(ctx, "accounts", where)
	if err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	sql, args, err := psql.Select(accountColumns...).From("accounts").Where(where).
		OrderBy("id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	return accounts, total, rows.Err()
}

func (p *LedgerDB) count(ctx context.Context, table string, where sq.Sqlizer) (int, error) {
	sql, args, err := psql.Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return 0, err
	}
	var total int
	if err = p.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		logSQL(p.logger, err, sql, args)
		return 0, err
	}
	return total, nil
}

// Транзакции

func (p *LedgerDB) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return queryTransaction(ctx, p.pool, p.logger, id, false)
}

func queryTransaction(ctx context.Context, q querier, logger *zap.Logger, id int64, lock bool) (model.Transaction, error) {
	b := psql.Select(transactionColumns...).From("transactions").Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		logSQL(logger, err, sql, args)
		return model.Transaction{}, err
	}
	tnx, err := scanTransaction(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logSQL(logger, err, sql, args)
		}
		return model.Transaction{}, pgError(err, "transaction")
	}
	tnxs, err := attachPromotions(ctx, q, logger, []model.Transaction{tnx})
	if err != nil {
		return model.Transaction{}, err
	}
	return tnxs[0], nil
}

func transactionWhere(filter model.TransactionFilter) sq.And {
	where := sq.And{}
	if filter.Utorid != "" {
		where = append(where, sq.Eq{"utorid": filter.Utorid})
	}
	if filter.Name != "" {
		like := "%" + filter.Name + "%"
		where = append(where, sq.Expr("utorid IN (SELECT utorid FROM accounts WHERE utorid ILIKE ? OR name ILIKE ?)", like, like))
	}
	if filter.CreatedBy != "" {
		where = append(where, sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.Type != "" {
		where = append(where, sq.Eq{"type": string(filter.Type)})
	}
	if filter.Suspicious != nil {
		where = append(where, sq.Eq{"suspicious": *filter.Suspicious})
	}
	if filter.RelatedID != nil {
		where = append(where, sq.Eq{"related_id": *filter.RelatedID})
	}
	if filter.PromotionID != nil {
		where = append(where, sq.Expr("id IN (SELECT transaction_id FROM transaction_promotions WHERE promotion_id = ?)", *filter.PromotionID))
	}
	if filter.Amount != nil {
		if filter.Operator == "lte" {
			where = append(where, sq.LtOrEq{"amount": *filter.Amount})
		} else {
			where = append(where, sq.GtOrEq{"amount": *filter.Amount})
		}
	}
	return where
}

func (p *LedgerDB) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, int, error) {
	where := transactionWhere(filter)
	total, err := p.count(ctx, "transactions", where)
	if err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	sql, args, err := psql.Select(transactionColumns...).From("transactions").Where(where).
		OrderBy("id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	tnxs := []model.Transaction{}
	for rows.Next() {
		tnx, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		tnxs = append(tnxs, tnx)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	tnxs, err = attachPromotions(ctx, p.pool, p.logger, tnxs)
	if err != nil {
		return nil, 0, err
	}
	return tnxs, total, nil
}

func attachPromotions(ctx context.Context, q querier, logger *zap.Logger, tnxs []model.Transaction) ([]model.Transaction, error) {
	if len(tnxs) == 0 {
		return tnxs, nil
	}
	ids := make([]int64, len(tnxs))
	for i, t := range tnxs {
		ids[i] = t.ID
	}
	sql, args, err := psql.Select("transaction_id", "promotion_id").
		From("transaction_promotions").
		Where(sq.Eq{"transaction_id": ids}).
		OrderBy("promotion_id").
		ToSql()
	if err != nil {
		logSQL(logger, err, sql, args)
		return nil, err
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		logSQL(logger, err, sql, args)
		return nil, err
	}
	defer rows.Close()

	promos := make(map[int64][]int64, len(tnxs))
	for rows.Next() {
		var tid, pid int64
		if err = rows.Scan(&tid, &pid); err != nil {
			return nil, err
		}
		promos[tid] = append(promos[tid], pid)
	}
	for i := range tnxs {
		if ps, ok := promos[tnxs[i].ID]; ok {
			tnxs[i].PromotionIDs = ps
		}
	}
	return tnxs, rows.Err()
}

func (p *LedgerDB) UsedPromotions(ctx context.Context, utorid string) ([]int64, error) {
	sql, args, err := psql.Select("DISTINCT promotion_id").
		From("transaction_promotions").
		Where(sq.Eq{"utorid": utorid}).
		ToSql()
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// События

func (p *LedgerDB) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	return queryEvent(ctx, p.pool, p.logger, id, false)
}

func queryEvent(ctx context.Context, q querier, logger *zap.Logger, id int64, lock bool) (model.Event, error) {
	b := psql.Select(eventColumns...).From("events").Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		logSQL(logger, err, sql, args)
		return model.Event{}, err
	}
	event, err := scanEvent(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logSQL(logger, err, sql, args)
		}
		return model.Event{}, pgError(err, "event")
	}
	if err = queryRosters(ctx, q, logger, &event); err != nil {
		return model.Event{}, err
	}
	return event, nil
}

func queryRosters(ctx context.Context, q querier, logger *zap.Logger, event *model.Event) error {
	var err error
	if event.Guests, err = queryRoster(ctx, q, logger, "event_guests", event.ID); err != nil {
		return err
	}
	event.Organizers, err = queryRoster(ctx, q, logger, "event_organizers", event.ID)
	return err
}

func queryRoster(ctx context.Context, q querier, logger *zap.Logger, table string, eventID int64) ([]model.AccountRef, error) {
	sql, args, err := psql.Select("a.id", "a.utorid", "a.name").
		From("accounts a").
		Join(table+" r ON r.account_id = a.id").
		Where(sq.Eq{"r.event_id": eventID}).
		OrderBy("a.id").
		ToSql()
	if err != nil {
		logSQL(logger, err, sql, args)
		return nil, err
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		logSQL(logger, err, sql, args)
		return nil, err
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AccountRef, error) {
		var ref model.AccountRef
		err := row.Scan(&ref.ID, &ref.Utorid, &ref.Name)
		return ref, err
	})
	if refs == nil {
		refs = []model.AccountRef{}
	}
	return refs, err
}

const guestCount = "(SELECT COUNT(*) FROM event_guests g WHERE g.event_id = events.id)"

func eventWhere(filter model.EventFilter, now time.Time) sq.And {
	where := sq.And{}
	if filter.Name != "" {
		where = append(where, sq.ILike{"name": "%" + filter.Name + "%"})
	}
	if filter.Location != "" {
		where = append(where, sq.ILike{"location": "%" + filter.Location + "%"})
	}
	if filter.Published != nil {
		where = append(where, sq.Eq{"published": *filter.Published})
	}
	if filter.Started != nil {
		if *filter.Started {
			where = append(where, sq.LtOrEq{"start_time": now})
		} else {
			where = append(where, sq.Gt{"start_time": now})
		}
	}
	if filter.Ended != nil {
		if *filter.Ended {
			where = append(where, sq.Lt{"end_time": now})
		} else {
			where = append(where, sq.GtOrEq{"end_time": now})
		}
	}
	if !filter.ShowFull {
		where = append(where, sq.Expr("(capacity IS NULL OR "+guestCount+" < capacity)"))
	}
	return where
}

func (p *LedgerDB) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	where := eventWhere(filter, now)
	total, err := p.count(ctx, "events", where)
	if err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	sql, args, err := psql.Select(eventColumns...).From("events").Where(where).
		OrderBy("start_time", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		logSQL(p.logger, err, sql, args)
		return nil, 0, err
	}
	events := []model.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		events = append(events, event)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range events {
		if err = queryRosters(ctx, p.pool, p.logger, &events[i]); err != nil {
			return nil, 0, err
		}
	}
	return events, total, nil
}

// pgLedgerTx - операции внутри pgx.Tx, блокировки через SELECT ... FOR UPDATE
type pgLedgerTx struct {
	tx     pgx.Tx
	logger *zap.Logger
}

func (t *pgLedgerTx) exec(ctx context.Context, b sq.Sqlizer, what string) (pgconn.CommandTag, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		logSQL(t.logger, err, sql, args)
		return pgconn.CommandTag{}, err
	}
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		logSQL(t.logger, err, sql, args)
		return tag, pgError(err, what)
	}
	return tag, nil
}

func (t *pgLedgerTx) insertReturningID(ctx context.Context, b sq.InsertBuilder, what string) (id int64, createdAt time.Time, err error) {
	sql, args, err := b.Suffix("RETURNING id, created_at").ToSql()
	if err != nil {
		logSQL(t.logger, err, sql, args)
		return 0, time.Time{}, err
	}
	if err = t.tx.QueryRow(ctx, sql, args...).Scan(&id, &createdAt); err != nil {
		logSQL(t.logger, err, sql, args)
		return 0, time.Time{}, pgError(err, what)
	}
	return id, createdAt, nil
}

func affected(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %w", what, model.ErrNotFound)
	}
	return nil
}

func (t *pgLedgerTx) LockAccount(ctx context.Context, utorid string) (model.Account, error) {
	return queryAccount(ctx, t.tx, t.logger, sq.Eq{"utorid": utorid}, true)
}

func (t *pgLedgerTx) LockAccountByID(ctx context.Context, id int64) (model.Account, error) {
	return queryAccount(ctx, t.tx, t.logger, sq.Eq{"id": id}, true)
}

func (t *pgLedgerTx) CreateAccount(ctx context.Context, account *model.Account) error {
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	b := psql.Insert("accounts").
		Columns(accountColumns[1:]...).
		Values(account.Utorid, account.Name, account.Email, account.Birthday, string(account.Role),
			account.Points, account.Verified, account.Suspicious, createdAt, account.LastLogin,
			account.PasswordHash, account.ResetToken, account.ResetExpiresAt)
	id, created, err := t.insertReturningID(ctx, b, "user "+account.Utorid)
	if err != nil {
		return err
	}
	account.ID = id
	account.CreatedAt = created
	return nil
}

func (t *pgLedgerTx) UpdateAccount(ctx context.Context, account model.Account) error {
	tag, err := t.exec(ctx, psql.Update("accounts").
		SetMap(map[string]any{
			"name":             account.Name,
			"email":            account.Email,
			"birthday":         account.Birthday,
			"role":             string(account.Role),
			"points":           account.Points,
			"verified":         account.Verified,
			"suspicious":       account.Suspicious,
			"last_login":       account.LastLogin,
			"password_hash":    account.PasswordHash,
			"reset_token":      account.ResetToken,
			"reset_expires_at": account.ResetExpiresAt,
		}).
		Where(sq.Eq{"id": account.ID}), "email")
	if err != nil {
		return err
	}
	return affected(tag, "user")
}

func (t *pgLedgerTx) LockTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return queryTransaction(ctx, t.tx, t.logger, id, true)
}

func (t *pgLedgerTx) InsertTransaction(ctx context.Context, tnx *model.Transaction) error {
	createdAt := tnx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var spent decimal.NullDecimal
	if tnx.Spent != nil {
		spent = decimal.NewNullDecimal(*tnx.Spent)
	}
	b := psql.Insert("transactions").
		Columns(transactionColumns[1:]...).
		Values(tnx.Utorid, string(tnx.Type), tnx.Amount, spent, tnx.RelatedID, tnx.Suspicious,
			tnx.Processed, tnx.Remark, tnx.CreatedBy, tnx.ProcessedBy, createdAt)
	id, created, err := t.insertReturningID(ctx, b, "transaction")
	if err != nil {
		return err
	}
	if len(tnx.PromotionIDs) > 0 {
		links := psql.Insert("transaction_promotions").Columns("transaction_id", "promotion_id", "utorid")
		for _, pid := range tnx.PromotionIDs {
			links = links.Values(id, pid, tnx.Utorid)
		}
		if _, err = t.exec(ctx, links, "promotion usage"); err != nil {
			return err
		}
	}
	tnx.ID = id
	tnx.CreatedAt = created
	return nil
}

func (t *pgLedgerTx) UpdateTransaction(ctx context.Context, tnx model.Transaction) error {
	tag, err := t.exec(ctx, psql.Update("transactions").
		Set("suspicious", tnx.Suspicious).
		Set("processed", tnx.Processed).
		Set("processed_by", tnx.ProcessedBy).
		Where(sq.Eq{"id": tnx.ID}), "transaction")
	if err != nil {
		return err
	}
	return affected(tag, "transaction")
}

func (t *pgLedgerTx) LinkTransaction(ctx context.Context, id int64, relatedID int64) error {
	tag, err := t.exec(ctx, psql.Update("transactions").
		Set("related_id", relatedID).
		Where(sq.Eq{"id": id, "related_id": nil}), "transaction")
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %d is already linked", model.ErrConflict, id)
	}
	return nil
}

func (t *pgLedgerTx) exists(ctx context.Context, b sq.SelectBuilder) (bool, error) {
	sql, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		logSQL(t.logger, err, sql, args)
		return false, err
	}
	var found bool
	if err = t.tx.QueryRow(ctx, sql, args...).Scan(&found); err != nil {
		logSQL(t.logger, err, sql, args)
		return false, err
	}
	return found, nil
}

func (t *pgLedgerTx) PendingRedemption(ctx context.Context, utorid string) (bool, error) {
	return t.exists(ctx, psql.Select("1").From("transactions").Where(sq.Eq{
		"utorid":    utorid,
		"type":      string(model.TnxRedemption),
		"processed": false,
	}))
}

func (t *pgLedgerTx) PromotionUsed(ctx context.Context, utorid string, promotionID int64) (bool, error) {
	return t.exists(ctx, psql.Select("1").From("transaction_promotions").Where(sq.Eq{
		"utorid":       utorid,
		"promotion_id": promotionID,
	}))
}

func (t *pgLedgerTx) LockEvent(ctx context.Context, id int64) (model.Event, error) {
	return queryEvent(ctx, t.tx, t.logger, id, true)
}

func (t *pgLedgerTx) CreateEvent(ctx context.Context, event *model.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	b := psql.Insert("events").
		Columns(eventColumns[1:]...).
		Values(event.Name, event.Description, event.Location, event.StartTime, event.EndTime,
			event.Capacity, event.PointsTotal, event.PointsRemain, event.Published, createdAt)
	id, created, err := t.insertReturningID(ctx, b, "event")
	if err != nil {
		return err
	}
	event.ID = id
	event.CreatedAt = created
	return nil
}

func (t *pgLedgerTx) UpdateEvent(ctx context.Context, event model.Event) error {
	tag, err := t.exec(ctx, psql.Update("events").
		SetMap(map[string]any{
			"name":          event.Name,
			"description":   event.Description,
			"location":      event.Location,
			"start_time":    event.StartTime,
			"end_time":      event.EndTime,
			"capacity":      event.Capacity,
			"points_total":  event.PointsTotal,
			"points_remain": event.PointsRemain,
			"published":     event.Published,
		}).
		Where(sq.Eq{"id": event.ID}), "event")
	if err != nil {
		return err
	}
	return affected(tag, "event")
}

// DeleteEvent: ростеры удаляются каскадно
func (t *pgLedgerTx) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := t.exec(ctx, psql.Delete("events").Where(sq.Eq{"id": id}), "event")
	if err != nil {
		return err
	}
	return affected(tag, "event")
}

func (t *pgLedgerTx) AddGuest(ctx context.Context, eventID int64, accountID int64) error {
	_, err := t.exec(ctx, psql.Insert("event_guests").Columns("event_id", "account_id").Values(eventID, accountID), "guest")
	return err
}

func (t *pgLedgerTx) RemoveGuest(ctx context.Context, eventID int64, accountID int64) error {
	_, err := t.exec(ctx, psql.Delete("event_guests").Where(sq.Eq{"event_id": eventID, "account_id": accountID}), "guest")
	return err
}

func (t *pgLedgerTx) AddOrganizer(ctx context.Context, eventID int64, accountID int64) error {
	_, err := t.exec(ctx, psql.Insert("event_organizers").Columns("event_id", "account_id").Values(eventID, accountID), "organizer")
	return err
}

func (t *pgLedgerTx) RemoveOrganizer(ctx context.Context, eventID int64, accountID int64) error {
	_, err := t.exec(ctx, psql.Delete("event_organizers").Where(sq.Eq{"event_id": eventID, "account_id": accountID}), "organizer")
	return err
}

// сканирование строк; NULL-колонки через pgtype

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var role string
	var lastLogin, resetExpires pgtype.Timestamptz
	err := row.Scan(&a.ID, &a.Utorid, &a.Name, &a.Email, &a.Birthday, &role, &a.Points, &a.Verified,
		&a.Suspicious, &a.CreatedAt, &lastLogin, &a.PasswordHash, &a.ResetToken, &resetExpires)
	if err != nil {
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	a.LastLogin = timePtr(lastLogin)
	a.ResetExpiresAt = timePtr(resetExpires)
	return a, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	var typ string
	var spent decimal.NullDecimal
	var related pgtype.Int8
	err := row.Scan(&t.ID, &t.Utorid, &typ, &t.Amount, &spent, &related, &t.Suspicious, &t.Processed,
		&t.Remark, &t.CreatedBy, &t.ProcessedBy, &t.CreatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	t.Type = model.TransactionType(typ)
	t.RelatedID = int64Ptr(related)
	t.PromotionIDs = []int64{}
	if spent.Valid {
		v := spent.Decimal
		t.Spent = &v
	}
	return t, nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	var capacity pgtype.Int8
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.StartTime, &e.EndTime, &capacity,
		&e.PointsTotal, &e.PointsRemain, &e.Published, &e.CreatedAt)
	if err != nil {
		return model.Event{}, err
	}
	e.Capacity = int64Ptr(capacity)
	e.Guests = []model.AccountRef{}
	e.Organizers = []model.AccountRef{}
	return e, nil
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Status != pgtype.Present {
		return nil
	}
	t := v.Time
	return &t
}

func int64Ptr(v pgtype.Int8) *int64 {
	if v.Status != pgtype.Present {
		return nil
	}
	n := v.Int
	return &n
}
