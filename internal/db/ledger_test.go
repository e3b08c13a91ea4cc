package db

import (
	"testing"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/stretchr/testify/require"
)

func TestTransactionWhere(t *testing.T) {
	yes := true
	amount := int64(100)
	promo := int64(7)
	where := transactionWhere(model.TransactionFilter{
		Name:        "smith",
		Type:        model.TnxPurchase,
		Suspicious:  &yes,
		PromotionID: &promo,
		Amount:      &amount,
		Operator:    "lte",
	})
	sql, args, err := psql.Select("id").From("transactions").Where(where).ToSql()
	require.NoError(t, err)
	require.Equal(t,
		"SELECT id FROM transactions WHERE (utorid IN (SELECT utorid FROM accounts WHERE utorid ILIKE $1 OR name ILIKE $2) "+
			"AND type = $3 AND suspicious = $4 "+
			"AND id IN (SELECT transaction_id FROM transaction_promotions WHERE promotion_id = $5) AND amount <= $6)",
		sql)
	require.Equal(t, []any{"%smith%", "%smith%", "purchase", true, int64(7), int64(100)}, args)
}

func TestAccountWhere(t *testing.T) {
	no := false
	where := accountWhere(model.AccountFilter{Role: model.RoleCashier, Activated: &no})
	sql, args, err := psql.Select("id").From("accounts").Where(where).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM accounts WHERE (role = $1 AND last_login IS NULL)", sql)
	require.Equal(t, []any{"cashier"}, args)

	sql, _, err = psql.Select("id").From("accounts").Where(accountWhere(model.AccountFilter{})).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM accounts WHERE (1=1)", sql)
}

func TestEventWhere(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	yes := true
	where := eventWhere(model.EventFilter{Started: &yes, Published: &yes}, now)
	sql, args, err := psql.Select("id").From("events").Where(where).ToSql()
	require.NoError(t, err)
	require.Contains(t, sql, "published = $1 AND start_time <= $2")
	require.Contains(t, sql, "capacity IS NULL OR "+guestCount+" < capacity")
	require.Equal(t, []any{true, now}, args)

	sql, _, err = psql.Select("id").From("events").Where(eventWhere(model.EventFilter{ShowFull: true}, now)).ToSql()
	require.NoError(t, err)
	require.NotContains(t, sql, "capacity")
}

func TestLockSuffix(t *testing.T) {
	sql, args, err := psql.Select(accountColumns...).From("accounts").
		Where(map[string]any{"utorid": "smithj12"}).
		Suffix("FOR UPDATE").
		ToSql()
	require.NoError(t, err)
	require.Contains(t, sql, "WHERE utorid = $1 FOR UPDATE")
	require.Equal(t, []any{"smithj12"}, args)
}
