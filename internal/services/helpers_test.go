package services

import (
	"context"
	"testing"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/db"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	uuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *db.EmbeddedDB {
	t.Helper()
	store, err := db.NewEmbeddedDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedAccount(t *testing.T, store *db.EmbeddedDB, utorid string, role model.Role, points int64, verified bool) model.Account {
	t.Helper()
	account := model.Account{
		Utorid:   utorid,
		Name:     "User " + utorid,
		Email:    utorid + model.EmailDomain,
		Role:     role,
		Points:   points,
		Verified: verified,
	}
	err := store.InTx(context.Background(), func(ctx context.Context, tx interf.LedgerTx) error {
		return tx.CreateAccount(ctx, &account)
	})
	require.NoError(t, err)
	return account
}

// seedEvent - идущее опубликованное событие с гостями
func seedEvent(t *testing.T, store *db.EmbeddedDB, points int64, organizers []model.Account, guests ...model.Account) model.Event {
	t.Helper()
	now := time.Now()
	event := model.Event{
		Name:         "Hackathon",
		Location:     "BA 1160",
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		PointsTotal:  points,
		PointsRemain: points,
		Published:    true,
	}
	err := store.InTx(context.Background(), func(ctx context.Context, tx interf.LedgerTx) error {
		if err := tx.CreateEvent(ctx, &event); err != nil {
			return err
		}
		for _, o := range organizers {
			if err := tx.AddOrganizer(ctx, event.ID, o.ID); err != nil {
				return err
			}
		}
		for _, g := range guests {
			if err := tx.AddGuest(ctx, event.ID, g.ID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	event, err = store.GetEvent(context.Background(), event.ID)
	require.NoError(t, err)
	return event
}

func balance(t *testing.T, store *db.EmbeddedDB, utorid string) int64 {
	t.Helper()
	account, err := store.GetAccount(context.Background(), utorid)
	require.NoError(t, err)
	return account.Points
}

// requireConserved: баланс равен сумме примененных транзакций счета
func requireConserved(t *testing.T, store *db.EmbeddedDB, utorids ...string) {
	t.Helper()
	for _, utorid := range utorids {
		tnxs, count, err := store.ListTransactions(context.Background(), model.TransactionFilter{
			Utorid: utorid,
			Page:   model.Page{Limit: model.MaxLimit},
		})
		require.NoError(t, err)
		require.Len(t, tnxs, count)
		var sum int64
		for _, tnx := range tnxs {
			if tnx.Applied() {
				sum += tnx.Amount
			}
		}
		require.Equal(t, sum, balance(t, store, utorid), "utorid=%s", utorid)
	}
}
