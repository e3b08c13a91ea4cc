package app

import (
	"context"
	"testing"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/config"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	uuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func embeddedConfig() *config.Config {
	return &config.Config{
		Store:    config.StoreEmbedded,
		Embedded: config.EmbeddedConfig{DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared"},
		Auth:     config.AuthConfig{Secret: "test-secret", TokenTTL: time.Hour},
		// недоступный NATS не мешает запуску
		NATS: config.NATSConfig{URL: "nats://127.0.0.1:1", Subject: "pay2win.transactions"},
	}
}

func TestBuildEmbedded(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, embeddedConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, a.LedgerDB)

	root, err := a.Accounts.CreateSuperuser(ctx, services.RegisterRequest{
		Utorid: "root0001",
		Name:   "Root",
		Email:  "root0001" + model.EmailDomain,
	}, "Secret1!x")
	require.NoError(t, err)

	session, err := a.Accounts.Login(ctx, "root0001", "Secret1!x")
	require.NoError(t, err)
	actor, err := a.Accounts.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, root.ID, actor.ID)
}

func TestBuildValidates(t *testing.T) {
	cfg := embeddedConfig()
	cfg.Auth.Secret = ""
	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "env PAY2WIN_AUTH_SECRET is not set")

	cfg = embeddedConfig()
	cfg.Store = "mysql"
	_, err = Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "PAY2WIN_STORE")
}
