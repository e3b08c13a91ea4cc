package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/auth"
	"github.com/glkeru/loyalty/pay2win/internal/db"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	uuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const password = "Secret1!x"

type apiFixture struct {
	t      *testing.T
	srv    *httptest.Server
	outbox *outbox
}

// outbox - доставленные владельцам токены сброса
type outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (o *outbox) ResetRequested(ctx context.Context, account model.Account, token string, expiresAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[account.Utorid] = token
	return nil
}

func (o *outbox) token(utorid string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[utorid]
}

func newAPI(t *testing.T, opts Options) *apiFixture {
	t.Helper()
	store, err := db.NewEmbeddedDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	logger := zap.NewNop()
	mail := &outbox{tokens: map[string]string{}}
	accounts := services.NewAccountService(logger, store, tokens).WithResetNotifier(mail)
	_, err = accounts.CreateSuperuser(context.Background(), services.RegisterRequest{
		Utorid: "root0001",
		Name:   "Root",
		Email:  "root0001@mail.utoronto.ca",
	}, password)
	require.NoError(t, err)

	h := NewHandler(Services{
		Accounts:   accounts,
		Ledger:     services.NewLedgerService(logger, store, store, nil, nil),
		Promotions: services.NewPromotionService(logger, store, store),
		Events:     services.NewEventService(logger, store),
	}, opts, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiFixture{t, srv, mail}
}

// do - запрос к API; out заполняется при 2xx
func (f *apiFixture) do(method, path, token string, body any, out any) int {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(f.t, json.Unmarshal(raw, out), string(raw))
	}
	if resp.StatusCode >= 400 {
		var e errorBody
		require.NoError(f.t, json.Unmarshal(raw, &e), string(raw))
		require.NotEmpty(f.t, e.Error)
	}
	return resp.StatusCode
}

func (f *apiFixture) login(utorid string) string {
	f.t.Helper()
	var session services.Session
	status := f.do(http.MethodPost, "/auth/tokens", "", loginRequest{utorid, password}, &session)
	require.Equal(f.t, http.StatusOK, status)
	return session.Token
}

// user - регистрация, активация, роль и подтверждение от имени root
func (f *apiFixture) user(root, utorid string, role model.Role, verified bool) int64 {
	f.t.Helper()
	var reg struct {
		ID         int64  `json:"id"`
		ResetToken string `json:"resetToken"`
	}
	status := f.do(http.MethodPost, "/users", root, registerRequest{utorid, "User " + utorid, utorid + "@mail.utoronto.ca"}, &reg)
	require.Equal(f.t, http.StatusCreated, status)
	require.Equal(f.t, http.StatusOK, f.do(http.MethodPost, "/auth/resets/"+reg.ResetToken, "", loginRequest{utorid, password}, nil))

	patch := map[string]any{}
	if role != model.RoleRegular {
		patch["role"] = string(role)
	}
	if verified {
		patch["verified"] = true
	}
	if len(patch) > 0 {
		require.Equal(f.t, http.StatusOK, f.do(http.MethodPatch, fmt.Sprintf("/users/%d", reg.ID), root, patch, nil))
	}
	return reg.ID
}

func TestHealthAndAuth(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100})

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil, nil))
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users/me", "", nil, nil))
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users/me", "garbage", nil, nil))
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/tokens", "", loginRequest{"root0001", "nope"}, nil))
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/auth/tokens", "", nil, nil))
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nowhere", "", nil, nil))

	root := f.login("root0001")
	var me model.Account
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users/me", root, nil, &me))
	require.Equal(t, model.RoleSuperuser, me.Role)
	require.NotNil(t, me.LastLogin)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "pay2win_http_requests_total")
}

func TestLoginRateLimit(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 0.001, LoginBurst: 1})
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/tokens", "", loginRequest{"root0001", "nope"}, nil))
	require.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/auth/tokens", "", loginRequest{"root0001", password}, nil))
}

func TestPasswordResetTokenNotInResponse(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100})

	var body map[string]any
	status := f.do(http.MethodPost, "/auth/resets", "", resetRequest{"root0001"}, &body)
	require.Equal(t, http.StatusAccepted, status)
	require.NotContains(t, body, "resetToken")
	require.Contains(t, body, "expiresAt")

	// без токена из письма сменить пароль нельзя
	require.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/auth/resets/"+uuid.NewString(), "", loginRequest{"root0001", "Taken0ver!"}, nil))
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/tokens", "", loginRequest{"root0001", "Taken0ver!"}, nil))

	token := f.outbox.token("root0001")
	require.NotEmpty(t, token)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/auth/resets/"+token, "", loginRequest{"root0001", "N3w!passw"}, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/auth/tokens", "", loginRequest{"root0001", "N3w!passw"}, nil))
}

func TestPasswordResetTokenExposedInDevMode(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100, ExposeResetTokens: true})

	var grant services.ResetGrant
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/auth/resets", "", resetRequest{"root0001"}, &grant))
	require.Equal(t, f.outbox.token("root0001"), grant.Token)
}

func TestPurchaseAndRedemptionFlow(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100})
	root := f.login("root0001")
	smithID := f.user(root, "smithj12", model.RoleRegular, false)
	f.user(root, "cash0001", model.RoleCashier, true)
	cashier := f.login("cash0001")
	smith := f.login("smithj12")

	// $40 -> 160 баллов
	var purchase model.Transaction
	status := f.do(http.MethodPost, "/transactions", cashier, map[string]any{
		"type": "purchase", "utorid": "smithj12", "spent": 40,
	}, &purchase)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, int64(160), purchase.Amount)
	require.Equal(t, "cash0001", purchase.CreatedBy)

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/transactions", cashier, map[string]any{
		"type": "transfer", "utorid": "smithj12", "amount": 5,
	}, nil))
	require.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/transactions", smith, map[string]any{
		"type": "purchase", "utorid": "smithj12", "spent": 1,
	}, nil))

	// не подтвержден
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/users/me/transactions", smith, map[string]any{
		"type": "redemption", "amount": 50,
	}, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPatch, fmt.Sprintf("/users/%d", smithID), root, map[string]any{"verified": true}, nil))
	smith = f.login("smithj12")

	var redemption model.Transaction
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/users/me/transactions", smith, map[string]any{
		"type": "redemption", "amount": 50,
	}, &redemption))
	require.False(t, redemption.Processed)

	path := fmt.Sprintf("/transactions/%d/processed", redemption.ID)
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, path, cashier, map[string]any{"processed": false}, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPatch, path, cashier, map[string]any{"processed": true}, nil))
	require.Equal(t, http.StatusConflict, f.do(http.MethodPatch, path, cashier, map[string]any{"processed": true}, nil))

	var me model.Account
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users/me", smith, nil, &me))
	require.Equal(t, int64(110), me.Points)

	var own model.List[model.Transaction]
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users/me/transactions?type=redemption", smith, nil, &own))
	require.Equal(t, 1, own.Count)

	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/transactions", smith, nil, nil))
	var all model.List[model.Transaction]
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/transactions?limit=1", root, nil, &all))
	require.Equal(t, 2, all.Count)
	require.Len(t, all.Results, 1)
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/transactions?amount=10", root, nil, nil))
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/transactions?suspicious=maybe", root, nil, nil))

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, fmt.Sprintf("/transactions/%d", purchase.ID), smith, nil, nil))
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/transactions/9999", root, nil, nil))
}

func TestTransferBetweenUsers(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100})
	root := f.login("root0001")
	f.user(root, "alice001", model.RoleRegular, true)
	bobID := f.user(root, "bob00001", model.RoleRegular, true)
	alice := f.login("alice001")

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/transactions", root, map[string]any{
		"type": "adjustment", "utorid": "alice001", "amount": 100,
	}, nil))

	var debit model.Transaction
	path := fmt.Sprintf("/users/%d/transactions", bobID)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, path, alice, map[string]any{
		"type": "transfer", "amount": 100,
	}, &debit))
	require.Equal(t, int64(-100), debit.Amount)
	require.NotNil(t, debit.RelatedID)

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, path, alice, map[string]any{
		"type": "transfer", "amount": 1,
	}, nil))
	require.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/users/9999/transactions", alice, map[string]any{
		"type": "transfer", "amount": 1,
	}, nil))

	var bob model.Account
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, fmt.Sprintf("/users/%d", bobID), root, nil, &bob))
	require.Equal(t, int64(100), bob.Points)
}

func TestEventsAndPromotions(t *testing.T) {
	f := newAPI(t, Options{LoginRate: 100, LoginBurst: 100})
	root := f.login("root0001")
	f.user(root, "alice001", model.RoleRegular, true)
	f.user(root, "bob00001", model.RoleRegular, true)
	alice := f.login("alice001")
	bob := f.login("bob00001")

	start := time.Now().Add(time.Hour).UTC()
	var event model.Event
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/events", root, map[string]any{
		"name": "Tiny talk", "location": "SS 1069", "capacity": 1, "points": 10,
		"startTime": start, "endTime": start.Add(time.Hour),
	}, &event))
	require.Equal(t, int64(10), event.PointsRemain)

	path := fmt.Sprintf("/events/%d", event.ID)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, alice, nil, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPatch, path, root, map[string]any{"published": true}, nil))

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, path+"/guests/me", alice, nil, nil))
	require.Equal(t, http.StatusGone, f.do(http.MethodPost, path+"/guests/me", bob, nil, nil))
	require.Equal(t, http.StatusConflict, f.do(http.MethodDelete, path, root, nil, nil))
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/events?started=true&ended=true", alice, nil, nil))

	var events model.List[model.Event]
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/events?showFull=true", bob, nil, &events))
	require.Equal(t, 1, events.Count)

	var promo model.Promotion
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/promotions", root, map[string]any{
		"name": "Double", "type": "automatic", "rate": 1, "endTime": start.Add(24 * time.Hour),
	}, &promo))
	require.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/promotions", alice, map[string]any{
		"name": "Mine", "type": "one-time", "points": 5, "endTime": start,
	}, nil))
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/promotions?type=weekly", alice, nil, nil))

	var promos model.List[model.Promotion]
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/promotions", alice, nil, &promos))
	require.Equal(t, 1, promos.Count)
	require.Equal(t, http.StatusConflict, f.do(http.MethodDelete, fmt.Sprintf("/promotions/%d", promo.ID), root, nil, nil))
}
