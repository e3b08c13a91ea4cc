package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/auth"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newAccountService(t *testing.T) (*AccountService, func() model.Account) {
	store := newStore(t)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	svc := NewAccountService(zap.NewNop(), store, tokens)
	super, err := svc.CreateSuperuser(context.Background(), RegisterRequest{
		Utorid: "root0001",
		Name:   "Root",
		Email:  "root0001@mail.utoronto.ca",
	}, "Sup3r!pass")
	require.NoError(t, err)
	return svc, func() model.Account { return super }
}

func TestRegisterActivateLogin(t *testing.T) {
	svc, super := newAccountService(t)
	ctx := context.Background()

	account, grant, err := svc.Register(ctx, super(), RegisterRequest{
		Utorid: "smithj12",
		Name:   "John Smith",
		Email:  "John.Smith@mail.utoronto.ca",
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleRegular, account.Role)
	require.Equal(t, int64(0), account.Points)
	require.False(t, account.Verified)
	require.Equal(t, "john.smith@mail.utoronto.ca", account.Email)
	require.NotEmpty(t, grant.Token)

	_, _, err = svc.Register(ctx, super(), RegisterRequest{Utorid: "smithj12", Name: "Dup", Email: "dup@mail.utoronto.ca"})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = svc.Login(ctx, "smithj12", "Secret1!x")
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.ErrorIs(t, svc.ResetPassword(ctx, "wrong-token", "smithj12", "Secret1!x"), model.ErrNotFound)
	require.ErrorIs(t, svc.ResetPassword(ctx, grant.Token, "smithj12", "weak"), model.ErrValidation)
	require.NoError(t, svc.ResetPassword(ctx, grant.Token, "smithj12", "Secret1!x"))
	// токен одноразовый
	require.ErrorIs(t, svc.ResetPassword(ctx, grant.Token, "smithj12", "Secret1!y"), model.ErrNotFound)

	session, err := svc.Login(ctx, "smithj12", "Secret1!x")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	me, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, "smithj12", me.Utorid)
	require.NotNil(t, me.LastLogin)

	_, err = svc.Resolve(ctx, "")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	svc, super := newAccountService(t)
	ctx := context.Background()

	tests := []RegisterRequest{
		{Utorid: "abc", Name: "Short", Email: "abc@mail.utoronto.ca"},
		{Utorid: "smithj12", Name: "", Email: "smith@mail.utoronto.ca"},
		{Utorid: "smithj12", Name: "John", Email: "smith@gmail.com"},
	}
	for _, req := range tests {
		_, _, err := svc.Register(ctx, super(), req)
		require.ErrorIs(t, err, model.ErrValidation, "req=%+v", req)
	}

	regular, _, err := svc.Register(ctx, super(), RegisterRequest{Utorid: "regular1", Name: "R", Email: "regular1@mail.utoronto.ca"})
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, regular, RegisterRequest{Utorid: "other001", Name: "O", Email: "other001@mail.utoronto.ca"})
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestExpiredResetToken(t *testing.T) {
	svc, _ := newAccountService(t)
	ctx := context.Background()

	grant, err := svc.RequestReset(ctx, "root0001")
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return time.Now().Add(2 * ResetTTL) })
	require.ErrorIs(t, svc.ResetPassword(ctx, grant.Token, "root0001", "N3w!passw"), model.ErrUnauthenticated)

	_, err = svc.RequestReset(ctx, "nobody01")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestResetTokenDelivery(t *testing.T) {
	svc, _ := newAccountService(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	resets := NewMockResetNotifier(ctrl)
	svc.WithResetNotifier(resets)

	var delivered string
	resets.EXPECT().
		ResetRequested(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, account model.Account, token string, expiresAt time.Time) error {
			require.Equal(t, "root0001", account.Utorid)
			require.Equal(t, "root0001@mail.utoronto.ca", account.Email)
			require.True(t, expiresAt.After(time.Now()))
			delivered = token
			return nil
		})
	grant, err := svc.RequestReset(ctx, "root0001")
	require.NoError(t, err)
	require.Equal(t, grant.Token, delivered)
	require.NoError(t, svc.ResetPassword(ctx, delivered, "root0001", "N3w!passw"))

	// недоставленный токен - ошибка запроса
	resets.EXPECT().
		ResetRequested(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("nats: connection closed"))
	_, err = svc.RequestReset(ctx, "root0001")
	require.ErrorContains(t, err, "deliver reset token")

	// для неизвестного счета ничего не отправляется
	_, err = svc.RequestReset(ctx, "nobody01")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	svc, super := newAccountService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.ChangePassword(ctx, super(), "wrong", "N3w!passw"), model.ErrForbidden)
	require.NoError(t, svc.ChangePassword(ctx, super(), "Sup3r!pass", "N3w!passw"))
	_, err := svc.Login(ctx, "root0001", "Sup3r!pass")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
	_, err = svc.Login(ctx, "root0001", "N3w!passw")
	require.NoError(t, err)
}

func TestUpdateAccount(t *testing.T) {
	svc, super := newAccountService(t)
	ctx := context.Background()

	target, _, err := svc.Register(ctx, super(), RegisterRequest{Utorid: "smithj12", Name: "John", Email: "smithj12@mail.utoronto.ca"})
	require.NoError(t, err)
	manager, _, err := svc.Register(ctx, super(), RegisterRequest{Utorid: "mgr00001", Name: "M", Email: "mgr00001@mail.utoronto.ca"})
	require.NoError(t, err)
	role := model.RoleManager
	manager, err = svc.Update(ctx, super(), manager.ID, AccountPatch{Role: &role})
	require.NoError(t, err)

	yes, no := true, false

	// подтверждение только в одну сторону
	updated, err := svc.Update(ctx, manager, target.ID, AccountPatch{Verified: &yes})
	require.NoError(t, err)
	require.True(t, updated.Verified)
	_, err = svc.Update(ctx, manager, target.ID, AccountPatch{Verified: &no})
	require.ErrorIs(t, err, model.ErrValidation)

	// подозрительного кассира не бывает
	updated, err = svc.Update(ctx, manager, target.ID, AccountPatch{Suspicious: &yes})
	require.NoError(t, err)
	require.True(t, updated.Suspicious)
	cashier := model.RoleCashier
	updated, err = svc.Update(ctx, manager, target.ID, AccountPatch{Role: &cashier})
	require.NoError(t, err)
	require.Equal(t, model.RoleCashier, updated.Role)
	require.False(t, updated.Suspicious)

	// менеджер не выдает manager, никто не меняет свою роль
	_, err = svc.Update(ctx, manager, target.ID, AccountPatch{Role: &role})
	require.ErrorIs(t, err, model.ErrForbidden)
	regular := model.RoleRegular
	_, err = svc.Update(ctx, super(), super().ID, AccountPatch{Role: &regular})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = svc.Update(ctx, manager, target.ID, AccountPatch{})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.Update(ctx, manager, 9999, AccountPatch{Verified: &yes})
	require.ErrorIs(t, err, model.ErrNotFound)

	email := "new.mail@mail.utoronto.ca"
	updated, err = svc.Update(ctx, manager, target.ID, AccountPatch{Email: &email})
	require.NoError(t, err)
	require.Equal(t, email, updated.Email)
}

func TestUpdateMeAndList(t *testing.T) {
	svc, super := newAccountService(t)
	ctx := context.Background()

	regular, _, err := svc.Register(ctx, super(), RegisterRequest{Utorid: "smithj12", Name: "John", Email: "smithj12@mail.utoronto.ca"})
	require.NoError(t, err)

	name, birthday, bad := "Johnny", "2001-05-04", "05/04/2001"
	me, err := svc.UpdateMe(ctx, regular, ProfilePatch{Name: &name, Birthday: &birthday})
	require.NoError(t, err)
	require.Equal(t, "Johnny", me.Name)
	require.Equal(t, "2001-05-04", me.Birthday)
	_, err = svc.UpdateMe(ctx, regular, ProfilePatch{Birthday: &bad})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.List(ctx, regular, model.AccountFilter{})
	require.ErrorIs(t, err, model.ErrForbidden)

	all, err := svc.List(ctx, super(), model.AccountFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, all.Count)

	byName, err := svc.List(ctx, super(), model.AccountFilter{Name: "john"})
	require.NoError(t, err)
	require.Equal(t, 1, byName.Count)

	activated := true
	logged, err := svc.List(ctx, super(), model.AccountFilter{Activated: &activated})
	require.NoError(t, err)
	require.Equal(t, 0, logged.Count)

	_, err = svc.Get(ctx, regular, super().ID)
	require.ErrorIs(t, err, model.ErrForbidden)
	own, err := svc.Get(ctx, regular, regular.ID)
	require.NoError(t, err)
	require.Equal(t, "Johnny", own.Name)
}
