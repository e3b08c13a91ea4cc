package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/auth"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/policy"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActivationTTL = 7 * 24 * time.Hour
	ResetTTL      = time.Hour
)

// AccountService - справочник счетов, вход и пароли
type AccountService struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	tokens *auth.Tokens
	resets interf.ResetNotifier
	now    func() time.Time
}

func NewAccountService(logger *zap.Logger, db interf.LedgerStorage, tokens *auth.Tokens) *AccountService {
	return &AccountService{logger: logger, db: db, tokens: tokens, now: time.Now}
}

func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// WithResetNotifier - канал доставки токенов сброса пароля
func (s *AccountService) WithResetNotifier(n interf.ResetNotifier) *AccountService {
	s.resets = n
	return s
}

func (s *AccountService) Log(err error) {
	s.logger.Error("Accounts",
		zap.String("service", "accounts"),
		zap.Error(err),
	)
}

type RegisterRequest struct {
	Utorid string
	Name   string
	Email  string
}

// ResetGrant - одноразовый токен установки пароля
type ResetGrant struct {
	Token     string    `json:"resetToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register - новый счет: regular, 0 баллов, не подтвержден.
// Пароль задается по токену активации.
func (s *AccountService) Register(ctx context.Context, actor model.Account, req RegisterRequest) (account model.Account, grant ResetGrant, err error) {
	if err = policy.Check(actor, policy.RegisterAccount); err != nil {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err = errors.Join(
		model.ValidateUtorid(req.Utorid),
		model.ValidateName(req.Name),
		model.ValidateEmail(req.Email),
	); err != nil {
		return
	}

	now := s.now()
	grant = ResetGrant{Token: uuid.NewString(), ExpiresAt: now.Add(ActivationTTL)}
	account = model.Account{
		Utorid:         req.Utorid,
		Name:           req.Name,
		Email:          req.Email,
		Role:           model.RoleRegular,
		CreatedAt:      now,
		ResetToken:     grant.Token,
		ResetExpiresAt: &grant.ExpiresAt,
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		_, err := tx.LockAccount(ctx, req.Utorid)
		switch {
		case err == nil:
			return fmt.Errorf("%w: user %s already exists", model.ErrConflict, req.Utorid)
		case !errors.Is(err, model.ErrNotFound):
			return err
		}
		return tx.CreateAccount(ctx, &account)
	})
	if err != nil {
		return model.Account{}, ResetGrant{}, err
	}
	return account, grant, nil
}

// CreateSuperuser - начальная учетная запись, без актора
func (s *AccountService) CreateSuperuser(ctx context.Context, req RegisterRequest, password string) (model.Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := errors.Join(
		model.ValidateUtorid(req.Utorid),
		model.ValidateName(req.Name),
		model.ValidateEmail(req.Email),
		model.ValidatePassword(password),
	); err != nil {
		return model.Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.Account{}, err
	}
	account := model.Account{
		Utorid:       req.Utorid,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Role:         model.RoleSuperuser,
		Verified:     true,
		CreatedAt:    s.now(),
		PasswordHash: hash,
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		return tx.CreateAccount(ctx, &account)
	})
	if err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// Resolve - счет владельца bearer-токена
func (s *AccountService) Resolve(ctx context.Context, token string) (model.Account, error) {
	if token == "" {
		return model.Account{}, fmt.Errorf("%w: missing bearer token", model.ErrUnauthenticated)
	}
	utorid, err := s.tokens.Parse(token)
	if err != nil {
		return model.Account{}, err
	}
	account, err := s.db.GetAccount(ctx, utorid)
	if errors.Is(err, model.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: unknown user", model.ErrUnauthenticated)
	}
	return account, err
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *AccountService) Login(ctx context.Context, utorid, password string) (session Session, err error) {
	var account model.Account
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		account, err = tx.LockAccount(ctx, utorid)
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: invalid credentials", model.ErrUnauthenticated)
		}
		if err != nil {
			return err
		}
		if !auth.CheckPassword(account.PasswordHash, password) {
			return fmt.Errorf("%w: invalid credentials", model.ErrUnauthenticated)
		}
		now := s.now()
		account.LastLogin = &now
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return Session{}, err
	}
	token, exp, err := s.tokens.Issue(account)
	if err != nil {
		return Session{}, err
	}
	return Session{token, exp}, nil
}

// RequestReset выдает новый токен сброса пароля и отправляет его владельцу.
// Без канала доставки токен сохраняется, но никуда не уходит.
func (s *AccountService) RequestReset(ctx context.Context, utorid string) (grant ResetGrant, err error) {
	grant = ResetGrant{Token: uuid.NewString(), ExpiresAt: s.now().Add(ResetTTL)}
	var account model.Account
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		account, err = tx.LockAccount(ctx, utorid)
		if err != nil {
			return err
		}
		account.ResetToken = grant.Token
		account.ResetExpiresAt = &grant.ExpiresAt
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return ResetGrant{}, err
	}
	if s.resets == nil {
		s.logger.Warn("Reset token not delivered: notifier is not configured",
			zap.String("service", "accounts"),
			zap.String("utorid", utorid),
		)
		return grant, nil
	}
	if err = s.resets.ResetRequested(ctx, account, grant.Token, grant.ExpiresAt); err != nil {
		s.Log(err)
		return ResetGrant{}, fmt.Errorf("deliver reset token: %w", err)
	}
	return grant, nil
}

// ResetPassword - установка пароля по токену; токен одноразовый
func (s *AccountService) ResetPassword(ctx context.Context, token, utorid, password string) error {
	if err := model.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		account, err := tx.LockAccount(ctx, utorid)
		if err != nil {
			return err
		}
		if account.ResetToken == "" || account.ResetToken != token {
			return fmt.Errorf("reset token %w", model.ErrNotFound)
		}
		if account.ResetExpiresAt == nil || s.now().After(*account.ResetExpiresAt) {
			return fmt.Errorf("%w: reset token expired", model.ErrUnauthenticated)
		}
		account.PasswordHash = hash
		account.ResetToken = ""
		account.ResetExpiresAt = nil
		return tx.UpdateAccount(ctx, account)
	})
}

func (s *AccountService) ChangePassword(ctx context.Context, actor model.Account, old, password string) error {
	if err := model.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		account, err := tx.LockAccount(ctx, actor.Utorid)
		if err != nil {
			return err
		}
		if !auth.CheckPassword(account.PasswordHash, old) {
			return fmt.Errorf("%w: current password is incorrect", model.ErrForbidden)
		}
		account.PasswordHash = hash
		return tx.UpdateAccount(ctx, account)
	})
}

func (s *AccountService) Get(ctx context.Context, actor model.Account, id int64) (model.Account, error) {
	if actor.ID != id {
		if err := policy.Check(actor, policy.ViewAccount); err != nil {
			return model.Account{}, err
		}
	}
	return s.db.GetAccountByID(ctx, id)
}

func (s *AccountService) Me(ctx context.Context, actor model.Account) (model.Account, error) {
	return s.db.GetAccount(ctx, actor.Utorid)
}

func (s *AccountService) List(ctx context.Context, actor model.Account, filter model.AccountFilter) (model.List[model.Account], error) {
	if err := policy.Check(actor, policy.ListAccounts); err != nil {
		return model.List[model.Account]{}, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return model.List[model.Account]{}, fmt.Errorf("%w: unknown role %q", model.ErrValidation, filter.Role)
	}
	accounts, count, err := s.db.ListAccounts(ctx, filter)
	if err != nil {
		return model.List[model.Account]{}, err
	}
	return newList(accounts, count), nil
}

// ProfilePatch - поля, которые пользователь меняет сам
type ProfilePatch struct {
	Name     *string
	Email    *string
	Birthday *string
}

func (s *AccountService) UpdateMe(ctx context.Context, actor model.Account, patch ProfilePatch) (account model.Account, err error) {
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		account, err = tx.LockAccount(ctx, actor.Utorid)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if err := model.ValidateName(*patch.Name); err != nil {
				return err
			}
			account.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*patch.Email))
			if err := model.ValidateEmail(email); err != nil {
				return err
			}
			account.Email = email
		}
		if patch.Birthday != nil {
			if err := model.ValidateBirthday(*patch.Birthday); err != nil {
				return err
			}
			account.Birthday = *patch.Birthday
		}
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// AccountPatch - изменения счета персоналом
type AccountPatch struct {
	Email      *string
	Verified   *bool
	Suspicious *bool
	Role       *model.Role
}

// Update: каждое поле проверяется своим правилом доступа
func (s *AccountService) Update(ctx context.Context, actor model.Account, id int64, patch AccountPatch) (account model.Account, err error) {
	if patch.Email == nil && patch.Verified == nil && patch.Suspicious == nil && patch.Role == nil {
		return model.Account{}, fmt.Errorf("%w: nothing to update", model.ErrValidation)
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		account, err = tx.LockAccountByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Email != nil {
			if err := policy.Check(actor, policy.UpdateEmail); err != nil {
				return err
			}
			email := strings.ToLower(strings.TrimSpace(*patch.Email))
			if err := model.ValidateEmail(email); err != nil {
				return err
			}
			account.Email = email
		}
		if patch.Verified != nil {
			if err := policy.CanSetVerified(actor, *patch.Verified); err != nil {
				return err
			}
			account.Verified = true
		}
		if patch.Suspicious != nil {
			if err := policy.Check(actor, policy.MarkSuspicious); err != nil {
				return err
			}
			account.Suspicious = *patch.Suspicious
		}
		if patch.Role != nil {
			if err := policy.CanChangeRole(actor, account, *patch.Role); err != nil {
				return err
			}
			// кассир не может быть подозрительным
			if *patch.Role == model.RoleCashier {
				account.Suspicious = false
			}
			account.Role = *patch.Role
		}
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// Recipient - счет по id для адресации перевода; права проверяет сам перевод
func (s *AccountService) Recipient(ctx context.Context, id int64) (model.Account, error) {
	return s.db.GetAccountByID(ctx, id)
}
