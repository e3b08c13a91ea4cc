package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleRank = map[Role]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast сравнивает роли по иерархии regular < cashier < manager < superuser
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[min]
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

const EmailDomain = "@mail.utoronto.ca"

// Счет пользователя
type Account struct {
	ID         int64      `json:"id"`
	Utorid     string     `json:"utorid"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Birthday   string     `json:"birthday,omitempty"` // YYYY-MM-DD
	Role       Role       `json:"role"`
	Points     int64      `json:"points"`
	Verified   bool       `json:"verified"`
	Suspicious bool       `json:"suspicious"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`

	PasswordHash   string     `json:"-"`
	ResetToken     string     `json:"-"`
	ResetExpiresAt *time.Time `json:"-"`
}

// Краткая ссылка на счет (ростеры событий)
type AccountRef struct {
	ID     int64  `json:"id"`
	Utorid string `json:"utorid"`
	Name   string `json:"name"`
}

func (a Account) Ref() AccountRef {
	return AccountRef{ID: a.ID, Utorid: a.Utorid, Name: a.Name}
}

var utoridRe = regexp.MustCompile(`^[A-Za-z0-9]{7,8}$`)

func ValidateUtorid(utorid string) error {
	if !utoridRe.MatchString(utorid) {
		return fmt.Errorf("%w: utorid must be 7-8 alphanumeric characters", ErrValidation)
	}
	return nil
}

func ValidateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n == 0 || n > 50 {
		return fmt.Errorf("%w: name must be 1-50 characters", ErrValidation)
	}
	return nil
}

func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	local, ok := strings.CutSuffix(email, EmailDomain)
	if !ok || local == "" || strings.ContainsAny(local, "@ ") {
		return fmt.Errorf("%w: email must be a valid %s address", ErrValidation, EmailDomain)
	}
	return nil
}

func ValidateBirthday(birthday string) error {
	if _, err := time.Parse(time.DateOnly, birthday); err != nil {
		return fmt.Errorf("%w: birthday must be YYYY-MM-DD", ErrValidation)
	}
	return nil
}

// пароль: 8-20 символов, верхний и нижний регистр, цифра, спецсимвол
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 20 {
		return fmt.Errorf("%w: password must be 8-20 characters", ErrValidation)
	}
	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return fmt.Errorf("%w: password needs upper, lower, digit and special characters", ErrValidation)
	}
	return nil
}
