package models

import "errors"

// Ошибки домена. Оборачиваются через fmt.Errorf("%w: ...") и проверяются errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrCapacity        = errors.New("event unavailable")
	ErrUnauthenticated = errors.New("unauthenticated")
)
