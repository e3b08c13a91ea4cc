package models

import "time"

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page - параметры пагинации списков
type Page struct {
	Page  int
	Limit int
}

// Normalize подставляет значения по умолчанию
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// List - ответ списков {count, results}
type List[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

type AccountFilter struct {
	Name      string // utorid или имя, подстрока
	Role      Role
	Verified  *bool
	Activated *bool // был ли хоть один вход
	Page
}

type TransactionFilter struct {
	Utorid      string
	Name        string // utorid или имя владельца, подстрока
	CreatedBy   string
	Type        TransactionType
	Suspicious  *bool
	RelatedID   *int64
	PromotionID *int64
	Amount      *int64
	Operator    string // gte | lte
	Page
}

type EventFilter struct {
	Name      string
	Location  string
	Started   *bool
	Ended     *bool
	ShowFull  bool
	Published *bool
	Now       time.Time
	Page
}

type PromotionFilter struct {
	Name    string
	Type    PromotionType
	Started *bool
	Ended   *bool
	Now     time.Time
	Page
}
