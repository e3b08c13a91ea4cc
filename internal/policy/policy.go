// Package policy решает, может ли актор выполнить действие.
// Чистые функции без состояния; вызываются сервисами перед каждым изменением.
package policy

import (
	"fmt"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
)

type Action string

const (
	RegisterAccount   Action = "register-account"
	ViewAccount       Action = "view-account"
	ListAccounts      Action = "list-accounts"
	MarkSuspicious    Action = "mark-suspicious"
	VerifyAccount     Action = "verify-account"
	ChangeRole        Action = "change-role"
	UpdateEmail       Action = "update-email"
	CreatePurchase    Action = "create-purchase"
	CreateAdjustment  Action = "create-adjustment"
	ApproveSuspicious Action = "approve-suspicious"
	ProcessRedemption Action = "process-redemption"
	ListTransactions  Action = "list-transactions"
	ManagePromotions  Action = "manage-promotions"
	ManageEvents      Action = "manage-events"
	AwardEvent        Action = "award-event"
	Transfer          Action = "transfer"
	Redeem            Action = "redeem"
)

// минимальная роль для действия
var minRole = map[Action]model.Role{
	RegisterAccount:   model.RoleCashier,
	ViewAccount:       model.RoleCashier,
	ListAccounts:      model.RoleManager,
	MarkSuspicious:    model.RoleCashier,
	VerifyAccount:     model.RoleManager,
	ChangeRole:        model.RoleManager,
	UpdateEmail:       model.RoleManager,
	CreatePurchase:    model.RoleCashier,
	CreateAdjustment:  model.RoleManager,
	ApproveSuspicious: model.RoleManager,
	ProcessRedemption: model.RoleCashier,
	ListTransactions:  model.RoleManager,
	ManagePromotions:  model.RoleManager,
	ManageEvents:      model.RoleManager,
	AwardEvent:        model.RoleManager,
	Transfer:          model.RoleRegular,
	Redeem:            model.RoleRegular,
}

func MinRole(action Action) (model.Role, bool) {
	r, ok := minRole[action]
	return r, ok
}

// Check - роль актора не ниже минимальной для действия
func Check(actor model.Account, action Action) error {
	min, ok := minRole[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %s", model.ErrForbidden, action)
	}
	if !actor.Role.AtLeast(min) {
		return fmt.Errorf("%w: %s requires %s role", model.ErrForbidden, action, min)
	}
	return nil
}

// RequireVerified - для переводов и списаний нужен подтвержденный счет, роль не важна
func RequireVerified(actor model.Account) error {
	if !actor.Verified {
		return fmt.Errorf("%w: account %s is not verified", model.ErrValidation, actor.Utorid)
	}
	return nil
}

// CanChangeRole: менеджер только regular <-> cashier, суперпользователь любую роль
// кроме своей текущей, свою роль не меняет никто
func CanChangeRole(actor, target model.Account, newRole model.Role) error {
	if err := Check(actor, ChangeRole); err != nil {
		return err
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: unknown role %q", model.ErrValidation, newRole)
	}
	if actor.ID == target.ID || actor.Utorid == target.Utorid {
		return fmt.Errorf("%w: cannot change own role", model.ErrConflict)
	}
	switch actor.Role {
	case model.RoleSuperuser:
		if newRole == actor.Role {
			return fmt.Errorf("%w: cannot grant %s role", model.ErrForbidden, newRole)
		}
		return nil
	case model.RoleManager:
		if !lowRole(target.Role) || !lowRole(newRole) {
			return fmt.Errorf("%w: managers may only switch between regular and cashier", model.ErrForbidden)
		}
		return nil
	}
	return fmt.Errorf("%w: role change not permitted", model.ErrForbidden)
}

func lowRole(r model.Role) bool {
	return r == model.RoleRegular || r == model.RoleCashier
}

// CanSetVerified - подтверждение только в одну сторону
func CanSetVerified(actor model.Account, value bool) error {
	if err := Check(actor, VerifyAccount); err != nil {
		return err
	}
	if !value {
		return fmt.Errorf("%w: verification cannot be revoked", model.ErrValidation)
	}
	return nil
}

// CanManageEvent - организатор события или менеджер
func CanManageEvent(actor model.Account, event model.Event) error {
	if actor.Role.AtLeast(model.RoleManager) || event.IsOrganizer(actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: only organizers or managers may manage event %d", model.ErrForbidden, event.ID)
}

// CanSeeEvent - неопубликованные события видят только организаторы и менеджеры
func CanSeeEvent(actor model.Account, event model.Event) bool {
	return event.Published || CanManageEvent(actor, event) == nil
}
