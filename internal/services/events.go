package services

import (
	"context"
	"fmt"
	"time"

	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/policy"
	"go.uber.org/zap"
)

// EventService - события, их бюджет баллов и списки участников.
// Начисление баллов гостям - LedgerService.AwardEventPoints.
type EventService struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	now    func() time.Time
}

func NewEventService(logger *zap.Logger, db interf.LedgerStorage) *EventService {
	return &EventService{logger, db, time.Now}
}

func (s *EventService) WithClock(now func() time.Time) *EventService {
	s.now = now
	return s
}

func (s *EventService) Log(err error) {
	s.logger.Error("Events",
		zap.String("service", "events"),
		zap.Error(err),
	)
}

func (s *EventService) Create(ctx context.Context, actor model.Account, event model.Event) (model.Event, error) {
	if err := policy.Check(actor, policy.ManageEvents); err != nil {
		return model.Event{}, err
	}
	event.ID = 0
	event.PointsRemain = event.PointsTotal
	event.Published = false
	event.Organizers = []model.AccountRef{}
	event.Guests = []model.AccountRef{}
	if err := event.Validate(); err != nil {
		return model.Event{}, err
	}
	if event.StartTime.Before(s.now()) {
		return model.Event{}, fmt.Errorf("%w: startTime must not be in the past", model.ErrValidation)
	}
	err := s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event.CreatedAt = s.now()
		return tx.CreateEvent(ctx, &event)
	})
	if err != nil {
		return model.Event{}, err
	}
	return event, nil
}

// Get: неопубликованное событие для посторонних не существует
func (s *EventService) Get(ctx context.Context, actor model.Account, id int64) (model.Event, error) {
	event, err := s.db.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if !policy.CanSeeEvent(actor, event) {
		return model.Event{}, fmt.Errorf("event %d %w", id, model.ErrNotFound)
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context, actor model.Account, filter model.EventFilter) (model.List[model.Event], error) {
	if filter.Started != nil && filter.Ended != nil {
		return model.List[model.Event]{}, fmt.Errorf("%w: started and ended cannot be combined", model.ErrValidation)
	}
	if !actor.Role.AtLeast(model.RoleManager) {
		published := true
		filter.Published = &published
	}
	filter.Now = s.now()
	events, count, err := s.db.ListEvents(ctx, filter)
	if err != nil {
		return model.List[model.Event]{}, err
	}
	return newList(events, count), nil
}

// EventPatch - изменяемые поля; nil означает "не менять"
type EventPatch struct {
	Name        *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int64
	Points      *int64
	Published   *bool
}

// Update: организатор меняет описание и время, бюджет и публикацию - только менеджер
func (s *EventService) Update(ctx context.Context, actor model.Account, id int64, patch EventPatch) (event model.Event, err error) {
	now := s.now()
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		event, err = tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.CanManageEvent(actor, event); err != nil {
			return err
		}
		if (patch.Points != nil || patch.Published != nil) && !actor.Role.AtLeast(model.RoleManager) {
			return fmt.Errorf("%w: only managers may change points or publish", model.ErrForbidden)
		}

		started, ended := event.Started(now), event.Ended(now)
		if started && (patch.Name != nil || patch.Description != nil || patch.Location != nil ||
			patch.StartTime != nil || patch.Capacity != nil) {
			return fmt.Errorf("%w: event %d has already started", model.ErrConflict, id)
		}
		if ended && patch.EndTime != nil {
			return fmt.Errorf("%w: event %d has already ended", model.ErrConflict, id)
		}

		if patch.Name != nil {
			event.Name = *patch.Name
		}
		if patch.Description != nil {
			event.Description = *patch.Description
		}
		if patch.Location != nil {
			event.Location = *patch.Location
		}
		if patch.StartTime != nil {
			if patch.StartTime.Before(now) {
				return fmt.Errorf("%w: startTime must not be in the past", model.ErrValidation)
			}
			event.StartTime = *patch.StartTime
		}
		if patch.EndTime != nil {
			if patch.EndTime.Before(now) {
				return fmt.Errorf("%w: endTime must not be in the past", model.ErrValidation)
			}
			event.EndTime = *patch.EndTime
		}
		if patch.Capacity != nil {
			if *patch.Capacity < int64(len(event.Guests)) {
				return fmt.Errorf("%w: capacity below current guest count", model.ErrValidation)
			}
			event.Capacity = patch.Capacity
		}
		if patch.Points != nil {
			if err := event.Rebudget(*patch.Points); err != nil {
				return err
			}
		}
		if patch.Published != nil {
			if !*patch.Published {
				return fmt.Errorf("%w: published can only be set to true", model.ErrValidation)
			}
			event.Published = true
		}
		if err := event.Validate(); err != nil {
			return err
		}
		return tx.UpdateEvent(ctx, event)
	})
	if err != nil {
		return model.Event{}, err
	}
	return event, nil
}

// Delete: только неопубликованные события
func (s *EventService) Delete(ctx context.Context, actor model.Account, id int64) error {
	if err := policy.Check(actor, policy.ManageEvents); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if event.Published {
			return fmt.Errorf("%w: published event %d cannot be deleted", model.ErrConflict, id)
		}
		return tx.DeleteEvent(ctx, id)
	})
}

// AddOrganizer - организатор не может быть гостем того же события
func (s *EventService) AddOrganizer(ctx context.Context, actor model.Account, id int64, utorid string) (event model.Event, err error) {
	if err = policy.Check(actor, policy.ManageEvents); err != nil {
		return model.Event{}, err
	}
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		var err error
		event, err = tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if event.Ended(s.now()) {
			return fmt.Errorf("%w: event %d has ended", model.ErrCapacity, id)
		}
		account, err := tx.LockAccount(ctx, utorid)
		if err != nil {
			return err
		}
		if event.IsGuest(account.ID) {
			return fmt.Errorf("%w: %s is a guest of event %d", model.ErrValidation, utorid, id)
		}
		if event.IsOrganizer(account.ID) {
			return fmt.Errorf("%w: %s already organizes event %d", model.ErrConflict, utorid, id)
		}
		if err := tx.AddOrganizer(ctx, id, account.ID); err != nil {
			return err
		}
		event.Organizers = append(event.Organizers, account.Ref())
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return event, nil
}

func (s *EventService) RemoveOrganizer(ctx context.Context, actor model.Account, id int64, accountID int64) error {
	if err := policy.Check(actor, policy.ManageEvents); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(accountID) {
			return fmt.Errorf("organizer %d of event %d %w", accountID, id, model.ErrNotFound)
		}
		return tx.RemoveOrganizer(ctx, id, accountID)
	})
}

// AddGuest - организатор или менеджер добавляет гостя
func (s *EventService) AddGuest(ctx context.Context, actor model.Account, id int64, utorid string) (model.AccountRef, error) {
	return s.addGuest(ctx, id, utorid, func(event model.Event) error {
		if err := policy.CanManageEvent(actor, event); err != nil {
			return err
		}
		if !event.Published && !actor.Role.AtLeast(model.RoleManager) {
			return fmt.Errorf("event %d %w", id, model.ErrNotFound)
		}
		return nil
	})
}

// RSVP - пользователь записывается на опубликованное событие
func (s *EventService) RSVP(ctx context.Context, actor model.Account, id int64) (model.AccountRef, error) {
	return s.addGuest(ctx, id, actor.Utorid, func(event model.Event) error {
		if !policy.CanSeeEvent(actor, event) {
			return fmt.Errorf("event %d %w", id, model.ErrNotFound)
		}
		return nil
	})
}

func (s *EventService) addGuest(ctx context.Context, id int64, utorid string, allow func(model.Event) error) (ref model.AccountRef, err error) {
	err = s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := allow(event); err != nil {
			return err
		}
		account, err := tx.LockAccount(ctx, utorid)
		if err != nil {
			return err
		}
		if event.IsOrganizer(account.ID) {
			return fmt.Errorf("%w: %s organizes event %d", model.ErrValidation, utorid, id)
		}
		if event.IsGuest(account.ID) {
			return fmt.Errorf("%w: %s is already a guest of event %d", model.ErrConflict, utorid, id)
		}
		if event.Ended(s.now()) {
			return fmt.Errorf("%w: event %d has ended", model.ErrCapacity, id)
		}
		if event.Full() {
			return fmt.Errorf("%w: event %d is full", model.ErrCapacity, id)
		}
		ref = account.Ref()
		return tx.AddGuest(ctx, id, account.ID)
	})
	if err != nil {
		return model.AccountRef{}, err
	}
	return ref, nil
}

// RemoveGuest - только менеджер
func (s *EventService) RemoveGuest(ctx context.Context, actor model.Account, id int64, accountID int64) error {
	if err := policy.Check(actor, policy.ManageEvents); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !event.IsGuest(accountID) {
			return fmt.Errorf("guest %d of event %d %w", accountID, id, model.ErrNotFound)
		}
		return tx.RemoveGuest(ctx, id, accountID)
	})
}

// CancelRSVP - отмена записи до окончания события
func (s *EventService) CancelRSVP(ctx context.Context, actor model.Account, id int64) error {
	return s.db.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !policy.CanSeeEvent(actor, event) {
			return fmt.Errorf("event %d %w", id, model.ErrNotFound)
		}
		if event.Ended(s.now()) {
			return fmt.Errorf("%w: event %d has ended", model.ErrCapacity, id)
		}
		if !event.IsGuest(actor.ID) {
			return fmt.Errorf("rsvp for event %d %w", id, model.ErrNotFound)
		}
		return tx.RemoveGuest(ctx, id, actor.ID)
	})
}
