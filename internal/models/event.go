package models

import (
	"fmt"
	"strings"
	"time"
)

// Событие с бюджетом баллов и списками организаторов и гостей
type Event struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	Capacity     *int64       `json:"capacity"`
	PointsTotal  int64        `json:"pointsTotal"`
	PointsRemain int64        `json:"pointsRemain"`
	Published    bool         `json:"published"`
	Organizers   []AccountRef `json:"organizers"`
	Guests       []AccountRef `json:"guests"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (e Event) PointsAwarded() int64 {
	return e.PointsTotal - e.PointsRemain
}

func (e Event) Started(t time.Time) bool {
	return !t.Before(e.StartTime)
}

func (e Event) Ended(t time.Time) bool {
	return t.After(e.EndTime)
}

func (e Event) Full() bool {
	return e.Capacity != nil && int64(len(e.Guests)) >= *e.Capacity
}

func (e Event) IsOrganizer(accountID int64) bool {
	return hasRef(e.Organizers, accountID)
}

func (e Event) IsGuest(accountID int64) bool {
	return hasRef(e.Guests, accountID)
}

// Draw списывает из остатка бюджета perGuest баллов на каждого из guests
func (e *Event) Draw(perGuest int64, guests int) error {
	if perGuest <= 0 || guests <= 0 {
		return fmt.Errorf("%w: award cost must be positive", ErrValidation)
	}
	// сравнение делением: perGuest*guests может переполнить int64
	if perGuest > e.PointsRemain/int64(guests) {
		return fmt.Errorf("%w: award of %d points to %d guests exceeds remaining budget of %d", ErrValidation, perGuest, guests, e.PointsRemain)
	}
	e.PointsRemain -= perGuest * int64(guests)
	return nil
}

// Rebudget меняет общий бюджет; разрешено только пока ничего не начислено
func (e *Event) Rebudget(total int64) error {
	if total <= 0 {
		return fmt.Errorf("%w: points must be a positive integer", ErrValidation)
	}
	if e.PointsAwarded() > 0 {
		return fmt.Errorf("%w: points budget is fixed once awards have been issued", ErrConflict)
	}
	e.PointsTotal = total
	e.PointsRemain = total
	return nil
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if strings.TrimSpace(e.Location) == "" {
		return fmt.Errorf("%w: event location is required", ErrValidation)
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return fmt.Errorf("%w: startTime and endTime are required", ErrValidation)
	}
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("%w: endTime must be after startTime", ErrValidation)
	}
	if e.Capacity != nil && *e.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be a positive integer", ErrValidation)
	}
	if e.PointsTotal <= 0 {
		return fmt.Errorf("%w: points must be a positive integer", ErrValidation)
	}
	if e.PointsRemain < 0 || e.PointsRemain > e.PointsTotal {
		return fmt.Errorf("%w: remaining points out of range", ErrValidation)
	}
	return nil
}

func hasRef(refs []AccountRef, id int64) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}
