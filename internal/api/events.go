package api

import (
	"context"
	"net/http"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
)

type eventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Capacity    *int64    `json:"capacity"`
	Points      int64     `json:"points"`
}

type eventPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Capacity    *int64     `json:"capacity"`
	Points      *int64     `json:"points"`
	Published   *bool      `json:"published"`
}

type rosterRequest struct {
	Utorid string `json:"utorid"`
}

func (h *Handler) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "CreateEventHandler", err)
		return
	}
	event, err := h.events.Create(r.Context(), actor, model.Event{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		PointsTotal: req.Points,
	})
	if err != nil {
		h.fail(w, "CreateEventHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := model.EventFilter{
		Name:      q.str("name"),
		Location:  q.str("location"),
		Started:   q.boolPtr("started"),
		Ended:     q.boolPtr("ended"),
		Published: q.boolPtr("published"),
		Page:      q.page(),
	}
	if showFull := q.boolPtr("showFull"); showFull != nil {
		filter.ShowFull = *showFull
	}
	if err := q.err(); err != nil {
		h.fail(w, "ListEventsHandler", err)
		return
	}
	list, err := h.events.List(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "ListEventsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "GetEventHandler", err)
		return
	}
	event, err := h.events.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "GetEventHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "UpdateEventHandler", err)
		return
	}
	var req eventPatch
	if err = decode(r, &req); err != nil {
		h.fail(w, "UpdateEventHandler", err)
		return
	}
	event, err := h.events.Update(r.Context(), actor, id, services.EventPatch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		Points:      req.Points,
		Published:   req.Published,
	})
	if err != nil {
		h.fail(w, "UpdateEventHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "DeleteEventHandler", err)
		return
	}
	if err = h.events.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "DeleteEventHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Организаторы

func (h *Handler) AddOrganizerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "AddOrganizerHandler", err)
		return
	}
	var req rosterRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "AddOrganizerHandler", err)
		return
	}
	event, err := h.events.AddOrganizer(r.Context(), actor, id, req.Utorid)
	if err != nil {
		h.fail(w, "AddOrganizerHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) RemoveOrganizerHandler(w http.ResponseWriter, r *http.Request) {
	h.removeFromRoster(w, r, "RemoveOrganizerHandler", h.events.RemoveOrganizer)
}

// Гости

func (h *Handler) AddGuestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "AddGuestHandler", err)
		return
	}
	var req rosterRequest
	if err = decode(r, &req); err != nil {
		h.fail(w, "AddGuestHandler", err)
		return
	}
	ref, err := h.events.AddGuest(r.Context(), actor, id, req.Utorid)
	if err != nil {
		h.fail(w, "AddGuestHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (h *Handler) RemoveGuestHandler(w http.ResponseWriter, r *http.Request) {
	h.removeFromRoster(w, r, "RemoveGuestHandler", h.events.RemoveGuest)
}

func (h *Handler) RSVPHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "RSVPHandler", err)
		return
	}
	ref, err := h.events.RSVP(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "RSVPHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (h *Handler) CancelRSVPHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "CancelRSVPHandler", err)
		return
	}
	if err = h.events.CancelRSVP(r.Context(), actor, id); err != nil {
		h.fail(w, "CancelRSVPHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rosterRemoval func(ctx context.Context, actor model.Account, id int64, accountID int64) error

func (h *Handler) removeFromRoster(w http.ResponseWriter, r *http.Request, service string, remove rosterRemoval) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, service, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		h.fail(w, service, err)
		return
	}
	if err = remove(r.Context(), actor, id, userID); err != nil {
		h.fail(w, service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
