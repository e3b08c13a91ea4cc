package api

import (
	"net/http"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"github.com/gorilla/mux"
)

type loginRequest struct {
	Utorid   string `json:"utorid"`
	Password string `json:"password"`
}

type resetRequest struct {
	Utorid string `json:"utorid"`
}

type resetAccepted struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type registerRequest struct {
	Utorid string `json:"utorid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type registerResponse struct {
	model.Account
	services.ResetGrant
}

type profilePatch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Birthday *string `json:"birthday"`
}

type passwordChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type accountPatch struct {
	Email      *string `json:"email"`
	Verified   *bool   `json:"verified"`
	Suspicious *bool   `json:"suspicious"`
	Role       *string `json:"role"`
}

// Вход
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "LoginHandler", err)
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Utorid, req.Password)
	if err != nil {
		h.fail(w, "LoginHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Запрос токена сброса пароля
func (h *Handler) RequestResetHandler(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "RequestResetHandler", err)
		return
	}
	grant, err := h.accounts.RequestReset(r.Context(), req.Utorid)
	if err != nil {
		h.fail(w, "RequestResetHandler", err)
		return
	}
	if h.exposeResets {
		writeJSON(w, http.StatusAccepted, grant)
		return
	}
	// токен уходит владельцу через уведомление
	writeJSON(w, http.StatusAccepted, resetAccepted{ExpiresAt: grant.ExpiresAt})
}

// Установка пароля по токену
func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "ResetPasswordHandler", err)
		return
	}
	err := h.accounts.ResetPassword(r.Context(), mux.Vars(r)["token"], req.Utorid, req.Password)
	if err != nil {
		h.fail(w, "ResetPasswordHandler", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Регистрация
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "RegisterHandler", err)
		return
	}
	account, grant, err := h.accounts.Register(r.Context(), actor, services.RegisterRequest{
		Utorid: req.Utorid,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		h.fail(w, "RegisterHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{account, grant})
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := model.AccountFilter{
		Name:      q.str("name"),
		Verified:  q.boolPtr("verified"),
		Activated: q.boolPtr("activated"),
		Page:      q.page(),
	}
	if role := q.str("role"); role != "" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			h.fail(w, "ListUsersHandler", err)
			return
		}
		filter.Role = parsed
	}
	if err := q.err(); err != nil {
		h.fail(w, "ListUsersHandler", err)
		return
	}
	list, err := h.accounts.List(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "ListUsersHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Me(r.Context(), actor)
	if err != nil {
		h.fail(w, "MeHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var patch profilePatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, "UpdateMeHandler", err)
		return
	}
	account, err := h.accounts.UpdateMe(r.Context(), actor, services.ProfilePatch{
		Name:     patch.Name,
		Email:    patch.Email,
		Birthday: patch.Birthday,
	})
	if err != nil {
		h.fail(w, "UpdateMeHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req passwordChange
	if err := decode(r, &req); err != nil {
		h.fail(w, "ChangePasswordHandler", err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), actor, req.Old, req.New); err != nil {
		h.fail(w, "ChangePasswordHandler", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "GetUserHandler", err)
		return
	}
	account, err := h.accounts.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "GetUserHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "UpdateUserHandler", err)
		return
	}
	var req accountPatch
	if err = decode(r, &req); err != nil {
		h.fail(w, "UpdateUserHandler", err)
		return
	}
	patch := services.AccountPatch{
		Email:      req.Email,
		Verified:   req.Verified,
		Suspicious: req.Suspicious,
	}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			h.fail(w, "UpdateUserHandler", err)
			return
		}
		patch.Role = &role
	}
	account, err := h.accounts.Update(r.Context(), actor, id, patch)
	if err != nil {
		h.fail(w, "UpdateUserHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
