// Package api - REST API поверх сервисов ledger
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func init() {
	// spent, rate, minSpending отдаются числами
	decimal.MarshalJSONWithoutQuotes = true
}

type Services struct {
	Accounts   *services.AccountService
	Ledger     *services.LedgerService
	Promotions *services.PromotionService
	Events     *services.EventService
}

type Options struct {
	LoginRate  float64
	LoginBurst int
	// ExposeResetTokens - токен сброса в ответе; только для разработки
	ExposeResetTokens bool
}

type Handler struct {
	router     *mux.Router
	handler    http.Handler
	logger     *zap.Logger
	accounts   *services.AccountService
	ledger     *services.LedgerService
	promotions *services.PromotionService
	events     *services.EventService
	// токен сброса отдается только в режиме разработки
	exposeResets bool
}

type errorBody struct {
	Error string `json:"error"`
}

func NewHandler(svc Services, opts Options, logger *zap.Logger) *Handler {
	router := mux.NewRouter()
	h := &Handler{
		router:     router,
		logger:     logger,
		accounts:   svc.Accounts,
		ledger:     svc.Ledger,
		promotions: svc.Promotions,
		events:     svc.Events,

		exposeResets: opts.ExposeResetTokens,
	}
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, MiddlewareLog())
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// без токена
	limiter := newIPLimiter(opts.LoginRate, opts.LoginBurst)
	open := router.PathPrefix("/auth").Subrouter()
	open.Handle("/tokens", limiter.middleware(http.HandlerFunc(h.LoginHandler))).Methods(http.MethodPost)
	open.Handle("/resets", limiter.middleware(http.HandlerFunc(h.RequestResetHandler))).Methods(http.MethodPost)
	open.HandleFunc("/resets/{token}", h.ResetPasswordHandler).Methods(http.MethodPost)

	// с токеном
	api := router.NewRoute().Subrouter()
	api.Use(h.authenticate)

	api.HandleFunc("/users", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/users", h.ListUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/me", h.MeHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/me", h.UpdateMeHandler).Methods(http.MethodPatch)
	api.HandleFunc("/users/me/password", h.ChangePasswordHandler).Methods(http.MethodPatch)
	api.HandleFunc("/users/me/transactions", h.RedemptionHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/me/transactions", h.OwnTransactionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", h.GetUserHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", h.UpdateUserHandler).Methods(http.MethodPatch)
	api.HandleFunc("/users/{id:[0-9]+}/transactions", h.TransferHandler).Methods(http.MethodPost)

	api.HandleFunc("/transactions", h.CreateTransactionHandler).Methods(http.MethodPost)
	api.HandleFunc("/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", h.GetTransactionHandler).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}/suspicious", h.ApproveHandler).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/{id:[0-9]+}/processed", h.ProcessHandler).Methods(http.MethodPatch)

	api.HandleFunc("/promotions", h.CreatePromotionHandler).Methods(http.MethodPost)
	api.HandleFunc("/promotions", h.ListPromotionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/promotions/{id:[0-9]+}", h.GetPromotionHandler).Methods(http.MethodGet)
	api.HandleFunc("/promotions/{id:[0-9]+}", h.UpdatePromotionHandler).Methods(http.MethodPatch)
	api.HandleFunc("/promotions/{id:[0-9]+}", h.DeletePromotionHandler).Methods(http.MethodDelete)

	api.HandleFunc("/events", h.CreateEventHandler).Methods(http.MethodPost)
	api.HandleFunc("/events", h.ListEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/events/{id:[0-9]+}", h.GetEventHandler).Methods(http.MethodGet)
	api.HandleFunc("/events/{id:[0-9]+}", h.UpdateEventHandler).Methods(http.MethodPatch)
	api.HandleFunc("/events/{id:[0-9]+}", h.DeleteEventHandler).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/organizers", h.AddOrganizerHandler).Methods(http.MethodPost)
	api.HandleFunc("/events/{id:[0-9]+}/organizers/{userId:[0-9]+}", h.RemoveOrganizerHandler).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/guests/me", h.RSVPHandler).Methods(http.MethodPost)
	api.HandleFunc("/events/{id:[0-9]+}/guests/me", h.CancelRSVPHandler).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/guests", h.AddGuestHandler).Methods(http.MethodPost)
	api.HandleFunc("/events/{id:[0-9]+}/guests/{userId:[0-9]+}", h.RemoveGuestHandler).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/transactions", h.AwardHandler).Methods(http.MethodPost)

	h.handler = otelhttp.NewHandler(router, "pay2win-api")
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

// statusOf - ошибка домена -> HTTP статус
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrCapacity):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, service string, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Log("Internal error", service, err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode - тело запроса в v; пустое или кривое тело - ошибка валидации
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: cannot read body", model.ErrValidation)
	}
	defer r.Body.Close()
	if len(body) == 0 {
		return fmt.Errorf("%w: body is empty", model.ErrValidation)
	}
	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: body is not correct: %s", model.ErrValidation, err.Error())
	}
	return nil
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.Account, bool) {
	actor, ok := Actor(r.Context())
	if !ok {
		h.fail(w, "actor", fmt.Errorf("%w: missing bearer token", model.ErrUnauthenticated))
	}
	return actor, ok
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrValidation, name)
	}
	return id, nil
}

// параметры запроса

type queryParams struct {
	values url.Values
	errs   []error
}

func newQuery(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) str(key string) string {
	return q.values.Get(key)
}

func (q *queryParams) boolPtr(key string) *bool {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("%w: %s must be true or false", model.ErrValidation, key))
		return nil
	}
	return &v
}

func (q *queryParams) int64Ptr(key string) *int64 {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("%w: %s must be an integer", model.ErrValidation, key))
		return nil
	}
	return &v
}

func (q *queryParams) page() model.Page {
	var p model.Page
	if v := q.int64Ptr("page"); v != nil {
		if *v < 1 {
			q.errs = append(q.errs, fmt.Errorf("%w: page must be positive", model.ErrValidation))
		}
		p.Page = int(*v)
	}
	if v := q.int64Ptr("limit"); v != nil {
		if *v < 1 {
			q.errs = append(q.errs, fmt.Errorf("%w: limit must be positive", model.ErrValidation))
		}
		p.Limit = int(*v)
	}
	return p
}

func (q *queryParams) err() error {
	return errors.Join(q.errs...)
}
