package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/auth"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// метрики

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay2win_http_requests_total",
			Help: "Кол-во HTTP запросов",
		},
		[]string{"path", "method", "code"},
	)

	httpRequestsError = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay2win_http_errors_total",
			Help: "Кол-во ошибочных HTTP запросов",
		},
		[]string{"path", "method", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pay2win_http_request_duration_seconds",
			Help:    "Продолжительность HTTP запросов",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)
)

// логируем вызовы
type logResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// MiddlewareLog - счетчики и длительность по шаблону маршрута
func MiddlewareLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			reqtime := time.Now()
			logrw := &logResponseWriter{w, http.StatusOK}
			next.ServeHTTP(logrw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			labels := prometheus.Labels{
				"path":   path,
				"method": r.Method,
				"code":   strconv.Itoa(logrw.status),
			}
			httpRequestsTotal.With(labels).Inc()
			httpRequestDuration.With(labels).Observe(time.Since(reqtime).Seconds())

			if logrw.status >= http.StatusBadRequest {
				httpRequestsError.With(labels).Inc()
			}
		})
	}
}

type actorKey struct{}

func withActor(ctx context.Context, actor model.Account) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor - аутентифицированный пользователь запроса
func Actor(ctx context.Context) (model.Account, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Account)
	return actor, ok
}

// authenticate - bearer JWT -> счет в контексте запроса
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.accounts.Resolve(r.Context(), auth.ExtractBearer(r.Header.Get("Authorization")))
		if err != nil {
			h.fail(w, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

const (
	limiterIdle = 10 * time.Minute
	maxLimiters = 10000
)

type ipEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter - token bucket на IP для входа и сброса пароля.
// Простаивающие IP удаляются; сверх maxLimiters адресов действует общий bucket.
type ipLimiter struct {
	mu        sync.Mutex
	entries   map[string]*ipEntry
	shared    *rate.Limiter
	limit     rate.Limit
	burst     int
	max       int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	// удалять можно только заполнившийся bucket
	idle := time.Duration(float64(burst) / perSecond * float64(time.Second))
	if idle < limiterIdle {
		idle = limiterIdle
	}
	return &ipLimiter{
		entries:   map[string]*ipEntry{},
		shared:    rate.NewLimiter(rate.Limit(perSecond), burst),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		max:       maxLimiters,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	e, ok := l.entries[ip]
	if !ok {
		if len(l.entries) >= l.max {
			l.sweep(now)
		}
		if len(l.entries) >= l.max {
			l.mu.Unlock()
			return l.shared.AllowN(now, 1)
		}
		e = &ipEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// sweep удаляет IP без запросов дольше idle; вызывается под mu
func (l *ipLimiter) sweep(now time.Time) {
	for ip, e := range l.entries {
		if now.Sub(e.seen) >= l.idle {
			delete(l.entries, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
