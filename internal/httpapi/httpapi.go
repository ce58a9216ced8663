package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/service"
	"perfumestock/backend/internal/store"
)

const sessionCookieName = "perfumestock_session"

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	apiJWT        *jwtmiddleware.JWTMiddleware
	pageJWT       *jwtmiddleware.JWTMiddleware
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}

	extractor := jwtmiddleware.MultiTokenExtractor(
		jwtmiddleware.AuthHeaderTokenExtractor,
		jwtmiddleware.CookieTokenExtractor(sessionCookieName),
	)
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		apiJWT: jwtmiddleware.New(auth.validateToken,
			jwtmiddleware.WithTokenExtractor(extractor),
			jwtmiddleware.WithErrorHandler(apiAuthError),
		),
		pageJWT: jwtmiddleware.New(auth.validateToken,
			jwtmiddleware.WithTokenExtractor(extractor),
			jwtmiddleware.WithCredentialsOptional(true),
			jwtmiddleware.WithErrorHandler(pageAuthError),
		),
	}
}

func apiAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
		writeError(w, http.StatusUnauthorized, errors.New("missing session token"))
		return
	}
	writeError(w, http.StatusUnauthorized, errors.New("invalid or expired token"))
}

// pageAuthError treats a bad session on a page route as no session.
func pageAuthError(w http.ResponseWriter, r *http.Request, _ error) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]time.Time, 0, len(l.entries[key])+1)
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{a.allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(a.withMiddleware)

	mux.Get("/healthz", a.handleHealth)
	mux.Get("/login", a.handleLoginPage)
	mux.Group(func(r chi.Router) {
		r.Use(a.pageJWT.CheckJWT)
		for _, p := range pages {
			r.Get(p.Path, a.pageHandler(p))
		}
	})

	mux.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/logout", a.handleLogout)
		r.Post("/auth/signup", a.handleSignup)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.apiJWT.CheckJWT, attachActor, a.checkCSRF)
			staffManagers := requireRoles(domain.RoleAdmin, domain.RoleSupervisor)
			adminOnly := requireRoles(domain.RoleAdmin)

			r.Get("/auth/me", a.handleMe)

			r.Get("/perfumes", a.handleListPerfumes)
			r.With(staffManagers).Post("/perfumes", a.handleCreatePerfume)
			r.Get("/perfumes/{id}", a.handleGetPerfume)
			r.With(staffManagers).Patch("/perfumes/{id}", a.handleUpdatePerfume)
			r.With(adminOnly).Delete("/perfumes/{id}", a.handleDeletePerfume)

			r.Get("/inventory/summary", a.handleInventorySummary)
			r.Get("/inventory/alerts", a.handleInventoryAlerts)

			r.Get("/flasks", a.handleListFlasks)
			r.With(staffManagers).Post("/flasks", a.handleCreateFlask)
			r.Get("/flasks/stats", a.handleFlaskStats)
			r.Get("/flask-types", a.handleListFlaskTypes)

			r.Get("/alcohol", a.handleListAlcohol)
			r.With(staffManagers).Post("/alcohol", a.handleCreateAlcohol)
			r.Get("/alcohol/consumption", a.handleListConsumptions)
			r.Post("/alcohol/consumption", a.handleRecordConsumption)

			r.Get("/sales", a.handleListSales)
			r.Post("/sales", a.handleCreateSale)
			r.Post("/sales/quote", a.handleQuoteSale)

			r.With(staffManagers).Get("/reports/sales", a.handleSalesReport)
			r.Get("/dashboard", a.handleDashboard)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/users", a.handleListUsers)
				r.Post("/users", a.handleCreateUser)
				r.Get("/users/stats", a.handleUserStats)
				r.Patch("/users/{id}/status", a.handleUserStatus)
				r.Patch("/users/{id}/role", a.handleUserRole)
				r.Get("/audit-logs", a.handleAuditLogs)
			})
		})
	})

	return mux
}

// attachActor moves the validated token claims into the service context.
func attachActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromRequest(r)
		if actor == nil {
			writeError(w, http.StatusUnauthorized, errors.New("missing session token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), *actor)))
	})
}

func actorFromRequest(r *http.Request) *domain.Actor {
	actor, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(domain.Actor)
	if !ok {
		return nil
	}
	return &actor
}

func requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok || !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// checkCSRF requires X-CSRF-Token on mutating requests authenticated by the
// session cookie. Bearer-token clients are not exposed to CSRF.
func (a *API) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
			next.ServeHTTP(w, r)
			return
		}
		if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	var violations forms.Violations
	switch {
	case errors.As(err, &violations), errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var violations forms.Violations
	if errors.As(err, &violations) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      err.Error(),
			"violations": violations,
		})
		return
	}
	writeError(w, statusFor(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the detail goes to the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
