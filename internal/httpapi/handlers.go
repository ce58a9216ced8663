package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"perfumestock/backend/internal/domain"
)

const loginPageHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>PerfumeStock | Login</title>
</head>
<body data-page="/login">
  <form id="login" method="post" action="/api/v1/auth/login">
    <input type="email" name="email" required />
    <input type="password" name="password" required />
    <button type="submit">Ingresar</button>
  </form>
</body>
</html>
`

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(loginPageHTML))
}

func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": a.generateCSRFToken()})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts, try again later"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid login payload"))
		return
	}

	resp, expiresAt, err := a.auth.Login(r.Context(), req)
	if errors.Is(err, errInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    resp.AccessToken,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts, try again later"))
		return
	}
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid signup payload"))
		return
	}
	user, err := a.auth.SignUp(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profileOf(user))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)
	writeJSON(w, http.StatusOK, domain.UserProfile{
		ID:     actor.UserID,
		Name:   actor.Name,
		Email:  actor.Email,
		Role:   actor.Role,
		Status: domain.StatusActive,
	})
}

func (a *API) handleListPerfumes(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListPerfumes(r.Context(), domain.PerfumeFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetPerfume(w http.ResponseWriter, r *http.Request) {
	perfume, err := a.service.GetPerfume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perfume)
}

func (a *API) handleCreatePerfume(w http.ResponseWriter, r *http.Request) {
	var req domain.PerfumeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid perfume payload"))
		return
	}
	perfume, err := a.service.CreatePerfume(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, perfume)
}

func (a *API) handleUpdatePerfume(w http.ResponseWriter, r *http.Request) {
	var req domain.PerfumeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid perfume payload"))
		return
	}
	perfume, err := a.service.UpdatePerfume(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perfume)
}

func (a *API) handleDeletePerfume(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeletePerfume(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.InventorySummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleInventoryAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.service.InventoryAlerts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleListFlasks(w http.ResponseWriter, r *http.Request) {
	flasks, err := a.service.ListFlasks(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flasks)
}

func (a *API) handleCreateFlask(w http.ResponseWriter, r *http.Request) {
	var req domain.FlaskCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid flask payload"))
		return
	}
	flask, err := a.service.CreateFlask(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, flask)
}

func (a *API) handleFlaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.FlaskStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleListFlaskTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.service.ListFlaskTypes(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (a *API) handleListAlcohol(w http.ResponseWriter, r *http.Request) {
	lots, err := a.service.ListAlcohol(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func (a *API) handleCreateAlcohol(w http.ResponseWriter, r *http.Request) {
	var req domain.AlcoholCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid alcohol payload"))
		return
	}
	lot, err := a.service.CreateAlcoholLot(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

func (a *API) handleListConsumptions(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
	rows, err := a.service.ListConsumptions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleRecordConsumption(w http.ResponseWriter, r *http.Request) {
	var req domain.ConsumptionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid consumption payload"))
		return
	}
	row, err := a.service.RecordConsumption(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := a.service.ListSales(r.Context(), domain.SalesFilter{
		Search: q.Get("search"),
		Period: q.Get("period"),
		Limit:  parsePositiveLimit(q.Get("limit"), 50, 500),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid sale payload"))
		return
	}
	sale, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleQuoteSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid quote payload"))
		return
	}
	quote, err := a.service.QuoteSale(r.Context(), req.Lines)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.SalesReport(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "json":
		writeJSON(w, http.StatusOK, report)
	case "csv":
		body, err := salesReportToCSV(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="sales-report-`+report.Month+`.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(salesReportToPrintableHTML(report)))
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be json, csv or html"))
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid user payload"))
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	a.service.RecordUserCreated(r.Context(), user)
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.UserStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UserStatusRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid status payload"))
			return
		}
	}
	user, err := a.service.SetUserStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request) {
	var req domain.UserRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid role payload"))
		return
	}
	user, err := a.service.ChangeUserRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
