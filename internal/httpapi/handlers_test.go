package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"perfumestock/backend/internal/cache"
	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/reporting"
	"perfumestock/backend/internal/service"
	"perfumestock/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	reports := reporting.NewEngine(cache.NoopReportCache{}, time.Minute)
	svc := service.New(repo, reports)
	auth := NewAuthManager("test-secret-key-with-32-characters", time.Hour, repo, true)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, api *API, email string, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func loginToken(t *testing.T, api *API, email string, password string) string {
	t.Helper()
	res := login(t, api, email, password)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d (body: %s)", email, res.Code, res.Body.String())
	}
	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return loginToken(t, api, "admin@perfumestock.local", "admin123")
}

func loginAsSeller(t *testing.T, api *API) string {
	return loginToken(t, api, "vendedor@perfumestock.local", "vendedor123")
}

func doJSON(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodGet, "/healthz", "", nil)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestHandleLogin_SetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	res := login(t, api, "admin@perfumestock.local", "admin123")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	var session *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("expected %s cookie to be set", sessionCookieName)
	}
	if !session.HttpOnly {
		t.Fatalf("expected session cookie to be HttpOnly")
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.User.Role != domain.RoleAdmin || body.AccessToken != session.Value {
		t.Fatalf("unexpected login response %+v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	res := login(t, api, "admin@perfumestock.local", "wrongpassword")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/api/v1/perfumes", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/perfumes", "not-a-jwt", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.Code)
	}
}

func TestHandleMe(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/auth/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var profile domain.UserProfile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if profile.ID != "usr-seller" || profile.Role != domain.RoleSeller {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestHandlePerfumes_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/perfumes?search=oud", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var body domain.PerfumeListResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Perfumes) != 1 || body.Perfumes[0].ID != "pf-oud-imperial" {
		t.Fatalf("expected only Oud Imperial, got %+v", body.Perfumes)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/perfumes/pf-missing", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown perfume, got %d", res.Code)
	}
}

func TestSellerCannotManageCatalogOrReports(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/perfumes", token, domain.PerfumeCreateRequest{Name: "Nuevo", Brand: "Casa"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 creating perfume as seller, got %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/sales", token, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for report as seller, got %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/users", token, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for users as seller, got %d", res.Code)
	}
}

func TestHandleCreateSale(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		CustomerName:  "Marta",
		PaymentMethod: "efectivo",
		Lines: []domain.SaleLineInput{
			{PerfumeID: "pf-rosa-nocturna", BottleType: "atomizador", Milliliters: 30, Quantity: 1},
		},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var sale domain.Sale
	if err := json.NewDecoder(res.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if sale.TotalAmount.StringFixed(2) != "36.00" || sale.CreatedBy != "usr-seller" || len(sale.Details) != 1 {
		t.Fatalf("unexpected sale %+v", sale)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/perfumes/pf-rosa-nocturna", token, nil)
	var perfume domain.PerfumeView
	if err := json.NewDecoder(res.Body).Decode(&perfume); err != nil {
		t.Fatalf("decode perfume: %v", err)
	}
	if perfume.CurrentStock != 470 {
		t.Fatalf("expected stock 470 after sale, got %d", perfume.CurrentStock)
	}
}

func TestHandleCreateSale_InsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{PerfumeID: "pf-brisa-marina", BottleType: "spray", Milliliters: 50, Quantity: 2},
		},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d", res.Code)
	}
}

func TestHandleSalesReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	sale := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{PerfumeID: "pf-oud-imperial", BottleType: "spray", Milliliters: 10, Quantity: 1},
		},
	})
	if sale.Code != http.StatusCreated {
		t.Fatalf("seed sale failed: %d %s", sale.Code, sale.Body.String())
	}

	res := doJSON(t, api, http.MethodGet, "/api/v1/reports/sales", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var report domain.SalesReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ThisMonthRevenue.StringFixed(2) != "24.00" || len(report.TopProducts) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/sales?format=csv", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("csv: unexpected content type %q", ct)
	}
	if !strings.Contains(res.Body.String(), "top_product,Oud Imperial,24.00,100.00") {
		t.Fatalf("csv: missing top product row in %q", res.Body.String())
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/sales?format=html", token, nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "<h2>Sales Report") {
		t.Fatalf("html: unexpected response %d %q", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/sales?format=xml", token, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}
}

func TestHandleUsersAdmin(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/users", token, domain.UserCreateRequest{
		Name: "Camila", Email: "camila@perfumestock.local", Password: "camila123", Role: domain.RoleSupervisor,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var created domain.UserAccount
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if strings.Contains(res.Body.String(), "camila123") {
		t.Fatalf("password must never be serialized")
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/users", token, domain.UserCreateRequest{
		Name: "Camila", Email: "camila@perfumestock.local", Password: "camila123",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/users/"+created.ID+"/status", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("toggle status: expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var toggled domain.UserAccount
	if err := json.NewDecoder(res.Body).Decode(&toggled); err != nil {
		t.Fatalf("decode toggled: %v", err)
	}
	if toggled.Status != domain.StatusInactive {
		t.Fatalf("expected inactivo after toggle, got %s", toggled.Status)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/users/usr-admin/status", token, domain.UserStatusRequest{Status: domain.StatusInactive})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("self deactivation: expected 400, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/users/stats", token, nil)
	var stats domain.UserStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 4 || stats.Inactive != 1 || stats.Supervisors != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAccountChangesApplyToOpenSessions(t *testing.T) {
	api := newTestAPI(t)
	adminToken := loginAsAdmin(t, api)
	sellerToken := loginAsSeller(t, api)

	res := doJSON(t, api, http.MethodPatch, "/api/v1/users/usr-seller/role", adminToken, domain.UserRoleRequest{Role: domain.RoleSupervisor})
	if res.Code != http.StatusOK {
		t.Fatalf("change role: expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/sales", sellerToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("promoted session should reach reports, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/users/usr-seller/status", adminToken, domain.UserStatusRequest{Status: domain.StatusInactive})
	if res.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/auth/me", sellerToken, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated session: expected 401, got %d", res.Code)
	}
}

func TestHandleSignup(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/signup", "", domain.UserCreateRequest{
		Name: "Cliente", Email: "cliente@correo.com", Password: "cliente123",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var profile domain.UserProfile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", profile.Role)
	}
}

func TestPagesRedirectByRole(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusFound || res.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous: expected redirect to /login, got %d %q", res.Code, res.Header().Get("Location"))
	}

	sellerToken := loginAsSeller(t, api)
	req = httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sellerToken})
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusFound || res.Header().Get("Location") != "/" {
		t.Fatalf("seller on reports: expected redirect to /, got %d %q", res.Code, res.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/sales", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sellerToken})
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `data-page="/sales"`) {
		t.Fatalf("seller on sales: expected page, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "garbage"})
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusFound || res.Header().Get("Location") != "/login" {
		t.Fatalf("bad cookie: expected redirect to /login, got %d %q", res.Code, res.Header().Get("Location"))
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
