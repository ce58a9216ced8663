package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/store"
)

// restFake answers PostgREST calls from canned bodies keyed by
// "METHOD table" and records every request it sees.
type restFake struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []*http.Request
}

func (f *restFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	body, ok := f.bodies[r.Method+" "+path.Base(r.URL.Path)]
	f.mu.Unlock()
	if !ok {
		body = "[]"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *restFake) find(method string, table string) []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*http.Request
	for _, r := range f.requests {
		if r.Method == method && path.Base(r.URL.Path) == table {
			out = append(out, r)
		}
	}
	return out
}

func newFakeStore(t *testing.T, bodies map[string]string) (*Store, *restFake) {
	t.Helper()
	fake := &restFake{bodies: bodies}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, fake
}

const rosaRow = `[{"id":"pf-rosa","name":"Rosa Nocturna","brand":"Casa","category":"floral","current_stock":500,"min_stock":100,"price_per_ml":"1.2","cost_per_ml":"0.5","status":"activo","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}]`

func rosaSale() domain.Sale {
	return domain.Sale{
		PaymentMethod: "efectivo",
		CreatedBy:     "usr-seller",
		Details:       []domain.SaleDetail{{PerfumeID: "pf-rosa", PerfumeName: "Rosa Nocturna", BottleType: "spray", Milliliter: 30, Quantity: 1}},
	}
}

func TestCreateSaleStockUpdateIsConditional(t *testing.T) {
	s, fake := newFakeStore(t, map[string]string{
		"GET perfumes":   rosaRow,
		"PATCH perfumes": rosaRow,
	})

	if _, err := s.CreateSale(context.Background(), rosaSale()); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	patches := fake.find(http.MethodPatch, tablePerfumes)
	if len(patches) != 1 {
		t.Fatalf("expected one stock update, got %d", len(patches))
	}
	if got := patches[0].URL.Query().Get("current_stock"); got != "eq.500" {
		t.Fatalf("expected update guarded by the stock that was read, got %q", got)
	}
	if n := len(fake.find(http.MethodDelete, tableSales)); n != 0 {
		t.Fatalf("successful sale must not be compensated, got %d deletes", n)
	}
}

func TestCreateSaleLosingStockRaceIsRolledBack(t *testing.T) {
	// The PATCH matches no row: another sale moved the stock after it was read.
	s, fake := newFakeStore(t, map[string]string{
		"GET perfumes": rosaRow,
	})

	_, err := s.CreateSale(context.Background(), rosaSale())
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := len(fake.find(http.MethodDelete, tableSaleDetails)); n != 1 {
		t.Fatalf("expected details to be deleted once, got %d", n)
	}
	if n := len(fake.find(http.MethodDelete, tableSales)); n != 1 {
		t.Fatalf("expected header to be deleted once, got %d", n)
	}
}

func TestListSaleLinesFiltersOnServer(t *testing.T) {
	s, fake := newFakeStore(t, map[string]string{
		"GET sales": `[
			{"id":"sale-new","sale_date":"2026-03-10T12:00:00Z","total_amount":"36","payment_method":"efectivo","created_by":"usr-seller"},
			{"id":"sale-late","sale_date":"2026-04-02T12:00:00Z","total_amount":"12","payment_method":"efectivo","created_by":"usr-seller"}
		]`,
		"GET sale_details": `[
			{"id":"det-1","sale_id":"sale-new","perfume_id":"pf-rosa","perfume_name":"Rosa Nocturna","bottle_type":"spray","quantity":1,"unit_price":"36","subtotal":"36","milliliter":30},
			{"id":"det-2","sale_id":"sale-late","perfume_id":"pf-rosa","perfume_name":"Rosa Nocturna","bottle_type":"spray","quantity":1,"unit_price":"12","subtotal":"12","milliliter":10}
		]`,
	})
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	rows, err := s.ListSaleLines(context.Background(), from, to, 0)
	if err != nil {
		t.Fatalf("list sale lines: %v", err)
	}
	if len(rows) != 1 || rows[0].DetailID != "det-1" {
		t.Fatalf("expected only the march line, got %+v", rows)
	}

	salesQuery := fake.find(http.MethodGet, tableSales)
	if len(salesQuery) != 1 || !strings.HasPrefix(salesQuery[0].URL.Query().Get("sale_date"), "gte.") {
		t.Fatalf("expected the date bound to be sent to the server")
	}
	detailQuery := fake.find(http.MethodGet, tableSaleDetails)
	if len(detailQuery) != 1 || !strings.HasPrefix(detailQuery[0].URL.Query().Get("sale_id"), "in.") {
		t.Fatalf("expected details to be fetched by sale id")
	}
}
