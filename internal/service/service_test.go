package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/reporting"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/store/memory"
)

type mapReportCache struct {
	items map[string]domain.SalesReport
}

func (c *mapReportCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	v, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapReportCache) Set(_ context.Context, key string, value *domain.SalesReport, _ time.Duration) error {
	c.items[key] = *value
	return nil
}

func (c *mapReportCache) Delete(_ context.Context, key string) error {
	delete(c.items, key)
	return nil
}

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	engine := reporting.NewEngine(&mapReportCache{items: map[string]domain.SalesReport{}}, time.Minute)
	return New(repo, engine), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: "usr-admin", Name: "Administrador", Role: domain.RoleAdmin})
}

func sellerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: "usr-seller", Name: "Vendedor", Role: domain.RoleSeller})
}

func TestStockStatusThresholds(t *testing.T) {
	cases := map[int]string{40: domain.StockCritical, 50: domain.StockCritical, 90: domain.StockLow, 100: domain.StockLow, 150: domain.StockGood}
	for current, want := range cases {
		if got := StockStatus(current, 100); got != want {
			t.Fatalf("StockStatus(%d, 100) = %s, want %s", current, got, want)
		}
	}
}

func TestFlaskStockStatusThresholds(t *testing.T) {
	cases := map[int]string{5: domain.StockLow, 10: domain.StockLow, 20: domain.StockMedium, 21: domain.StockGood}
	for current, want := range cases {
		if got := FlaskStockStatus(current, 10); got != want {
			t.Fatalf("FlaskStockStatus(%d, 10) = %s, want %s", current, got, want)
		}
	}
}

func TestCreateSaleRecomputesPricesAndDecrementsStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := sellerCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		CustomerName: "Ana",
		Lines: []domain.SaleLineInput{
			{PerfumeID: "pf-rosa-nocturna", BottleType: "spray", Milliliters: 30, Quantity: 2},
			{PerfumeID: "pf-oud-imperial", BottleType: "roll-on", Milliliters: 10, Quantity: 1, IsRefill: true},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	// rosa: 1.20*30 = 36 x2 = 72; oud: 2.40*10*0.9 = 21.6
	if !sale.TotalAmount.Equal(decimal.RequireFromString("93.6")) {
		t.Fatalf("expected total 93.6, got %s", sale.TotalAmount)
	}
	if sale.TotalItems != 3 || sale.TotalML != 70 || sale.PaymentMethod != "efectivo" || sale.CreatedBy != "usr-seller" {
		t.Fatalf("unexpected sale header %+v", sale)
	}

	rosa, _ := repo.GetPerfume(context.Background(), "pf-rosa-nocturna")
	if rosa.CurrentStock != 440 {
		t.Fatalf("expected 440 ml left, got %d", rosa.CurrentStock)
	}

	logs, err := svc.ListAuditLogs(adminCtx(), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "sale_create" || logs[0].ActorID != "usr-seller" {
		t.Fatalf("expected sale audit entry, got %+v", logs)
	}
}

func TestCreateSaleRejectsOverStockWithoutSideEffects(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		Lines: []domain.SaleLineInput{
			{PerfumeID: "pf-rosa-nocturna", BottleType: "spray", Milliliters: 10, Quantity: 1},
			{PerfumeID: "pf-brisa-marina", BottleType: "spray", Milliliters: 50, Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	rosa, _ := repo.GetPerfume(context.Background(), "pf-rosa-nocturna")
	if rosa.CurrentStock != 500 {
		t.Fatalf("stock must be untouched, got %d", rosa.CurrentStock)
	}
	rows, _ := repo.ListSaleLines(context.Background(), time.Time{}, time.Time{}, 0)
	if len(rows) != 0 {
		t.Fatalf("expected no persisted lines, got %d", len(rows))
	}
}

func TestCreateSaleValidation(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateSale(context.Background(), domain.SaleCreateRequest{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected anonymous sale to be forbidden, got %v", err)
	}

	_, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{PaymentMethod: "bitcoin"})
	var v forms.Violations
	if !errors.As(err, &v) || v["payment_method"] != "unsupported" || v["lines"] != "required" {
		t.Fatalf("expected violations, got %v", err)
	}

	_, err = svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{Lines: []domain.SaleLineInput{
		{PerfumeID: "pf-missing", BottleType: "spray", Milliliters: 5, Quantity: 1},
	}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown perfume to be not found, got %v", err)
	}
}

func TestQuoteSaleDoesNotPersist(t *testing.T) {
	svc, repo := newTestService()

	quote, err := svc.QuoteSale(context.Background(), []domain.SaleLineInput{
		{PerfumeID: "pf-cedro-real", BottleType: "atomizador", Milliliters: 15, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !quote.TotalAmount.Equal(decimal.RequireFromString("48")) || quote.TotalML != 30 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	cedro, _ := repo.GetPerfume(context.Background(), "pf-cedro-real")
	if cedro.CurrentStock != 180 {
		t.Fatalf("quote must not touch stock")
	}
}

func TestSaleInvalidatesCachedReport(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	before, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !before.ThisMonthRevenue.IsZero() {
		t.Fatalf("expected empty month, got %s", before.ThisMonthRevenue)
	}

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{Lines: []domain.SaleLineInput{
		{PerfumeID: "pf-rosa-nocturna", BottleType: "spray", Milliliters: 10, Quantity: 1},
	}}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	after, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !after.ThisMonthRevenue.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("expected fresh revenue 12, got %s", after.ThisMonthRevenue)
	}
	if len(after.TopProducts) != 1 || after.TopProducts[0].Percent != 100 {
		t.Fatalf("unexpected top products %+v", after.TopProducts)
	}

	if _, err := svc.SalesReport(sellerCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected sellers to be refused the report, got %v", err)
	}
}

func TestCatalogueChangesInvalidateCachedReport(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	before, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	cost := decimal.RequireFromString("0")
	if _, err := svc.UpdatePerfume(ctx, "pf-rosa-nocturna", domain.PerfumeUpdateRequest{CostPerML: &cost}); err != nil {
		t.Fatalf("update perfume: %v", err)
	}
	afterUpdate, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if afterUpdate.AverageMargin <= before.AverageMargin {
		t.Fatalf("expected margin to rise after a cost cut, got %v -> %v", before.AverageMargin, afterUpdate.AverageMargin)
	}

	if err := svc.DeletePerfume(ctx, "pf-rosa-nocturna"); err != nil {
		t.Fatalf("delete perfume: %v", err)
	}
	afterDelete, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if afterDelete.AverageMargin == afterUpdate.AverageMargin {
		t.Fatalf("expected margin to drop the deleted perfume, still %v", afterDelete.AverageMargin)
	}
}

func TestListSalesFiltersAndTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx := sellerCtx()

	for _, req := range []domain.SaleCreateRequest{
		{CustomerName: "Marta", Lines: []domain.SaleLineInput{{PerfumeID: "pf-rosa-nocturna", BottleType: "spray", Milliliters: 10, Quantity: 2}}},
		{CustomerName: "Luis", Lines: []domain.SaleLineInput{{PerfumeID: "pf-oud-imperial", BottleType: "spray", Milliliters: 5, Quantity: 1}}},
	} {
		if _, err := svc.CreateSale(ctx, req); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}

	all, err := svc.ListSales(ctx, domain.SalesFilter{Period: "today"})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if all.Count != 2 || all.TotalUnits != 3 || !all.TotalRevenue.Equal(decimal.RequireFromString("36")) {
		t.Fatalf("unexpected totals %+v", all)
	}

	marta, err := svc.ListSales(ctx, domain.SalesFilter{Search: "MARTA"})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if marta.Count != 1 || marta.Lines[0].PerfumeName != "Rosa Nocturna" {
		t.Fatalf("expected customer search to match one line, got %+v", marta.Lines)
	}

	limited, _ := svc.ListSales(ctx, domain.SalesFilter{Limit: 1})
	if limited.Count != 1 {
		t.Fatalf("expected limit to apply, got %d", limited.Count)
	}

	if _, err := svc.ListSales(ctx, domain.SalesFilter{Period: "decade"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unsupported period, got %v", err)
	}
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	from, to, err := PeriodRange("week", now)
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if !from.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week window %v - %v", from, to)
	}

	from, to, _ = PeriodRange("month", now)
	if !from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month window %v - %v", from, to)
	}

	from, to, _ = PeriodRange("all", now)
	if !from.IsZero() || !to.IsZero() {
		t.Fatalf("all must be unbounded")
	}
}

func TestPerfumeLifecycle(t *testing.T) {
	svc, _ := newTestService()

	req := domain.PerfumeCreateRequest{
		Name: "Vainilla Dulce", Brand: "Casa Aroma", Category: "Gourmand",
		InitialStock: 200, MinStock: 50, PricePerML: decimal.RequireFromString("1.1"),
	}
	if _, err := svc.CreatePerfume(sellerCtx(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected sellers to be refused, got %v", err)
	}

	supervisor := WithActor(context.Background(), domain.Actor{UserID: "usr-supervisor", Role: domain.RoleSupervisor})
	created, err := svc.CreatePerfume(supervisor, req)
	if err != nil {
		t.Fatalf("create perfume: %v", err)
	}

	stock := 20
	updated, err := svc.UpdatePerfume(supervisor, created.ID, domain.PerfumeUpdateRequest{CurrentStock: &stock})
	if err != nil {
		t.Fatalf("update perfume: %v", err)
	}
	if updated.CurrentStock != 20 {
		t.Fatalf("expected stock 20, got %d", updated.CurrentStock)
	}
	view, _ := svc.GetPerfume(context.Background(), created.ID)
	if view.StockStatus != domain.StockCritical {
		t.Fatalf("expected critical status, got %s", view.StockStatus)
	}

	if err := svc.DeletePerfume(supervisor, created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected supervisors to be refused delete, got %v", err)
	}
	if err := svc.DeletePerfume(adminCtx(), created.ID); err != nil {
		t.Fatalf("delete perfume: %v", err)
	}

	list, err := svc.ListPerfumes(context.Background(), domain.PerfumeFilter{Search: "vainilla"})
	if err != nil {
		t.Fatalf("list perfumes: %v", err)
	}
	if len(list.Perfumes) != 0 {
		t.Fatalf("soft-deleted perfume must leave the active list")
	}
	all, _ := svc.ListPerfumes(context.Background(), domain.PerfumeFilter{Search: "vainilla", Status: "all"})
	if len(all.Perfumes) != 1 || all.Perfumes[0].Status != domain.StatusInactive {
		t.Fatalf("expected the inactive perfume to remain stored, got %+v", all.Perfumes)
	}
}

func TestInventorySummaryFromSeed(t *testing.T) {
	svc, _ := newTestService()

	summary, err := svc.InventorySummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalPerfumes != 5 || summary.TotalStockML != 1060 || summary.LowStock != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestInventoryAlertsFromSeed(t *testing.T) {
	svc, _ := newTestService()

	alerts, err := svc.InventoryAlerts(context.Background())
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(alerts.LowStockFlasks) != 2 || alerts.LowStockFlasks[0].CurrentStock != 0 {
		t.Fatalf("expected 2 low flasks ordered by stock, got %+v", alerts.LowStockFlasks)
	}
	if len(alerts.OutOfStockFlasks) != 1 || len(alerts.LowAlcohol) != 1 || len(alerts.ExpiringAlcohol) != 1 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if alerts.TotalAlerts != 5 {
		t.Fatalf("expected 5 alerts, got %d", alerts.TotalAlerts)
	}

	stats, err := svc.FlaskStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// 40*4.50 + 8*1.20 + 0*0.60
	if stats.TotalFlasks != 48 || stats.LowStockFlasks != 2 || !stats.TotalValue.Equal(decimal.RequireFromString("189.6")) {
		t.Fatalf("unexpected flask stats %+v", stats)
	}
	if stats.TotalAlcoholML != 13500 || stats.LowStockAlcohol != 1 {
		t.Fatalf("unexpected alcohol stats %+v", stats)
	}
}

func TestCreateFlaskAndConsumption(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()

	flask, err := svc.CreateFlask(ctx, domain.FlaskCreateRequest{
		FlaskTypeID: "ft-vidrio", SizeML: 100, CostPerUnit: decimal.RequireFromString("2"), CurrentStock: 30, MinStock: 10,
	})
	if err != nil {
		t.Fatalf("create flask: %v", err)
	}
	if flask.ReferenceID[:10] != "VID-100ML-" || flask.StockStatus != domain.StockGood {
		t.Fatalf("unexpected flask %+v", flask)
	}
	if movements := repo.Movements(flask.ID); len(movements) != 1 || movements[0].ReferenceDocument != "INITIAL_STOCK" {
		t.Fatalf("expected initial stock movement, got %+v", movements)
	}

	if _, err := svc.CreateFlask(ctx, domain.FlaskCreateRequest{FlaskTypeID: "ft-none", SizeML: 5}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown flask type, got %v", err)
	}

	consumption, err := svc.RecordConsumption(sellerCtx(), domain.ConsumptionCreateRequest{
		AlcoholID: "alc-etanol-96", QuantityUsedML: 250, Purpose: "dilution", FlaskID: "none",
	})
	if err != nil {
		t.Fatalf("record consumption: %v", err)
	}
	if consumption.CreatedBy != "usr-seller" || consumption.BatchReference != "ET-2401" {
		t.Fatalf("unexpected consumption %+v", consumption)
	}
	lot, _ := repo.GetAlcohol(context.Background(), "alc-etanol-96")
	if lot.CurrentStockML != 11750 {
		t.Fatalf("expected lot to drop to 11750, got %v", lot.CurrentStockML)
	}
}

func TestDashboardCountsThisMonth(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{Lines: []domain.SaleLineInput{
		{PerfumeID: "pf-rosa-nocturna", BottleType: "spray", Milliliters: 10, Quantity: 1},
		{PerfumeID: "pf-oud-imperial", BottleType: "spray", Milliliters: 10, Quantity: 1},
	}}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	dash, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.SalesThisMonth != 1 || !dash.RevenueThisMonth.Equal(decimal.RequireFromString("36")) {
		t.Fatalf("unexpected month figures %+v", dash)
	}
	if len(dash.TopProducts) != 2 || dash.TopProducts[0].Name != "Oud Imperial" || len(dash.RecentSales) != 2 {
		t.Fatalf("unexpected dashboard lists %+v", dash)
	}
	if dash.TotalPerfumes != 5 {
		t.Fatalf("expected 5 perfumes, got %d", dash.TotalPerfumes)
	}
}

func TestUserAdministration(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.ListUsers(sellerCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected sellers to be refused, got %v", err)
	}

	stats, err := svc.UserStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Active != 3 || stats.Administrators != 1 || stats.Sellers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	toggled, err := svc.SetUserStatus(ctx, "usr-seller", "")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Status != domain.StatusInactive {
		t.Fatalf("expected seller to be deactivated, got %s", toggled.Status)
	}
	if _, err := svc.SetUserStatus(ctx, "usr-admin", domain.StatusInactive); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected self-deactivation to be refused, got %v", err)
	}

	promoted, err := svc.ChangeUserRole(ctx, "usr-seller", domain.RoleSupervisor)
	if err != nil {
		t.Fatalf("change role: %v", err)
	}
	if promoted.Role != domain.RoleSupervisor {
		t.Fatalf("expected supervisor, got %s", promoted.Role)
	}
	if _, err := svc.ChangeUserRole(ctx, "usr-seller", "root"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unsupported role, got %v", err)
	}

	stats, _ = svc.UserStats(ctx)
	if stats.Inactive != 1 || stats.Supervisors != 2 {
		t.Fatalf("unexpected stats after changes %+v", stats)
	}
}
