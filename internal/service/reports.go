package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/reporting"
)

const recentSalesLimit = 5

// ReportRows feeds the reporting engine: every sale line and the active
// catalogue.
func (s *Service) ReportRows(ctx context.Context) ([]domain.SaleLineRecord, []domain.Perfume, error) {
	rows, err := s.repo.ListSaleLines(ctx, time.Time{}, time.Time{}, 0)
	if err != nil {
		return nil, nil, err
	}
	products, err := s.repo.ListPerfumes(ctx, domain.StatusActive)
	if err != nil {
		return nil, nil, err
	}
	return rows, products, nil
}

func (s *Service) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return domain.SalesReport{}, err
	}
	return s.reports.SalesReport(ctx, s, s.now())
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	now := s.now()
	monthStart := reporting.MonthKeyOf(now).Start(now.Location())

	perfumes, err := s.repo.ListPerfumes(ctx, domain.StatusActive)
	if err != nil {
		return domain.Dashboard{}, err
	}
	monthRows, err := s.repo.ListSaleLines(ctx, monthStart, time.Time{}, 0)
	if err != nil {
		return domain.Dashboard{}, err
	}
	recent, err := s.repo.ListSaleLines(ctx, time.Time{}, time.Time{}, recentSalesLimit)
	if err != nil {
		return domain.Dashboard{}, err
	}
	flasks, err := s.repo.ListFlasks(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	lots, err := s.repo.ListAlcohol(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	summary := summarizePerfumes(perfumes)
	stats := flaskStats(flasks, lots)
	dash := domain.Dashboard{
		TotalPerfumes:    summary.TotalPerfumes,
		TotalStockML:     summary.TotalStockML,
		LowStockPerfumes: summary.LowStock,
		RevenueThisMonth: decimal.Zero,
		TotalFlasks:      stats.TotalFlasks,
		LowStockFlasks:   stats.LowStockFlasks,
		TotalAlcoholML:   stats.TotalAlcoholML,
		LowStockAlcohol:  stats.LowStockAlcohol,
		TopProducts:      reporting.TopProducts(monthRows, reporting.TopProductsLimit),
	}

	// Sales are counted by header, revenue by line subtotal.
	sales := make(map[string]struct{})
	for _, row := range monthRows {
		sales[row.SaleID] = struct{}{}
		dash.RevenueThisMonth = dash.RevenueThisMonth.Add(row.Subtotal)
	}
	dash.SalesThisMonth = len(sales)

	dash.RecentSales = recent
	return dash, nil
}
