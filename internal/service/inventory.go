package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/xid"
)

const expiryWarningWindow = 30 * 24 * time.Hour

// FlaskStockStatus grades flask stock: up to the minimum is low, up to twice
// the minimum is medium.
func FlaskStockStatus(current int, minStock int) string {
	switch {
	case current <= minStock:
		return domain.StockLow
	case current <= minStock*2:
		return domain.StockMedium
	default:
		return domain.StockGood
	}
}

func flaskView(f domain.Flask) domain.FlaskView {
	return domain.FlaskView{
		Flask:       f,
		StockStatus: FlaskStockStatus(f.CurrentStock, f.MinStock),
		TotalValue:  f.CostPerUnit.Mul(decimal.NewFromInt(int64(f.CurrentStock))),
	}
}

func alcoholIsLow(lot domain.AlcoholLot) bool {
	return lot.IsActive && lot.CurrentStockML <= lot.MinStockML
}

func (s *Service) ListFlaskTypes(ctx context.Context) ([]domain.FlaskType, error) {
	return s.repo.ListFlaskTypes(ctx)
}

func (s *Service) ListFlasks(ctx context.Context, search string) ([]domain.FlaskView, error) {
	flasks, err := s.repo.ListFlasks(ctx)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	views := make([]domain.FlaskView, 0, len(flasks))
	for _, f := range flasks {
		if search != "" && !containsFold(f.ReferenceID, search) && !containsFold(f.FlaskTypeName, search) {
			continue
		}
		views = append(views, flaskView(f))
	}
	return views, nil
}

func (s *Service) CreateFlask(ctx context.Context, req domain.FlaskCreateRequest) (domain.FlaskView, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return domain.FlaskView{}, err
	}

	flaskType, err := s.repo.GetFlaskType(ctx, strings.TrimSpace(req.FlaskTypeID))
	if err != nil {
		return domain.FlaskView{}, fmt.Errorf("flask type %s: %w", req.FlaskTypeID, err)
	}

	id := xid.New("fl")
	flask, movement, err := forms.NewFlask(req, *flaskType, id, s.now())
	if err != nil {
		return domain.FlaskView{}, err
	}
	flask.ID = id
	if movement != nil {
		movement.ID = xid.New("mov")
		movement.FlaskID = id
	}

	created, err := s.repo.CreateFlask(ctx, flask, movement)
	if err != nil {
		return domain.FlaskView{}, err
	}

	s.logAudit(ctx, "flask_create", "flask", created.ID, fmt.Sprintf("reference=%s,stock=%d", created.ReferenceID, created.CurrentStock))
	return flaskView(*created), nil
}

func (s *Service) ListAlcohol(ctx context.Context, search string) ([]domain.AlcoholLot, error) {
	lots, err := s.repo.ListAlcohol(ctx)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return lots, nil
	}
	filtered := make([]domain.AlcoholLot, 0, len(lots))
	for _, lot := range lots {
		if containsFold(lot.Name, search) || containsFold(lot.Type, search) {
			filtered = append(filtered, lot)
		}
	}
	return filtered, nil
}

func (s *Service) CreateAlcoholLot(ctx context.Context, req domain.AlcoholCreateRequest) (domain.AlcoholLot, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return domain.AlcoholLot{}, err
	}

	lot, err := forms.NewAlcoholLot(req, s.now())
	if err != nil {
		return domain.AlcoholLot{}, err
	}
	lot.ID = xid.New("alc")

	created, err := s.repo.CreateAlcohol(ctx, lot)
	if err != nil {
		return domain.AlcoholLot{}, err
	}
	s.logAudit(ctx, "alcohol_create", "alcohol", created.ID, fmt.Sprintf("name=%s,stock_ml=%.0f", created.Name, created.CurrentStockML))
	return *created, nil
}

// RecordConsumption logs alcohol drawn from a lot and decrements the lot.
func (s *Service) RecordConsumption(ctx context.Context, req domain.ConsumptionCreateRequest) (domain.AlcoholConsumption, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.AlcoholConsumption{}, err
	}

	lot, err := s.repo.GetAlcohol(ctx, strings.TrimSpace(req.AlcoholID))
	if err != nil {
		return domain.AlcoholConsumption{}, fmt.Errorf("alcohol %s: %w", req.AlcoholID, err)
	}
	consumption, err := forms.NewConsumption(req, *lot, actor.UserID, s.now())
	if err != nil {
		return domain.AlcoholConsumption{}, err
	}
	consumption.ID = xid.New("cons")

	created, err := s.repo.CreateConsumption(ctx, consumption)
	if err != nil {
		return domain.AlcoholConsumption{}, err
	}
	s.logAudit(ctx, "alcohol_consume", "alcohol", lot.ID, fmt.Sprintf("ml=%.1f,purpose=%s", created.QuantityUsedML, created.Purpose))
	return *created, nil
}

func (s *Service) ListConsumptions(ctx context.Context, limit int) ([]domain.AlcoholConsumption, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListConsumptions(ctx, limit)
}

func (s *Service) FlaskStats(ctx context.Context) (domain.FlaskStats, error) {
	flasks, err := s.repo.ListFlasks(ctx)
	if err != nil {
		return domain.FlaskStats{}, err
	}
	lots, err := s.repo.ListAlcohol(ctx)
	if err != nil {
		return domain.FlaskStats{}, err
	}
	return flaskStats(flasks, lots), nil
}

func flaskStats(flasks []domain.Flask, lots []domain.AlcoholLot) domain.FlaskStats {
	stats := domain.FlaskStats{TotalValue: decimal.Zero}
	for _, f := range flasks {
		view := flaskView(f)
		stats.TotalFlasks += f.CurrentStock
		if view.StockStatus == domain.StockLow {
			stats.LowStockFlasks++
		}
		stats.TotalValue = stats.TotalValue.Add(view.TotalValue)
	}
	for _, lot := range lots {
		stats.TotalAlcoholML += lot.CurrentStockML
		if alcoholIsLow(lot) {
			stats.LowStockAlcohol++
		}
	}
	return stats
}

func (s *Service) InventoryAlerts(ctx context.Context) (domain.InventoryAlerts, error) {
	flasks, err := s.repo.ListFlasks(ctx)
	if err != nil {
		return domain.InventoryAlerts{}, err
	}
	lots, err := s.repo.ListAlcohol(ctx)
	if err != nil {
		return domain.InventoryAlerts{}, err
	}

	alerts := domain.InventoryAlerts{
		LowStockFlasks:    []domain.FlaskView{},
		OutOfStockFlasks:  []domain.FlaskView{},
		LowAlcohol:        []domain.AlcoholLot{},
		OutOfStockAlcohol: []domain.AlcoholLot{},
		ExpiringAlcohol:   []domain.AlcoholLot{},
	}
	for _, f := range flasks {
		view := flaskView(f)
		if view.StockStatus == domain.StockLow {
			alerts.LowStockFlasks = append(alerts.LowStockFlasks, view)
		}
		if f.CurrentStock == 0 {
			alerts.OutOfStockFlasks = append(alerts.OutOfStockFlasks, view)
		}
	}
	sort.SliceStable(alerts.LowStockFlasks, func(i, j int) bool {
		return alerts.LowStockFlasks[i].CurrentStock < alerts.LowStockFlasks[j].CurrentStock
	})

	horizon := s.now().Add(expiryWarningWindow)
	for _, lot := range lots {
		if alcoholIsLow(lot) {
			alerts.LowAlcohol = append(alerts.LowAlcohol, lot)
		}
		if lot.CurrentStockML <= 0 {
			alerts.OutOfStockAlcohol = append(alerts.OutOfStockAlcohol, lot)
		}
		if lot.IsActive && lot.ExpiryDate != nil && !lot.ExpiryDate.After(horizon) {
			alerts.ExpiringAlcohol = append(alerts.ExpiringAlcohol, lot)
		}
	}

	alerts.TotalAlerts = len(alerts.LowStockFlasks) + len(alerts.OutOfStockFlasks) +
		len(alerts.LowAlcohol) + len(alerts.OutOfStockAlcohol) + len(alerts.ExpiringAlcohol)
	return alerts, nil
}
