package service

import (
	"context"
	"fmt"
	"strings"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
)

// StockStatus grades perfume stock against its minimum: up to half the
// minimum is critical, up to the minimum is low.
func StockStatus(current int, minStock int) string {
	switch {
	case current*2 <= minStock:
		return domain.StockCritical
	case current <= minStock:
		return domain.StockLow
	default:
		return domain.StockGood
	}
}

func (s *Service) ListPerfumes(ctx context.Context, filter domain.PerfumeFilter) (domain.PerfumeListResponse, error) {
	status := strings.TrimSpace(filter.Status)
	switch status {
	case "":
		status = domain.StatusActive
	case "all":
		status = ""
	}

	perfumes, err := s.repo.ListPerfumes(ctx, status)
	if err != nil {
		return domain.PerfumeListResponse{}, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	views := make([]domain.PerfumeView, 0, len(perfumes))
	for _, p := range perfumes {
		if search != "" && !containsFold(p.Name, search) && !containsFold(p.Brand, search) {
			continue
		}
		views = append(views, domain.PerfumeView{Perfume: p, StockStatus: StockStatus(p.CurrentStock, p.MinStock)})
	}

	return domain.PerfumeListResponse{
		Perfumes: views,
		Summary:  summarizePerfumes(perfumes),
	}, nil
}

func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	perfumes, err := s.repo.ListPerfumes(ctx, domain.StatusActive)
	if err != nil {
		return domain.InventorySummary{}, err
	}
	return summarizePerfumes(perfumes), nil
}

func summarizePerfumes(perfumes []domain.Perfume) domain.InventorySummary {
	summary := domain.InventorySummary{TotalPerfumes: len(perfumes)}
	for _, p := range perfumes {
		summary.TotalStockML += p.CurrentStock
		if p.CurrentStock <= p.MinStock {
			summary.LowStock++
		}
	}
	return summary
}

func (s *Service) GetPerfume(ctx context.Context, id string) (domain.PerfumeView, error) {
	p, err := s.repo.GetPerfume(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.PerfumeView{}, err
	}
	return domain.PerfumeView{Perfume: *p, StockStatus: StockStatus(p.CurrentStock, p.MinStock)}, nil
}

func (s *Service) CreatePerfume(ctx context.Context, req domain.PerfumeCreateRequest) (domain.Perfume, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return domain.Perfume{}, err
	}

	perfume, err := forms.NewPerfume(req, s.now())
	if err != nil {
		return domain.Perfume{}, err
	}
	created, err := s.repo.CreatePerfume(ctx, perfume)
	if err != nil {
		return domain.Perfume{}, err
	}

	s.reports.Invalidate(ctx, s.now())
	s.logAudit(ctx, "perfume_create", "perfume", created.ID, fmt.Sprintf("name=%s,stock=%d,price_per_ml=%s", created.Name, created.CurrentStock, created.PricePerML))
	return *created, nil
}

func (s *Service) UpdatePerfume(ctx context.Context, id string, req domain.PerfumeUpdateRequest) (domain.Perfume, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return domain.Perfume{}, err
	}

	existing, err := s.repo.GetPerfume(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Perfume{}, err
	}
	updated, err := forms.ApplyPerfumeUpdate(*existing, req, s.now())
	if err != nil {
		return domain.Perfume{}, err
	}
	saved, err := s.repo.UpdatePerfume(ctx, updated)
	if err != nil {
		return domain.Perfume{}, err
	}

	// The report's margin reads the live catalogue.
	s.reports.Invalidate(ctx, s.now())
	s.logAudit(ctx, "perfume_update", "perfume", saved.ID, fmt.Sprintf("stock=%d->%d,status=%s", existing.CurrentStock, saved.CurrentStock, saved.Status))
	return *saved, nil
}

// DeletePerfume is a soft delete: the perfume stays for historical sales.
func (s *Service) DeletePerfume(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if err := s.repo.SetPerfumeStatus(ctx, id, domain.StatusInactive); err != nil {
		return err
	}
	s.reports.Invalidate(ctx, s.now())
	s.logAudit(ctx, "perfume_delete", "perfume", id, "status=inactivo")
	return nil
}
