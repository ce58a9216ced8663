package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
)

const defaultSalesLimit = 50

// buildCart replays the request lines through the cart reducer against the
// stored perfumes, so prices and stock are always the server's.
func (s *Service) buildCart(ctx context.Context, lines []domain.SaleLineInput) (forms.Cart, error) {
	cart := forms.Cart{}
	perfumes := make(map[string]domain.Perfume, len(lines))
	for i, line := range lines {
		id := strings.TrimSpace(line.PerfumeID)
		perfume, ok := perfumes[id]
		if !ok {
			if id == "" {
				return forms.Cart{}, forms.Violations{fmt.Sprintf("lines[%d].perfume_id", i): "required"}
			}
			found, err := s.repo.GetPerfume(ctx, id)
			if err != nil {
				return forms.Cart{}, fmt.Errorf("perfume %s: %w", id, err)
			}
			perfume = *found
			perfumes[id] = perfume
		}

		next, err := forms.AddLine(cart, perfume, line)
		if err != nil {
			return forms.Cart{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		cart = next
	}
	return cart, nil
}

// QuoteSale prices a cart without persisting anything.
func (s *Service) QuoteSale(ctx context.Context, lines []domain.SaleLineInput) (domain.SaleQuote, error) {
	if len(lines) == 0 {
		return domain.SaleQuote{}, forms.Violations{"lines": "required"}
	}
	cart, err := s.buildCart(ctx, lines)
	if err != nil {
		return domain.SaleQuote{}, err
	}
	totals := forms.CartTotals(cart)
	return domain.SaleQuote{
		Lines:       forms.Details(cart),
		TotalAmount: totals.Amount,
		TotalItems:  totals.Items,
		TotalML:     totals.ML,
	}, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	customer, err := forms.NormalizeCustomer(req)
	if err != nil {
		return domain.Sale{}, err
	}
	cart, err := s.buildCart(ctx, req.Lines)
	if err != nil {
		return domain.Sale{}, err
	}

	totals := forms.CartTotals(cart)
	now := s.now()
	created, err := s.repo.CreateSale(ctx, domain.Sale{
		SaleDate:        now,
		TotalAmount:     totals.Amount,
		TotalItems:      totals.Items,
		TotalML:         totals.ML,
		CustomerName:    customer.Name,
		CustomerContact: customer.Contact,
		CustomerEmail:   customer.Email,
		PaymentMethod:   customer.PaymentMethod,
		Notes:           customer.Notes,
		CreatedBy:       actor.UserID,
		Details:         forms.Details(cart),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.reports.Invalidate(ctx, now)
	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("total=%s,items=%d,ml=%d,payment=%s", created.TotalAmount, created.TotalItems, created.TotalML, created.PaymentMethod))
	return *created, nil
}

// PeriodRange maps a sales list period to a [from, to) window around now.
// "all" and "" are unbounded.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.TrimSpace(period) {
	case "", "all":
		return time.Time{}, time.Time{}, nil
	case "today":
		return startOfDay, startOfDay.AddDate(0, 0, 1), nil
	case "week":
		return startOfDay.AddDate(0, 0, -6), startOfDay.AddDate(0, 0, 1), nil
	case "month":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 1, 0), nil
	case "year":
		from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, forms.Violations{"period": "unsupported"}
	}
}

func (s *Service) ListSales(ctx context.Context, filter domain.SalesFilter) (domain.SalesListResponse, error) {
	from, to, err := PeriodRange(filter.Period, s.now())
	if err != nil {
		return domain.SalesListResponse{}, err
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultSalesLimit
	}

	rows, err := s.repo.ListSaleLines(ctx, from, to, 0)
	if err != nil {
		return domain.SalesListResponse{}, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	resp := domain.SalesListResponse{Lines: make([]domain.SaleLineRecord, 0, limit), TotalRevenue: decimal.Zero}
	for _, row := range rows {
		if search != "" && !containsFold(row.PerfumeName, search) && !containsFold(row.CustomerName, search) {
			continue
		}
		if len(resp.Lines) == limit {
			break
		}
		resp.Lines = append(resp.Lines, row)
		resp.TotalRevenue = resp.TotalRevenue.Add(row.Subtotal)
		resp.TotalUnits += row.Quantity
	}
	resp.Count = len(resp.Lines)
	return resp, nil
}
