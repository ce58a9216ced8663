package forms

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
)

func TestNewPerfumeNormalizesAndValidates(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	p, err := NewPerfume(domain.PerfumeCreateRequest{
		Name:         "  Rosa Nocturna ",
		Brand:        "Casa Aroma",
		Category:     "Floral",
		InitialStock: 250,
		MinStock:     100,
		PricePerML:   decimal.RequireFromString("1.2"),
		CostPerML:    decimal.RequireFromString("0.6"),
	}, now)
	if err != nil {
		t.Fatalf("new perfume: %v", err)
	}
	if p.Name != "Rosa Nocturna" || p.Category != "floral" || p.Status != domain.StatusActive {
		t.Fatalf("unexpected perfume %+v", p)
	}
	if p.CurrentStock != 250 {
		t.Fatalf("expected initial stock to become current stock, got %d", p.CurrentStock)
	}

	_, err = NewPerfume(domain.PerfumeCreateRequest{Name: "x", Brand: "y", Category: "z", InitialStock: -1}, now)
	var v Violations
	if !errors.As(err, &v) {
		t.Fatalf("expected violations, got %v", err)
	}
	if v["current_stock"] == "" || v["price_per_ml"] == "" {
		t.Fatalf("expected stock and price violations, got %v", v)
	}
}

func TestApplyPerfumeUpdateIsPure(t *testing.T) {
	now := time.Now().UTC()
	original, err := NewPerfume(domain.PerfumeCreateRequest{
		Name: "Oud", Brand: "B", Category: "woody", InitialStock: 10,
		PricePerML: decimal.RequireFromString("2"),
	}, now)
	if err != nil {
		t.Fatalf("new perfume: %v", err)
	}

	name := "Oud Royal"
	price := decimal.RequireFromString("2.5")
	updated, err := ApplyPerfumeUpdate(original, domain.PerfumeUpdateRequest{Name: &name, PricePerML: &price}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if updated.Name != "Oud Royal" || !updated.PricePerML.Equal(price) {
		t.Fatalf("update not applied: %+v", updated)
	}
	if original.Name != "Oud" {
		t.Fatalf("original record must not change")
	}

	bad := "archived"
	if _, err := ApplyPerfumeUpdate(original, domain.PerfumeUpdateRequest{Status: &bad}, now); err == nil {
		t.Fatalf("expected unsupported status to be rejected")
	}
}

func TestNewFlaskBuildsInitialMovement(t *testing.T) {
	now := time.Now().UTC()
	flaskType := domain.FlaskType{ID: "ft-1", Name: "Cristal Tallado", Category: "luxury", IsActive: true}

	flask, movement, err := NewFlask(domain.FlaskCreateRequest{
		FlaskTypeID:  "ft-1",
		SizeML:       50,
		CostPerUnit:  decimal.RequireFromString("3.5"),
		CurrentStock: 20,
		MinStock:     5,
		MaxStock:     100,
	}, flaskType, "ab12cd", now)
	if err != nil {
		t.Fatalf("new flask: %v", err)
	}
	if flask.ReferenceID != "CRI-50ML-12CD" {
		t.Fatalf("unexpected reference %q", flask.ReferenceID)
	}
	if movement == nil || movement.MovementType != "purchase" || movement.Quantity != 20 {
		t.Fatalf("expected initial purchase movement, got %+v", movement)
	}
	if !movement.TotalCost.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("expected total cost 70, got %s", movement.TotalCost)
	}

	_, movement, err = NewFlask(domain.FlaskCreateRequest{SizeML: 10}, flaskType, "x", now)
	if err != nil || movement != nil {
		t.Fatalf("expected no movement for empty flask, got %+v %v", movement, err)
	}
}

func TestNewAlcoholLotValidatesConcentration(t *testing.T) {
	_, err := NewAlcoholLot(domain.AlcoholCreateRequest{Name: "Etanol 96", Type: "ethanol", ConcentrationPercentage: 120}, time.Now())
	var v Violations
	if !errors.As(err, &v) || v["concentration_percentage"] != "out_of_range" {
		t.Fatalf("expected concentration violation, got %v", err)
	}

	lot, err := NewAlcoholLot(domain.AlcoholCreateRequest{
		Name: "Etanol 96", Type: "ethanol", ConcentrationPercentage: 96, ExpiryDate: "2027-01-31",
	}, time.Now())
	if err != nil {
		t.Fatalf("new lot: %v", err)
	}
	if lot.ExpiryDate == nil || lot.ExpiryDate.Month() != time.January {
		t.Fatalf("expected parsed expiry date, got %v", lot.ExpiryDate)
	}
}

func TestNewConsumptionDefaultsDateAndIgnoresNone(t *testing.T) {
	now := time.Date(2026, 5, 9, 15, 30, 0, 0, time.UTC)
	lot := domain.AlcoholLot{ID: "alc-1", BatchNumber: "B-77", IsActive: true, CurrentStockML: 1000}

	c, err := NewConsumption(domain.ConsumptionCreateRequest{
		QuantityUsedML: 50,
		Purpose:        "dilution",
		FlaskID:        "none",
	}, lot, "u-1", now)
	if err != nil {
		t.Fatalf("new consumption: %v", err)
	}
	if !c.ConsumptionDate.Equal(time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today's date, got %v", c.ConsumptionDate)
	}
	if c.FlaskID != "" || c.BatchReference != "B-77" || c.AlcoholID != "alc-1" {
		t.Fatalf("unexpected consumption %+v", c)
	}

	_, err = NewConsumption(domain.ConsumptionCreateRequest{QuantityUsedML: 0, Purpose: "party"}, lot, "u-1", now)
	var v Violations
	if !errors.As(err, &v) || v["quantity_used_ml"] == "" || v["purpose"] != "unsupported" {
		t.Fatalf("expected quantity and purpose violations, got %v", err)
	}
}

func TestNewUserRules(t *testing.T) {
	now := time.Now()
	user, err := NewUser(domain.UserCreateRequest{Name: "Lina", Email: "LINA@shop.co", Password: "secret1"}, domain.RoleSeller, StaffRoles, now)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if user.Role != domain.RoleSeller || user.Status != domain.StatusActive || user.Email != "lina@shop.co" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = NewUser(domain.UserCreateRequest{Name: "Lina", Email: "lina@shop.co", Password: "12345"}, domain.RoleSeller, StaffRoles, now)
	var v Violations
	if !errors.As(err, &v) || v["password"] != "too_short" {
		t.Fatalf("expected short password violation, got %v", err)
	}

	if ToggleStatus(domain.StatusActive) != domain.StatusInactive || ToggleStatus(domain.StatusInactive) != domain.StatusActive {
		t.Fatalf("toggle must flip activo/inactivo")
	}
}
