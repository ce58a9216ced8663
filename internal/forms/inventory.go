package forms

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
)

var FlaskCategories = []string{"luxury", "premium", "standard", "generic"}

var AlcoholTypes = []string{"ethanol", "isopropyl", "denatured", "methanol", "perfume_grade", "industrial"}

var ConsumptionPurposes = []string{"dilution", "cleaning", "preparation", "sterilization", "mixing", "other"}

const dateLayout = "2006-01-02"

// NewPerfume turns the create form into a perfume record with status activo.
func NewPerfume(req domain.PerfumeCreateRequest, now time.Time) (domain.Perfume, error) {
	p := domain.Perfume{
		Name:         clean(req.Name),
		Brand:        clean(req.Brand),
		Category:     strings.ToLower(clean(req.Category)),
		Description:  clean(req.Description),
		CurrentStock: req.InitialStock,
		MinStock:     req.MinStock,
		PricePerML:   req.PricePerML,
		CostPerML:    req.CostPerML,
		Supplier:     clean(req.Supplier),
		Notes:        clean(req.Notes),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return p, validatePerfume(p)
}

// ApplyPerfumeUpdate returns p with the non-nil fields of req applied.
func ApplyPerfumeUpdate(p domain.Perfume, req domain.PerfumeUpdateRequest, now time.Time) (domain.Perfume, error) {
	if req.Name != nil {
		p.Name = clean(*req.Name)
	}
	if req.Brand != nil {
		p.Brand = clean(*req.Brand)
	}
	if req.Category != nil {
		p.Category = strings.ToLower(clean(*req.Category))
	}
	if req.Description != nil {
		p.Description = clean(*req.Description)
	}
	if req.CurrentStock != nil {
		p.CurrentStock = *req.CurrentStock
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.PricePerML != nil {
		p.PricePerML = *req.PricePerML
	}
	if req.CostPerML != nil {
		p.CostPerML = *req.CostPerML
	}
	if req.Supplier != nil {
		p.Supplier = clean(*req.Supplier)
	}
	if req.Notes != nil {
		p.Notes = clean(*req.Notes)
	}
	if req.Status != nil {
		p.Status = clean(*req.Status)
	}
	p.UpdatedAt = now
	return p, validatePerfume(p)
}

func validatePerfume(p domain.Perfume) error {
	v := Violations{}
	Required("name", p.Name, v)
	Required("brand", p.Brand, v)
	Required("category", p.Category, v)
	NonNegativeInt("current_stock", p.CurrentStock, v)
	NonNegativeInt("min_stock", p.MinStock, v)
	PositiveDecimal("price_per_ml", p.PricePerML, v)
	NonNegativeDecimal("cost_per_ml", p.CostPerML, v)
	OneOf("status", p.Status, []string{domain.StatusActive, domain.StatusInactive}, v)
	return v.Err()
}

// FlaskReference builds a reference such as "CRI-50ML-3F0C" from the type
// name, the size and a short suffix.
func FlaskReference(typeName string, sizeML int, suffix string) string {
	letters := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(typeName) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
		if len(letters) == 3 {
			break
		}
	}
	prefix := string(letters)
	if prefix == "" {
		prefix = "FLK"
	}
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return fmt.Sprintf("%s-%dML-%s", prefix, sizeML, strings.ToUpper(suffix))
}

// NewFlask validates the flask form against its type. The returned movement is
// nil unless the flask starts with stock.
func NewFlask(req domain.FlaskCreateRequest, flaskType domain.FlaskType, suffix string, now time.Time) (domain.Flask, *domain.FlaskMovement, error) {
	f := domain.Flask{
		ReferenceID:   clean(req.ReferenceID),
		FlaskTypeID:   flaskType.ID,
		FlaskTypeName: flaskType.Name,
		SizeML:        req.SizeML,
		Material:      clean(req.Material),
		Color:         clean(req.Color),
		Supplier:      clean(req.Supplier),
		CostPerUnit:   req.CostPerUnit,
		CurrentStock:  req.CurrentStock,
		MinStock:      req.MinStock,
		MaxStock:      req.MaxStock,
		Location:      clean(req.Location),
		Notes:         clean(req.Notes),
		CreatedAt:     now,
	}

	v := Violations{}
	if !flaskType.IsActive {
		v["flask_type_id"] = "inactive"
	}
	PositiveInt("size_ml", f.SizeML, v)
	NonNegativeDecimal("cost_per_unit", f.CostPerUnit, v)
	NonNegativeInt("current_stock", f.CurrentStock, v)
	NonNegativeInt("min_stock", f.MinStock, v)
	NonNegativeInt("max_stock", f.MaxStock, v)
	if f.MaxStock > 0 && f.MaxStock < f.MinStock {
		v["max_stock"] = "below_min_stock"
	}
	if err := v.Err(); err != nil {
		return domain.Flask{}, nil, err
	}

	if f.ReferenceID == "" {
		f.ReferenceID = FlaskReference(flaskType.Name, f.SizeML, suffix)
	}
	if f.CurrentStock == 0 {
		return f, nil, nil
	}

	qty := decimal.NewFromInt(int64(f.CurrentStock))
	movement := &domain.FlaskMovement{
		MovementType:      "purchase",
		Quantity:          f.CurrentStock,
		UnitCost:          f.CostPerUnit,
		TotalCost:         f.CostPerUnit.Mul(qty),
		ReferenceDocument: "INITIAL_STOCK",
		Notes:             "initial flask stock",
		CreatedAt:         now,
	}
	return f, movement, nil
}

func NewAlcoholLot(req domain.AlcoholCreateRequest, now time.Time) (domain.AlcoholLot, error) {
	lot := domain.AlcoholLot{
		Name:                    clean(req.Name),
		Type:                    clean(req.Type),
		ConcentrationPercentage: req.ConcentrationPercentage,
		Supplier:                clean(req.Supplier),
		BatchNumber:             clean(req.BatchNumber),
		CurrentStockML:          req.CurrentStockML,
		MinStockML:              req.MinStockML,
		CostPerML:               req.CostPerML,
		StorageLocation:         clean(req.StorageLocation),
		SafetyNotes:             clean(req.SafetyNotes),
		IsActive:                true,
		CreatedAt:               now,
	}

	v := Violations{}
	Required("name", lot.Name, v)
	Required("type", lot.Type, v)
	if _, ok := v["type"]; !ok {
		OneOf("type", lot.Type, AlcoholTypes, v)
	}
	RangeFloat("concentration_percentage", lot.ConcentrationPercentage, 0, 100, v)
	NonNegativeFloat("current_stock_ml", lot.CurrentStockML, v)
	NonNegativeFloat("min_stock_ml", lot.MinStockML, v)
	NonNegativeDecimal("cost_per_ml", lot.CostPerML, v)
	if raw := clean(req.ExpiryDate); raw != "" {
		expiry, err := time.Parse(dateLayout, raw)
		if err != nil {
			v["expiry_date"] = "invalid_date"
		} else {
			lot.ExpiryDate = &expiry
		}
	}
	return lot, v.Err()
}

// NewConsumption validates a consumption entry against the lot it draws from.
// The consumption date defaults to today.
func NewConsumption(req domain.ConsumptionCreateRequest, lot domain.AlcoholLot, createdBy string, now time.Time) (domain.AlcoholConsumption, error) {
	c := domain.AlcoholConsumption{
		AlcoholID:      lot.ID,
		FlaskID:        noneToEmpty(req.FlaskID),
		PerfumeID:      noneToEmpty(req.PerfumeID),
		BatchReference: clean(req.BatchReference),
		QuantityUsedML: req.QuantityUsedML,
		Purpose:        clean(req.Purpose),
		OperatorNotes:  clean(req.OperatorNotes),
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}
	if c.BatchReference == "" {
		c.BatchReference = lot.BatchNumber
	}

	v := Violations{}
	if !lot.IsActive {
		v["alcohol_id"] = "inactive"
	}
	if c.QuantityUsedML <= 0 {
		v["quantity_used_ml"] = "must_be_positive"
	}
	Required("purpose", c.Purpose, v)
	if _, ok := v["purpose"]; !ok {
		OneOf("purpose", c.Purpose, ConsumptionPurposes, v)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	c.ConsumptionDate = today
	if raw := clean(req.ConsumptionDate); raw != "" {
		date, err := time.ParseInLocation(dateLayout, raw, now.Location())
		if err != nil {
			v["consumption_date"] = "invalid_date"
		} else {
			c.ConsumptionDate = date
		}
	}
	return c, v.Err()
}

func noneToEmpty(value string) string {
	value = clean(value)
	if value == "none" {
		return ""
	}
	return value
}
