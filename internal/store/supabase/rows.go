package supabase

import (
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
)

// Row types mirror the PostgREST JSON of each table. Date columns travel as
// plain YYYY-MM-DD strings, so they are parsed here rather than by encoding/json.

const dateLayout = "2006-01-02"

type perfumeRow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	CurrentStock int             `json:"current_stock"`
	MinStock     int             `json:"min_stock"`
	PricePerML   decimal.Decimal `json:"price_per_ml"`
	CostPerML    decimal.Decimal `json:"cost_per_ml"`
	Supplier     string          `json:"supplier"`
	Notes        string          `json:"notes"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (r perfumeRow) toDomain() domain.Perfume {
	return domain.Perfume(r)
}

func perfumeRowOf(p domain.Perfume) perfumeRow {
	return perfumeRow(p)
}

type flaskTypeRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsActive bool   `json:"is_active"`
}

type flaskRow struct {
	ID           string          `json:"id"`
	ReferenceID  string          `json:"reference_id"`
	FlaskTypeID  string          `json:"flask_type_id"`
	SizeML       int             `json:"size_ml"`
	Material     string          `json:"material"`
	Color        string          `json:"color"`
	Supplier     string          `json:"supplier"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	CurrentStock int             `json:"current_stock"`
	MinStock     int             `json:"min_stock"`
	MaxStock     int             `json:"max_stock"`
	Location     string          `json:"location"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (r flaskRow) toDomain(typeName string) domain.Flask {
	return domain.Flask{
		ID:            r.ID,
		ReferenceID:   r.ReferenceID,
		FlaskTypeID:   r.FlaskTypeID,
		FlaskTypeName: typeName,
		SizeML:        r.SizeML,
		Material:      r.Material,
		Color:         r.Color,
		Supplier:      r.Supplier,
		CostPerUnit:   r.CostPerUnit,
		CurrentStock:  r.CurrentStock,
		MinStock:      r.MinStock,
		MaxStock:      r.MaxStock,
		Location:      r.Location,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
	}
}

func flaskRowOf(f domain.Flask) flaskRow {
	return flaskRow{
		ID:           f.ID,
		ReferenceID:  f.ReferenceID,
		FlaskTypeID:  f.FlaskTypeID,
		SizeML:       f.SizeML,
		Material:     f.Material,
		Color:        f.Color,
		Supplier:     f.Supplier,
		CostPerUnit:  f.CostPerUnit,
		CurrentStock: f.CurrentStock,
		MinStock:     f.MinStock,
		MaxStock:     f.MaxStock,
		Location:     f.Location,
		Notes:        f.Notes,
		CreatedAt:    f.CreatedAt,
	}
}

type flaskMovementRow struct {
	ID                string          `json:"id"`
	FlaskID           string          `json:"flask_id"`
	MovementType      string          `json:"movement_type"`
	Quantity          int             `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	ReferenceDocument string          `json:"reference_document"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"created_at"`
}

type alcoholRow struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Type                    string          `json:"type"`
	ConcentrationPercentage float64         `json:"concentration_percentage"`
	Supplier                string          `json:"supplier"`
	BatchNumber             string          `json:"batch_number"`
	CurrentStockML          float64         `json:"current_stock_ml"`
	MinStockML              float64         `json:"min_stock_ml"`
	CostPerML               decimal.Decimal `json:"cost_per_ml"`
	ExpiryDate              *string         `json:"expiry_date"`
	StorageLocation         string          `json:"storage_location"`
	SafetyNotes             string          `json:"safety_notes"`
	IsActive                bool            `json:"is_active"`
	CreatedAt               time.Time       `json:"created_at"`
}

func (r alcoholRow) toDomain() domain.AlcoholLot {
	lot := domain.AlcoholLot{
		ID:                      r.ID,
		Name:                    r.Name,
		Type:                    r.Type,
		ConcentrationPercentage: r.ConcentrationPercentage,
		Supplier:                r.Supplier,
		BatchNumber:             r.BatchNumber,
		CurrentStockML:          r.CurrentStockML,
		MinStockML:              r.MinStockML,
		CostPerML:               r.CostPerML,
		StorageLocation:         r.StorageLocation,
		SafetyNotes:             r.SafetyNotes,
		IsActive:                r.IsActive,
		CreatedAt:               r.CreatedAt,
	}
	if r.ExpiryDate != nil {
		if expiry, err := time.Parse(dateLayout, *r.ExpiryDate); err == nil {
			lot.ExpiryDate = &expiry
		}
	}
	return lot
}

func alcoholRowOf(lot domain.AlcoholLot) alcoholRow {
	row := alcoholRow{
		ID:                      lot.ID,
		Name:                    lot.Name,
		Type:                    lot.Type,
		ConcentrationPercentage: lot.ConcentrationPercentage,
		Supplier:                lot.Supplier,
		BatchNumber:             lot.BatchNumber,
		CurrentStockML:          lot.CurrentStockML,
		MinStockML:              lot.MinStockML,
		CostPerML:               lot.CostPerML,
		StorageLocation:         lot.StorageLocation,
		SafetyNotes:             lot.SafetyNotes,
		IsActive:                lot.IsActive,
		CreatedAt:               lot.CreatedAt,
	}
	if lot.ExpiryDate != nil {
		expiry := lot.ExpiryDate.Format(dateLayout)
		row.ExpiryDate = &expiry
	}
	return row
}

type consumptionRow struct {
	ID              string    `json:"id"`
	AlcoholID       string    `json:"alcohol_id"`
	FlaskID         *string   `json:"flask_id"`
	PerfumeID       *string   `json:"perfume_id"`
	BatchReference  string    `json:"batch_reference"`
	QuantityUsedML  float64   `json:"quantity_used_ml"`
	Purpose         string    `json:"purpose"`
	ConsumptionDate string    `json:"consumption_date"`
	OperatorNotes   string    `json:"operator_notes"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r consumptionRow) toDomain() domain.AlcoholConsumption {
	c := domain.AlcoholConsumption{
		ID:             r.ID,
		AlcoholID:      r.AlcoholID,
		BatchReference: r.BatchReference,
		QuantityUsedML: r.QuantityUsedML,
		Purpose:        r.Purpose,
		OperatorNotes:  r.OperatorNotes,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
	}
	if r.FlaskID != nil {
		c.FlaskID = *r.FlaskID
	}
	if r.PerfumeID != nil {
		c.PerfumeID = *r.PerfumeID
	}
	if date, err := time.Parse(dateLayout, r.ConsumptionDate); err == nil {
		c.ConsumptionDate = date
	}
	return c
}

func consumptionRowOf(c domain.AlcoholConsumption) consumptionRow {
	return consumptionRow{
		ID:              c.ID,
		AlcoholID:       c.AlcoholID,
		FlaskID:         optional(c.FlaskID),
		PerfumeID:       optional(c.PerfumeID),
		BatchReference:  c.BatchReference,
		QuantityUsedML:  c.QuantityUsedML,
		Purpose:         c.Purpose,
		ConsumptionDate: c.ConsumptionDate.Format(dateLayout),
		OperatorNotes:   c.OperatorNotes,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
	}
}

type saleRow struct {
	ID              string          `json:"id"`
	SaleDate        time.Time       `json:"sale_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalItems      int             `json:"total_items"`
	TotalML         int             `json:"total_ml"`
	CustomerName    string          `json:"customer_name"`
	CustomerContact string          `json:"customer_contact"`
	CustomerEmail   string          `json:"customer_email"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	CreatedBy       string          `json:"created_by"`
}

type saleDetailRow struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	PerfumeID   string          `json:"perfume_id"`
	PerfumeName string          `json:"perfume_name"`
	Category    string          `json:"category"`
	BottleType  string          `json:"bottle_type"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IsRefill    bool            `json:"is_refill"`
	Milliliter  int             `json:"milliliter"`
}

type userRow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r userRow) toDomain() domain.UserAccount {
	return domain.UserAccount(r)
}

func userRowOf(u domain.UserAccount) userRow {
	return userRow(u)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
