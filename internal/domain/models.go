package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "activo"
	StatusInactive = "inactivo"
)

const (
	RoleAdmin      = "administrador"
	RoleSupervisor = "supervisor"
	RoleSeller     = "vendedor"
	RoleUser       = "user"
)

const (
	StockCritical = "critical"
	StockLow      = "low"
	StockMedium   = "medium"
	StockGood     = "good"
)

const Uncategorized = "uncategorized"

type Perfume struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description,omitempty"`
	CurrentStock int             `json:"current_stock"`
	MinStock     int             `json:"min_stock"`
	PricePerML   decimal.Decimal `json:"price_per_ml"`
	CostPerML    decimal.Decimal `json:"cost_per_ml"`
	Supplier     string          `json:"supplier,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PerfumeView struct {
	Perfume
	StockStatus string `json:"stock_status"`
}

type PerfumeFilter struct {
	Search string
	Status string
}

type PerfumeCreateRequest struct {
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	InitialStock int             `json:"initial_stock"`
	MinStock     int             `json:"min_stock"`
	PricePerML   decimal.Decimal `json:"price_per_ml"`
	CostPerML    decimal.Decimal `json:"cost_per_ml"`
	Supplier     string          `json:"supplier"`
	Notes        string          `json:"notes"`
}

type PerfumeUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CurrentStock *int             `json:"current_stock,omitempty"`
	MinStock     *int             `json:"min_stock,omitempty"`
	PricePerML   *decimal.Decimal `json:"price_per_ml,omitempty"`
	CostPerML    *decimal.Decimal `json:"cost_per_ml,omitempty"`
	Supplier     *string          `json:"supplier,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
	Status       *string          `json:"status,omitempty"`
}

type InventorySummary struct {
	TotalPerfumes int `json:"total_perfumes"`
	TotalStockML  int `json:"total_stock_ml"`
	LowStock      int `json:"low_stock"`
}

type PerfumeListResponse struct {
	Perfumes []PerfumeView    `json:"perfumes"`
	Summary  InventorySummary `json:"summary"`
}

type FlaskType struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsActive bool   `json:"is_active"`
}

type Flask struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	FlaskTypeID   string          `json:"flask_type_id"`
	FlaskTypeName string          `json:"flask_type_name"`
	SizeML        int             `json:"size_ml"`
	Material      string          `json:"material,omitempty"`
	Color         string          `json:"color,omitempty"`
	Supplier      string          `json:"supplier,omitempty"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
	CurrentStock  int             `json:"current_stock"`
	MinStock      int             `json:"min_stock"`
	MaxStock      int             `json:"max_stock"`
	Location      string          `json:"location,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type FlaskView struct {
	Flask
	StockStatus string          `json:"stock_status"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

type FlaskMovement struct {
	ID                string          `json:"id"`
	FlaskID           string          `json:"flask_id"`
	MovementType      string          `json:"movement_type"`
	Quantity          int             `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	ReferenceDocument string          `json:"reference_document,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type FlaskCreateRequest struct {
	FlaskTypeID  string          `json:"flask_type_id"`
	ReferenceID  string          `json:"reference_id"`
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
}

type AlcoholLot struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Type                    string          `json:"type"`
	ConcentrationPercentage float64         `json:"concentration_percentage"`
	Supplier                string          `json:"supplier,omitempty"`
	BatchNumber             string          `json:"batch_number,omitempty"`
	CurrentStockML          float64         `json:"current_stock_ml"`
	MinStockML              float64         `json:"min_stock_ml"`
	CostPerML               decimal.Decimal `json:"cost_per_ml"`
	ExpiryDate              *time.Time      `json:"expiry_date,omitempty"`
	StorageLocation         string          `json:"storage_location,omitempty"`
	SafetyNotes             string          `json:"safety_notes,omitempty"`
	IsActive                bool            `json:"is_active"`
	CreatedAt               time.Time       `json:"created_at"`
}

type AlcoholCreateRequest struct {
	Name                    string          `json:"name"`
	Type                    string          `json:"type"`
	ConcentrationPercentage float64         `json:"concentration_percentage"`
	Supplier                string          `json:"supplier"`
	BatchNumber             string          `json:"batch_number"`
	CurrentStockML          float64         `json:"current_stock_ml"`
	MinStockML              float64         `json:"min_stock_ml"`
	CostPerML               decimal.Decimal `json:"cost_per_ml"`
	ExpiryDate              string          `json:"expiry_date"`
	StorageLocation         string          `json:"storage_location"`
	SafetyNotes             string          `json:"safety_notes"`
}

type AlcoholConsumption struct {
	ID              string    `json:"id"`
	AlcoholID       string    `json:"alcohol_id"`
	FlaskID         string    `json:"flask_id,omitempty"`
	PerfumeID       string    `json:"perfume_id,omitempty"`
	BatchReference  string    `json:"batch_reference,omitempty"`
	QuantityUsedML  float64   `json:"quantity_used_ml"`
	Purpose         string    `json:"purpose"`
	ConsumptionDate time.Time `json:"consumption_date"`
	OperatorNotes   string    `json:"operator_notes,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ConsumptionCreateRequest struct {
	AlcoholID       string  `json:"alcohol_id"`
	FlaskID         string  `json:"flask_id"`
	PerfumeID       string  `json:"perfume_id"`
	BatchReference  string  `json:"batch_reference"`
	QuantityUsedML  float64 `json:"quantity_used_ml"`
	Purpose         string  `json:"purpose"`
	ConsumptionDate string  `json:"consumption_date"`
	OperatorNotes   string  `json:"operator_notes"`
}

type FlaskStats struct {
	TotalFlasks     int             `json:"total_flasks"`
	LowStockFlasks  int             `json:"low_stock_flasks"`
	TotalAlcoholML  float64         `json:"total_alcohol_ml"`
	LowStockAlcohol int             `json:"low_stock_alcohol"`
	TotalValue      decimal.Decimal `json:"total_value"`
}

type InventoryAlerts struct {
	LowStockFlasks    []FlaskView  `json:"low_stock_flasks"`
	OutOfStockFlasks  []FlaskView  `json:"out_of_stock_flasks"`
	LowAlcohol        []AlcoholLot `json:"low_alcohol"`
	OutOfStockAlcohol []AlcoholLot `json:"out_of_stock_alcohol"`
	ExpiringAlcohol   []AlcoholLot `json:"expiring_alcohol"`
	TotalAlerts       int          `json:"total_alerts"`
}

type Sale struct {
	ID              string          `json:"id"`
	SaleDate        time.Time       `json:"sale_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalItems      int             `json:"total_items"`
	TotalML         int             `json:"total_ml"`
	CustomerName    string          `json:"customer_name,omitempty"`
	CustomerContact string          `json:"customer_contact,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by"`
	Details         []SaleDetail    `json:"details"`
}

type SaleDetail struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	PerfumeID   string          `json:"perfume_id"`
	PerfumeName string          `json:"perfume_name"`
	Category    string          `json:"category,omitempty"`
	BottleType  string          `json:"bottle_type"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IsRefill    bool            `json:"is_refill"`
	Milliliter  int             `json:"milliliter"`
}

type SaleLineInput struct {
	PerfumeID   string `json:"perfume_id"`
	BottleType  string `json:"bottle_type"`
	Milliliters int    `json:"milliliters"`
	Quantity    int    `json:"quantity"`
	IsRefill    bool   `json:"is_refill"`
}

type SaleCreateRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerContact string          `json:"customer_contact"`
	CustomerEmail   string          `json:"customer_email"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	Lines           []SaleLineInput `json:"lines"`
}

type SaleQuote struct {
	Lines       []SaleDetail    `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int             `json:"total_items"`
	TotalML     int             `json:"total_ml"`
}

// SaleLineRecord is a sale detail joined with its header, the flat row shape
// used by the sales list and the reporting aggregator.
type SaleLineRecord struct {
	DetailID     string          `json:"detail_id"`
	SaleID       string          `json:"sale_id"`
	SaleDate     time.Time       `json:"sale_date"`
	CustomerName string          `json:"customer_name,omitempty"`
	PerfumeID    string          `json:"perfume_id"`
	PerfumeName  string          `json:"perfume_name"`
	Category     string          `json:"category,omitempty"`
	BottleType   string          `json:"bottle_type"`
	Quantity     int             `json:"quantity"`
	Milliliter   int             `json:"milliliter"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	IsRefill     bool            `json:"is_refill"`
}

type SalesFilter struct {
	Search string
	Period string
	Limit  int
}

type SalesListResponse struct {
	Lines        []SaleLineRecord `json:"lines"`
	TotalRevenue decimal.Decimal  `json:"total_revenue"`
	TotalUnits   int              `json:"total_units"`
	Count        int              `json:"count"`
}

type ProductRanking struct {
	Name     string          `json:"name"`
	Revenue  decimal.Decimal `json:"revenue"`
	VolumeML int             `json:"volume_ml"`
	Percent  float64         `json:"percent"`
}

type CategoryShare struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Percent  float64         `json:"percent"`
}

type MonthTrend struct {
	Month   string          `json:"month"`
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
	Growth  float64         `json:"growth"`
}

type SalesReport struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	Month             string           `json:"month"`
	ThisMonthRevenue  decimal.Decimal  `json:"this_month_revenue"`
	LastMonthRevenue  decimal.Decimal  `json:"last_month_revenue"`
	RevenueGrowth     float64          `json:"revenue_growth"`
	ThisMonthVolumeML int              `json:"this_month_volume_ml"`
	LastMonthVolumeML int              `json:"last_month_volume_ml"`
	VolumeGrowth      float64          `json:"volume_growth"`
	AverageMargin     float64          `json:"average_margin"`
	TopProducts       []ProductRanking `json:"top_products"`
	Categories        []CategoryShare  `json:"categories"`
	Trend             []MonthTrend     `json:"trend"`
}

type Dashboard struct {
	TotalPerfumes    int              `json:"total_perfumes"`
	TotalStockML     int              `json:"total_stock_ml"`
	LowStockPerfumes int              `json:"low_stock_perfumes"`
	SalesThisMonth   int              `json:"sales_this_month"`
	RevenueThisMonth decimal.Decimal  `json:"revenue_this_month"`
	TotalFlasks      int              `json:"total_flasks"`
	LowStockFlasks   int              `json:"low_stock_flasks"`
	TotalAlcoholML   float64          `json:"total_alcohol_ml"`
	LowStockAlcohol  int              `json:"low_stock_alcohol"`
	TopProducts      []ProductRanking `json:"top_products"`
	RecentSales      []SaleLineRecord `json:"recent_sales"`
}

type UserAccount struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserStatusRequest struct {
	Status string `json:"status"`
}

type UserRoleRequest struct {
	Role string `json:"role"`
}

type UserStats struct {
	Total          int `json:"total"`
	Active         int `json:"activos"`
	Inactive       int `json:"inactivos"`
	Administrators int `json:"administradores"`
	Supervisors    int `json:"supervisores"`
	Sellers        int `json:"vendedores"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
	User        UserProfile `json:"user"`
}

type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
