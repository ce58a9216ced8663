package forms

import (
	"fmt"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/store"
)

var BottleTypes = []string{"atomizador", "roll-on", "spray", "gotero", "crema"}

var CommonSizesML = []int{5, 10, 15, 20, 25, 30, 50, 100}

var PaymentMethods = []string{"efectivo", "tarjeta", "transferencia", "nequi", "daviplata"}

var refillFactor = decimal.RequireFromString("0.9")

type CartLine struct {
	PerfumeID   string          `json:"perfume_id"`
	PerfumeName string          `json:"perfume_name"`
	Category    string          `json:"category"`
	BottleType  string          `json:"bottle_type"`
	Milliliters int             `json:"milliliters"`
	Quantity    int             `json:"quantity"`
	IsRefill    bool            `json:"is_refill"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l CartLine) VolumeML() int {
	return l.Milliliters * l.Quantity
}

// Cart is a value: AddLine and RemoveLine return a new Cart and never touch
// the slice of the one they were given.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

type Totals struct {
	Amount decimal.Decimal `json:"amount"`
	Items  int             `json:"items"`
	ML     int             `json:"ml"`
}

// UnitPrice is price_per_ml * ml, less 10% when the customer refills their own bottle.
func UnitPrice(pricePerML decimal.Decimal, ml int, refill bool) decimal.Decimal {
	price := pricePerML.Mul(decimal.NewFromInt(int64(ml)))
	if refill {
		price = price.Mul(refillFactor)
	}
	return price
}

// AddLine validates input against perfume and returns cart with the new line
// appended. Volume already reserved by earlier lines of the same perfume
// counts against its stock.
func AddLine(cart Cart, perfume domain.Perfume, in domain.SaleLineInput) (Cart, error) {
	v := Violations{}
	Required("perfume_id", in.PerfumeID, v)
	Required("bottle_type", in.BottleType, v)
	if _, ok := v["bottle_type"]; !ok {
		OneOf("bottle_type", clean(in.BottleType), BottleTypes, v)
	}
	PositiveInt("milliliters", in.Milliliters, v)
	PositiveInt("quantity", in.Quantity, v)
	if perfume.ID != clean(in.PerfumeID) {
		v["perfume_id"] = "mismatch"
	} else if perfume.Status != domain.StatusActive {
		v["perfume_id"] = "inactive"
	}
	if err := v.Err(); err != nil {
		return cart, err
	}

	reserved := 0
	for _, line := range cart.Lines {
		if line.PerfumeID == perfume.ID {
			reserved += line.VolumeML()
		}
	}
	available := perfume.CurrentStock - reserved
	if available < 0 {
		available = 0
	}
	if !Fits(in.Milliliters, in.Quantity, available) {
		return cart, fmt.Errorf("%w: available %d ml", store.ErrInsufficientStock, available)
	}

	lines := make([]CartLine, len(cart.Lines), len(cart.Lines)+1)
	copy(lines, cart.Lines)
	lines = append(lines, CartLine{
		PerfumeID:   perfume.ID,
		PerfumeName: perfume.Name,
		Category:    perfume.Category,
		BottleType:  clean(in.BottleType),
		Milliliters: in.Milliliters,
		Quantity:    in.Quantity,
		IsRefill:    in.IsRefill,
		UnitPrice:   UnitPrice(perfume.PricePerML, in.Milliliters, in.IsRefill),
	})
	return Cart{Lines: lines}, nil
}

// Fits reports whether qty units of ml each fit in available ml. It divides
// instead of multiplying so oversized client input cannot wrap around.
func Fits(ml int, qty int, available int) bool {
	if ml < 1 || qty < 1 || available < 1 {
		return false
	}
	return ml <= available && qty <= available/ml
}

func RemoveLine(cart Cart, index int) Cart {
	lines := make([]CartLine, 0, len(cart.Lines))
	for i, line := range cart.Lines {
		if i == index {
			continue
		}
		lines = append(lines, line)
	}
	return Cart{Lines: lines}
}

// CartTotals is recomputed from the lines on every call.
func CartTotals(cart Cart) Totals {
	totals := Totals{Amount: decimal.Zero}
	for _, line := range cart.Lines {
		totals.Amount = totals.Amount.Add(line.Subtotal())
		totals.Items += line.Quantity
		totals.ML += line.VolumeML()
	}
	return totals
}

// Details maps cart lines to sale detail records not yet bound to a sale.
func Details(cart Cart) []domain.SaleDetail {
	details := make([]domain.SaleDetail, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		details = append(details, domain.SaleDetail{
			PerfumeID:   line.PerfumeID,
			PerfumeName: line.PerfumeName,
			Category:    line.Category,
			BottleType:  line.BottleType,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
			IsRefill:    line.IsRefill,
			Milliliter:  line.Milliliters,
		})
	}
	return details
}

// Customer is the typed customer/payment block of the sale form.
type Customer struct {
	Name          string
	Contact       string
	Email         string
	PaymentMethod string
	Notes         string
}

func NormalizeCustomer(req domain.SaleCreateRequest) (Customer, error) {
	c := Customer{
		Name:          clean(req.CustomerName),
		Contact:       clean(req.CustomerContact),
		Email:         clean(req.CustomerEmail),
		PaymentMethod: clean(req.PaymentMethod),
		Notes:         clean(req.Notes),
	}
	if c.PaymentMethod == "" {
		c.PaymentMethod = "efectivo"
	}
	v := Violations{}
	OneOf("payment_method", c.PaymentMethod, PaymentMethods, v)
	if len(req.Lines) == 0 {
		v["lines"] = "required"
	}
	return c, v.Err()
}
