package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perfumestock/backend/internal/domain"
)

const (
	TopProductsLimit = 5
	TrendMonths      = 4
)

var hundred = decimal.NewFromInt(100)

// MonthKey identifies a calendar month independent of locale.
type MonthKey struct {
	Year  int
	Month time.Month
}

func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func (k MonthKey) Prev() MonthKey {
	if k.Month == time.January {
		return MonthKey{Year: k.Year - 1, Month: time.December}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k MonthKey) Label() string {
	return k.Month.String()[:3]
}

// Start returns the first instant of the month in loc.
func (k MonthKey) Start(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc)
}

// GrowthPercent is the relative change from prior to current. A zero prior
// period yields 100 when current is non-zero and 0 otherwise.
func GrowthPercent(current decimal.Decimal, prior decimal.Decimal) float64 {
	if prior.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	return current.Sub(prior).Div(prior).Mul(hundred).InexactFloat64()
}

// AverageMargin is the mean (price - cost) / price over products with a
// positive price, as a percentage.
func AverageMargin(products []domain.Perfume) float64 {
	total := decimal.Zero
	counted := 0
	for _, p := range products {
		if !p.PricePerML.IsPositive() {
			continue
		}
		total = total.Add(p.PricePerML.Sub(p.CostPerML).Div(p.PricePerML).Mul(hundred))
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total.Div(decimal.NewFromInt(int64(counted))).InexactFloat64()
}

// TopProducts groups rows by perfume name, ranks the groups by revenue and
// keeps the first limit. Percent is relative to the top group.
func TopProducts(rows []domain.SaleLineRecord, limit int) []domain.ProductRanking {
	byName := make(map[string]*domain.ProductRanking)
	for _, row := range rows {
		entry, ok := byName[row.PerfumeName]
		if !ok {
			entry = &domain.ProductRanking{Name: row.PerfumeName, Revenue: decimal.Zero}
			byName[row.PerfumeName] = entry
		}
		entry.Revenue = entry.Revenue.Add(row.Subtotal)
		entry.VolumeML += row.Milliliter * row.Quantity
	}

	ranked := make([]domain.ProductRanking, 0, len(byName))
	for _, entry := range byName {
		ranked = append(ranked, *entry)
	}
	return rankProducts(ranked, limit)
}

func rankProducts(ranked []domain.ProductRanking, limit int) []domain.ProductRanking {
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		return ranked[i].Name < ranked[j].Name
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return ranked
	}

	top := ranked[0].Revenue
	for i := range ranked {
		if top.IsPositive() {
			ranked[i].Percent = ranked[i].Revenue.Div(top).Mul(hundred).InexactFloat64()
		}
	}
	return ranked
}

// CategoryDistribution sums revenue per category. Rows without a category
// land in the uncategorized bucket.
func CategoryDistribution(rows []domain.SaleLineRecord) []domain.CategoryShare {
	byCategory := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, row := range rows {
		category := strings.TrimSpace(row.Category)
		if category == "" {
			category = domain.Uncategorized
		}
		byCategory[category] = byCategory[category].Add(row.Subtotal)
		total = total.Add(row.Subtotal)
	}

	shares := make([]domain.CategoryShare, 0, len(byCategory))
	for category, revenue := range byCategory {
		share := domain.CategoryShare{Category: category, Revenue: revenue}
		if total.IsPositive() {
			share.Percent = revenue.Div(total).Mul(hundred).InexactFloat64()
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Revenue.Cmp(shares[j].Revenue); c != 0 {
			return c > 0
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}

// MonthlyTrend builds one bucket per month for the months trailing up to and
// including now's month, oldest first, with growth between neighbours.
func MonthlyTrend(rows []domain.SaleLineRecord, now time.Time, months int) []domain.MonthTrend {
	if months < 1 {
		return nil
	}
	keys := make([]MonthKey, months)
	key := MonthKeyOf(now)
	for i := months - 1; i >= 0; i-- {
		keys[i] = key
		key = key.Prev()
	}

	revenue := make(map[MonthKey]decimal.Decimal, months)
	for _, row := range rows {
		k := MonthKeyOf(row.SaleDate.In(now.Location()))
		revenue[k] = revenue[k].Add(row.Subtotal)
	}

	trend := make([]domain.MonthTrend, 0, months)
	for i, k := range keys {
		bucket := domain.MonthTrend{Month: k.String(), Label: k.Label(), Revenue: revenue[k]}
		if i > 0 {
			bucket.Growth = GrowthPercent(bucket.Revenue, trend[i-1].Revenue)
		}
		trend = append(trend, bucket)
	}
	return trend
}

// Summarize derives the sales report for now's month from the sale lines and
// the current product snapshot.
func Summarize(rows []domain.SaleLineRecord, products []domain.Perfume, now time.Time) domain.SalesReport {
	thisMonth := MonthKeyOf(now)
	lastMonth := thisMonth.Prev()

	report := domain.SalesReport{
		GeneratedAt:      now,
		Month:            thisMonth.String(),
		ThisMonthRevenue: decimal.Zero,
		LastMonthRevenue: decimal.Zero,
	}
	for _, row := range rows {
		volume := row.Milliliter * row.Quantity
		switch MonthKeyOf(row.SaleDate.In(now.Location())) {
		case thisMonth:
			report.ThisMonthRevenue = report.ThisMonthRevenue.Add(row.Subtotal)
			report.ThisMonthVolumeML += volume
		case lastMonth:
			report.LastMonthRevenue = report.LastMonthRevenue.Add(row.Subtotal)
			report.LastMonthVolumeML += volume
		}
	}

	report.RevenueGrowth = GrowthPercent(report.ThisMonthRevenue, report.LastMonthRevenue)
	report.VolumeGrowth = GrowthPercent(
		decimal.NewFromInt(int64(report.ThisMonthVolumeML)),
		decimal.NewFromInt(int64(report.LastMonthVolumeML)),
	)
	report.AverageMargin = AverageMargin(products)
	report.TopProducts = TopProducts(rows, TopProductsLimit)
	report.Categories = CategoryDistribution(rows)
	report.Trend = MonthlyTrend(rows, now, TrendMonths)
	return report
}
