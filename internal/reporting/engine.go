package reporting

import (
	"context"
	"log"
	"time"

	"perfumestock/backend/internal/cache"
	"perfumestock/backend/internal/domain"
)

// Source loads the inputs of a report: the whole sale line history and the
// current perfume snapshot. Top products and categories rank all of it; the
// month partitions and trend pick their own buckets by MonthKey.
type Source interface {
	ReportRows(ctx context.Context) ([]domain.SaleLineRecord, []domain.Perfume, error)
}

type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// SalesReport returns the report for now's month, from cache when present.
// A load error fails the whole report.
func (e *Engine) SalesReport(ctx context.Context, src Source, now time.Time) (domain.SalesReport, error) {
	key := cacheKey(MonthKeyOf(now))
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[reporting] WARN: cache get %s: %v", key, err)
	}

	rows, products, err := src.ReportRows(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := Summarize(rows, products, now)
	if err := e.cache.Set(ctx, key, &report, e.cacheTTL); err != nil {
		log.Printf("[reporting] WARN: cache set %s: %v", key, err)
	}
	return report, nil
}

// Invalidate drops the cached report of at's month.
func (e *Engine) Invalidate(ctx context.Context, at time.Time) {
	key := cacheKey(MonthKeyOf(at))
	if err := e.cache.Delete(ctx, key); err != nil {
		log.Printf("[reporting] WARN: cache delete %s: %v", key, err)
	}
}

func cacheKey(month MonthKey) string {
	return "perfumestock:report:sales:" + month.String()
}
