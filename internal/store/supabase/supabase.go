// Package supabase stores PerfumeStock data in a hosted Supabase project
// through its PostgREST API. PostgREST offers no multi-statement
// transactions, so multi-row writes are ordered so a failure can be undone
// with compensating deletes.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	supa "github.com/nedpals/supabase-go"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/xid"
)

const (
	tablePerfumes       = "perfumes"
	tableFlaskTypes     = "flask_types"
	tableFlasks         = "flasks"
	tableFlaskMovements = "flask_movements"
	tableAlcohol        = "alcohol_inventory"
	tableConsumption    = "alcohol_consumption"
	tableSales          = "sales"
	tableSaleDetails    = "sale_details"
	tableUsers          = "users"
	tableAuditLogs      = "audit_logs"
)

type Store struct {
	client *supa.Client
}

func New(url string, key string) (*Store, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New("SUPABASE_URL and SUPABASE_KEY are required")
	}
	return &Store{client: supa.CreateClient(url, key)}, nil
}

// Ping issues a cheap read to confirm the project and key are usable.
func (s *Store) Ping(_ context.Context) error {
	var rows []flaskTypeRow
	return s.client.DB.From(tableFlaskTypes).Select("id").Execute(&rows)
}

func (s *Store) selectAll(table string, out any) error {
	return s.client.DB.From(table).Select("*").Execute(out)
}

func (s *Store) selectEq(table string, column string, value string, out any) error {
	return s.client.DB.From(table).Select("*").Eq(column, value).Execute(out)
}

func (s *Store) insert(table string, row any, out any) error {
	err := s.client.DB.From(table).Insert(row).Execute(out)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (s *Store) update(table string, id string, patch map[string]any, out any) error {
	return s.client.DB.From(table).Update(patch).Eq("id", id).Execute(out)
}

func (s *Store) deleteEq(table string, column string, value string) error {
	var out []map[string]any
	return s.client.DB.From(table).Delete().Eq(column, value).Execute(&out)
}

// compareAndSet writes next into column only while the row still holds old,
// the PostgREST stand-in for a row lock. Zero rows back means another writer
// got there first.
func (s *Store) compareAndSet(table string, id string, column string, old any, next any, extra map[string]any) error {
	patch := map[string]any{column: next}
	for k, v := range extra {
		patch[k] = v
	}
	var rows []map[string]any
	err := s.client.DB.From(table).Update(patch).Eq("id", id).Eq(column, fmt.Sprint(old)).Execute(&rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s %s changed concurrently", store.ErrConflict, table, id)
	}
	return nil
}

const restoreAttempts = 3

// restorePerfumeStock adds ml back to a perfume, rereading the row when a
// concurrent sale moved it in between.
func (s *Store) restorePerfumeStock(ctx context.Context, id string, ml int) error {
	var err error
	for i := 0; i < restoreAttempts; i++ {
		var p *domain.Perfume
		if p, err = s.GetPerfume(ctx, id); err != nil {
			return err
		}
		err = s.compareAndSet(tablePerfumes, id, "current_stock", p.CurrentStock, p.CurrentStock+ml, nil)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) restoreAlcoholStock(ctx context.Context, id string, ml float64) error {
	var err error
	for i := 0; i < restoreAttempts; i++ {
		var lot *domain.AlcoholLot
		if lot, err = s.GetAlcohol(ctx, id); err != nil {
			return err
		}
		err = s.compareAndSet(tableAlcohol, id, "current_stock_ml", lot.CurrentStockML, lot.CurrentStockML+ml, nil)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) ListPerfumes(_ context.Context, status string) ([]domain.Perfume, error) {
	var rows []perfumeRow
	var err error
	if status == "" {
		err = s.selectAll(tablePerfumes, &rows)
	} else {
		err = s.selectEq(tablePerfumes, "status", status, &rows)
	}
	if err != nil {
		return nil, err
	}
	perfumes := make([]domain.Perfume, 0, len(rows))
	for _, row := range rows {
		perfumes = append(perfumes, row.toDomain())
	}
	slices.SortFunc(perfumes, func(a, b domain.Perfume) int { return strings.Compare(a.Name, b.Name) })
	return perfumes, nil
}

func (s *Store) GetPerfume(_ context.Context, id string) (*domain.Perfume, error) {
	var rows []perfumeRow
	if err := s.selectEq(tablePerfumes, "id", id, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	p := rows[0].toDomain()
	return &p, nil
}

func (s *Store) CreatePerfume(_ context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	if perfume.ID == "" {
		perfume.ID = xid.New("pf")
	}
	var rows []perfumeRow
	if err := s.insert(tablePerfumes, perfumeRowOf(perfume), &rows); err != nil {
		return nil, err
	}
	created := perfume
	return &created, nil
}

func (s *Store) UpdatePerfume(_ context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	var rows []perfumeRow
	err := s.update(tablePerfumes, perfume.ID, map[string]any{
		"name":          perfume.Name,
		"brand":         perfume.Brand,
		"category":      perfume.Category,
		"description":   perfume.Description,
		"current_stock": perfume.CurrentStock,
		"min_stock":     perfume.MinStock,
		"price_per_ml":  perfume.PricePerML,
		"cost_per_ml":   perfume.CostPerML,
		"supplier":      perfume.Supplier,
		"notes":         perfume.Notes,
		"status":        perfume.Status,
		"updated_at":    perfume.UpdatedAt,
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	updated := rows[0].toDomain()
	return &updated, nil
}

func (s *Store) SetPerfumeStatus(_ context.Context, id string, status string) error {
	var rows []perfumeRow
	if err := s.update(tablePerfumes, id, map[string]any{"status": status, "updated_at": time.Now().UTC()}, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListFlaskTypes(_ context.Context) ([]domain.FlaskType, error) {
	var rows []flaskTypeRow
	if err := s.selectAll(tableFlaskTypes, &rows); err != nil {
		return nil, err
	}
	types := make([]domain.FlaskType, 0, len(rows))
	for _, row := range rows {
		types = append(types, domain.FlaskType(row))
	}
	slices.SortFunc(types, func(a, b domain.FlaskType) int { return strings.Compare(a.Name, b.Name) })
	return types, nil
}

func (s *Store) GetFlaskType(_ context.Context, id string) (*domain.FlaskType, error) {
	var rows []flaskTypeRow
	if err := s.selectEq(tableFlaskTypes, "id", id, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	ft := domain.FlaskType(rows[0])
	return &ft, nil
}

func (s *Store) ListFlasks(ctx context.Context) ([]domain.Flask, error) {
	types, err := s.ListFlaskTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeNames := make(map[string]string, len(types))
	for _, ft := range types {
		typeNames[ft.ID] = ft.Name
	}

	var rows []flaskRow
	if err := s.selectAll(tableFlasks, &rows); err != nil {
		return nil, err
	}
	flasks := make([]domain.Flask, 0, len(rows))
	for _, row := range rows {
		flasks = append(flasks, row.toDomain(typeNames[row.FlaskTypeID]))
	}
	slices.SortFunc(flasks, func(a, b domain.Flask) int { return strings.Compare(a.ReferenceID, b.ReferenceID) })
	return flasks, nil
}

// CreateFlask inserts the flask, then its opening movement. A failed movement
// insert removes the flask again.
func (s *Store) CreateFlask(ctx context.Context, flask domain.Flask, movement *domain.FlaskMovement) (*domain.Flask, error) {
	flaskType, err := s.GetFlaskType(ctx, flask.FlaskTypeID)
	if err != nil {
		return nil, err
	}
	if flask.ID == "" {
		flask.ID = xid.New("fl")
	}
	flask.FlaskTypeName = flaskType.Name

	var rows []flaskRow
	if err := s.insert(tableFlasks, flaskRowOf(flask), &rows); err != nil {
		return nil, err
	}

	if movement != nil {
		m := *movement
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		m.FlaskID = flask.ID
		var out []flaskMovementRow
		if err := s.insert(tableFlaskMovements, flaskMovementRow(m), &out); err != nil {
			s.compensate("flask "+flask.ID, func() error { return s.deleteEq(tableFlasks, "id", flask.ID) })
			return nil, err
		}
	}
	created := flask
	return &created, nil
}

func (s *Store) ListAlcohol(_ context.Context) ([]domain.AlcoholLot, error) {
	var rows []alcoholRow
	if err := s.selectAll(tableAlcohol, &rows); err != nil {
		return nil, err
	}
	lots := make([]domain.AlcoholLot, 0, len(rows))
	for _, row := range rows {
		lots = append(lots, row.toDomain())
	}
	slices.SortFunc(lots, func(a, b domain.AlcoholLot) int { return strings.Compare(a.Name, b.Name) })
	return lots, nil
}

func (s *Store) GetAlcohol(_ context.Context, id string) (*domain.AlcoholLot, error) {
	var rows []alcoholRow
	if err := s.selectEq(tableAlcohol, "id", id, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	lot := rows[0].toDomain()
	return &lot, nil
}

func (s *Store) CreateAlcohol(_ context.Context, lot domain.AlcoholLot) (*domain.AlcoholLot, error) {
	if lot.ID == "" {
		lot.ID = xid.New("alc")
	}
	var rows []alcoholRow
	if err := s.insert(tableAlcohol, alcoholRowOf(lot), &rows); err != nil {
		return nil, err
	}
	created := lot
	return &created, nil
}

// CreateConsumption decrements the lot first and restores it when the
// consumption row cannot be written.
func (s *Store) CreateConsumption(ctx context.Context, consumption domain.AlcoholConsumption) (*domain.AlcoholConsumption, error) {
	lot, err := s.GetAlcohol(ctx, consumption.AlcoholID)
	if err != nil {
		return nil, err
	}
	if consumption.QuantityUsedML > lot.CurrentStockML {
		return nil, fmt.Errorf("%w: available %.0f ml", store.ErrInsufficientStock, lot.CurrentStockML)
	}
	if consumption.ID == "" {
		consumption.ID = xid.New("cons")
	}

	if err := s.compareAndSet(tableAlcohol, lot.ID, "current_stock_ml", lot.CurrentStockML, lot.CurrentStockML-consumption.QuantityUsedML, nil); err != nil {
		return nil, err
	}
	var rows []consumptionRow
	if err := s.insert(tableConsumption, consumptionRowOf(consumption), &rows); err != nil {
		s.compensate("alcohol "+lot.ID, func() error {
			return s.restoreAlcoholStock(ctx, lot.ID, consumption.QuantityUsedML)
		})
		return nil, err
	}
	created := consumption
	return &created, nil
}

func (s *Store) ListConsumptions(_ context.Context, limit int) ([]domain.AlcoholConsumption, error) {
	var rows []consumptionRow
	if err := s.selectAll(tableConsumption, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.AlcoholConsumption, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	slices.SortFunc(result, func(a, b domain.AlcoholConsumption) int {
		if c := b.ConsumptionDate.Compare(a.ConsumptionDate); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// stockPlan computes the new stock of every perfume on a sale, or fails
// without side effects when one of them cannot cover the summed volume.
func stockPlan(details []domain.SaleDetail, perfumes map[string]domain.Perfume) (map[string]int, error) {
	next := make(map[string]int, len(details))
	for _, d := range details {
		if d.Quantity < 1 || d.Milliliter < 1 {
			return nil, store.ErrInvalidInput
		}
		p, ok := perfumes[d.PerfumeID]
		if !ok {
			return nil, fmt.Errorf("perfume %s: %w", d.PerfumeID, store.ErrNotFound)
		}
		if p.Status != domain.StatusActive {
			return nil, fmt.Errorf("perfume %s inactive: %w", d.PerfumeID, store.ErrInvalidInput)
		}
		remaining, seen := next[d.PerfumeID]
		if !seen {
			remaining = p.CurrentStock
		}
		if !forms.Fits(d.Milliliter, d.Quantity, remaining) {
			return nil, fmt.Errorf("%w: %s has %d ml", store.ErrInsufficientStock, p.Name, p.CurrentStock)
		}
		next[d.PerfumeID] = remaining - d.Milliliter*d.Quantity
	}
	return next, nil
}

// CreateSale writes the header, all details in one bulk insert, then the
// stock updates. Each stock update only applies while the perfume still holds
// the stock the plan was computed from; a concurrent sale turns it into
// ErrConflict. Any failure deletes what was written and restores stock
// already decremented.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Details) == 0 {
		return nil, store.ErrInvalidInput
	}

	perfumes := make(map[string]domain.Perfume, len(sale.Details))
	for _, d := range sale.Details {
		if _, seen := perfumes[d.PerfumeID]; seen {
			continue
		}
		p, err := s.GetPerfume(ctx, d.PerfumeID)
		if err != nil {
			return nil, fmt.Errorf("perfume %s: %w", d.PerfumeID, err)
		}
		perfumes[p.ID] = *p
	}
	plan, err := stockPlan(sale.Details, perfumes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}

	var headerOut []saleRow
	if err := s.insert(tableSales, saleRow{
		ID:              sale.ID,
		SaleDate:        sale.SaleDate,
		TotalAmount:     sale.TotalAmount,
		TotalItems:      sale.TotalItems,
		TotalML:         sale.TotalML,
		CustomerName:    sale.CustomerName,
		CustomerContact: sale.CustomerContact,
		CustomerEmail:   sale.CustomerEmail,
		PaymentMethod:   sale.PaymentMethod,
		Notes:           sale.Notes,
		CreatedBy:       sale.CreatedBy,
	}, &headerOut); err != nil {
		return nil, err
	}

	details := make([]domain.SaleDetail, len(sale.Details))
	detailRows := make([]saleDetailRow, len(sale.Details))
	for i, d := range sale.Details {
		if d.ID == "" {
			d.ID = xid.New("det")
		}
		d.SaleID = sale.ID
		details[i] = d
		detailRows[i] = saleDetailRow(d)
	}
	removeSale := func() error {
		if err := s.deleteEq(tableSaleDetails, "sale_id", sale.ID); err != nil {
			return err
		}
		return s.deleteEq(tableSales, "id", sale.ID)
	}

	var detailOut []saleDetailRow
	if err := s.insert(tableSaleDetails, detailRows, &detailOut); err != nil {
		s.compensate("sale "+sale.ID, removeSale)
		return nil, err
	}

	ids := make([]string, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	applied := make([]string, 0, len(ids))
	for _, id := range ids {
		old := perfumes[id].CurrentStock
		if err := s.compareAndSet(tablePerfumes, id, "current_stock", old, plan[id], map[string]any{"updated_at": now}); err != nil {
			s.compensate("sale "+sale.ID, func() error {
				for _, done := range applied {
					if err := s.restorePerfumeStock(ctx, done, perfumes[done].CurrentStock-plan[done]); err != nil {
						return err
					}
				}
				return removeSale()
			})
			return nil, err
		}
		applied = append(applied, id)
	}

	sale.Details = details
	return &sale, nil
}

func (s *Store) compensate(what string, undo func() error) {
	if err := undo(); err != nil {
		log.Printf("[supabase-store] WARN: compensation failed for %s: %v", what, err)
	}
}

// saleFilterChunk bounds the ids sent in one sale_id=in.(...) filter so the
// query string stays short.
const saleFilterChunk = 100

// ListSaleLines lets PostgREST apply the lower date bound (or the upper one
// when there is no lower) to the sales headers and fetches only the details
// of those sales. Both bounds are rechecked here since one column takes a
// single filter. The join, its ordering and the limit run here because a
// line's date lives on its header.
func (s *Store) ListSaleLines(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleLineRecord, error) {
	var sales []saleRow
	query := s.client.DB.From(tableSales).Select("*")
	var err error
	switch {
	case !from.IsZero():
		err = query.Gte("sale_date", timestamp(from)).Execute(&sales)
	case !to.IsZero():
		err = query.Lt("sale_date", timestamp(to)).Execute(&sales)
	default:
		err = query.Execute(&sales)
	}
	if err != nil {
		return nil, err
	}
	headers := make(map[string]saleRow, len(sales))
	saleIDs := make([]string, 0, len(sales))
	for _, sale := range sales {
		if !store.InRange(sale.SaleDate, from, to) {
			continue
		}
		headers[sale.ID] = sale
		saleIDs = append(saleIDs, sale.ID)
	}
	if len(saleIDs) == 0 {
		return []domain.SaleLineRecord{}, nil
	}

	var details []saleDetailRow
	if from.IsZero() && to.IsZero() {
		if err := s.selectAll(tableSaleDetails, &details); err != nil {
			return nil, err
		}
	} else {
		for chunk := range slices.Chunk(saleIDs, saleFilterChunk) {
			var part []saleDetailRow
			if err := s.client.DB.From(tableSaleDetails).Select("*").In("sale_id", chunk).Execute(&part); err != nil {
				return nil, err
			}
			details = append(details, part...)
		}
	}

	rows := make([]domain.SaleLineRecord, 0, len(details))
	for _, d := range details {
		sale, ok := headers[d.SaleID]
		if !ok {
			continue
		}
		rows = append(rows, saleLine(sale, d))
	}
	sortSaleLines(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func saleLine(sale saleRow, d saleDetailRow) domain.SaleLineRecord {
	return domain.SaleLineRecord{
		DetailID:     d.ID,
		SaleID:       sale.ID,
		SaleDate:     sale.SaleDate,
		CustomerName: sale.CustomerName,
		PerfumeID:    d.PerfumeID,
		PerfumeName:  d.PerfumeName,
		Category:     d.Category,
		BottleType:   d.BottleType,
		Quantity:     d.Quantity,
		Milliliter:   d.Milliliter,
		UnitPrice:    d.UnitPrice,
		Subtotal:     d.Subtotal,
		IsRefill:     d.IsRefill,
	}
}

func sortSaleLines(rows []domain.SaleLineRecord) {
	slices.SortFunc(rows, func(a, b domain.SaleLineRecord) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return strings.Compare(a.DetailID, b.DetailID)
	})
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return nil, store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	var rows []userRow
	if err := s.insert(tableUsers, userRowOf(user), &rows); err != nil {
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.selectAll(tableUsers, &rows); err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return strings.Compare(a.Email, b.Email) })
	return users, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	return s.findUser("id", id)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	return s.findUser("email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) findUser(column string, value string) (*domain.UserAccount, error) {
	var rows []userRow
	if err := s.selectEq(tableUsers, column, value, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	user := rows[0].toDomain()
	return &user, nil
}

func (s *Store) UpdateUserStatus(_ context.Context, id string, status string) (*domain.UserAccount, error) {
	return s.patchUser(id, map[string]any{"status": status})
}

func (s *Store) UpdateUserRole(_ context.Context, id string, role string) (*domain.UserAccount, error) {
	return s.patchUser(id, map[string]any{"role": role})
}

func (s *Store) UpdateUserPassword(_ context.Context, id string, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidInput
	}
	_, err := s.patchUser(id, map[string]any{"password_hash": passwordHash})
	return err
}

func (s *Store) patchUser(id string, patch map[string]any) (*domain.UserAccount, error) {
	var rows []userRow
	if err := s.update(tableUsers, id, patch, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	user := rows[0].toDomain()
	return &user, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var rows []domain.AuditLog
	return s.insert(tableAuditLogs, entry, &rows)
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	if err := s.selectAll(tableAuditLogs, &logs); err != nil {
		return nil, err
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
