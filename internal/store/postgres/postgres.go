package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const perfumeColumns = `id, name, brand, category, description, current_stock, min_stock,
	price_per_ml, cost_per_ml, supplier, notes, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerfume(row rowScanner) (domain.Perfume, error) {
	var p domain.Perfume
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.CurrentStock, &p.MinStock,
		&p.PricePerML, &p.CostPerML, &p.Supplier, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListPerfumes(ctx context.Context, status string) ([]domain.Perfume, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+perfumeColumns+`
		FROM perfumes
		WHERE ($1 = '' OR status = $1)
		ORDER BY name
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perfumes := make([]domain.Perfume, 0, 64)
	for rows.Next() {
		p, err := scanPerfume(rows)
		if err != nil {
			return nil, err
		}
		perfumes = append(perfumes, p)
	}
	return perfumes, rows.Err()
}

func (s *Store) GetPerfume(ctx context.Context, id string) (*domain.Perfume, error) {
	p, err := scanPerfume(s.db.QueryRowContext(ctx, `SELECT `+perfumeColumns+` FROM perfumes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePerfume(ctx context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	if perfume.ID == "" {
		perfume.ID = xid.New("pf")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO perfumes (`+perfumeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, perfume.ID, perfume.Name, perfume.Brand, perfume.Category, perfume.Description, perfume.CurrentStock, perfume.MinStock,
		perfume.PricePerML, perfume.CostPerML, perfume.Supplier, perfume.Notes, perfume.Status, perfume.CreatedAt, perfume.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := perfume
	return &created, nil
}

func (s *Store) UpdatePerfume(ctx context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	updated, err := scanPerfume(s.db.QueryRowContext(ctx, `
		UPDATE perfumes
		SET name = $2, brand = $3, category = $4, description = $5, current_stock = $6, min_stock = $7,
			price_per_ml = $8, cost_per_ml = $9, supplier = $10, notes = $11, status = $12, updated_at = $13
		WHERE id = $1
		RETURNING `+perfumeColumns,
		perfume.ID, perfume.Name, perfume.Brand, perfume.Category, perfume.Description, perfume.CurrentStock, perfume.MinStock,
		perfume.PricePerML, perfume.CostPerML, perfume.Supplier, perfume.Notes, perfume.Status, perfume.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) SetPerfumeStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE perfumes SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) ListFlaskTypes(ctx context.Context) ([]domain.FlaskType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category, is_active FROM flask_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]domain.FlaskType, 0, 8)
	for rows.Next() {
		var ft domain.FlaskType
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.Category, &ft.IsActive); err != nil {
			return nil, err
		}
		types = append(types, ft)
	}
	return types, rows.Err()
}

func (s *Store) GetFlaskType(ctx context.Context, id string) (*domain.FlaskType, error) {
	var ft domain.FlaskType
	err := s.db.QueryRowContext(ctx, `SELECT id, name, category, is_active FROM flask_types WHERE id = $1`, id).
		Scan(&ft.ID, &ft.Name, &ft.Category, &ft.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ft, nil
}

func (s *Store) ListFlasks(ctx context.Context) ([]domain.Flask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.reference_id, f.flask_type_id, t.name, f.size_ml, f.material, f.color, f.supplier,
			f.cost_per_unit, f.current_stock, f.min_stock, f.max_stock, f.location, f.notes, f.created_at
		FROM flasks f
		JOIN flask_types t ON t.id = f.flask_type_id
		ORDER BY f.reference_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flasks := make([]domain.Flask, 0, 32)
	for rows.Next() {
		var f domain.Flask
		if err := rows.Scan(&f.ID, &f.ReferenceID, &f.FlaskTypeID, &f.FlaskTypeName, &f.SizeML, &f.Material, &f.Color, &f.Supplier,
			&f.CostPerUnit, &f.CurrentStock, &f.MinStock, &f.MaxStock, &f.Location, &f.Notes, &f.CreatedAt); err != nil {
			return nil, err
		}
		flasks = append(flasks, f)
	}
	return flasks, rows.Err()
}

// CreateFlask inserts the flask and its opening movement in one transaction.
func (s *Store) CreateFlask(ctx context.Context, flask domain.Flask, movement *domain.FlaskMovement) (*domain.Flask, error) {
	if flask.ID == "" {
		flask.ID = xid.New("fl")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var typeName string
	if err := tx.QueryRowContext(ctx, `SELECT name FROM flask_types WHERE id = $1`, flask.FlaskTypeID).Scan(&typeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	flask.FlaskTypeName = typeName

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flasks (id, reference_id, flask_type_id, size_ml, material, color, supplier, cost_per_unit,
			current_stock, min_stock, max_stock, location, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, flask.ID, flask.ReferenceID, flask.FlaskTypeID, flask.SizeML, flask.Material, flask.Color, flask.Supplier, flask.CostPerUnit,
		flask.CurrentStock, flask.MinStock, flask.MaxStock, flask.Location, flask.Notes, flask.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: reference %s already exists", store.ErrConflict, flask.ReferenceID)
		}
		return nil, err
	}

	if movement != nil {
		m := *movement
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flask_movements (id, flask_id, movement_type, quantity, unit_cost, total_cost, reference_document, notes, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, m.ID, flask.ID, m.MovementType, m.Quantity, m.UnitCost, m.TotalCost, m.ReferenceDocument, m.Notes, m.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := flask
	return &created, nil
}

const alcoholColumns = `id, name, type, concentration_percentage, supplier, batch_number, current_stock_ml,
	min_stock_ml, cost_per_ml, expiry_date, storage_location, safety_notes, is_active, created_at`

func scanAlcohol(row rowScanner) (domain.AlcoholLot, error) {
	var lot domain.AlcoholLot
	var expiry sql.NullTime
	err := row.Scan(&lot.ID, &lot.Name, &lot.Type, &lot.ConcentrationPercentage, &lot.Supplier, &lot.BatchNumber, &lot.CurrentStockML,
		&lot.MinStockML, &lot.CostPerML, &expiry, &lot.StorageLocation, &lot.SafetyNotes, &lot.IsActive, &lot.CreatedAt)
	if err != nil {
		return lot, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		lot.ExpiryDate = &e
	}
	return lot, nil
}

func (s *Store) ListAlcohol(ctx context.Context) ([]domain.AlcoholLot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alcoholColumns+` FROM alcohol_inventory ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots := make([]domain.AlcoholLot, 0, 16)
	for rows.Next() {
		lot, err := scanAlcohol(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (s *Store) GetAlcohol(ctx context.Context, id string) (*domain.AlcoholLot, error) {
	lot, err := scanAlcohol(s.db.QueryRowContext(ctx, `SELECT `+alcoholColumns+` FROM alcohol_inventory WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

func (s *Store) CreateAlcohol(ctx context.Context, lot domain.AlcoholLot) (*domain.AlcoholLot, error) {
	if lot.ID == "" {
		lot.ID = xid.New("alc")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alcohol_inventory (`+alcoholColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, lot.ID, lot.Name, lot.Type, lot.ConcentrationPercentage, lot.Supplier, lot.BatchNumber, lot.CurrentStockML,
		lot.MinStockML, lot.CostPerML, nullDate(lot.ExpiryDate), lot.StorageLocation, lot.SafetyNotes, lot.IsActive, lot.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := lot
	return &created, nil
}

// CreateConsumption locks the lot, decrements it and records the consumption.
func (s *Store) CreateConsumption(ctx context.Context, consumption domain.AlcoholConsumption) (*domain.AlcoholConsumption, error) {
	if consumption.ID == "" {
		consumption.ID = xid.New("cons")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var available float64
	err = tx.QueryRowContext(ctx, `SELECT current_stock_ml FROM alcohol_inventory WHERE id = $1 FOR UPDATE`, consumption.AlcoholID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if consumption.QuantityUsedML > available {
		return nil, fmt.Errorf("%w: available %.0f ml", store.ErrInsufficientStock, available)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE alcohol_inventory SET current_stock_ml = current_stock_ml - $2 WHERE id = $1
	`, consumption.AlcoholID, consumption.QuantityUsedML); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO alcohol_consumption (id, alcohol_id, flask_id, perfume_id, batch_reference, quantity_used_ml,
			purpose, consumption_date, operator_notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, consumption.ID, consumption.AlcoholID, nullIfEmpty(consumption.FlaskID), nullIfEmpty(consumption.PerfumeID), consumption.BatchReference,
		consumption.QuantityUsedML, consumption.Purpose, nowDateUTC(consumption.ConsumptionDate), consumption.OperatorNotes,
		consumption.CreatedBy, consumption.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := consumption
	return &created, nil
}

func (s *Store) ListConsumptions(ctx context.Context, limit int) ([]domain.AlcoholConsumption, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alcohol_id, flask_id, perfume_id, batch_reference, quantity_used_ml, purpose,
			consumption_date, operator_notes, created_by, created_at
		FROM alcohol_consumption
		ORDER BY consumption_date DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AlcoholConsumption, 0, limit)
	for rows.Next() {
		var c domain.AlcoholConsumption
		var flaskID, perfumeID sql.NullString
		if err := rows.Scan(&c.ID, &c.AlcoholID, &flaskID, &perfumeID, &c.BatchReference, &c.QuantityUsedML, &c.Purpose,
			&c.ConsumptionDate, &c.OperatorNotes, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.FlaskID = flaskID.String
		c.PerfumeID = perfumeID.String
		result = append(result, c)
	}
	return result, rows.Err()
}

// CreateSale locks every perfume on the sale, checks the summed volume
// against stock, then writes header, details and stock decrements in one
// serializable transaction.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Details) == 0 {
		return nil, store.ErrInvalidInput
	}

	needed := make(map[string]int, len(sale.Details))
	for _, detail := range sale.Details {
		if detail.Quantity < 1 || detail.Milliliter < 1 {
			return nil, store.ErrInvalidInput
		}
		// current_stock is an INTEGER column, so nothing larger can ever fit.
		if !forms.Fits(detail.Milliliter, detail.Quantity, math.MaxInt32-needed[detail.PerfumeID]) {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, detail.PerfumeID)
		}
		needed[detail.PerfumeID] += detail.Milliliter * detail.Quantity
	}
	perfumeIDs := make([]string, 0, len(needed))
	for id := range needed {
		perfumeIDs = append(perfumeIDs, id)
	}
	sort.Strings(perfumeIDs)

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, current_stock, status
		FROM perfumes
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, perfumeIDs)
	if err != nil {
		return nil, err
	}
	type stockState struct {
		name   string
		stock  int
		status string
	}
	stocks := make(map[string]stockState, len(perfumeIDs))
	for stockRows.Next() {
		var id string
		var st stockState
		if err := stockRows.Scan(&id, &st.name, &st.stock, &st.status); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stocks[id] = st
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for _, id := range perfumeIDs {
		st, ok := stocks[id]
		if !ok {
			return nil, fmt.Errorf("perfume %s: %w", id, store.ErrNotFound)
		}
		if st.status != domain.StatusActive {
			return nil, fmt.Errorf("perfume %s inactive: %w", id, store.ErrInvalidInput)
		}
		if needed[id] > st.stock {
			return nil, fmt.Errorf("%w: %s has %d ml", store.ErrInsufficientStock, st.name, st.stock)
		}
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, sale_date, total_amount, total_items, total_ml, customer_name, customer_contact,
			customer_email, payment_method, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, sale.SaleDate, sale.TotalAmount, sale.TotalItems, sale.TotalML, sale.CustomerName, sale.CustomerContact,
		sale.CustomerEmail, sale.PaymentMethod, sale.Notes, sale.CreatedBy); err != nil {
		return nil, err
	}

	details := make([]domain.SaleDetail, len(sale.Details))
	copy(details, sale.Details)
	for i := range details {
		if details[i].ID == "" {
			details[i].ID = xid.New("det")
		}
		details[i].SaleID = sale.ID
		d := details[i]
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_details (id, sale_id, perfume_id, perfume_name, category, bottle_type, quantity,
				unit_price, subtotal, is_refill, milliliter)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, d.ID, d.SaleID, d.PerfumeID, d.PerfumeName, d.Category, d.BottleType, d.Quantity,
			d.UnitPrice, d.Subtotal, d.IsRefill, d.Milliliter); err != nil {
			return nil, err
		}
	}

	for _, id := range perfumeIDs {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE perfumes SET current_stock = current_stock - $2, updated_at = $3 WHERE id = $1
		`, id, needed[id], now); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	sale.Details = details
	return &sale, nil
}

func (s *Store) ListSaleLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleLineRecord, error) {
	var rowLimit any
	if limit > 0 {
		rowLimit = limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, s.id, s.sale_date, s.customer_name, d.perfume_id, d.perfume_name, d.category, d.bottle_type,
			d.quantity, d.milliliter, d.unit_price, d.subtotal, d.is_refill
		FROM sale_details d
		JOIN sales s ON s.id = d.sale_id
		WHERE ($1::timestamptz IS NULL OR s.sale_date >= $1)
			AND ($2::timestamptz IS NULL OR s.sale_date < $2)
		ORDER BY s.sale_date DESC, d.id
		LIMIT $3
	`, nullTime(from), nullTime(to), rowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLineRecord, 0, 128)
	for rows.Next() {
		var r domain.SaleLineRecord
		if err := rows.Scan(&r.DetailID, &r.SaleID, &r.SaleDate, &r.CustomerName, &r.PerfumeID, &r.PerfumeName, &r.Category, &r.BottleType,
			&r.Quantity, &r.Milliliter, &r.UnitPrice, &r.Subtotal, &r.IsRefill); err != nil {
			return nil, err
		}
		lines = append(lines, r)
	}
	return lines, rows.Err()
}

const userColumns = `id, name, email, role, status, password_hash, created_at`

func scanUser(row rowScanner) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Name, user.Email, user.Role, user.Status, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getUser(ctx context.Context, column string, value string) (*domain.UserAccount, error) {
	if column != "id" && column != "email" {
		return nil, fmt.Errorf("unsupported lookup column %q", column)
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status string) (*domain.UserAccount, error) {
	return s.updateUser(ctx, `UPDATE users SET status = $2 WHERE id = $1 RETURNING `+userColumns, id, status)
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role string) (*domain.UserAccount, error) {
	return s.updateUser(ctx, `UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, role)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id string, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidInput
	}
	_, err := s.updateUser(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1 RETURNING `+userColumns, id, passwordHash)
	return err
}

func (s *Store) updateUser(ctx context.Context, query string, id string, value string) (*domain.UserAccount, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return nowDateUTC(*val)
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
