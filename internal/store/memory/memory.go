package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	perfumes     map[string]domain.Perfume
	flaskTypes   map[string]domain.FlaskType
	flasks       map[string]domain.Flask
	movements    []domain.FlaskMovement
	alcohol      map[string]domain.AlcoholLot
	consumptions []domain.AlcoholConsumption
	salesByID    map[string]*domain.Sale
	usersByID    map[string]domain.UserAccount
	auditLogs    []domain.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		perfumes:     make(map[string]domain.Perfume),
		flaskTypes:   make(map[string]domain.FlaskType),
		flasks:       make(map[string]domain.Flask),
		movements:    make([]domain.FlaskMovement, 0, 32),
		alcohol:      make(map[string]domain.AlcoholLot),
		consumptions: make([]domain.AlcoholConsumption, 0, 32),
		salesByID:    make(map[string]*domain.Sale),
		usersByID:    make(map[string]domain.UserAccount),
		auditLogs:    make([]domain.AuditLog, 0, 128),
	}
}

// seedUsers builds the demo staff accounts. Passwords come from
// SEED_ADMIN_PASSWORD, SEED_SUPERVISOR_PASSWORD and SEED_SELLER_PASSWORD and
// fall back to dev defaults with a warning.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	supervisorPwd := envOr("SEED_SUPERVISOR_PASSWORD", "supervisor123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SUPERVISOR_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_SUPERVISOR_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		id       string
		name     string
		email    string
		password string
		role     string
	}{
		{"usr-admin", "Administrador", "admin@perfumestock.local", adminPwd, domain.RoleAdmin},
		{"usr-supervisor", "Supervisor", "supervisor@perfumestock.local", supervisorPwd, domain.RoleSupervisor},
		{"usr-seller", "Vendedor", "vendedor@perfumestock.local", sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users[u.id] = domain.UserAccount{
			ID:           u.id,
			Name:         u.name,
			Email:        u.email,
			Role:         u.role,
			Status:       domain.StatusActive,
			PasswordHash: string(hash),
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small demo catalogue and the seed users.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	d := decimal.RequireFromString

	for _, p := range []domain.Perfume{
		{ID: "pf-rosa-nocturna", Name: "Rosa Nocturna", Brand: "Casa Aroma", Category: "floral", CurrentStock: 500, MinStock: 100, PricePerML: d("1.20"), CostPerML: d("0.55")},
		{ID: "pf-oud-imperial", Name: "Oud Imperial", Brand: "Maison Ambar", Category: "oriental", CurrentStock: 320, MinStock: 80, PricePerML: d("2.40"), CostPerML: d("1.10")},
		{ID: "pf-brisa-marina", Name: "Brisa Marina", Brand: "Costa Azul", Category: "fresh", CurrentStock: 60, MinStock: 100, PricePerML: d("0.90"), CostPerML: d("0.40")},
		{ID: "pf-cedro-real", Name: "Cedro Real", Brand: "Bosque Fino", Category: "woody", CurrentStock: 180, MinStock: 100, PricePerML: d("1.60"), CostPerML: d("0.70")},
		{ID: "pf-citrus-vivo", Name: "Citrus Vivo", Brand: "Costa Azul", Category: "citrus", CurrentStock: 0, MinStock: 50, PricePerML: d("0.80"), CostPerML: d("0.35")},
	} {
		p.Status = domain.StatusActive
		p.CreatedAt = now
		p.UpdatedAt = now
		s.perfumes[p.ID] = p
	}

	for _, ft := range []domain.FlaskType{
		{ID: "ft-cristal", Name: "Cristal Tallado", Category: "luxury", IsActive: true},
		{ID: "ft-vidrio", Name: "Vidrio Clasico", Category: "standard", IsActive: true},
		{ID: "ft-rollon", Name: "Roll-on Mini", Category: "generic", IsActive: true},
	} {
		s.flaskTypes[ft.ID] = ft
	}

	for _, f := range []domain.Flask{
		{ID: "fl-cri-50", ReferenceID: "CRI-50ML-SEED", FlaskTypeID: "ft-cristal", FlaskTypeName: "Cristal Tallado", SizeML: 50, CostPerUnit: d("4.50"), CurrentStock: 40, MinStock: 10, MaxStock: 200},
		{ID: "fl-vid-30", ReferenceID: "VID-30ML-SEED", FlaskTypeID: "ft-vidrio", FlaskTypeName: "Vidrio Clasico", SizeML: 30, CostPerUnit: d("1.20"), CurrentStock: 8, MinStock: 20, MaxStock: 300},
		{ID: "fl-rol-10", ReferenceID: "ROL-10ML-SEED", FlaskTypeID: "ft-rollon", FlaskTypeName: "Roll-on Mini", SizeML: 10, CostPerUnit: d("0.60"), CurrentStock: 0, MinStock: 25, MaxStock: 500},
	} {
		f.CreatedAt = now
		s.flasks[f.ID] = f
	}

	expiry := now.AddDate(0, 0, 20)
	for _, lot := range []domain.AlcoholLot{
		{ID: "alc-etanol-96", Name: "Etanol 96", Type: "ethanol", ConcentrationPercentage: 96, BatchNumber: "ET-2401", CurrentStockML: 12000, MinStockML: 2000, CostPerML: d("0.02")},
		{ID: "alc-perfumero", Name: "Alcohol Perfumero", Type: "perfume_grade", ConcentrationPercentage: 95, BatchNumber: "AP-0912", CurrentStockML: 1500, MinStockML: 3000, CostPerML: d("0.05"), ExpiryDate: &expiry},
	} {
		lot.IsActive = true
		lot.CreatedAt = now
		s.alcohol[lot.ID] = lot
	}

	s.usersByID = seedUsers(now)
	return s
}

func (s *Store) ListPerfumes(_ context.Context, status string) ([]domain.Perfume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perfumes := make([]domain.Perfume, 0, len(s.perfumes))
	for _, p := range s.perfumes {
		if status != "" && p.Status != status {
			continue
		}
		perfumes = append(perfumes, p)
	}
	slices.SortFunc(perfumes, func(a, b domain.Perfume) int {
		return strings.Compare(a.Name, b.Name)
	})
	return perfumes, nil
}

func (s *Store) GetPerfume(_ context.Context, id string) (*domain.Perfume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.perfumes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreatePerfume(_ context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if perfume.ID == "" {
		perfume.ID = xid.New("pf")
	}
	if _, exists := s.perfumes[perfume.ID]; exists {
		return nil, store.ErrConflict
	}
	s.perfumes[perfume.ID] = perfume
	created := perfume
	return &created, nil
}

func (s *Store) UpdatePerfume(_ context.Context, perfume domain.Perfume) (*domain.Perfume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.perfumes[perfume.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	perfume.CreatedAt = existing.CreatedAt
	s.perfumes[perfume.ID] = perfume
	updated := perfume
	return &updated, nil
}

func (s *Store) SetPerfumeStatus(_ context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.perfumes[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	s.perfumes[id] = p
	return nil
}

func (s *Store) ListFlaskTypes(_ context.Context) ([]domain.FlaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]domain.FlaskType, 0, len(s.flaskTypes))
	for _, ft := range s.flaskTypes {
		types = append(types, ft)
	}
	slices.SortFunc(types, func(a, b domain.FlaskType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return types, nil
}

func (s *Store) GetFlaskType(_ context.Context, id string) (*domain.FlaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, ok := s.flaskTypes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ft, nil
}

func (s *Store) ListFlasks(_ context.Context) ([]domain.Flask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flasks := make([]domain.Flask, 0, len(s.flasks))
	for _, f := range s.flasks {
		flasks = append(flasks, f)
	}
	slices.SortFunc(flasks, func(a, b domain.Flask) int {
		return strings.Compare(a.ReferenceID, b.ReferenceID)
	})
	return flasks, nil
}

func (s *Store) CreateFlask(_ context.Context, flask domain.Flask, movement *domain.FlaskMovement) (*domain.Flask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flaskTypes[flask.FlaskTypeID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.flasks {
		if existing.ReferenceID == flask.ReferenceID {
			return nil, fmt.Errorf("%w: reference %s already exists", store.ErrConflict, flask.ReferenceID)
		}
	}
	if flask.ID == "" {
		flask.ID = xid.New("fl")
	}
	s.flasks[flask.ID] = flask

	if movement != nil {
		m := *movement
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		m.FlaskID = flask.ID
		s.movements = append(s.movements, m)
	}
	created := flask
	return &created, nil
}

// Movements returns the recorded movements of a flask, oldest first.
func (s *Store) Movements(flaskID string) []domain.FlaskMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FlaskMovement, 0, 4)
	for _, m := range s.movements {
		if m.FlaskID == flaskID {
			result = append(result, m)
		}
	}
	return result
}

func (s *Store) ListAlcohol(_ context.Context) ([]domain.AlcoholLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]domain.AlcoholLot, 0, len(s.alcohol))
	for _, lot := range s.alcohol {
		lots = append(lots, cloneAlcohol(lot))
	}
	slices.SortFunc(lots, func(a, b domain.AlcoholLot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return lots, nil
}

func (s *Store) GetAlcohol(_ context.Context, id string) (*domain.AlcoholLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.alcohol[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneAlcohol(lot)
	return &dup, nil
}

func (s *Store) CreateAlcohol(_ context.Context, lot domain.AlcoholLot) (*domain.AlcoholLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lot.ID == "" {
		lot.ID = xid.New("alc")
	}
	s.alcohol[lot.ID] = cloneAlcohol(lot)
	created := cloneAlcohol(lot)
	return &created, nil
}

func (s *Store) CreateConsumption(_ context.Context, consumption domain.AlcoholConsumption) (*domain.AlcoholConsumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.alcohol[consumption.AlcoholID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if consumption.QuantityUsedML > lot.CurrentStockML {
		return nil, fmt.Errorf("%w: available %.0f ml", store.ErrInsufficientStock, lot.CurrentStockML)
	}

	if consumption.ID == "" {
		consumption.ID = xid.New("cons")
	}
	lot.CurrentStockML -= consumption.QuantityUsedML
	s.alcohol[lot.ID] = lot
	s.consumptions = append(s.consumptions, consumption)
	created := consumption
	return &created, nil
}

func (s *Store) ListConsumptions(_ context.Context, limit int) ([]domain.AlcoholConsumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.consumptions)
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

// CreateSale validates every line against current stock before touching
// anything, then decrements stock and stores the sale under one lock.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Details) == 0 {
		return nil, store.ErrInvalidInput
	}

	needed := make(map[string]int, len(sale.Details))
	for _, detail := range sale.Details {
		perfume, ok := s.perfumes[detail.PerfumeID]
		if !ok {
			return nil, fmt.Errorf("perfume %s: %w", detail.PerfumeID, store.ErrNotFound)
		}
		if perfume.Status != domain.StatusActive {
			return nil, fmt.Errorf("perfume %s inactive: %w", detail.PerfumeID, store.ErrInvalidInput)
		}
		if detail.Milliliter < 1 || detail.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		if !forms.Fits(detail.Milliliter, detail.Quantity, perfume.CurrentStock-needed[detail.PerfumeID]) {
			return nil, fmt.Errorf("%w: %s has %d ml", store.ErrInsufficientStock, perfume.Name, perfume.CurrentStock)
		}
		needed[detail.PerfumeID] += detail.Milliliter * detail.Quantity
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}
	for perfumeID, ml := range needed {
		perfume := s.perfumes[perfumeID]
		perfume.CurrentStock -= ml
		perfume.UpdatedAt = now
		s.perfumes[perfumeID] = perfume
	}

	dup := cloneSale(&sale)
	for i := range dup.Details {
		if dup.Details[i].ID == "" {
			dup.Details[i].ID = xid.New("det")
		}
		dup.Details[i].SaleID = dup.ID
	}
	s.salesByID[dup.ID] = dup
	return cloneSale(dup), nil
}

func (s *Store) ListSaleLines(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleLineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.SaleLineRecord, 0, 64)
	for _, sale := range s.salesByID {
		if !store.InRange(sale.SaleDate, from, to) {
			continue
		}
		for _, detail := range sale.Details {
			rows = append(rows, domain.SaleLineRecord{
				DetailID:     detail.ID,
				SaleID:       sale.ID,
				SaleDate:     sale.SaleDate,
				CustomerName: sale.CustomerName,
				PerfumeID:    detail.PerfumeID,
				PerfumeName:  detail.PerfumeName,
				Category:     detail.Category,
				BottleType:   detail.BottleType,
				Quantity:     detail.Quantity,
				Milliliter:   detail.Milliliter,
				UnitPrice:    detail.UnitPrice,
				Subtotal:     detail.Subtotal,
				IsRefill:     detail.IsRefill,
			})
		}
	}
	slices.SortFunc(rows, func(a, b domain.SaleLineRecord) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return strings.Compare(a.DetailID, b.DetailID)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.usersByID {
		if existing.Email == email {
			return nil, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
	}
	user.Email = email
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.usersByID {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUserStatus(_ context.Context, id string, status string) (*domain.UserAccount, error) {
	return s.updateUser(id, func(u *domain.UserAccount) { u.Status = status })
}

func (s *Store) UpdateUserRole(_ context.Context, id string, role string) (*domain.UserAccount, error) {
	return s.updateUser(id, func(u *domain.UserAccount) { u.Role = role })
}

func (s *Store) UpdateUserPassword(_ context.Context, id string, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidInput
	}
	_, err := s.updateUser(id, func(u *domain.UserAccount) { u.PasswordHash = passwordHash })
	return err
}

func (s *Store) updateUser(id string, apply func(*domain.UserAccount)) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	apply(&user)
	s.usersByID[id] = user
	updated := user
	return &updated, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Details = slices.Clone(src.Details)
	return &dup
}

func cloneAlcohol(src domain.AlcoholLot) domain.AlcoholLot {
	dup := src
	if src.ExpiryDate != nil {
		expiry := *src.ExpiryDate
		dup.ExpiryDate = &expiry
	}
	return dup
}
