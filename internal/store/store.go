package store

import (
	"context"
	"errors"
	"time"

	"perfumestock/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// Repository is implemented by the memory, postgres and supabase backends.
// CreateSale, CreateFlask and CreateConsumption are all-or-nothing: either every
// row (and stock change) they describe is persisted or none is.
type Repository interface {
	ListPerfumes(ctx context.Context, status string) ([]domain.Perfume, error)
	GetPerfume(ctx context.Context, id string) (*domain.Perfume, error)
	CreatePerfume(ctx context.Context, perfume domain.Perfume) (*domain.Perfume, error)
	UpdatePerfume(ctx context.Context, perfume domain.Perfume) (*domain.Perfume, error)
	SetPerfumeStatus(ctx context.Context, id string, status string) error

	ListFlaskTypes(ctx context.Context) ([]domain.FlaskType, error)
	GetFlaskType(ctx context.Context, id string) (*domain.FlaskType, error)
	ListFlasks(ctx context.Context) ([]domain.Flask, error)
	CreateFlask(ctx context.Context, flask domain.Flask, movement *domain.FlaskMovement) (*domain.Flask, error)

	ListAlcohol(ctx context.Context) ([]domain.AlcoholLot, error)
	GetAlcohol(ctx context.Context, id string) (*domain.AlcoholLot, error)
	CreateAlcohol(ctx context.Context, lot domain.AlcoholLot) (*domain.AlcoholLot, error)
	CreateConsumption(ctx context.Context, consumption domain.AlcoholConsumption) (*domain.AlcoholConsumption, error)
	ListConsumptions(ctx context.Context, limit int) ([]domain.AlcoholConsumption, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// ListSaleLines returns lines of sales in [from, to), newest first. A
	// limit below 1 returns every line.
	ListSaleLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleLineRecord, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	UpdateUserStatus(ctx context.Context, id string, status string) (*domain.UserAccount, error)
	UpdateUserRole(ctx context.Context, id string, role string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, id string, passwordHash string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// InRange reports whether t falls in [from, to). A zero bound is open.
func InRange(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
