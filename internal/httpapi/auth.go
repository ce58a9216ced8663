package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
	"perfumestock/backend/internal/store"
)

const tokenIssuer = "perfumestock"

var errInvalidCredentials = errors.New("invalid credentials")

type AuthManager struct {
	secret        []byte
	tokenTTL      time.Duration
	userStore     UserStore
	signupEnabled bool
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, id string, passwordHash string) error
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, signupEnabled bool) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:        []byte(secret),
		tokenTTL:      tokenTTL,
		userStore:     userStore,
		signupEnabled: signupEnabled,
	}
}

// Login checks the credentials of an activo account and issues a signed
// session token. Unknown, inactive and wrong-password logins all fail the same way.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, time.Time, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, time.Time{}, errInvalidCredentials
	}

	user, err := a.userStore.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, time.Time{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, time.Time{}, err
	}
	if user.Status != domain.StatusActive || !a.checkPassword(ctx, user, req.Password) {
		return domain.LoginResponse{}, time.Time{}, errInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, time.Time{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        profileOf(*user),
	}, expiresAt, nil
}

// checkPassword verifies input against the stored hash. Accounts still holding
// a plain-text password are compared directly and upgraded to bcrypt.
func (a *AuthManager) checkPassword(ctx context.Context, user *domain.UserAccount, input string) bool {
	if isPasswordHash(user.PasswordHash) {
		return verifyPassword(user.PasswordHash, input)
	}
	if user.PasswordHash == "" || subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(input)) != 1 {
		return false
	}
	if hashed, err := hashPassword(input); err == nil {
		if err := a.userStore.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
			log.Printf("[auth] WARN: failed to upgrade legacy password user=%s: %v", user.ID, err)
		}
	}
	return true
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Name: claims.Name, Email: claims.Email, Role: claims.Role}, nil
}

// validateToken adapts ParseToken to the jwt middleware. The account is
// reloaded on every request, so a deactivation or role change applies to
// sessions that are already open.
func (a *AuthManager) validateToken(ctx context.Context, token string) (interface{}, error) {
	actor, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}
	user, err := a.userStore.GetUserByID(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("unknown account")
	}
	if err != nil {
		return nil, err
	}
	if user.Status != domain.StatusActive {
		return nil, errors.New("account inactive")
	}
	return domain.Actor{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:  user.Role,
		Name:  user.Name,
		Email: user.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateUser registers a staff account. The caller's role is checked by the route.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	return a.register(ctx, req, domain.RoleSeller, forms.StaffRoles)
}

// SignUp is public self-registration; it always creates role user.
func (a *AuthManager) SignUp(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	if !a.signupEnabled {
		return domain.UserAccount{}, fmt.Errorf("signup is disabled: %w", store.ErrNotFound)
	}
	req.Role = ""
	return a.register(ctx, req, domain.RoleUser, []string{domain.RoleUser})
}

func (a *AuthManager) register(ctx context.Context, req domain.UserCreateRequest, defaultRole string, allowedRoles []string) (domain.UserAccount, error) {
	user, err := forms.NewUser(req, defaultRole, allowedRoles, time.Now().UTC())
	if err != nil {
		return domain.UserAccount{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("failed to hash password")
	}
	user.PasswordHash = passwordHash

	created, err := a.userStore.CreateUser(ctx, user)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return *created, nil
}

func profileOf(user domain.UserAccount) domain.UserProfile {
	return domain.UserProfile{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
