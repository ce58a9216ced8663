package forms

import (
	"net/mail"
	"strings"
	"time"

	"perfumestock/backend/internal/domain"
)

var StaffRoles = []string{domain.RoleAdmin, domain.RoleSupervisor, domain.RoleSeller}

const MinPasswordLength = 6

// NewUser validates the create-user form. The role defaults to defaultRole and
// the account starts activo. The password is returned untouched for hashing.
func NewUser(req domain.UserCreateRequest, defaultRole string, allowedRoles []string, now time.Time) (domain.UserAccount, error) {
	user := domain.UserAccount{
		Name:      clean(req.Name),
		Email:     strings.ToLower(clean(req.Email)),
		Role:      clean(req.Role),
		Status:    domain.StatusActive,
		CreatedAt: now,
	}
	if user.Role == "" {
		user.Role = defaultRole
	}

	v := Violations{}
	Required("name", user.Name, v)
	Required("email", user.Email, v)
	if _, ok := v["email"]; !ok {
		if _, err := mail.ParseAddress(user.Email); err != nil {
			v["email"] = "invalid_email"
		}
	}
	if len(req.Password) < MinPasswordLength {
		v["password"] = "too_short"
	}
	OneOf("role", user.Role, allowedRoles, v)
	return user, v.Err()
}

// ToggleStatus flips activo and inactivo.
func ToggleStatus(status string) string {
	if status == domain.StatusActive {
		return domain.StatusInactive
	}
	return domain.StatusActive
}
