package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/forms"
)

// ListUsers returns every account, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b domain.UserAccount) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return users, nil
}

// SetUserStatus sets status, or flips the current one when status is empty.
// Administrators cannot deactivate themselves.
func (s *Service) SetUserStatus(ctx context.Context, id string, status string) (domain.UserAccount, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.UserAccount{}, err
	}

	user, err := s.repo.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserAccount{}, err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = forms.ToggleStatus(user.Status)
	}
	v := forms.Violations{}
	forms.OneOf("status", status, []string{domain.StatusActive, domain.StatusInactive}, v)
	if user.ID == actor.UserID && status == domain.StatusInactive {
		v["status"] = "cannot_deactivate_self"
	}
	if err := v.Err(); err != nil {
		return domain.UserAccount{}, err
	}

	updated, err := s.repo.UpdateUserStatus(ctx, user.ID, status)
	if err != nil {
		return domain.UserAccount{}, err
	}
	s.logAudit(ctx, "user_status", "user", updated.ID, fmt.Sprintf("status=%s->%s", user.Status, updated.Status))
	return *updated, nil
}

func (s *Service) ChangeUserRole(ctx context.Context, id string, role string) (domain.UserAccount, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.UserAccount{}, err
	}

	role = strings.TrimSpace(role)
	v := forms.Violations{}
	forms.OneOf("role", role, append(slices.Clone(forms.StaffRoles), domain.RoleUser), v)
	if err := v.Err(); err != nil {
		return domain.UserAccount{}, err
	}

	existing, err := s.repo.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserAccount{}, err
	}
	updated, err := s.repo.UpdateUserRole(ctx, existing.ID, role)
	if err != nil {
		return domain.UserAccount{}, err
	}
	s.logAudit(ctx, "user_role", "user", updated.ID, fmt.Sprintf("role=%s->%s", existing.Role, updated.Role))
	return *updated, nil
}

func (s *Service) UserStats(ctx context.Context) (domain.UserStats, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.UserStats{}, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return domain.UserStats{}, err
	}

	stats := domain.UserStats{Total: len(users)}
	for _, u := range users {
		if u.Status == domain.StatusActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
		switch u.Role {
		case domain.RoleAdmin:
			stats.Administrators++
		case domain.RoleSupervisor:
			stats.Supervisors++
		case domain.RoleSeller:
			stats.Sellers++
		}
	}
	return stats, nil
}

// RecordUserCreated writes the audit entry for an account created through the
// auth manager.
func (s *Service) RecordUserCreated(ctx context.Context, user domain.UserAccount) {
	s.logAudit(ctx, "user_create", "user", user.ID, fmt.Sprintf("email=%s,role=%s", user.Email, user.Role))
}
