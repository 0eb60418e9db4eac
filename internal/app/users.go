package app

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/abhi5157/Store-Rating-App/internal/store"
	"github.com/abhi5157/Store-Rating-App/internal/util"
	"github.com/abhi5157/Store-Rating-App/pkg/auth"
	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

const (
	minNameLength    = 6
	maxNameLength    = 60
	maxAddressLength = 400
)

// Register creates a self-service account and issues a session token.
// The very first account becomes the administrator; everyone after
// registers as a customer.
func (a *App) Register(name, email, password, address string) (domain.User, string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return domain.User{}, "", err
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, "", err
	}
	if err := validateUserAddress(address); err != nil {
		return domain.User{}, "", err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", validationf("%s", err)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	role := domain.RoleCustomer
	count, err := a.store.CountUsers()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	user, err := a.createUser(name, email, password, address, role)
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout invalidates a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ChangePassword updates the user's password after verifying the current one.
func (a *App) ChangePassword(userID, currentPassword, newPassword string) error {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrCurrentPasswordIncorrect
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return validationf("%s", err)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateUser registers an account with an explicit role (admin surface).
func (a *App) CreateUser(name, email, password, address string, role domain.UserRole) (domain.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return domain.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := validateUserAddress(address); err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, validationf("%s", err)
	}
	if !domain.ValidRole(role) {
		return domain.User{}, ErrInvalidRole
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	return a.createUser(name, email, password, address, role)
}

// ListUsers returns accounts matching the filter, sorted by name.
func (a *App) ListUsers(filter store.UserFilter) ([]domain.User, error) {
	if filter.Role != "" && !domain.ValidRole(filter.Role) {
		return nil, ErrInvalidRole
	}
	return a.store.ListUsers(filter)
}

// ChangeRole moves an account to a new role in the closed role set.
func (a *App) ChangeRole(userID string, role domain.UserRole) (domain.User, error) {
	if !domain.ValidRole(role) {
		return domain.User{}, ErrInvalidRole
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update role: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account. Deleting the last administrator is
// rejected; the admin count check and the delete run under one lock
// and one storage transaction.
func (a *App) DeleteUser(userID string) error {
	a.adminMu.Lock()
	defer a.adminMu.Unlock()
	return a.store.Transact(func(tx store.Store) error {
		user, ok, err := tx.GetUserByID(userID)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		if !ok {
			return ErrUserNotFound
		}
		if user.Role == domain.RoleAdmin {
			admins, err := tx.CountUsersByRole(domain.RoleAdmin)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		if err := tx.DeleteUser(userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// DashboardStats returns the admin dashboard counters.
func (a *App) DashboardStats() (domain.DashboardStats, error) {
	users, err := a.store.CountUsers()
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count users: %w", err)
	}
	stores, err := a.store.CountStores()
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count stores: %w", err)
	}
	ratings, err := a.store.CountRatings()
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count ratings: %w", err)
	}
	return domain.DashboardStats{
		TotalUsers:   users,
		TotalStores:  stores,
		TotalRatings: ratings,
	}, nil
}

func (a *App) createUser(name, email, password, address string, role domain.UserRole) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		Address:      strings.TrimSpace(address),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateName(name string) error {
	if len(name) < minNameLength || len(name) > maxNameLength {
		return validationf("name must be between %d and %d characters", minNameLength, maxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return validationf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validationf("invalid email address")
	}
	return nil
}

func validateUserAddress(address string) error {
	if len(address) > maxAddressLength {
		return validationf("address must be at most %d characters", maxAddressLength)
	}
	return nil
}
