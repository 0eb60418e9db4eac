package store

import "github.com/abhi5157/Store-Rating-App/pkg/domain"

// UserFilter narrows user listings. Name and Email are case-insensitive
// substring matches; Role is an exact match when set.
type UserFilter struct {
	Name  string
	Email string
	Role  domain.UserRole
}

// StoreFilter narrows store listings with case-insensitive substring matches.
type StoreFilter struct {
	Name    string
	Address string
}

// Store defines persistence operations for users, stores, and ratings.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	ListUsers(filter UserFilter) ([]domain.User, error)
	DeleteUser(id string) error
	CountUsers() (int, error)
	CountUsersByRole(role domain.UserRole) (int, error)

	// stores
	SaveStore(domain.Store) error
	GetStore(id string) (domain.Store, bool, error)
	// GetStoreForUpdate reads a store and, inside a transaction, holds a
	// row-level lock on it until the transaction ends.
	GetStoreForUpdate(id string) (domain.Store, bool, error)
	GetStoreByOwner(ownerID string) (domain.Store, bool, error)
	ListStores(filter StoreFilter) ([]domain.Store, error)
	DeleteStore(id string) error
	UpdateStoreAverage(id string, average float64) error
	CountStores() (int, error)

	// ratings
	SaveRating(domain.Rating) error
	GetRating(userID, storeID string) (domain.Rating, bool, error)
	ListRatingsByStore(storeID string) ([]domain.Rating, error)
	ListRatingsByUser(userID string) ([]domain.Rating, error)
	DeleteRatingsByStore(storeID string) error
	CountRatings() (int, error)

	// Transact runs fn against a transactional view of the store.
	// The mutations fn performs are applied atomically or not at all.
	Transact(fn func(Store) error) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
