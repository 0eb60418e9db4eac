package domain

import "time"

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleCustomer   UserRole = "customer"
	RoleStoreOwner UserRole = "store_owner"
)

// ValidRole reports whether the role is in the closed role set.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleCustomer, RoleStoreOwner:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Address      string    `json:"address"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Store struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	OwnerID       string    `json:"ownerId"`
	AverageRating float64   `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	StoreID   string    `json:"storeId"`
	Score     int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoreRating is a ledger entry annotated with the rater's identity,
// as returned by the per-store rating listing.
type StoreRating struct {
	Rating
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// UserRating is a ledger entry annotated with the rated store,
// as returned by the per-account rating listing.
type UserRating struct {
	Rating
	StoreName    string  `json:"storeName"`
	StoreAddress string  `json:"storeAddress"`
	StoreAverage float64 `json:"storeAverageRating"`
}

// StoreListing is a store annotated with owner identity and the
// calling user's own rating (nil when they have not rated it).
type StoreListing struct {
	Store
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
	UserRating *int   `json:"userRating"`
}

// StoreDetails is a single store with its full rating history.
type StoreDetails struct {
	StoreListing
	Ratings []StoreRating `json:"ratings"`
}

// DashboardStats are the admin dashboard counters.
type DashboardStats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalStores  int `json:"totalStores"`
	TotalRatings int `json:"totalRatings"`
}

// OwnerDashboard is the store owner's view of their own store.
type OwnerDashboard struct {
	Store   Store         `json:"store"`
	Ratings []StoreRating `json:"ratings"`
	Stats   OwnerStats    `json:"statistics"`
}

type OwnerStats struct {
	TotalRatings  int     `json:"totalRatings"`
	AverageRating float64 `json:"averageRating"`
}
