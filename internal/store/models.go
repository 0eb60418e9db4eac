package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Address      string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type StoreModel struct {
	ID            string    `gorm:"primaryKey"`
	Name          string    `gorm:"not null;index"`
	Email         string    `gorm:"uniqueIndex;not null"`
	Address       string    `gorm:"not null"`
	OwnerID       string    `gorm:"not null;index"`
	AverageRating float64   `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type RatingModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_ratings_user_store"`
	StoreID   string    `gorm:"not null;uniqueIndex:idx_ratings_user_store;index"`
	Score     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}
