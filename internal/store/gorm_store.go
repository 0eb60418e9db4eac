package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &StoreModel{}, &RatingModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Transact runs fn inside a database transaction.
func (s *GormStore) Transact(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// SaveUser creates or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "address", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns users matching the filter, ordered by name.
func (s *GormStore) ListUsers(filter UserFilter) ([]domain.User, error) {
	tx := s.db.Order("name ASC")
	if filter.Name != "" {
		tx = tx.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Email != "" {
		tx = tx.Where("email ILIKE ?", "%"+filter.Email+"%")
	}
	if filter.Role != "" {
		tx = tx.Where("role = ?", string(filter.Role))
	}
	var models []UserModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes a user.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// CountUsers returns the number of users.
func (s *GormStore) CountUsers() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountUsersByRole counts users holding the given role.
func (s *GormStore) CountUsersByRole(role domain.UserRole) (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveStore creates or updates a store.
func (s *GormStore) SaveStore(st domain.Store) error {
	model := storeToModel(st)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "address", "owner_id", "average_rating", "updated_at"}),
	}).Create(&model).Error
}

// GetStore retrieves a store by ID.
func (s *GormStore) GetStore(id string) (domain.Store, bool, error) {
	var model StoreModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Store{}, false, nil
		}
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

// GetStoreForUpdate reads a store holding a FOR UPDATE row lock.
// Concurrent submissions for the same store queue here; other stores
// are untouched.
func (s *GormStore) GetStoreForUpdate(id string) (domain.Store, bool, error) {
	var model StoreModel
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Store{}, false, nil
		}
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

// GetStoreByOwner returns the store owned by the given user.
func (s *GormStore) GetStoreByOwner(ownerID string) (domain.Store, bool, error) {
	var model StoreModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Store{}, false, nil
		}
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

// ListStores returns stores matching the filter, ordered by name.
func (s *GormStore) ListStores(filter StoreFilter) ([]domain.Store, error) {
	tx := s.db.Order("name ASC")
	if filter.Name != "" {
		tx = tx.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Address != "" {
		tx = tx.Where("address ILIKE ?", "%"+filter.Address+"%")
	}
	var models []StoreModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Store, 0, len(models))
	for _, m := range models {
		res = append(res, storeFromModel(m))
	}
	return res, nil
}

// DeleteStore removes a store row. Rating cascade is the caller's
// responsibility inside the same transaction.
func (s *GormStore) DeleteStore(id string) error {
	return s.db.Delete(&StoreModel{}, "id = ?", id).Error
}

// UpdateStoreAverage persists the recomputed average for a store.
func (s *GormStore) UpdateStoreAverage(id string, average float64) error {
	return s.db.Model(&StoreModel{}).Where("id = ?", id).Update("average_rating", average).Error
}

// CountStores returns the number of stores.
func (s *GormStore) CountStores() (int, error) {
	var count int64
	if err := s.db.Model(&StoreModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveRating creates or updates a rating.
func (s *GormStore) SaveRating(r domain.Rating) error {
	model := ratingToModel(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&model).Error
}

// GetRating returns the rating one user gave one store.
func (s *GormStore) GetRating(userID, storeID string) (domain.Rating, bool, error) {
	var model RatingModel
	err := s.db.Where("user_id = ? AND store_id = ?", userID, storeID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Rating{}, false, nil
		}
		return domain.Rating{}, false, err
	}
	return ratingFromModel(model), true, nil
}

// ListRatingsByStore returns a store's ratings, newest first.
func (s *GormStore) ListRatingsByStore(storeID string) ([]domain.Rating, error) {
	return s.listRatings("store_id = ?", storeID)
}

// ListRatingsByUser returns a user's ratings, newest first.
func (s *GormStore) ListRatingsByUser(userID string) ([]domain.Rating, error) {
	return s.listRatings("user_id = ?", userID)
}

func (s *GormStore) listRatings(cond string, arg any) ([]domain.Rating, error) {
	var models []RatingModel
	if err := s.db.Where(cond, arg).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Rating, 0, len(models))
	for _, m := range models {
		res = append(res, ratingFromModel(m))
	}
	return res, nil
}

// DeleteRatingsByStore removes all ratings for a store.
func (s *GormStore) DeleteRatingsByStore(storeID string) error {
	return s.db.Delete(&RatingModel{}, "store_id = ?", storeID).Error
}

// CountRatings returns the number of ratings.
func (s *GormStore) CountRatings() (int, error) {
	var count int64
	if err := s.db.Model(&RatingModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Address:      u.Address,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Address:      m.Address,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func storeToModel(s domain.Store) StoreModel {
	return StoreModel{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		Address:       s.Address,
		OwnerID:       s.OwnerID,
		AverageRating: s.AverageRating,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func storeFromModel(m StoreModel) domain.Store {
	return domain.Store{
		ID:            m.ID,
		Name:          m.Name,
		Email:         m.Email,
		Address:       m.Address,
		OwnerID:       m.OwnerID,
		AverageRating: m.AverageRating,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ratingToModel(r domain.Rating) RatingModel {
	return RatingModel{
		ID:        r.ID,
		UserID:    r.UserID,
		StoreID:   r.StoreID,
		Score:     r.Score,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func ratingFromModel(m RatingModel) domain.Rating {
	return domain.Rating{
		ID:        m.ID,
		UserID:    m.UserID,
		StoreID:   m.StoreID,
		Score:     m.Score,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
