package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhi5157/Store-Rating-App/internal/store"
	"github.com/abhi5157/Store-Rating-App/internal/util"
	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

// StoreUpdate carries the fields of a partial store update. Nil fields
// are left unchanged.
type StoreUpdate struct {
	Name    *string
	Email   *string
	Address *string
	OwnerID *string
}

// CreateStore registers a store and promotes its owner to store_owner.
func (a *App) CreateStore(name, email, address, ownerID string) (domain.Store, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	address = strings.TrimSpace(address)
	if err := validateName(name); err != nil {
		return domain.Store{}, err
	}
	if err := validateEmail(email); err != nil {
		return domain.Store{}, err
	}
	if err := validateStoreAddress(address); err != nil {
		return domain.Store{}, err
	}
	var created domain.Store
	err := a.store.Transact(func(tx store.Store) error {
		if err := a.promoteOwner(tx, ownerID); err != nil {
			return err
		}
		now := time.Now().UTC()
		created = domain.Store{
			ID:        util.NewID(),
			Name:      name,
			Email:     email,
			Address:   address,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.SaveStore(created); err != nil {
			return fmt.Errorf("save store: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Store{}, err
	}
	return created, nil
}

// UpdateStore applies a partial update; an owner change re-runs promotion.
func (a *App) UpdateStore(storeID string, update StoreUpdate) (domain.Store, error) {
	var updated domain.Store
	err := a.store.Transact(func(tx store.Store) error {
		st, ok, err := tx.GetStore(storeID)
		if err != nil {
			return fmt.Errorf("fetch store: %w", err)
		}
		if !ok {
			return ErrStoreNotFound
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if err := validateName(name); err != nil {
				return err
			}
			st.Name = name
		}
		if update.Email != nil {
			email := normalizeEmail(*update.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			st.Email = email
		}
		if update.Address != nil {
			address := strings.TrimSpace(*update.Address)
			if err := validateStoreAddress(address); err != nil {
				return err
			}
			st.Address = address
		}
		if update.OwnerID != nil && *update.OwnerID != st.OwnerID {
			if err := a.promoteOwner(tx, *update.OwnerID); err != nil {
				return err
			}
			st.OwnerID = *update.OwnerID
		}
		st.UpdatedAt = time.Now().UTC()
		if err := tx.SaveStore(st); err != nil {
			return fmt.Errorf("save store: %w", err)
		}
		updated = st
		return nil
	})
	if err != nil {
		return domain.Store{}, err
	}
	return updated, nil
}

// DeleteStore removes a store and cascades its ratings in one transaction.
func (a *App) DeleteStore(storeID string) error {
	return a.store.Transact(func(tx store.Store) error {
		_, ok, err := tx.GetStore(storeID)
		if err != nil {
			return fmt.Errorf("fetch store: %w", err)
		}
		if !ok {
			return ErrStoreNotFound
		}
		if err := tx.DeleteRatingsByStore(storeID); err != nil {
			return fmt.Errorf("delete ratings: %w", err)
		}
		if err := tx.DeleteStore(storeID); err != nil {
			return fmt.Errorf("delete store: %w", err)
		}
		return nil
	})
}

// ListStores returns stores matching the filter, each annotated with the
// owner's identity and the caller's own rating.
func (a *App) ListStores(callerID string, filter store.StoreFilter) ([]domain.StoreListing, error) {
	stores, err := a.store.ListStores(filter)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	res := make([]domain.StoreListing, 0, len(stores))
	for _, st := range stores {
		listing, err := a.annotateStore(st, callerID)
		if err != nil {
			return nil, err
		}
		res = append(res, listing)
	}
	return res, nil
}

// GetStoreDetails returns one store with its rating history and the
// caller's own rating.
func (a *App) GetStoreDetails(callerID, storeID string) (domain.StoreDetails, error) {
	st, ok, err := a.store.GetStore(storeID)
	if err != nil {
		return domain.StoreDetails{}, fmt.Errorf("fetch store: %w", err)
	}
	if !ok {
		return domain.StoreDetails{}, ErrStoreNotFound
	}
	listing, err := a.annotateStore(st, callerID)
	if err != nil {
		return domain.StoreDetails{}, err
	}
	ratings, err := a.StoreRatings(storeID)
	if err != nil {
		return domain.StoreDetails{}, err
	}
	return domain.StoreDetails{StoreListing: listing, Ratings: ratings}, nil
}

// OwnerDashboard returns the caller's store with its ratings and derived
// statistics. The caller must hold the store_owner role; the store is
// resolved by owner reference.
func (a *App) OwnerDashboard(ownerID string) (domain.OwnerDashboard, error) {
	st, ok, err := a.store.GetStoreByOwner(ownerID)
	if err != nil {
		return domain.OwnerDashboard{}, fmt.Errorf("fetch store: %w", err)
	}
	if !ok {
		return domain.OwnerDashboard{}, ErrStoreNotFound
	}
	ratings, err := a.StoreRatings(st.ID)
	if err != nil {
		return domain.OwnerDashboard{}, err
	}
	return domain.OwnerDashboard{
		Store:   st,
		Ratings: ratings,
		Stats: domain.OwnerStats{
			TotalRatings:  len(ratings),
			AverageRating: st.AverageRating,
		},
	}, nil
}

// promoteOwner ensures the designated owner exists and holds the
// store_owner role. Promotion is idempotent; store deletion never
// demotes.
func (a *App) promoteOwner(tx store.Store, ownerID string) error {
	owner, ok, err := tx.GetUserByID(ownerID)
	if err != nil {
		return fmt.Errorf("fetch owner: %w", err)
	}
	if !ok {
		return ErrOwnerNotFound
	}
	if owner.Role == domain.RoleStoreOwner {
		return nil
	}
	owner.Role = domain.RoleStoreOwner
	owner.UpdatedAt = time.Now().UTC()
	if err := tx.SaveUser(owner); err != nil {
		return fmt.Errorf("promote owner: %w", err)
	}
	return nil
}

func (a *App) annotateStore(st domain.Store, callerID string) (domain.StoreListing, error) {
	listing := domain.StoreListing{Store: st}
	owner, ok, err := a.store.GetUserByID(st.OwnerID)
	if err != nil {
		return domain.StoreListing{}, fmt.Errorf("fetch owner: %w", err)
	}
	if ok {
		listing.OwnerName = owner.Name
		listing.OwnerEmail = owner.Email
	}
	if callerID != "" {
		rating, ok, err := a.store.GetRating(callerID, st.ID)
		if err != nil {
			return domain.StoreListing{}, fmt.Errorf("fetch caller rating: %w", err)
		}
		if ok {
			score := rating.Score
			listing.UserRating = &score
		}
	}
	return listing, nil
}

func validateStoreAddress(address string) error {
	if address == "" {
		return validationf("address is required")
	}
	if len(address) > maxAddressLength {
		return validationf("address must be at most %d characters", maxAddressLength)
	}
	return nil
}
