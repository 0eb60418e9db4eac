package app

import (
	"fmt"
	"time"

	"github.com/abhi5157/Store-Rating-App/internal/store"
	"github.com/abhi5157/Store-Rating-App/internal/util"
	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

// SubmitRating records or updates the caller's score for a store and
// recomputes the store's average, all inside one transaction with the
// store row locked. Two submissions for the same store serialize; other
// stores are unaffected. On any failure the ledger and the average are
// left exactly as they were.
func (a *App) SubmitRating(userID, storeID string, score int) (domain.Rating, float64, error) {
	if score < 1 || score > 5 {
		return domain.Rating{}, 0, ErrInvalidScore
	}
	var (
		saved   domain.Rating
		average float64
	)
	err := a.store.Transact(func(tx store.Store) error {
		_, ok, err := tx.GetStoreForUpdate(storeID)
		if err != nil {
			return fmt.Errorf("fetch store: %w", err)
		}
		if !ok {
			return ErrStoreNotFound
		}
		now := time.Now().UTC()
		existing, found, err := tx.GetRating(userID, storeID)
		if err != nil {
			return fmt.Errorf("fetch rating: %w", err)
		}
		if found {
			// Resubmission updates in place; the original creation
			// timestamp is preserved.
			existing.Score = score
			existing.UpdatedAt = now
			saved = existing
		} else {
			saved = domain.Rating{
				ID:        util.NewID(),
				UserID:    userID,
				StoreID:   storeID,
				Score:     score,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		if err := tx.SaveRating(saved); err != nil {
			return fmt.Errorf("save rating: %w", err)
		}
		average, err = recomputeAverage(tx, storeID)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Rating{}, 0, err
	}
	return saved, average, nil
}

// recomputeAverage derives a store's average from its ledger entries and
// persists it. It is the only writer of the cached average and always
// runs in the same transaction as the ledger mutation that triggered it.
func recomputeAverage(tx store.Store, storeID string) (float64, error) {
	ratings, err := tx.ListRatingsByStore(storeID)
	if err != nil {
		return 0, fmt.Errorf("list ratings: %w", err)
	}
	average := meanScore(ratings)
	if err := tx.UpdateStoreAverage(storeID, average); err != nil {
		return 0, fmt.Errorf("update average: %w", err)
	}
	return average, nil
}

func meanScore(ratings []domain.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	return float64(sum) / float64(len(ratings))
}

// StoreRatings lists a store's ratings newest first with rater identity.
func (a *App) StoreRatings(storeID string) ([]domain.StoreRating, error) {
	_, ok, err := a.store.GetStore(storeID)
	if err != nil {
		return nil, fmt.Errorf("fetch store: %w", err)
	}
	if !ok {
		return nil, ErrStoreNotFound
	}
	ratings, err := a.store.ListRatingsByStore(storeID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	res := make([]domain.StoreRating, 0, len(ratings))
	for _, r := range ratings {
		entry := domain.StoreRating{Rating: r}
		if user, ok, err := a.store.GetUserByID(r.UserID); err != nil {
			return nil, fmt.Errorf("fetch rater: %w", err)
		} else if ok {
			entry.UserName = user.Name
			entry.UserEmail = user.Email
		}
		res = append(res, entry)
	}
	return res, nil
}

// UserRatings lists the caller's ratings newest first with store details.
func (a *App) UserRatings(userID string) ([]domain.UserRating, error) {
	ratings, err := a.store.ListRatingsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	res := make([]domain.UserRating, 0, len(ratings))
	for _, r := range ratings {
		entry := domain.UserRating{Rating: r}
		if st, ok, err := a.store.GetStore(r.StoreID); err != nil {
			return nil, fmt.Errorf("fetch store: %w", err)
		} else if ok {
			entry.StoreName = st.Name
			entry.StoreAddress = st.Address
			entry.StoreAverage = st.AverageRating
		}
		res = append(res, entry)
	}
	return res, nil
}
