package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	stores      map[string]domain.Store
	ratings     map[string]domain.Rating
	ratingOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		stores:  make(map[string]domain.Store),
		ratings: make(map[string]domain.Rating),
	}
}

// Transact serializes fn against the store. Memory operations cannot
// partially fail, so the all-or-nothing contract holds without rollback.
func (m *MemoryStore) Transact(fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

// SaveUser creates or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok && old.Email != u.Email {
		delete(m.email, old.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// ListUsers returns users matching the filter, ordered by name.
func (m *MemoryStore) ListUsers(filter UserFilter) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if filter.Name != "" && !containsFold(u.Name, filter.Name) {
			continue
		}
		if filter.Email != "" && !containsFold(u.Email, filter.Email) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// DeleteUser removes a user.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.email, u.Email)
		delete(m.users, id)
	}
	return nil
}

// CountUsers returns the number of users.
func (m *MemoryStore) CountUsers() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CountUsersByRole counts users holding the given role.
func (m *MemoryStore) CountUsersByRole(role domain.UserRole) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

// SaveStore creates or updates a store.
func (m *MemoryStore) SaveStore(s domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[s.ID] = s
	return nil
}

// GetStore retrieves a store by ID.
func (m *MemoryStore) GetStore(id string) (domain.Store, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[id]
	return s, ok, nil
}

// GetStoreForUpdate behaves like GetStore; Transact already serializes
// memory-store transactions globally.
func (m *MemoryStore) GetStoreForUpdate(id string) (domain.Store, bool, error) {
	return m.GetStore(id)
}

// GetStoreByOwner returns the store owned by the given user.
// When an owner has several, the oldest wins.
func (m *MemoryStore) GetStoreByOwner(ownerID string) (domain.Store, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found domain.Store
	ok := false
	for _, s := range m.stores {
		if s.OwnerID != ownerID {
			continue
		}
		if !ok || s.CreatedAt.Before(found.CreatedAt) {
			found = s
			ok = true
		}
	}
	return found, ok, nil
}

// ListStores returns stores matching the filter, ordered by name.
func (m *MemoryStore) ListStores(filter StoreFilter) ([]domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Store, 0, len(m.stores))
	for _, s := range m.stores {
		if filter.Name != "" && !containsFold(s.Name, filter.Name) {
			continue
		}
		if filter.Address != "" && !containsFold(s.Address, filter.Address) {
			continue
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// DeleteStore removes a store record.
func (m *MemoryStore) DeleteStore(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
	return nil
}

// UpdateStoreAverage persists the recomputed average for a store.
func (m *MemoryStore) UpdateStoreAverage(id string, average float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return nil
	}
	s.AverageRating = average
	m.stores[id] = s
	return nil
}

// CountStores returns the number of stores.
func (m *MemoryStore) CountStores() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores), nil
}

// SaveRating creates or updates a rating and tracks insertion order.
func (m *MemoryStore) SaveRating(r domain.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ratings[r.ID]; !exists {
		m.ratingOrder = append(m.ratingOrder, r.ID)
	}
	m.ratings[r.ID] = r
	return nil
}

// GetRating returns the rating one user gave one store.
func (m *MemoryStore) GetRating(userID, storeID string) (domain.Rating, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.ratings {
		if r.UserID == userID && r.StoreID == storeID {
			return r, true, nil
		}
	}
	return domain.Rating{}, false, nil
}

// ListRatingsByStore returns a store's ratings, newest first.
func (m *MemoryStore) ListRatingsByStore(storeID string) ([]domain.Rating, error) {
	return m.listRatings(func(r domain.Rating) bool { return r.StoreID == storeID }), nil
}

// ListRatingsByUser returns a user's ratings, newest first.
func (m *MemoryStore) ListRatingsByUser(userID string) ([]domain.Rating, error) {
	return m.listRatings(func(r domain.Rating) bool { return r.UserID == userID }), nil
}

func (m *MemoryStore) listRatings(match func(domain.Rating) bool) []domain.Rating {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Rating, 0, len(m.ratingOrder))
	// Reverse insertion order, then a stable sort on timestamp keeps
	// same-instant entries newest-first.
	for i := len(m.ratingOrder) - 1; i >= 0; i-- {
		if r, ok := m.ratings[m.ratingOrder[i]]; ok && match(r) {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

// DeleteRatingsByStore removes all ratings for a store.
func (m *MemoryStore) DeleteRatingsByStore(storeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := m.ratingOrder[:0]
	for _, id := range m.ratingOrder {
		r, ok := m.ratings[id]
		if ok && r.StoreID == storeID {
			delete(m.ratings, id)
			continue
		}
		filtered = append(filtered, id)
	}
	m.ratingOrder = filtered
	return nil
}

// CountRatings returns the number of ratings.
func (m *MemoryStore) CountRatings() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ratings), nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
