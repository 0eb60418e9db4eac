package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/abhi5157/Store-Rating-App/internal/app"
	"github.com/abhi5157/Store-Rating-App/internal/store"
	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	redis := miniredis.RunT(t)
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{
		App:                        a,
		RedisAddr:                  redis.Addr(),
		RegisterRateLimitPerMinute: 100,
		LoginRateLimitPerMinute:    100,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

// register issues an account through the API and returns its token and user.
func register(t *testing.T, ts *httptest.Server, name, email string) (string, domain.User) {
	t.Helper()
	var auth struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "Password#1",
		"address":  "1 Test Lane",
	}, &auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
	return auth.Token, auth.User
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/users", "/api/stores", "/api/ratings/user"} {
		resp := doJSON(t, http.MethodGet, ts.URL+path, "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, resp.StatusCode)
		}
		resp = doJSON(t, http.MethodGet, ts.URL+path, "garbage-token", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAdminSurfaceForbiddenForCustomers(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "Founding Admin", "admin@example.com")
	customerToken, _ := register(t, ts, "Casual Customer", "customer@example.com")

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/users", nil},
		{http.MethodPost, "/api/users", map[string]string{}},
		{http.MethodGet, "/api/users/dashboard", nil},
		{http.MethodPost, "/api/stores", map[string]string{}},
		{http.MethodDelete, "/api/stores/some-id", nil},
		{http.MethodGet, "/api/stores/owner/dashboard", nil},
	}
	for _, tc := range cases {
		resp := doJSON(t, tc.method, ts.URL+tc.path, customerToken, tc.body, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s %s as customer: status = %d, want 403", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestRatingFlow(t *testing.T) {
	ts := newTestServer(t)
	adminToken, _ := register(t, ts, "Founding Admin", "admin@example.com")
	customerToken, _ := register(t, ts, "Casual Customer", "customer@example.com")
	_, owner := register(t, ts, "Olive Owner", "owner@example.com")

	var st domain.Store
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores", adminToken, map[string]string{
		"name":    "Corner Groceries",
		"email":   "corner@example.com",
		"address": "34 Market Road",
		"ownerId": owner.ID,
	}, &st)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create store: status %d", resp.StatusCode)
	}

	var rated struct {
		Rating        domain.Rating `json:"rating"`
		AverageRating float64       `json:"averageRating"`
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/ratings/"+st.ID, customerToken, map[string]int{"rating": 4}, &rated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit rating: status %d", resp.StatusCode)
	}
	if rated.Rating.Score != 4 || rated.AverageRating != 4.0 {
		t.Fatalf("rating response = %+v", rated)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/ratings/"+st.ID, customerToken, map[string]int{"rating": 6}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out-of-range score: status %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/ratings/missing-store", customerToken, map[string]int{"rating": 3}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown store: status %d, want 404", resp.StatusCode)
	}

	var listings []domain.StoreListing
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stores", customerToken, nil, &listings)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list stores: status %d", resp.StatusCode)
	}
	if len(listings) != 1 || listings[0].AverageRating != 4.0 {
		t.Fatalf("listings = %+v", listings)
	}
	if listings[0].UserRating == nil || *listings[0].UserRating != 4 {
		t.Fatalf("caller rating missing in listing: %+v", listings[0])
	}

	var mine []domain.UserRating
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/ratings/user", customerToken, nil, &mine)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user ratings: status %d", resp.StatusCode)
	}
	if len(mine) != 1 || mine[0].StoreName != "Corner Groceries" {
		t.Fatalf("user ratings = %+v", mine)
	}

	var history []domain.StoreRating
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/ratings/store/"+st.ID, customerToken, nil, &history)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store ratings: status %d", resp.StatusCode)
	}
	if len(history) != 1 || history[0].UserName != "Casual Customer" {
		t.Fatalf("store ratings = %+v", history)
	}
}

func TestOwnerDashboardEndpoint(t *testing.T) {
	ts := newTestServer(t)
	adminToken, _ := register(t, ts, "Founding Admin", "admin@example.com")
	customerToken, _ := register(t, ts, "Casual Customer", "customer@example.com")
	ownerToken, owner := register(t, ts, "Olive Owner", "owner@example.com")

	var st domain.Store
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/stores", adminToken, map[string]string{
		"name":    "Corner Groceries",
		"email":   "corner@example.com",
		"address": "34 Market Road",
		"ownerId": owner.ID,
	}, &st)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create store: status %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/ratings/"+st.ID, customerToken, map[string]int{"rating": 5}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit rating: status %d", resp.StatusCode)
	}

	var dash domain.OwnerDashboard
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stores/owner/dashboard", ownerToken, nil, &dash)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner dashboard: status %d", resp.StatusCode)
	}
	if dash.Store.ID != st.ID || dash.Stats.TotalRatings != 1 || dash.Stats.AverageRating != 5.0 {
		t.Fatalf("dashboard = %+v", dash)
	}

	// Customers never see the owner dashboard.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stores/owner/dashboard", customerToken, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer dashboard: status %d, want 403", resp.StatusCode)
	}
}

func TestUserAdministration(t *testing.T) {
	ts := newTestServer(t)
	adminToken, admin := register(t, ts, "Founding Admin", "admin@example.com")

	var created domain.User
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/users", adminToken, map[string]string{
		"name":     "Second Person",
		"email":    "second@example.com",
		"password": "Password#1",
		"address":  "2 Test Lane",
		"role":     "customer",
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: status %d", resp.StatusCode)
	}

	var promoted domain.User
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/users/"+created.ID+"/role", adminToken,
		map[string]string{"role": "admin"}, &promoted)
	if resp.StatusCode != http.StatusOK || promoted.Role != domain.RoleAdmin {
		t.Fatalf("promote: status %d role %s", resp.StatusCode, promoted.Role)
	}

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/users/"+created.ID+"/role", adminToken,
		map[string]string{"role": "wizard"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid role: status %d, want 400", resp.StatusCode)
	}

	var stats domain.DashboardStats
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/users/dashboard", adminToken, nil, &stats)
	if resp.StatusCode != http.StatusOK || stats.TotalUsers != 2 {
		t.Fatalf("dashboard: status %d stats %+v", resp.StatusCode, stats)
	}

	// With two admins the founder is deletable; the survivor is not.
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/users/"+admin.ID, adminToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete founder: status %d", resp.StatusCode)
	}
	secondToken, _ := loginAs(t, ts, "second@example.com")
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/users/"+created.ID, secondToken, nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete last admin: status %d, want 400", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "Founding Admin", "admin@example.com")

	token, user := loginAs(t, ts, "admin@example.com")
	if token == "" || user.Email != "admin@example.com" {
		t.Fatalf("login response: token=%q user=%+v", token, user)
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad credentials: status %d, want 401", resp.StatusCode)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	ts := newTestServerWithLimits(t, 3, 100)
	for i := 0; i < 3; i++ {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{
			"name":     "Limited Person",
			"email":    fmt.Sprintf("limited%d@example.com", i),
			"password": "Password#1",
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register %d: status %d", i, resp.StatusCode)
		}
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{
		"name":     "Limited Person",
		"email":    "limited-final@example.com",
		"password": "Password#1",
	}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("over quota: status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}
}

func newTestServerWithLimits(t *testing.T, registerLimit, loginLimit int) *httptest.Server {
	t.Helper()
	redis := miniredis.RunT(t)
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{
		App:                        a,
		RedisAddr:                  redis.Addr(),
		RegisterRateLimitPerMinute: registerLimit,
		LoginRateLimitPerMinute:    loginLimit,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func loginAs(t *testing.T, ts *httptest.Server, email string) (string, domain.User) {
	t.Helper()
	var auth struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "Password#1",
	}, &auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	return auth.Token, auth.User
}
