package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/semanticallynull/dockshare-backend/api"
	"github.com/semanticallynull/dockshare-backend/customer"
	"github.com/semanticallynull/dockshare-backend/fleet"
	"github.com/semanticallynull/dockshare-backend/internal/auth0"
	"github.com/semanticallynull/dockshare-backend/internal/o11y"
	"github.com/semanticallynull/dockshare-backend/loyalty"
)

// TestServer runs the real router over the in-memory store, with header
// authentication instead of JWT validation and billing disabled.
type TestServer struct {
	Router    *gin.Engine
	Manager   *fleet.Manager
	Store     *fleet.MemStore
	Customers *fakeCustomers
	Auth0     *auth0.FakeClient
}

const (
	metricsUser = "metrics"
	metricsPass = "secret"
)

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.DiscardHandler)
	store := fleet.NewMemStore()
	customers := newFakeCustomers()
	rewards := loyalty.NewService(customers, logger)

	m := fleet.New(store, rewards, nil, nil, fleet.Config{
		HoldFor:           15 * time.Minute,
		RewardThreshold:   0.2,
		RewardAmountCents: 100,
		MinCapacity:       2,
		MaxCapacity:       64,
	}, logger)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("failed to load fleet: %v", err)
	}

	fake := auth0.NewFakeClient()
	obs := &o11y.Observability{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	a, err := api.New(m, store, customers, fake, nil, nil, obs, api.Config{
		MetricsUsername: metricsUser,
		MetricsPassword: metricsPass,
	})
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}

	return &TestServer{
		Router:    a.Router(),
		Manager:   m,
		Store:     store,
		Customers: customers,
		Auth0:     fake,
	}
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-ID": id}
}

func (ts *TestServer) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func (ts *TestServer) POST(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

// CreateStation provisions a station through the operator endpoint and
// returns its id.
func (ts *TestServer) CreateStation(t *testing.T, name string, capacity int) string {
	t.Helper()

	w := ts.POST("/stations", map[string]any{"name": name, "capacity": capacity}, asUser("op|admin"))
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create station %s: %d %s", name, w.Code, w.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID
}

func (ts *TestServer) RegisterBike(t *testing.T, label, stationID string) {
	t.Helper()

	w := ts.POST("/bikes", map[string]any{"label": label, "stationId": stationID}, asUser("op|admin"))
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to register bike %s: %d %s", label, w.Code, w.Body.String())
	}
}

// fakeCustomers is an in-memory stand-in for the customer repository, shared
// by the API and the loyalty service.
type fakeCustomers struct {
	mu    sync.Mutex
	users map[string]*customer.Customer
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{users: make(map[string]*customer.Customer)}
}

func (f *fakeCustomers) GetCustomerByAuth0ID(auth0ID string) (*customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust, ok := f.users[auth0ID]
	if !ok {
		return nil, customer.ErrNotFound
	}
	copied := *cust
	return &copied, nil
}

func (f *fakeCustomers) CreateCustomer(auth0ID string) (*customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust := &customer.Customer{
		ID:        uuid.New(),
		Auth0ID:   auth0ID,
		CreatedAt: time.Now(),
	}
	f.users[auth0ID] = cust
	copied := *cust
	return &copied, nil
}

func (f *fakeCustomers) AddStripeIDToCustomer(auth0ID, stripeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust, ok := f.users[auth0ID]
	if !ok {
		return customer.ErrNotFound
	}
	cust.StripeID.String, cust.StripeID.Valid = stripeID, true
	return nil
}

func (f *fakeCustomers) UpdateProfile(ctx context.Context, auth0ID, email, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust, ok := f.users[auth0ID]
	if !ok {
		return customer.ErrNotFound
	}
	cust.Email.String, cust.Email.Valid = email, email != ""
	cust.Name.String, cust.Name.Valid = name, name != ""
	return nil
}

func (f *fakeCustomers) CreditFlex(ctx context.Context, auth0ID string, amountCents int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust, ok := f.users[auth0ID]
	if !ok {
		return 0, customer.ErrNotFound
	}
	cust.FlexBalance += amountCents
	cust.LifetimeFlexEarned += amountCents
	return cust.FlexBalance, nil
}

func (f *fakeCustomers) SpendFlex(ctx context.Context, auth0ID string, upTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cust, ok := f.users[auth0ID]
	if !ok {
		return 0, customer.ErrNotFound
	}
	spend := upTo
	if spend > cust.FlexBalance {
		spend = cust.FlexBalance
	}
	if spend < 0 {
		spend = 0
	}
	cust.FlexBalance -= spend
	return spend, nil
}
