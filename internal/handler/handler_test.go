package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/lock"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *mockOrderRepo) List(_ context.Context, _ order.Filter) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o.Clone())
	}
	return out, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return order.ErrVersionConflict
	}
	o.Version = expectedVersion + 1
	m.orders[o.ID] = o.Clone()
	return nil
}

type mockCatalogRepo struct {
	services []catalog.Service
	parts    []catalog.Part
}

func (m *mockCatalogRepo) ListServices(context.Context) ([]catalog.Service, error) {
	return m.services, nil
}

func (m *mockCatalogRepo) GetService(_ context.Context, id string) (*catalog.Service, error) {
	for i := range m.services {
		if m.services[i].ID == id {
			return &m.services[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalogRepo) UpsertService(context.Context, catalog.Service) error { return nil }

func (m *mockCatalogRepo) ListParts(context.Context) ([]catalog.Part, error) {
	return m.parts, nil
}

func (m *mockCatalogRepo) GetPart(_ context.Context, id string) (*catalog.Part, error) {
	for i := range m.parts {
		if m.parts[i].ID == id {
			return &m.parts[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalogRepo) UpsertPart(context.Context, catalog.Part) error { return nil }

type mockCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*customer.Customer
	listErr   error
}

func (m *mockCustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) List(context.Context) ([]customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]customer.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *c)
	}
	return out, nil
}

// --- Helpers ---

type testServer struct {
	t         *testing.T
	server    *httptest.Server
	customers *mockCustomerRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	customers := &mockCustomerRepo{customers: map[string]*customer.Customer{
		"cust-1": {ID: "cust-1", Name: "Hilda Farm"},
	}}
	catalogRepo := &mockCatalogRepo{
		services: []catalog.Service{
			{ID: "svc-engine", Name: "Engine overhaul", Price: decimal.RequireFromString("1000"), Active: true},
		},
		parts: []catalog.Part{
			{ID: "part-filter", PartNumber: "OF-100", Name: "Oil filter", Price: decimal.RequireFromString("12.5"), Stock: 2, Active: true},
		},
	}
	orders := order.NewService(
		&mockOrderRepo{orders: make(map[string]*order.Order)},
		catalogRepo,
		customers,
		lock.NewLocal(),
	)

	h := NewHandler(orders, customer.NewService(customers), catalogRepo)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &testServer{t: t, server: srv, customers: customers}
}

func (s *testServer) do(method, path, body string) (int, map[string]any) {
	s.t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, s.server.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	assert.Equal(s.t, "application/json", resp.Header.Get("Content-Type"))

	var out any
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	obj, _ := out.(map[string]any)
	return resp.StatusCode, obj
}

func (s *testServer) doList(path string) []any {
	s.t.Helper()

	resp, err := s.server.Client().Get(s.server.URL + path)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	require.Equal(s.t, http.StatusOK, resp.StatusCode)

	var out []any
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) newOrder() string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/orders", `{"customerId":"cust-1"}`)
	require.Equal(s.t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func totals(body map[string]any) map[string]any {
	return body["totals"].(map[string]any)
}

// --- Tests ---

func TestCustomers(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodPost, "/customers",
		`{"name":"Walter Green","phone":"555-0100","email":"walter@green.example"}`)
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)
	assert.Equal(t, "Walter Green", body["name"])

	status, body = s.do(http.MethodGet, "/customers/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "walter@green.example", body["email"])

	status, _ = s.do(http.MethodGet, "/customers/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	assert.Len(t, s.doList("/customers"), 2)
}

func TestCreateCustomer_Validation(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodPost, "/customers", `{"name":"","email":"not-an-email"}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])

	status, body = s.do(http.MethodPost, "/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
}

func TestListCustomers_InternalError(t *testing.T) {
	s := newTestServer(t)
	s.customers.mu.Lock()
	s.customers.listErr = errors.New("db down")
	s.customers.mu.Unlock()

	status, body := s.do(http.MethodGet, "/customers", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t)

	services := s.doList("/services")
	require.Len(t, services, 1)
	assert.Equal(t, 1000.0, services[0].(map[string]any)["price"])

	parts := s.doList("/parts")
	require.Len(t, parts, 1)
	assert.Equal(t, "OF-100", parts[0].(map[string]any)["partNumber"])
}

func TestOrderEditing(t *testing.T) {
	s := newTestServer(t)
	id := s.newOrder()

	status, body := s.do(http.MethodPost, "/orders/"+id+"/items",
		`{"itemType":"service","referenceId":"svc-engine","quantity":2,"discount":{"kind":"percent","value":10}}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 1800.0, totals(body)["final"])

	status, body = s.do(http.MethodPost, "/orders/"+id+"/items",
		`{"itemType":"part","name":"Custom bracket","unitPrice":"500","quantity":1}`)
	require.Equal(t, http.StatusOK, status, body)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	bracketID := items[1].(map[string]any)["id"].(string)

	status, body = s.do(http.MethodPut, "/orders/"+id+"/discount", `{"amount":100}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 2500.0, totals(body)["itemsSubtotal"])
	assert.Equal(t, 200.0, totals(body)["itemsDiscount"])
	assert.Equal(t, 100.0, totals(body)["orderDiscount"])
	assert.Equal(t, 2200.0, totals(body)["final"])

	status, body = s.do(http.MethodPut, "/orders/"+id+"/items/"+bracketID+"/quantity", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 3200.0, totals(body)["final"])

	status, body = s.do(http.MethodPut, "/orders/"+id+"/items/"+bracketID+"/discount", `{"kind":"flat","value":"50"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 3150.0, totals(body)["final"])

	status, body = s.do(http.MethodDelete, "/orders/"+id+"/items/"+bracketID, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 1700.0, totals(body)["final"])

	status, body = s.do(http.MethodGet, "/orders/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "draft", body["status"])
	assert.Len(t, body["items"], 1)
}

func TestSetOrderDiscount_ExceedsPayable(t *testing.T) {
	s := newTestServer(t)
	id := s.newOrder()

	status, _ := s.do(http.MethodPost, "/orders/"+id+"/items",
		`{"itemType":"service","referenceId":"svc-engine","quantity":1,"discount":{"kind":"percent","value":10}}`)
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(http.MethodPut, "/orders/"+id+"/discount", `{"amount":900.01}`)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_discount", body["error"])
	assert.Equal(t, 900.0, body["maxDiscount"])
	assert.Equal(t, 900.01, body["requested"])
	assert.Contains(t, body["message"], "maximum permissible discount of 900.00")

	status, body = s.do(http.MethodGet, "/orders/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 900.0, totals(body)["final"])
	assert.Equal(t, 0.0, totals(body)["orderDiscount"])
}

func TestSetOrderDiscount_AdvertisedMaximumIsAccepted(t *testing.T) {
	s := newTestServer(t)
	id := s.newOrder()

	// Payable is 5.025: the advertised maximum must round down to 5.02.
	status, body := s.do(http.MethodPost, "/orders/"+id+"/items",
		`{"itemType":"part","name":"Grease nipple","unitPrice":"10.05","quantity":1,"discount":{"kind":"percent","value":50}}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 5.02, totals(body)["maxOrderDiscount"])

	status, body = s.do(http.MethodPut, "/orders/"+id+"/discount", `{"amount":6}`)
	require.Equal(t, http.StatusBadRequest, status)
	maxDiscount, ok := body["maxDiscount"].(float64)
	require.True(t, ok, body)
	assert.Equal(t, 5.02, maxDiscount)
	assert.Contains(t, body["message"], "maximum permissible discount of 5.02")

	status, body = s.do(http.MethodPut, "/orders/"+id+"/discount",
		`{"amount":`+strconv.FormatFloat(maxDiscount, 'f', -1, 64)+`}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 5.02, totals(body)["orderDiscount"])
}

func TestAddItem_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.newOrder()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing type", `{"name":"x","quantity":1}`, http.StatusUnprocessableEntity},
		{"custom without name", `{"itemType":"part","quantity":1}`, http.StatusUnprocessableEntity},
		{"zero quantity", `{"itemType":"part","name":"x","quantity":0}`, http.StatusUnprocessableEntity},
		{"percent too high", `{"itemType":"service","referenceId":"svc-engine","discount":{"kind":"percent","value":150}}`, http.StatusUnprocessableEntity},
		{"unknown discount kind", `{"itemType":"service","referenceId":"svc-engine","discount":{"kind":"bogo"}}`, http.StatusUnprocessableEntity},
		{"unknown service", `{"itemType":"service","referenceId":"svc-missing"}`, http.StatusUnprocessableEntity},
		{"over stock", `{"itemType":"part","referenceId":"part-filter","quantity":3}`, http.StatusUnprocessableEntity},
		{"bad price", `{"itemType":"part","name":"x","unitPrice":"abc"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(http.MethodPost, "/orders/"+id+"/items", tt.body)
			assert.Equal(t, tt.status, status, body)
		})
	}

	status, _ := s.do(http.MethodPost, "/orders/missing/items", `{"itemType":"part","name":"x"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.newOrder()

	status, _ := s.do(http.MethodPost, "/orders/"+id+"/start", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(http.MethodPost, "/orders/"+id+"/items", `{"itemType":"part","referenceId":"part-filter","quantity":2}`)
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(http.MethodPost, "/orders/"+id+"/start", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ongoing", body["status"])
	assert.NotEmpty(t, body["startedAt"])

	status, body = s.do(http.MethodPut, "/orders/"+id+"/discount", `{"amount":1}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["error"])

	status, body = s.do(http.MethodPost, "/orders/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, 25.0, totals(body)["final"])

	status, _ = s.do(http.MethodPost, "/orders/"+id+"/cancel", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestOrders_CreateAndList(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodPost, "/orders", `{"customerId":"nobody"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", body["error"])

	status, _ = s.do(http.MethodPost, "/orders", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	s.newOrder()
	assert.Len(t, s.doList("/orders"), 1)
	assert.Len(t, s.doList("/orders?status=draft&limit=5"), 1)

	status, _ = s.do(http.MethodGet, "/orders?status=archived", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = s.do(http.MethodGet, "/orders?limit=many", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
