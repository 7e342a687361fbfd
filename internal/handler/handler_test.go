package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-orders/internal/domain/order"
	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/money"
)

type stubCreator struct {
	res *order.CreateResult
	err error
	got order.CreateRequest
}

func (s *stubCreator) CreateOrder(_ context.Context, req order.CreateRequest) (*order.CreateResult, error) {
	s.got = req
	return s.res, s.err
}

type stubLister struct {
	products []product.Product
	err      error
}

func (s *stubLister) List(context.Context) ([]product.Product, error) {
	return s.products, s.err
}

func (s *stubLister) Resolve(_ context.Context, skus []string) ([]product.Product, error) {
	idx := product.Index(s.products)
	var out []product.Product
	for _, sku := range skus {
		if p, ok := idx[sku]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memOrders struct {
	saved []*order.Order
}

func (m *memOrders) CountCompletedOrders(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (m *memOrders) SaveAtomically(_ context.Context, o *order.Order, _ []order.Item) error {
	m.saved = append(m.saved, o)
	return nil
}

type errorBody struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func serve(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_Created(t *testing.T) {
	creator := &stubCreator{res: &order.CreateResult{
		OrderID: "order-1",
		Status:  order.StatusPending,
		Breakdown: order.Breakdown{
			Subtotal:      money.MustParse("20.00"),
			DiscountTotal: money.MustParse("20.00"),
			GrandTotal:    money.MustParse("0.00"),
		},
		Promo: &promo.Outcome{Code: "D20TTS20240501", Discount: money.MustParse("20.00")},
	}}
	h := NewHandler(&stubLister{}, creator)

	w := serve(t, h, http.MethodPost, "/api/orders", `{
		"paymentMethod": "card",
		"paymentOrderId": "pay-1",
		"promoCode": "D20TTS20240501",
		"items": [{"sku": "A", "quantity": 1}, {"sku": "B", "quantity": 2, "note": "ignored"}],
		"extra": {"nested": [1, 2]}
	}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	assert.Equal(t, order.CreateRequest{
		PaymentMethod:  "card",
		PaymentOrderID: "pay-1",
		PromoCode:      "D20TTS20240501",
		Items:          []order.LineRequest{{SKU: "A", Quantity: 1}, {SKU: "B", Quantity: 2}},
	}, creator.got)

	var body struct {
		OrderID       string `json:"orderId"`
		Status        string `json:"status"`
		Subtotal      string `json:"subtotal"`
		DiscountTotal string `json:"discountTotal"`
		GrandTotal    string `json:"grandTotal"`
		Promo         *struct {
			Code      string `json:"code"`
			Applied   bool   `json:"applied"`
			Rejection string `json:"rejection"`
		} `json:"promo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "order-1", body.OrderID)
	assert.Equal(t, "PENDING", body.Status)
	assert.Equal(t, "20.00", body.Subtotal)
	assert.Equal(t, "20.00", body.DiscountTotal)
	assert.Equal(t, "0.00", body.GrandTotal)
	require.NotNil(t, body.Promo)
	assert.True(t, body.Promo.Applied)
	assert.Empty(t, body.Promo.Rejection)
}

func TestCreateOrder_RejectedPromoReported(t *testing.T) {
	creator := &stubCreator{res: &order.CreateResult{
		OrderID: "order-2",
		Status:  order.StatusPending,
		Breakdown: order.Breakdown{
			Subtotal:      money.MustParse("20.00"),
			DiscountTotal: money.Zero,
			GrandTotal:    money.MustParse("20.00"),
		},
		Promo: &promo.Outcome{Code: "OLD", Discount: money.Zero, Rejection: promo.RejectExpired},
	}}
	h := NewHandler(&stubLister{}, creator)

	w := serve(t, h, http.MethodPost, "/api/orders", `{"promoCode":"OLD","items":[{"sku":"A","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"promo":{"code":"OLD","applied":false,"rejection":"expired"}`)
}

func TestCreateOrder_NullPromoCode(t *testing.T) {
	creator := &stubCreator{res: &order.CreateResult{OrderID: "order-3", Status: order.StatusPending}}
	h := NewHandler(&stubLister{}, creator)

	w := serve(t, h, http.MethodPost, "/api/orders", `{"promoCode":null,"items":[{"sku":"A","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, creator.got.PromoCode)
	assert.NotContains(t, w.Body.String(), `"promo"`)
}

func TestCreateOrder_BadRequestBody(t *testing.T) {
	for name, body := range map[string]string{
		"empty":           ``,
		"not an object":   `[1,2]`,
		"bad quantity":    `{"items":[{"sku":"A","quantity":"two"}]}`,
		"truncated":       `{"items":[{"sku":"A"`,
		"items not array": `{"items":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			creator := &stubCreator{}
			h := NewHandler(&stubLister{}, creator)

			w := serve(t, h, http.MethodPost, "/api/orders", body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var eb errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eb))
			assert.Equal(t, "BadRequest", eb.Error)
			assert.Equal(t, http.StatusBadRequest, eb.Code)
		})
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"empty items", order.ErrEmptyItems, http.StatusBadRequest, "EmptyItems"},
		{"invalid quantity", &order.InvalidQuantityError{SKU: "A", Quantity: 0}, http.StatusBadRequest, "InvalidQuantity"},
		{"product not found", &order.ProductNotFoundError{SKUs: []string{"X"}}, http.StatusUnprocessableEntity, "ProductNotFound"},
		{"promo lookup", &promo.LookupError{Code: "P", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "PromoLookupFailure"},
		{"persistence", &order.PersistenceError{OrderID: "o", Err: errors.New(`ERROR: relation "orders" does not exist (SQLSTATE 42P01)`)}, http.StatusInternalServerError, "PersistenceError"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubLister{}, &stubCreator{err: tt.err})

			w := serve(t, h, http.MethodPost, "/api/orders", `{"items":[{"sku":"A","quantity":1}]}`)
			require.Equal(t, tt.status, w.Code)

			var eb errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eb))
			assert.Equal(t, tt.kind, eb.Error)
			if tt.status >= http.StatusInternalServerError {
				assert.Equal(t, http.StatusText(tt.status), eb.Message)
				return
			}
			assert.Equal(t, tt.err.Error(), eb.Message)
		})
	}
}

func TestCreateOrder_ServerErrorHidesDetail(t *testing.T) {
	cause := &promo.LookupError{Code: "P", Err: errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")}
	h := NewHandler(&stubLister{}, &stubCreator{err: cause})

	w := serve(t, h, http.MethodPost, "/api/orders", `{"items":[{"sku":"A","quantity":1}]}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.NotContains(t, w.Body.String(), "lookup failed")
}

func TestCreateOrder_MethodNotAllowed(t *testing.T) {
	h := NewHandler(&stubLister{}, &stubCreator{})

	w := serve(t, h, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListProducts(t *testing.T) {
	h := NewHandler(&stubLister{products: []product.Product{
		{SKU: "A", Name: "Alpha", BasePrice: money.MustParse("12.00"), Price: money.MustParse("10.00")},
		{SKU: "B", Name: "Beta \"quoted\"", BasePrice: money.MustParse("5"), Price: money.MustParse("5")},
	}}, &stubCreator{})

	w := serve(t, h, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body []struct {
		SKU       string `json:"sku"`
		Name      string `json:"name"`
		BasePrice string `json:"basePrice"`
		Price     string `json:"price"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "A", body[0].SKU)
	assert.Equal(t, "12.00", body[0].BasePrice)
	assert.Equal(t, "10.00", body[0].Price)
	assert.Equal(t, `Beta "quoted"`, body[1].Name)
	assert.Equal(t, "5.00", body[1].Price)
}

func TestListProducts_Empty(t *testing.T) {
	h := NewHandler(&stubLister{}, &stubCreator{})

	w := serve(t, h, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListProducts_Error(t *testing.T) {
	h := NewHandler(&stubLister{err: errors.New("db down")}, &stubCreator{})

	w := serve(t, h, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// End to end through the real service with the static promo table.
func TestCreateOrder_WithService(t *testing.T) {
	catalog := &stubLister{products: []product.Product{
		{SKU: "A", Name: "Alpha", BasePrice: money.MustParse("10.00"), Price: money.MustParse("10.00")},
		{SKU: "B", Name: "Beta", BasePrice: money.MustParse("5.00"), Price: money.MustParse("5.00")},
	}}
	registry, err := promo.NewStaticRegistry(promo.DefaultCodes()...)
	require.NoError(t, err)
	repo := &memOrders{}
	validator := promo.NewRegistryValidator(registry, repo)
	validator.SetClock(func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) })
	svc := order.NewService(catalog, validator, repo)
	h := NewHandler(catalog, svc)

	w := serve(t, h, http.MethodPost, "/api/orders",
		`{"promoCode":"D20TTS20240501","items":[{"sku":"A","quantity":1},{"sku":"B","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"grandTotal":"0.00"`)
	require.Len(t, repo.saved, 1)

	w = serve(t, h, http.MethodPost, "/api/orders",
		`{"items":[{"sku":"A","quantity":1},{"sku":"X","quantity":1}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "X")
	assert.Len(t, repo.saved, 1)
}
