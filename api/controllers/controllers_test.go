package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acaifrutal/storefront-backend/api/middleware"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/checkout"
	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/types"
)

const testScope = "acai-test"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *types.APIError `json:"error"`
}

type stack struct {
	store   *docstore.MemoryStore
	catalog catalog.Service
	carts   cart.Service
	orders  orders.Service
	logg    *logger.Logger
}

func newStack(t *testing.T) *stack {
	t.Helper()
	store := docstore.NewMemoryStore()
	logg := logger.Nop()
	catalogSvc, err := catalog.NewService(catalog.NewRepository(store, testScope), logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(store, testScope), catalogSvc, logg)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.NewRepository(store, testScope), nil, logg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = catalogSvc.UpsertProduct(ctx, "acai-500", catalog.ProductInput{
		Name:               "Açaí 500ml",
		Price:              decimal.RequireFromString("22.00"),
		Type:               catalog.ProductTypeAcai,
		DefaultIngredients: []string{"banana", "granola"},
	})
	require.NoError(t, err)
	_, err = catalogSvc.UpsertProduct(ctx, "agua", catalog.ProductInput{
		Name:  "Água",
		Price: decimal.RequireFromString("3.50"),
		Type:  "drink",
	})
	require.NoError(t, err)
	_, err = catalogSvc.UpsertProduct(ctx, "suco", catalog.ProductInput{
		Name:       "Suco",
		Price:      decimal.RequireFromString("8.00"),
		Type:       "drink",
		OutOfStock: true,
	})
	require.NoError(t, err)
	_, err = catalogSvc.UpsertTopping(ctx, "nutella", catalog.ToppingInput{
		Name:  "Nutella",
		Price: decimal.RequireFromString("4.00"),
	})
	require.NoError(t, err)

	return &stack{store: store, catalog: catalogSvc, carts: cartSvc, orders: orderSvc, logg: logg}
}

// serve routes one request through a chi router so URL params resolve. A nil
// identity leaves the request anonymous.
func serve(t *testing.T, method, pattern, target string, body any, who *identity.Identity, h http.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *who))
	}

	router := chi.NewRouter()
	router.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func customer(id string) *identity.Identity {
	return &identity.Identity{ID: id, Email: id + "@example.com"}
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type staticCache struct {
	snap catalog.Snapshot
	ok   bool
}

func (c staticCache) Catalog() (catalog.Snapshot, bool) { return c.snap, c.ok }

func productIDs(products []catalog.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestCatalogProductsFiltersStockAndType(t *testing.T) {
	s := newStack(t)
	h := CatalogProducts(s.catalog, nil, s.logg)

	rec, env := serve(t, http.MethodGet, "/catalog/products", "/catalog/products", nil, nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"acai-500", "agua"}, productIDs(decodeData[[]catalog.Product](t, env)))

	_, env = serve(t, http.MethodGet, "/catalog/products", "/catalog/products?includeOutOfStock=true&type=drink", nil, nil, h)
	assert.ElementsMatch(t, []string{"agua", "suco"}, productIDs(decodeData[[]catalog.Product](t, env)))

	rec, env = serve(t, http.MethodGet, "/catalog/products", "/catalog/products?includeOutOfStock=maybe", nil, nil, h)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
}

func TestCatalogProductsPrefersCachedSnapshot(t *testing.T) {
	s := newStack(t)
	cache := staticCache{ok: true, snap: catalog.Snapshot{Products: []catalog.Product{
		{ID: "cached", Name: "Cached", Type: "drink", Price: decimal.NewFromInt(1)},
	}}}

	_, env := serve(t, http.MethodGet, "/catalog/products", "/catalog/products", nil, nil, CatalogProducts(s.catalog, cache, s.logg))
	assert.Equal(t, []string{"cached"}, productIDs(decodeData[[]catalog.Product](t, env)))

	cold := staticCache{}
	_, env = serve(t, http.MethodGet, "/catalog/products", "/catalog/products", nil, nil, CatalogProducts(s.catalog, cold, s.logg))
	assert.Len(t, decodeData[[]catalog.Product](t, env), 2)
}

func TestCatalogProductNotFound(t *testing.T) {
	s := newStack(t)
	rec, env := serve(t, http.MethodGet, "/catalog/products/{productId}", "/catalog/products/missing", nil, nil, CatalogProduct(s.catalog, s.logg))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), env.Error.Code)
}

func TestCatalogToppingsHideOutOfStockByDefault(t *testing.T) {
	s := newStack(t)
	_, err := s.catalog.UpsertTopping(context.Background(), "pacoca", catalog.ToppingInput{
		Name:       "Paçoca",
		Price:      decimal.RequireFromString("2.00"),
		OutOfStock: true,
	})
	require.NoError(t, err)
	h := CatalogToppings(s.catalog, nil, s.logg)

	_, env := serve(t, http.MethodGet, "/catalog/toppings", "/catalog/toppings", nil, nil, h)
	assert.Len(t, decodeData[[]catalog.Topping](t, env), 1)

	_, env = serve(t, http.MethodGet, "/catalog/toppings", "/catalog/toppings?includeOutOfStock=1", nil, nil, h)
	assert.Len(t, decodeData[[]catalog.Topping](t, env), 2)
}

func TestCatalogRecommendationsSkipCartProducts(t *testing.T) {
	s := newStack(t)
	who := customer("u1")
	h := CatalogRecommendations(s.catalog, s.carts, nil, s.logg)

	_, env := serve(t, http.MethodGet, "/catalog/recommendations", "/catalog/recommendations", nil, who, h)
	assert.Equal(t, []string{"agua"}, productIDs(decodeData[[]catalog.Product](t, env)))

	_, err := s.carts.Add(context.Background(), who.ID, cart.AddInput{ProductID: "agua"})
	require.NoError(t, err)
	_, env = serve(t, http.MethodGet, "/catalog/recommendations", "/catalog/recommendations", nil, who, h)
	assert.Empty(t, decodeData[[]catalog.Product](t, env))

	rec, _ := serve(t, http.MethodGet, "/catalog/recommendations", "/catalog/recommendations", nil, nil, h)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartLifecycle(t *testing.T) {
	s := newStack(t)
	who := customer("u1")

	rec, env := serve(t, http.MethodPost, "/cart/items", "/cart/items", map[string]any{
		"productId":                   "acai-500",
		"quantity":                    2,
		"selectedIncludedIngredients": []string{"granola", "banana"},
		"toppingIds":                  []string{"nutella"},
	}, who, CartAddItem(s.carts, s.logg))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decodeData[cartView](t, env)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Count)
	assert.True(t, decimal.RequireFromString("52.00").Equal(view.Subtotal), view.Subtotal.String())
	key := view.Items[0].VariantKey
	assert.Equal(t, `acai-500-["banana","granola"]-["nutella"]`, key)

	updatePattern := "/cart/items/{variantKey}"
	target := "/cart/items/" + url.PathEscape(key)
	rec, env = serve(t, http.MethodPatch, updatePattern, target, map[string]int{"quantity": 3}, who, CartUpdateItem(s.carts, s.logg))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeData[cartView](t, env).Count)

	rec, env = serve(t, http.MethodDelete, updatePattern, target, nil, who, CartRemoveItem(s.carts, s.logg))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decodeData[cartView](t, env).Items)

	rec, env = serve(t, http.MethodDelete, updatePattern, target, nil, who, CartRemoveItem(s.carts, s.logg))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), env.Error.Code)
}

func TestCartAddRejectsInvalidItems(t *testing.T) {
	s := newStack(t)
	who := customer("u1")
	h := CartAddItem(s.carts, s.logg)

	cases := map[string]any{
		"out of stock":        map[string]any{"productId": "suco"},
		"side with toppings":  map[string]any{"productId": "agua", "toppingIds": []string{"nutella"}},
		"unknown ingredient":  map[string]any{"productId": "acai-500", "selectedIncludedIngredients": []string{"kiwi"}},
		"quantity over limit": map[string]any{"productId": "agua", "quantity": 100},
		"missing product":     map[string]any{"quantity": 1},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := serve(t, http.MethodPost, "/cart/items", "/cart/items", body, who, h)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
		})
	}
}

func TestCartRequiresIdentity(t *testing.T) {
	s := newStack(t)
	rec, env := serve(t, http.MethodGet, "/cart", "/cart", nil, nil, CartFetch(s.carts, s.logg))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), env.Error.Code)
}

func TestCartClearEmptiesCart(t *testing.T) {
	s := newStack(t)
	who := customer("u1")
	_, err := s.carts.Add(context.Background(), who.ID, cart.AddInput{ProductID: "agua", Quantity: 2})
	require.NoError(t, err)

	rec, env := serve(t, http.MethodDelete, "/cart", "/cart", nil, who, CartClear(s.carts, s.logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeData[cartView](t, env).Count)
	assert.True(t, s.carts.Get(context.Background(), who.ID).IsEmpty())
}

func seedOrder(t *testing.T, s *stack, owner string, createdAt time.Time) orders.Order {
	t.Helper()
	order, err := s.orders.Create(context.Background(), orders.Order{
		OwnerID:       owner,
		UserEmail:     owner + "@example.com",
		Items:         []cart.Item{{ProductID: "agua", Name: "Água", Quantity: 1, UnitPrice: decimal.RequireFromString("3.50")}},
		Total:         decimal.RequireFromString("8.50"),
		DeliveryFee:   decimal.RequireFromString("5.00"),
		PaymentMethod: enums.PaymentMethodCash,
		ContactNumber: "11999990000",
		CreatedAt:     createdAt,
	})
	require.NoError(t, err)
	return order
}

func TestOrdersListAndDetail(t *testing.T) {
	s := newStack(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := seedOrder(t, s, "u1", base)
	newer := seedOrder(t, s, "u1", base.Add(time.Minute))
	foreign := seedOrder(t, s, "u2", base.Add(2*time.Minute))
	who := customer("u1")

	rec, env := serve(t, http.MethodGet, "/orders", "/orders", nil, who, OrdersList(s.orders, s.logg))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]orders.Order](t, env)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	rec, env = serve(t, http.MethodGet, "/orders/{orderId}", "/orders/"+older.ID, nil, who, OrderDetail(s.orders, s.logg))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		ID          string `json:"id"`
		StatusLabel string `json:"statusLabel"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, older.ID, detail.ID)
	assert.Equal(t, "Pendente", detail.StatusLabel)

	rec, _ = serve(t, http.MethodGet, "/orders/{orderId}", "/orders/"+foreign.ID, nil, who, OrderDetail(s.orders, s.logg))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderWhatsAppLink(t *testing.T) {
	s := newStack(t)
	order := seedOrder(t, s, "u1", time.Now().UTC())

	rec, env := serve(t, http.MethodGet, "/orders/{orderId}/whatsapp", "/orders/"+order.ID+"/whatsapp", nil, customer("u1"), OrderWhatsApp(s.orders, "+5511988887777", s.logg))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeData[map[string]string](t, env)
	assert.True(t, strings.HasPrefix(payload["link"], "https://wa.me/5511988887777?text="), payload["link"])
	assert.NotContains(t, payload["link"], "+")
	assert.Contains(t, payload["message"], order.ID)
}

func TestAdminOrdersPaginates(t *testing.T) {
	s := newStack(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedOrder(t, s, "u1", base.Add(time.Duration(i)*time.Minute))
	}
	h := AdminOrders(s.orders, s.logg)

	rec, env := serve(t, http.MethodGet, "/admin/orders", "/admin/orders?limit=2", nil, nil, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		Items      []orders.Order `json:"items"`
		NextCursor string         `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	_, env = serve(t, http.MethodGet, "/admin/orders", "/admin/orders?limit=2&cursor="+url.QueryEscape(first.NextCursor), nil, nil, h)
	var second struct {
		Items      []orders.Order `json:"items"`
		NextCursor string         `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.True(t, second.Items[0].CreatedAt.Equal(base))

	rec, env = serve(t, http.MethodGet, "/admin/orders", "/admin/orders?cursor=!!!", nil, nil, h)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)

	rec, _ = serve(t, http.MethodGet, "/admin/orders", "/admin/orders?status=Lost", nil, nil, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, env = serve(t, http.MethodGet, "/admin/orders", "/admin/orders?status=Delivered", nil, nil, h)
	var filtered struct {
		Items []orders.Order `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &filtered))
	assert.Empty(t, filtered.Items)
}

func TestAdminOrderStatusEnforcesTransitions(t *testing.T) {
	s := newStack(t)
	order := seedOrder(t, s, "u1", time.Now().UTC())
	admin := &identity.Identity{ID: "admin-1", Email: "admin@example.com", Admin: true}
	h := AdminOrderStatus(s.orders, s.logg)
	pattern := "/admin/orders/{orderId}/status"
	target := "/admin/orders/" + order.ID + "/status"

	rec, env := serve(t, http.MethodPatch, pattern, target, map[string]string{"status": "Confirmed"}, admin, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.OrderStatusConfirmed, decodeData[orders.Order](t, env).Status)

	rec, env = serve(t, http.MethodPatch, pattern, target, map[string]string{"status": "Delivered"}, admin, h)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, string(pkgerrors.CodeStateConflict), env.Error.Code)

	rec, _ = serve(t, http.MethodPatch, pattern, target, map[string]string{"status": "Teleported"}, admin, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	owned, err := s.orders.Get(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, owned.Status)
}

func TestAdminUpsertProductValidates(t *testing.T) {
	s := newStack(t)
	h := AdminUpsertProduct(s.catalog, s.logg)
	pattern := "/admin/products/{productId}"

	rec, env := serve(t, http.MethodPut, pattern, "/admin/products/granola-bar", map[string]any{
		"name":  "Barra de granola",
		"price": "6.50",
		"type":  "snack",
	}, nil, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "granola-bar", decodeData[catalog.Product](t, env).ID)

	rec, _ = serve(t, http.MethodPut, pattern, "/admin/products/bad", map[string]any{
		"name":  "Negative",
		"price": "-1",
		"type":  "snack",
	}, nil, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, http.MethodPut, pattern, "/admin/products/bad", map[string]any{
		"name":     "Bad image",
		"type":     "snack",
		"imageUrl": "not a url",
	}, nil, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeDrafts struct {
	draft   checkout.Draft
	getErr  error
	patched *checkout.Patch
	cleared bool
}

func (f *fakeDrafts) Start(context.Context, string) (checkout.Draft, error) { return f.draft, nil }

func (f *fakeDrafts) Get(context.Context, string) (checkout.Draft, error) {
	return f.draft, f.getErr
}

func (f *fakeDrafts) Update(_ context.Context, _ string, patch checkout.Patch) (checkout.Draft, error) {
	f.patched = &patch
	f.draft = patch.Apply(f.draft)
	return f.draft, nil
}

func (f *fakeDrafts) Clear(context.Context, string) error {
	f.cleared = true
	return nil
}

type fakePayments struct {
	result checkout.Result
	err    error
	seen   identity.Identity
}

func (f *fakePayments) ProcessPayment(_ context.Context, _ checkout.Draft, who identity.Identity) (checkout.Result, error) {
	f.seen = who
	return f.result, f.err
}

func sampleDraft() checkout.Draft {
	return checkout.Draft{
		Items:         []cart.Item{{ProductID: "agua", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")}},
		TotalPrice:    decimal.RequireFromString("7.00"),
		DeliveryFee:   decimal.RequireFromString("5.00"),
		PaymentMethod: enums.PaymentMethodCash,
	}
}

func TestCheckoutDraftFetchIncludesOrderTotal(t *testing.T) {
	drafts := &fakeDrafts{draft: sampleDraft()}
	rec, env := serve(t, http.MethodGet, "/checkout/draft", "/checkout/draft", nil, customer("u1"), CheckoutDraftFetch(drafts, logger.Nop()))
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		OrderTotal string `json:"orderTotal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "12.00", view.OrderTotal)
}

func TestCheckoutDraftUpdateParsesPaymentMethod(t *testing.T) {
	drafts := &fakeDrafts{draft: sampleDraft()}
	h := CheckoutDraftUpdate(drafts, logger.Nop())

	rec, _ := serve(t, http.MethodPatch, "/checkout/draft", "/checkout/draft", map[string]any{
		"paymentMethod": " PIX ",
		"contactNumber": "+55 (11) 99999-0000",
	}, customer("u1"), h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, drafts.patched)
	require.NotNil(t, drafts.patched.PaymentMethod)
	assert.Equal(t, enums.PaymentMethodPix, *drafts.patched.PaymentMethod)
	assert.Nil(t, drafts.patched.Observations)

	rec, env := serve(t, http.MethodPatch, "/checkout/draft", "/checkout/draft", map[string]any{"paymentMethod": "bitcoin"}, customer("u1"), h)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)

	rec, _ = serve(t, http.MethodPatch, "/checkout/draft", "/checkout/draft", map[string]any{"contactNumber": "call me"}, customer("u1"), h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutSubmitClearsDraftOnSuccess(t *testing.T) {
	drafts := &fakeDrafts{draft: sampleDraft()}
	payments := &fakePayments{result: checkout.Result{
		Order:    orders.Order{ID: "order-1", Status: enums.OrderStatusPending},
		Advance:  true,
		PixState: enums.PixStateNotRequested,
	}}
	who := customer("u1")

	rec, env := serve(t, http.MethodPost, "/checkout/submit", "/checkout/submit", nil, who, CheckoutSubmit(drafts, payments, logger.Nop()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeData[checkout.Result](t, env)
	assert.Equal(t, "order-1", result.Order.ID)
	assert.True(t, result.Advance)
	assert.True(t, drafts.cleared)
	assert.Equal(t, who.ID, payments.seen.ID)
}

func TestCheckoutSubmitKeepsDraftOnFailure(t *testing.T) {
	drafts := &fakeDrafts{draft: sampleDraft()}
	payments := &fakePayments{err: pkgerrors.New(pkgerrors.CodePaymentGateway, "gateway down")}

	rec, env := serve(t, http.MethodPost, "/checkout/submit", "/checkout/submit", nil, customer("u1"), CheckoutSubmit(drafts, payments, logger.Nop()))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, env.Error.Retryable)
	assert.False(t, drafts.cleared)

	missing := &fakeDrafts{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "no checkout draft")}
	rec, _ = serve(t, http.MethodPost, "/checkout/submit", "/checkout/submit", nil, customer("u1"), CheckoutSubmit(missing, payments, logger.Nop()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutSubmitCartOutageIsRetryable(t *testing.T) {
	drafts := &fakeDrafts{draft: sampleDraft(), getErr: pkgerrors.New(pkgerrors.CodeDependency, "load cart")}
	payments := &fakePayments{}

	rec, env := serve(t, http.MethodPost, "/checkout/submit", "/checkout/submit", nil, customer("u1"), CheckoutSubmit(drafts, payments, logger.Nop()))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, env.Error.Retryable)
	assert.False(t, drafts.cleared)
	assert.Empty(t, payments.seen.ID)
}

type fixedPix struct{ status checkout.PixStatus }

func (f fixedPix) Status(string) checkout.PixStatus { return f.status }

func TestCheckoutPixStatus(t *testing.T) {
	pix := fixedPix{status: checkout.PixStatus{State: enums.PixStateReady, OrderID: "order-1", Seconds: 1799}}
	rec, env := serve(t, http.MethodGet, "/checkout/pix", "/checkout/pix", nil, customer("u1"), CheckoutPixStatus(pix, logger.Nop()))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[checkout.PixStatus](t, env)
	assert.Equal(t, enums.PixStateReady, status.State)
	assert.EqualValues(t, 1799, status.Seconds)
}

func TestProfileSaveUsesIdentityEmail(t *testing.T) {
	store := docstore.NewMemoryStore()
	profiles, err := profile.NewService(store, testScope)
	require.NoError(t, err)
	who := customer("u1")

	rec, _ := serve(t, http.MethodPut, "/profile", "/profile", map[string]any{
		"name":  "  Maria   Silva ",
		"phone": "+55 (11) 99999-0000",
	}, who, ProfileSave(profiles, logger.Nop()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := serve(t, http.MethodGet, "/profile", "/profile", nil, who, ProfileFetch(profiles, logger.Nop()))
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decodeData[profile.Profile](t, env)
	assert.Equal(t, "Maria Silva", saved.Name)
	assert.Equal(t, "+5511999990000", saved.Phone)
	assert.Equal(t, who.Email, saved.Email)

	rec, env = serve(t, http.MethodPut, "/profile", "/profile", map[string]any{"phone": "abc"}, who, ProfileSave(profiles, logger.Nop()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthProbes(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec, _ := serve(t, http.MethodGet, "/health/live", "/health/live", nil, nil, HealthLive(cfg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Acai-Env"))

	healthy := map[string]Pinger{"redis": pingFunc(func(context.Context) error { return nil }), "skipped": nil}
	rec, _ = serve(t, http.MethodGet, "/health/ready", "/health/ready", nil, nil, HealthReady(cfg, logger.Nop(), healthy))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return nil }),
		"db":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	rec, env := serve(t, http.MethodGet, "/health/ready", "/health/ready", nil, nil, HealthReady(cfg, logger.Nop(), failing))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok, "details: %#v", env.Error.Details)
	assert.Equal(t, "connection refused", details["db"])
	assert.NotContains(t, details, "redis")
}
