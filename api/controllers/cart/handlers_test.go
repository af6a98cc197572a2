package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type stubCartService struct {
	view    *cartsvc.View
	created bool
	err     error

	gotToken  string
	gotUser   *string
	gotRef    catalog.ProductRef
	gotQty    int
	gotItemID uuid.UUID
}

func (s *stubCartService) CreateOrReuse(_ context.Context, token string, userID *string) (*cartsvc.View, bool, error) {
	s.gotToken = token
	s.gotUser = userID
	return s.view, s.created, s.err
}

func (s *stubCartService) Get(_ context.Context, token string) (*cartsvc.View, error) {
	s.gotToken = token
	return s.view, s.err
}

func (s *stubCartService) AddItem(_ context.Context, token string, ref catalog.ProductRef, quantity int) (*cartsvc.View, error) {
	s.gotToken = token
	s.gotRef = ref
	s.gotQty = quantity
	return s.view, s.err
}

func (s *stubCartService) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) (*cartsvc.View, error) {
	s.gotItemID = itemID
	s.gotQty = quantity
	return s.view, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, itemID uuid.UUID) (*cartsvc.View, error) {
	s.gotItemID = itemID
	return s.view, s.err
}

func sampleView() *cartsvc.View {
	return &cartsvc.View{
		ID:     uuid.New(),
		Token:  "tok-1",
		Status: enums.CartStatusOpen,
		Items:  []cartsvc.ItemView{},
		Totals: cartsvc.Totals{Subtotal: decimal.Zero},
	}
}

func withItemParam(req *http.Request, itemID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(itemIDParam, itemID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateReturns201WhenCreated(t *testing.T) {
	svc := &stubCartService{view: sampleView(), created: true}
	req := httptest.NewRequest(http.MethodPost, "/checkout/api/cart", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-7"))
	resp := httptest.NewRecorder()

	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.gotUser == nil || *svc.gotUser != "user-7" {
		t.Fatalf("expected user id forwarded, got %v", svc.gotUser)
	}
	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Token != "tok-1" {
		t.Fatalf("unexpected token %q", envelope.Data.Token)
	}
}

func TestCreateReusesTokenFromQuery(t *testing.T) {
	svc := &stubCartService{view: sampleView()}
	req := httptest.NewRequest(http.MethodPost, "/checkout/api/cart?cart_token=tok-1", nil)
	resp := httptest.NewRecorder()

	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotToken != "tok-1" {
		t.Fatalf("expected query token, got %q", svc.gotToken)
	}
	if svc.gotUser != nil {
		t.Fatalf("expected anonymous request")
	}
}

func TestCreatePrefersBodyToken(t *testing.T) {
	svc := &stubCartService{view: sampleView()}
	req := httptest.NewRequest(http.MethodPost, "/checkout/api/cart?cart_token=query", strings.NewReader(`{"cart_token":"body"}`))
	Create(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if svc.gotToken != "body" {
		t.Fatalf("expected body token, got %q", svc.gotToken)
	}
}

func TestFetchRequiresToken(t *testing.T) {
	resp := httptest.NewRecorder()
	Fetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/checkout/api/cart", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestFetchNotFound(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found.")}
	resp := httptest.NewRecorder()
	Fetch(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/checkout/api/cart?cart_token=nope", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAddItemForwardsReference(t *testing.T) {
	svc := &stubCartService{view: sampleView()}
	body := `{"cart_token":"tok-1","product_sku":" SKU-1 ","quantity":3}`
	resp := httptest.NewRecorder()
	AddItem(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/checkout/api/cart/items", strings.NewReader(body)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotRef.SKU != "SKU-1" || svc.gotQty != 3 {
		t.Fatalf("unexpected forwarded values %+v qty=%d", svc.gotRef, svc.gotQty)
	}
}

func TestAddItemValidation(t *testing.T) {
	cases := map[string]string{
		"zero quantity":   `{"cart_token":"tok-1","product_id":5,"quantity":0}`,
		"missing product": `{"cart_token":"tok-1","quantity":1}`,
		"missing token":   `{"product_id":5,"quantity":1}`,
		"unknown field":   `{"cart_token":"tok-1","product_id":5,"quantity":1,"price":"1.00"}`,
	}
	for name, body := range cases {
		svc := &stubCartService{view: sampleView()}
		resp := httptest.NewRecorder()
		AddItem(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/checkout/api/cart/items", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, resp.Code)
		}
		if svc.gotQty != 0 {
			t.Fatalf("%s: service should not be called", name)
		}
	}
}

func TestAddItemMapsUpstreamFailure(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, "Unable to validate product against Catalog.")}
	resp := httptest.NewRecorder()
	AddItem(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/checkout/api/cart/items",
		strings.NewReader(`{"cart_token":"tok-1","product_id":5,"quantity":1}`)))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestUpdateItem(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{view: sampleView()}
	req := withItemParam(httptest.NewRequest(http.MethodPut, "/checkout/api/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":4}`)), itemID.String())
	resp := httptest.NewRecorder()
	UpdateItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotItemID != itemID || svc.gotQty != 4 {
		t.Fatalf("unexpected forwarded values %s qty=%d", svc.gotItemID, svc.gotQty)
	}
}

func TestUpdateItemRejectsBadID(t *testing.T) {
	req := withItemParam(httptest.NewRequest(http.MethodPut, "/checkout/api/cart/items/abc", strings.NewReader(`{"quantity":4}`)), "abc")
	resp := httptest.NewRecorder()
	UpdateItem(&stubCartService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRemoveItemOnClosedCart(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "Cart is no longer open.")}
	req := withItemParam(httptest.NewRequest(http.MethodDelete, "/checkout/api/cart/items/"+itemID.String(), nil), itemID.String())
	resp := httptest.NewRecorder()
	RemoveItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
