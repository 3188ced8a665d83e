package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"crystal-bloomery/internal/domain"
	cartsvc "crystal-bloomery/internal/service/cart"
)

type stubCartService struct {
	session   *domain.CartSession
	getErr    error
	addErr    error
	updateErr error
	removeErr error
	syncNil   bool
	checkout  string
	lastItem  cartsvc.NewItem
	lastQty   int
}

func (s *stubCartService) Get(_ context.Context, _ string) (*domain.CartSession, error) {
	return s.session, s.getErr
}

func (s *stubCartService) AddItem(_ context.Context, _ string, item cartsvc.NewItem) (*domain.CartSession, error) {
	s.lastItem = item
	return s.session, s.addErr
}

func (s *stubCartService) UpdateQuantity(_ context.Context, _, _ string, quantity int) (*domain.CartSession, error) {
	s.lastQty = quantity
	return s.session, s.updateErr
}

func (s *stubCartService) RemoveItem(_ context.Context, _, _ string) (*domain.CartSession, error) {
	return s.session, s.removeErr
}

func (s *stubCartService) Clear(_ context.Context, _ string) (*domain.CartSession, error) {
	return &domain.CartSession{}, nil
}

func (s *stubCartService) Sync(_ context.Context, _ string) (*domain.CartSession, error) {
	if s.syncNil {
		return nil, nil
	}
	return s.session, nil
}

func (s *stubCartService) CheckoutURL(_ context.Context, _ string) (string, error) {
	return s.checkout, nil
}

type stubNewsletter struct {
	err   error
	email string
}

func (s *stubNewsletter) Subscribe(_ context.Context, email string) error {
	s.email = email
	return s.err
}

func testRouter(cart cartService, news newsletterService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return buildRouter(log.New(io.Discard, "", 0), nil, Deps{
		CartSvc:       cart,
		NewsletterSvc: news,
		MaxQuantity:   20,
		CORSOrigins:   []string{"http://localhost:5173"},
	})
}

func emptySession() *domain.CartSession {
	return &domain.CartSession{}
}

func sessionWith(variantID string, qty int) *domain.CartSession {
	cartID := "C1"
	lineID := "L1"
	return &domain.CartSession{
		CartID: &cartID,
		Lines: []domain.CartLine{
			{VariantID: variantID, LineID: &lineID, Title: "Crystal", Currency: "USD", Quantity: qty},
		},
	}
}

func TestGetCart_MintsSessionCookie(t *testing.T) {
	router := testRouter(&stubCartService{session: emptySession()}, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	found := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected session cookie to be set")
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("empty cart must serialize items as [], got %s", rec.Body.String())
	}
}

func TestAddItem_Validation(t *testing.T) {
	router := testRouter(&stubCartService{session: emptySession()}, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"variantId":"V1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddItem_QuantityCap(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 19)}
	router := testRouter(svc, &stubNewsletter{})

	body := `{"variantId":"V2","title":"Geode","currency":"USD","priceCents":1200,"quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.lastItem.VariantID != "" {
		t.Fatal("over-cap add must be rejected before the store is called")
	}
}

func TestAddItem_Success(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 1)}
	router := testRouter(svc, &stubNewsletter{})

	body := `{"variantId":"V1","title":"Geode","currency":"USD","priceCents":1200,"quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastItem.VariantID != "V1" || svc.lastItem.Quantity != 1 {
		t.Fatalf("unexpected item passed to store: %+v", svc.lastItem)
	}
}

func TestUpdateQuantity_LineNotSyncedMapsTo409(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 1), updateErr: domain.ErrLineNotSynced}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodPatch, "/api/cart/items/V1", strings.NewReader(`{"quantity":3}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestUpdateQuantity_ZeroSkipsCapCheck(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 20)}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodPatch, "/api/cart/items/V1", strings.NewReader(`{"quantity":0}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastQty != 0 {
		t.Fatalf("expected quantity 0 forwarded to store, got %d", svc.lastQty)
	}
}

func TestRemoveItem_NotFoundMapsTo404(t *testing.T) {
	svc := &stubCartService{session: emptySession(), removeErr: domain.ErrNotFound}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/V9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRemoveItem_GatewayFailureMapsTo502(t *testing.T) {
	svc := &stubCartService{session: emptySession(), removeErr: errors.New("boom")}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/V1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestSyncCart_InFlightFallsBackToGet(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 2), syncNil: true}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cartId":"C1"`) {
		t.Fatalf("expected current session in response, got %s", rec.Body.String())
	}
}

func TestCheckoutURL_AbsentIs404(t *testing.T) {
	router := testRouter(&stubCartService{session: emptySession()}, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart/checkout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckoutURL_Present(t *testing.T) {
	svc := &stubCartService{session: sessionWith("V1", 1), checkout: "https://checkout.crystalbloomery.com/c/abc"}
	router := testRouter(svc, &stubNewsletter{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart/checkout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "checkout.crystalbloomery.com") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
