package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL, APIKey: "key", ListID: "list-1"}, log.New(io.Discard, "", 0))
}

func TestSubscribe_Success(t *testing.T) {
	var gotBody map[string]string
	svc := testService(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Klaviyo-API-Key key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Write([]byte(`{"success":true}`))
	})

	if err := svc.Subscribe(context.Background(), "fern@example.com"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if gotBody["email"] != "fern@example.com" || gotBody["list_id"] != "list-1" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
}

func TestSubscribe_InvalidEmailSkipsNetwork(t *testing.T) {
	called := false
	svc := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.Write([]byte(`{"success":true}`))
	})

	err := svc.Subscribe(context.Background(), "not-an-email")
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if called {
		t.Fatal("invalid email must not reach the marketing API")
	}
}

func TestSubscribe_APIError(t *testing.T) {
	svc := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"already subscribed"}`))
	})

	err := svc.Subscribe(context.Background(), "fern@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
}
