package catalogue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/client/catalogue"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/redis"
)

func setupCatalogueClient(t *testing.T, handler http.HandlerFunc) *catalogue.Client {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "catalogue-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer catalogue-token" {
			t.Errorf("Expected 'Bearer catalogue-token', got %q", got)
		}
		handler(w, r)
	}))

	t.Cleanup(func() {
		apiServer.Close()
		tokenServer.Close()
	})

	return newFactory(t, apiServer.URL, tokenServer.URL).For(models.Principal{Subject: "j.dewar"})
}

func newFactory(t *testing.T, baseURI, tokenURL string) *catalogue.Factory {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	registration := models.ClientRegistration{
		RegistrationID: "keycloak",
		BaseURI:        baseURI,
		ClientID:       "manager-app",
		ClientSecret:   "secret",
		TokenURL:       tokenURL,
		GrantType:      models.GrantTypeClientCredentials,
		Timeout:        5 * time.Second,
	}
	registry, err := client.NewRegistry(registration)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	store := redis.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })

	provider := client.NewCredentialProvider(registry, store, logger)
	return catalogue.NewFactory(registration, provider, nil, nil, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, errs []string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Errors: errs,
	})
}

func TestCatalogueClient_FindAllProducts(t *testing.T) {
	filters := []string{"", "milk", "  ", "a&b=c", "Молоко"}
	products := []models.Product{
		{ID: 3, Title: "Cheese", Details: "aged"},
		{ID: 1, Title: "Milk", Details: "fresh"},
	}

	for _, filter := range filters {
		t.Run("filter="+filter, func(t *testing.T) {
			c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("Expected GET, got %s", r.Method)
				}
				if r.URL.Path != "/catalogue-api/products" {
					t.Errorf("Expected path /catalogue-api/products, got %s", r.URL.Path)
				}
				if !r.URL.Query().Has("filter") {
					t.Errorf("Expected a filter parameter, got %q", r.URL.RawQuery)
				}
				if got := r.URL.Query().Get("filter"); got != filter {
					t.Errorf("Expected filter %q, got %q", filter, got)
				}
				writeJSON(w, http.StatusOK, products)
			})

			got, err := c.FindAllProducts(context.Background(), filter)
			if err != nil {
				t.Fatalf("FindAllProducts() failed: %v", err)
			}

			if len(got) != len(products) {
				t.Fatalf("Expected %d products, got %d", len(products), len(got))
			}
			for i := range products {
				if got[i] != products[i] {
					t.Errorf("Product %d: expected %+v, got %+v", i, products[i], got[i])
				}
			}
		})
	}
}

func TestCatalogueClient_FindAllProducts_Empty(t *testing.T) {
	c := setupCatalogueClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []models.Product{})
	})

	got, err := c.FindAllProducts(context.Background(), "")
	if err != nil {
		t.Fatalf("FindAllProducts() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", got)
	}
}

func TestCatalogueClient_FindProduct(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantFound  bool
		wantErr    bool
		wantStatus int
	}{
		{name: "found", status: http.StatusOK, wantFound: true},
		{name: "not_found", status: http.StatusNotFound, wantFound: false},
		{name: "server_error", status: http.StatusInternalServerError, wantErr: true, wantStatus: 500},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true, wantStatus: 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/catalogue-api/products/7" {
					t.Errorf("Expected path /catalogue-api/products/7, got %s", r.URL.Path)
				}
				if tt.status == http.StatusOK {
					writeJSON(w, http.StatusOK, models.Product{ID: 7, Title: "Milk", Details: "fresh"})
					return
				}
				writeProblem(w, tt.status, nil)
			})

			product, found, err := c.FindProduct(context.Background(), 7)

			if tt.wantErr {
				var transportErr *models.TransportError
				if !errors.As(err, &transportErr) {
					t.Fatalf("Expected *models.TransportError, got %T: %v", err, err)
				}
				if transportErr.StatusCode != tt.wantStatus {
					t.Errorf("Expected status %d, got %d", tt.wantStatus, transportErr.StatusCode)
				}
				return
			}

			if err != nil {
				t.Fatalf("FindProduct() failed: %v", err)
			}
			if found != tt.wantFound {
				t.Errorf("Expected found=%v, got %v", tt.wantFound, found)
			}
			if found && (product.ID != 7 || product.Title != "Milk") {
				t.Errorf("Unexpected product %+v", product)
			}
			if !found && product != (models.Product{}) {
				t.Errorf("Expected zero product on 404, got %+v", product)
			}
		})
	}
}

func TestCatalogueClient_CreateProduct(t *testing.T) {
	c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON body, got %s", r.Header.Get("Content-Type"))
		}

		var payload models.NewProductPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		w.Header().Set("Location", "/catalogue-api/products/11")
		writeJSON(w, http.StatusCreated, models.Product{ID: 11, Title: payload.Title, Details: payload.Details})
	})

	product, err := c.CreateProduct(context.Background(), "Milk", "fresh")
	if err != nil {
		t.Fatalf("CreateProduct() failed: %v", err)
	}

	if product.ID != 11 || product.Title != "Milk" || product.Details != "fresh" {
		t.Errorf("Unexpected product %+v", product)
	}
}

func TestCatalogueClient_CreateProduct_BadRequest(t *testing.T) {
	wantErrors := []string{"title must not be blank", "title size must be between 3 and 50"}

	c := setupCatalogueClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, http.StatusBadRequest, wantErrors)
	})

	_, err := c.CreateProduct(context.Background(), "", "x")

	var badRequest *models.BadRequestError
	if !errors.As(err, &badRequest) {
		t.Fatalf("Expected *models.BadRequestError, got %T: %v", err, err)
	}
	if len(badRequest.Errors) != len(wantErrors) {
		t.Fatalf("Expected errors %v, got %v", wantErrors, badRequest.Errors)
	}
	for i := range wantErrors {
		if badRequest.Errors[i] != wantErrors[i] {
			t.Errorf("Error %d: expected %q, got %q", i, wantErrors[i], badRequest.Errors[i])
		}
	}
	if models.Classify(err) != models.KindValidationRejected {
		t.Errorf("Expected KindValidationRejected, got %s", models.Classify(err))
	}
}

func TestCatalogueClient_CreateProduct_MalformedProblem(t *testing.T) {
	c := setupCatalogueClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("<html>bad</html>"))
	})

	_, err := c.CreateProduct(context.Background(), "Milk", "")

	var transportErr *models.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected *models.TransportError, got %T: %v", err, err)
	}
	if transportErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", transportErr.StatusCode)
	}
}

func TestCatalogueClient_UpdateProduct(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(w http.ResponseWriter)
		wantKind models.ErrorKind
	}{
		{
			name:     "no_content",
			respond:  func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
			wantKind: models.KindOK,
		},
		{
			name:     "bad_request",
			respond:  func(w http.ResponseWriter) { writeProblem(w, http.StatusBadRequest, []string{"details too long"}) },
			wantKind: models.KindValidationRejected,
		},
		{
			name:     "not_found",
			respond:  func(w http.ResponseWriter) { writeProblem(w, http.StatusNotFound, nil) },
			wantKind: models.KindNotFound,
		},
		{
			name:     "conflict",
			respond:  func(w http.ResponseWriter) { w.WriteHeader(http.StatusConflict) },
			wantKind: models.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPatch {
					t.Errorf("Expected PATCH, got %s", r.Method)
				}
				tt.respond(w)
			})

			err := c.UpdateProduct(context.Background(), 5, "Milk", "fresh")

			if got := models.Classify(err); got != tt.wantKind {
				t.Errorf("Expected %s, got %s (%v)", tt.wantKind, got, err)
			}
		})
	}
}

func TestCatalogueClient_DeleteProduct(t *testing.T) {
	var mu sync.Mutex
	deleted := map[string]bool{}

	c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}

		mu.Lock()
		defer mu.Unlock()
		if deleted[r.URL.Path] {
			writeProblem(w, http.StatusNotFound, nil)
			return
		}
		deleted[r.URL.Path] = true
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteProduct(context.Background(), 4); err != nil {
		t.Fatalf("DeleteProduct() failed: %v", err)
	}

	err := c.DeleteProduct(context.Background(), 4)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected models.ErrNotFound on second delete, got %v", err)
	}
}

func TestCatalogueClient_UpdateThenFind(t *testing.T) {
	var mu sync.Mutex
	products := map[int]models.Product{9: {ID: 9, Title: "Old", Details: "old"}}

	c := setupCatalogueClient(t, func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/catalogue-api/products/"))

		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodPatch:
			var payload models.UpdateProductPayload
			json.NewDecoder(r.Body).Decode(&payload)
			products[id] = models.Product{ID: id, Title: payload.Title, Details: payload.Details}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, products[id])
		}
	})

	ctx := context.Background()
	if err := c.UpdateProduct(ctx, 9, "New title", "new details"); err != nil {
		t.Fatalf("UpdateProduct() failed: %v", err)
	}

	product, found, err := c.FindProduct(ctx, 9)
	if err != nil || !found {
		t.Fatalf("FindProduct() = %v, %v", found, err)
	}
	if product.Title != "New title" || product.Details != "new details" {
		t.Errorf("Expected updated product, got %+v", product)
	}
}

func TestCatalogueClient_NetworkError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "t", "token_type": "Bearer", "expires_in": 3600})
	}))
	defer tokenServer.Close()

	apiServer := httptest.NewServer(http.NotFoundHandler())
	apiURL := apiServer.URL
	apiServer.Close()

	c := newFactory(t, apiURL, tokenServer.URL).For(models.Principal{Subject: "j.dewar"})

	_, _, err := c.FindProduct(context.Background(), 1)

	var transportErr *models.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected *models.TransportError, got %T: %v", err, err)
	}
	if transportErr.StatusCode != 0 {
		t.Errorf("Expected status 0 for network failure, got %d", transportErr.StatusCode)
	}
	if errors.Unwrap(transportErr) == nil {
		t.Error("Expected the cause to be preserved")
	}
}

func TestCatalogueClient_AuthorizationFailure(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
	}))
	defer tokenServer.Close()

	var hits int
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer apiServer.Close()

	c := newFactory(t, apiServer.URL, tokenServer.URL).For(models.Principal{Subject: "j.dewar"})

	_, err := c.CreateProduct(context.Background(), "Milk", "fresh")

	var authErr *models.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected *models.AuthorizationError, got %T: %v", err, err)
	}
	if authErr.Reason != "invalid_client" {
		t.Errorf("Expected reason invalid_client, got %q", authErr.Reason)
	}
	if models.Classify(err) != models.KindAuthorization {
		t.Errorf("Expected KindAuthorization, got %s", models.Classify(err))
	}
	if hits != 0 {
		t.Errorf("Catalogue must not be called without a token, got %d calls", hits)
	}
}

func TestCatalogueClient_WithToken(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer supplied" {
			t.Errorf("Expected 'Bearer supplied', got %q", got)
		}
		writeJSON(w, http.StatusOK, []models.Product{})
	}))
	defer apiServer.Close()

	c := newFactory(t, apiServer.URL, "http://token.invalid").WithToken("supplied")

	if _, err := c.FindAllProducts(context.Background(), ""); err != nil {
		t.Fatalf("FindAllProducts() failed: %v", err)
	}
}
