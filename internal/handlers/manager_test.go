package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/selmag/internal/handlers"
	"github.com/jsamuelsen11/selmag/internal/middleware"
	"github.com/jsamuelsen11/selmag/internal/models"
)

var manager = models.Principal{Subject: "alice", Authorities: []string{"ROLE_MANAGER"}}

// fakeManagerService keeps products in a map and fails with err when set.
type fakeManagerService struct {
	products   map[int]models.Product
	err        error
	createErr  error
	principals []string
}

func newFakeManagerService() *fakeManagerService {
	return &fakeManagerService{products: map[int]models.Product{
		1: {ID: 1, Title: "Kettle", Details: "Steel"},
	}}
}

func (f *fakeManagerService) seen(p models.Principal) {
	f.principals = append(f.principals, p.Subject)
}

func (f *fakeManagerService) FindAllProducts(
	_ context.Context,
	p models.Principal,
	filter string,
) ([]models.Product, error) {
	f.seen(p)
	if f.err != nil {
		return nil, f.err
	}
	var products []models.Product
	for _, product := range f.products {
		if strings.Contains(product.Title, filter) {
			products = append(products, product)
		}
	}
	return products, nil
}

func (f *fakeManagerService) FindProduct(_ context.Context, p models.Principal, id int) (models.Product, bool, error) {
	f.seen(p)
	if f.err != nil {
		return models.Product{}, false, f.err
	}
	product, ok := f.products[id]
	return product, ok, nil
}

func (f *fakeManagerService) CreateProduct(
	_ context.Context,
	p models.Principal,
	title, details string,
) (models.Product, error) {
	f.seen(p)
	if f.createErr != nil {
		return models.Product{}, f.createErr
	}
	product := models.Product{ID: len(f.products) + 1, Title: title, Details: details}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeManagerService) UpdateProduct(
	_ context.Context,
	p models.Principal,
	id int,
	title, details string,
) error {
	f.seen(p)
	if f.createErr != nil {
		return f.createErr
	}
	f.products[id] = models.Product{ID: id, Title: title, Details: details}
	return nil
}

func (f *fakeManagerService) DeleteProduct(_ context.Context, p models.Principal, id int) error {
	f.seen(p)
	delete(f.products, id)
	return nil
}

func newManagerRouter(service *fakeManagerService, principal *models.Principal) http.Handler {
	router := mux.NewRouter()
	handlers.NewManagerHandler(service, discardLogger()).RegisterRoutes(router)
	if principal == nil {
		return router
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), *principal)))
	})
}

func submitForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestManagerHandler_ListProducts(t *testing.T) {
	service := newFakeManagerService()
	router := newManagerRouter(service, &manager)

	rec := serve(router, http.MethodGet, handlers.ManagerListPath+"?filter=Ket", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view handlers.ProductListView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, handlers.ViewProductList, view.View)
	assert.Equal(t, "Ket", view.Filter)
	assert.Len(t, view.Products, 1)
	assert.Equal(t, []string{"alice"}, service.principals)
}

func TestManagerHandler_CreateProduct(t *testing.T) {
	service := newFakeManagerService()
	router := newManagerRouter(service, &manager)

	rec := submitForm(router, handlers.ManagerCreatePath, url.Values{"title": {"Teapot"}, "details": {"Clay"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, handlers.ManagerBasePath+"/2", rec.Header().Get("Location"))
	assert.Equal(t, models.Product{ID: 2, Title: "Teapot", Details: "Clay"}, service.products[2])
}

func TestManagerHandler_CreateProductRejected(t *testing.T) {
	service := newFakeManagerService()
	service.createErr = models.NewBadRequestError([]string{"title must be provided"})
	router := newManagerRouter(service, &manager)

	rec := serve(router, http.MethodPost, handlers.ManagerCreatePath, `{"title":"","details":"Clay"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var view handlers.ProductFormView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, handlers.ViewNewProduct, view.View)
	assert.Equal(t, []string{"title must be provided"}, view.Errors)
	require.NotNil(t, view.Payload)
	assert.Equal(t, handlers.ProductFormPayload{Title: "", Details: "Clay"}, *view.Payload)
}

func TestManagerHandler_EditAndDelete(t *testing.T) {
	service := newFakeManagerService()
	router := newManagerRouter(service, &manager)
	page := handlers.ManagerBasePath + "/1"

	rec := serve(router, http.MethodGet, page+"/edit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var form handlers.ProductFormView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&form))
	assert.Equal(t, handlers.ViewEditProduct, form.View)
	require.NotNil(t, form.Product)
	assert.Equal(t, "Kettle", form.Product.Title)

	rec = submitForm(router, page+"/edit", url.Values{"title": {"Samovar"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, page, rec.Header().Get("Location"))
	assert.Equal(t, "Samovar", service.products[1].Title)

	rec = submitForm(router, page+"/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, handlers.ManagerListPath, rec.Header().Get("Location"))
	assert.Empty(t, service.products)
}

func TestManagerHandler_ErrorViews(t *testing.T) {
	tests := []struct {
		name      string
		principal *models.Principal
		err       error
		method    string
		target    string
		status    int
		view      string
	}{
		{
			name:      "missing_product",
			principal: &manager,
			method:    http.MethodGet,
			target:    handlers.ManagerBasePath + "/9",
			status:    http.StatusNotFound,
			view:      handlers.ViewNotFound,
		},
		{
			name:      "delete_of_missing_product",
			principal: &manager,
			method:    http.MethodPost,
			target:    handlers.ManagerBasePath + "/9/delete",
			status:    http.StatusNotFound,
			view:      handlers.ViewNotFound,
		},
		{
			name:   "no_principal",
			method: http.MethodGet,
			target: handlers.ManagerListPath,
			status: http.StatusUnauthorized,
			view:   handlers.ViewUnauthorized,
		},
		{
			name:      "authorization_failure",
			principal: &manager,
			err:       &models.AuthorizationError{RegistrationID: "keycloak", Principal: "alice"},
			method:    http.MethodGet,
			target:    handlers.ManagerListPath,
			status:    http.StatusUnauthorized,
			view:      handlers.ViewUnauthorized,
		},
		{
			name:      "transport_failure",
			principal: &manager,
			err:       &models.TransportError{Op: "find products", StatusCode: http.StatusInternalServerError},
			method:    http.MethodGet,
			target:    handlers.ManagerBasePath + "/1",
			status:    http.StatusBadGateway,
			view:      handlers.ViewBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newFakeManagerService()
			service.err = tt.err
			router := newManagerRouter(service, tt.principal)

			rec := serve(router, tt.method, tt.target, "")
			require.Equal(t, tt.status, rec.Code)

			var view handlers.ErrorView
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
			assert.Equal(t, tt.view, view.View)
			assert.Equal(t, tt.status, view.Status)
			if tt.principal == nil {
				assert.Empty(t, service.principals, "no call is made without a principal")
			}
		})
	}
}
