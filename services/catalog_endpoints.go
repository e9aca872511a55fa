package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jasonachkar/persuade/models"
)

const maxImageUpload = 5 << 20

type CatalogEndpoints struct {
	scenarios *ScenarioCatalog
	products  *ProductCatalog
}

func NewCatalogEndpoints(scenarios *ScenarioCatalog, products *ProductCatalog) *CatalogEndpoints {
	return &CatalogEndpoints{scenarios: scenarios, products: products}
}

func (e *CatalogEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", e.GetScenariosHandler)
		r.Post("/", e.AddScenarioOptionHandler)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", e.GetProductsHandler)
		r.Post("/", e.CreateProductHandler)
		r.Delete("/", e.DeleteProductHandler)
	})
}

func (e *CatalogEndpoints) GetScenariosHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := e.scenarios.Options(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (e *CatalogEndpoints) AddScenarioOptionHandler(w http.ResponseWriter, r *http.Request) {
	var req AddOptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	option, err := e.scenarios.AddOption(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, option)
}

func (e *CatalogEndpoints) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := e.products.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// CreateProductHandler accepts multipart name, description and an optional
// image file or imageUrl field.
func (e *CatalogEndpoints) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload+(1<<20))
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeServiceError(w, fmt.Errorf("%w: All fields are required", ErrValidation))
		return
	}

	image, err := productImageFromForm(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	product, err := e.products.Create(r.Context(), NewProductRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Image:       image,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// DeleteProductHandler removes ?id= and returns the remaining products
func (e *CatalogEndpoints) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	products, err := e.products.Delete(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func productImageFromForm(r *http.Request) (models.ProductImage, error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		if u := strings.TrimSpace(r.FormValue("imageUrl")); u != "" {
			return models.ImageFromURL(u), nil
		}
		return models.NoImage(), nil
	}
	if err != nil {
		return models.NoImage(), fmt.Errorf("%w: invalid image upload: %v", ErrValidation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.NoImage(), fmt.Errorf("%w: failed to read image: %v", ErrValidation, err)
	}
	if len(data) == 0 {
		return models.NoImage(), nil
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return models.InlineImage(data, mimeType), nil
}
