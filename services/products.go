package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jasonachkar/persuade/models"
	"github.com/jasonachkar/persuade/repository"
)

// NewProductRequest carries the fields of a product to create
type NewProductRequest struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
	Image       models.ProductImage
}

type ProductCatalog struct {
	repo repository.ProductRepository
	now  func() time.Time
}

func NewProductCatalog(repo repository.ProductRepository) *ProductCatalog {
	return &ProductCatalog{repo: repo, now: time.Now}
}

func (c *ProductCatalog) Create(ctx context.Context, req NewProductRequest) (*models.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: All fields are required", ErrValidation)
	}

	product := &models.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		CreatedAt:   c.now().UnixMilli(),
	}
	if err := c.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return product, nil
}

// List returns all products, newest first
func (c *ProductCatalog) List(ctx context.Context) ([]models.Product, error) {
	products, err := c.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return products, nil
}

// Delete removes a product and returns the remaining list.
// A missing id leaves the list unchanged.
func (c *ProductCatalog) Delete(ctx context.Context, id string) ([]models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: Product ID is required", ErrValidation)
	}
	if err := c.repo.DeleteProduct(ctx, id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return c.List(ctx)
}
