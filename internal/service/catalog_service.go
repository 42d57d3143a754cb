package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"go.uber.org/zap"
)

// ClientService manages client tenants and the users linked to them
type ClientService struct {
	repo   store.CatalogRepository
	users  store.UserRepository
	access *AccessControl
	logger *zap.Logger
}

// NewClientService creates a new client service
func NewClientService(repo store.CatalogRepository, users store.UserRepository, access *AccessControl) *ClientService {
	return &ClientService{
		repo:   repo,
		users:  users,
		access: access,
		logger: util.GetLogger(),
	}
}

// ClientInput is the payload for creating or updating a client
type ClientInput struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	URL   string `json:"url"`
}

func (in *ClientInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Code = ToUnderscoreUpper(in.Code)
	if in.Code == "" {
		in.Code = ToUnderscoreUpper(in.Name)
	}

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid client", fields)
	}
	return nil
}

// Create stores a new client
func (s *ClientService) Create(ctx context.Context, actorID string, in ClientInput) (*models.Client, error) {
	ctx, span := util.StartSpan(ctx, "ClientService.Create")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	client := &models.Client{
		Name:      in.Name,
		Code:      in.Code,
		Email:     in.Email,
		Phone:     in.Phone,
		URL:       in.URL,
		CreatedBy: optional(actorID),
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, util.RecordError(span, err)
	}

	s.logger.Info("Client created", zap.String("client_id", client.ID))
	return client, nil
}

// Get returns a client visible to the actor
func (s *ClientService) Get(ctx context.Context, actorID, clientID string) (*models.Client, error) {
	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := s.checkScope(ctx, actorID, client.ID); err != nil {
		return nil, err
	}
	return client, nil
}

// List returns the clients in the actor's scope
func (s *ClientService) List(ctx context.Context, actorID string) ([]models.Client, error) {
	scope, err := s.access.Scope(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if scope.Kind == models.ScopeNone {
		return []models.Client{}, nil
	}
	return s.repo.ListClients(ctx, scope)
}

// Update replaces the editable fields of a client
func (s *ClientService) Update(ctx context.Context, actorID, clientID string, in ClientInput) (*models.Client, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	client, err := s.Get(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}

	client.Name = in.Name
	client.Code = in.Code
	client.Email = in.Email
	client.Phone = in.Phone
	client.URL = in.URL
	client.UpdatedBy = optional(actorID)

	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// LinkClient records which client a CLIENT-role user manages
func (s *ClientService) LinkClient(ctx context.Context, userID, clientID string) error {
	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return err
	}
	if client.IsDeleted {
		return apperr.NotFoundf("client %s not found", clientID)
	}

	if err := s.users.SetUserClient(ctx, userID, &client.ID); err != nil {
		return err
	}

	s.logger.Info("User linked to client", zap.String("user_id", userID), zap.String("client_id", clientID))
	return nil
}

// UnlinkClient clears a user's client link
func (s *ClientService) UnlinkClient(ctx context.Context, userID string) error {
	return s.users.SetUserClient(ctx, userID, nil)
}

// SoftDelete hides a client
func (s *ClientService) SoftDelete(ctx context.Context, clientID string) error {
	return lifecycle{s.repo, models.EntityClient}.SoftDelete(ctx, clientID)
}

// Activate restores a soft deleted client
func (s *ClientService) Activate(ctx context.Context, clientID string) error {
	return lifecycle{s.repo, models.EntityClient}.Activate(ctx, clientID)
}

// Delete permanently removes a soft deleted client
func (s *ClientService) Delete(ctx context.Context, clientID string) error {
	return lifecycle{s.repo, models.EntityClient}.Delete(ctx, clientID)
}

func (s *ClientService) checkScope(ctx context.Context, actorID, clientID string) error {
	scope, err := s.access.Scope(ctx, actorID)
	if err != nil {
		return err
	}
	if !scope.Covers(clientID) {
		return apperr.PermissionDenied("client is outside your scope")
	}
	return nil
}

// ProductService manages client catalogs
type ProductService struct {
	repo   store.CatalogRepository
	access *AccessControl
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(repo store.CatalogRepository, access *AccessControl) *ProductService {
	return &ProductService{
		repo:   repo,
		access: access,
		logger: util.GetLogger(),
	}
}

// ProductInput is the payload for creating or updating a product
type ProductInput struct {
	ClientID    string                 `json:"client_id"`
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Unit        string                 `json:"unit"`
	MinOrder    int                    `json:"min_order"`
	Quantity    int                    `json:"quantity"`
	Types       models.ProductVariants `json:"types"`
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.MinOrder <= 0 {
		in.MinOrder = 1
	}

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if in.Quantity < 0 {
		fields["quantity"] = "must not be negative"
	}
	if len(in.Types) == 0 {
		fields["types"] = "at least one priced type is required"
	}
	for i := range in.Types {
		in.Types[i].Type = strings.TrimSpace(in.Types[i].Type)
		if in.Types[i].Type == "" || in.Types[i].Price < 0 {
			fields["types"] = "every type needs a name and a non-negative price"
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid product", fields)
	}
	return nil
}

// Create stores a product. Client users always create in their own client.
func (s *ProductService) Create(ctx context.Context, actorID string, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	scope, err := s.access.Scope(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch scope.Kind {
	case models.ScopeClient:
		in.ClientID = scope.ClientID
	case models.ScopeNone:
		return nil, apperr.PermissionDenied("no client to create products for")
	}

	client, err := s.repo.GetClientByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if client.IsDeleted {
		return nil, apperr.NotFoundf("client %s not found", in.ClientID)
	}

	product := &models.Product{
		ClientID:    client.ID,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Unit:        in.Unit,
		MinOrder:    in.MinOrder,
		Quantity:    in.Quantity,
		Types:       in.Types,
		CreatedBy:   optional(actorID),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, util.RecordError(span, err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("client_id", product.ClientID))
	return product, nil
}

// Get returns a product visible to the actor
func (s *ProductService) Get(ctx context.Context, actorID, productID string) (*models.Product, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	scope, err := s.access.Scope(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(product.ClientID) {
		return nil, apperr.PermissionDenied("product is outside your scope")
	}
	return product, nil
}

// List returns the products in the actor's scope
func (s *ProductService) List(ctx context.Context, actorID string) ([]models.Product, error) {
	scope, err := s.access.Scope(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if scope.Kind == models.ScopeNone {
		return []models.Product{}, nil
	}
	return s.repo.ListProducts(ctx, scope)
}

// ListByClient returns the active catalog of a client for anonymous shoppers
func (s *ProductService) ListByClient(ctx context.Context, clientID string) ([]models.Product, error) {
	return s.repo.ListActiveProductsByClient(ctx, clientID)
}

// Update replaces the editable fields of a product
func (s *ProductService) Update(ctx context.Context, actorID, productID string, in ProductInput) (*models.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	product, err := s.Get(ctx, actorID, productID)
	if err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Category = in.Category
	product.Description = in.Description
	product.Unit = in.Unit
	product.MinOrder = in.MinOrder
	product.Quantity = in.Quantity
	product.Types = in.Types
	product.UpdatedBy = optional(actorID)

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// SoftDelete hides a product from the storefront and new orders
func (s *ProductService) SoftDelete(ctx context.Context, actorID, productID string) error {
	if _, err := s.Get(ctx, actorID, productID); err != nil {
		return err
	}
	return lifecycle{s.repo, models.EntityProduct}.SoftDelete(ctx, productID)
}

// Activate restores a soft deleted product in the caller's scope
func (s *ProductService) Activate(ctx context.Context, actorID, productID string) error {
	if _, err := s.Get(ctx, actorID, productID); err != nil {
		return err
	}
	return lifecycle{s.repo, models.EntityProduct}.Activate(ctx, productID)
}

// Delete permanently removes a soft deleted product
func (s *ProductService) Delete(ctx context.Context, actorID, productID string) error {
	if _, err := s.Get(ctx, actorID, productID); err != nil {
		return err
	}
	return lifecycle{s.repo, models.EntityProduct}.Delete(ctx, productID)
}
