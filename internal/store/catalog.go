package store

import (
	"context"

	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateClient inserts a client tenant
func (s *Store) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	query := `
		INSERT INTO clients (id, name, code, email, phone, url, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, client, query,
		client.ID, client.Name, client.Code, client.Email, client.Phone, client.URL, client.CreatedBy)
	return mapError(err, "client")
}

// GetClientByID retrieves a client by ID
func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	err := sqlx.GetContext(ctx, s.q, &client, "SELECT * FROM clients WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "client")
	}
	return &client, nil
}

// ListClients retrieves the clients visible in scope
func (s *Store) ListClients(ctx context.Context, scope models.AccessScope) ([]models.Client, error) {
	clients := []models.Client{}
	var err error
	switch scope.Kind {
	case models.ScopeAll:
		err = sqlx.SelectContext(ctx, s.q, &clients, "SELECT * FROM clients ORDER BY created_at DESC")
	case models.ScopeClient:
		err = sqlx.SelectContext(ctx, s.q, &clients,
			"SELECT * FROM clients WHERE id = $1", scope.ClientID)
	}
	return clients, err
}

// UpdateClient updates the editable client fields
func (s *Store) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients SET name = $1, code = $2, email = $3, phone = $4, url = $5,
			updated_by = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &client.UpdatedAt, query,
		client.Name, client.Code, client.Email, client.Phone, client.URL, client.UpdatedBy, client.ID)
	return mapError(err, "client")
}

// CreateProduct inserts a product; names are unique per client
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	query := `
		INSERT INTO products (id, client_id, name, category, description, unit, min_order, quantity, types, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, product, query,
		product.ID, product.ClientID, product.Name, product.Category, product.Description,
		product.Unit, product.MinOrder, product.Quantity, product.Types, product.CreatedBy)
	return mapError(err, "product")
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "product")
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.q.Rebind(query)

	err = sqlx.SelectContext(ctx, s.q, &products, query, args...)
	return products, err
}

// ListProducts retrieves the products visible in scope
func (s *Store) ListProducts(ctx context.Context, scope models.AccessScope) ([]models.Product, error) {
	products := []models.Product{}
	var err error
	switch scope.Kind {
	case models.ScopeAll:
		err = sqlx.SelectContext(ctx, s.q, &products, "SELECT * FROM products ORDER BY created_at DESC")
	case models.ScopeClient:
		err = sqlx.SelectContext(ctx, s.q, &products,
			"SELECT * FROM products WHERE client_id = $1 ORDER BY created_at DESC", scope.ClientID)
	}
	return products, err
}

// ListActiveProductsByClient retrieves the storefront catalog of a client
func (s *Store) ListActiveProductsByClient(ctx context.Context, clientID string) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, s.q, &products,
		"SELECT * FROM products WHERE client_id = $1 AND is_deleted = FALSE ORDER BY name", clientID)
	return products, err
}

// UpdateProduct updates product details and stock
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products SET name = $1, category = $2, description = $3, unit = $4, min_order = $5,
			quantity = $6, types = $7, updated_by = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &product.UpdatedAt, query,
		product.Name, product.Category, product.Description, product.Unit, product.MinOrder,
		product.Quantity, product.Types, product.UpdatedBy, product.ID)
	return mapError(err, "product")
}
