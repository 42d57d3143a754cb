package models

import "time"

// User represents an account, optionally linked to a client tenant
type User struct {
	ID           string     `db:"id" json:"id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	ClientID     *string    `db:"client_id" json:"client_id,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy    *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	IsDeleted    bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Role is a named bundle of permissions. Elevated roles bypass permission checks.
type Role struct {
	ID          string     `db:"id" json:"id"`
	Slug        string     `db:"slug" json:"slug"`
	Name        string     `db:"name" json:"name"`
	Rank        int        `db:"rank" json:"rank"`
	Description string     `db:"description" json:"description"`
	IsElevated  bool       `db:"is_elevated" json:"is_elevated"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy   *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Permission is an atomic capability identified by its code
type Permission struct {
	ID          string     `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Type        string     `db:"type" json:"type"`
	Description string     `db:"description" json:"description"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy   *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

type RolePermission struct {
	ID           string    `db:"id" json:"id"`
	RoleID       string    `db:"role_id" json:"role_id"`
	PermissionID string    `db:"permission_id" json:"permission_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type UserRole struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	RoleID    string    `db:"role_id" json:"role_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Client is a tenant that owns products and orders
type Client struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Code      string     `db:"code" json:"code"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone"`
	URL       string     `db:"url" json:"url"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	IsDeleted bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Product represents a catalog entry. Quantity is the sellable stock.
type Product struct {
	ID          string          `db:"id" json:"id"`
	ClientID    string          `db:"client_id" json:"client_id"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
	Unit        string          `db:"unit" json:"unit"`
	MinOrder    int             `db:"min_order" json:"min_order"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Types       ProductVariants `db:"types" json:"types"`
	CreatedBy   *string         `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy   *string         `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	IsDeleted   bool            `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ProductVariant is a priced type of a product, e.g. "whole" or "fillet". Price is in cents.
type ProductVariant struct {
	Type  string `json:"type"`
	Price int64  `json:"price"`
}

type ProductVariants []ProductVariant

// PriceOf returns the price of the named variant. An empty name picks the first variant.
func (p *Product) PriceOf(variant string) (ProductVariant, bool) {
	for _, v := range p.Types {
		if variant == "" || v.Type == variant {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// Fixed role slugs accepted at role creation
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleClient     = "CLIENT"
	RoleUser       = "USER"
	RoleEmployee   = "EMPLOYEE"
	RoleMember     = "MEMBER"
	RoleCustomer   = "CUSTOMER"
)

var UserTypes = []string{
	RoleSuperAdmin, RoleAdmin, RoleClient, RoleUser, RoleEmployee, RoleMember, RoleCustomer,
}

var PermissionTypes = []string{
	"USER", "ROLE", "PERMISSION", "CLIENT", "ABOUT", "SLIDER", "SERVICE", "EMPLOYEE", "MEMBER",
	"STUDENT", "PRODUCT", "REPORT", "SETTING", "AUTH", "ORDER", "GALLERY", "CONTACT",
}

// Permission codes checked by the HTTP layer
const (
	PermRoleView         = "ROLE_VIEW"
	PermRoleCreate       = "ROLE_CREATE"
	PermRoleUpdate       = "ROLE_UPDATE"
	PermRoleDelete       = "ROLE_DELETE"
	PermPermissionView   = "PERMISSION_VIEW"
	PermPermissionCreate = "PERMISSION_CREATE"
	PermPermissionUpdate = "PERMISSION_UPDATE"
	PermPermissionDelete = "PERMISSION_DELETE"
	PermUserView         = "USER_VIEW"
	PermUserCreate       = "USER_CREATE"
	PermUserUpdate       = "USER_UPDATE"
	PermUserDelete       = "USER_DELETE"
	PermClientView       = "CLIENT_VIEW"
	PermClientCreate     = "CLIENT_CREATE"
	PermClientUpdate     = "CLIENT_UPDATE"
	PermClientDelete     = "CLIENT_DELETE"
	PermProductView      = "PRODUCT_VIEW"
	PermProductCreate    = "PRODUCT_CREATE"
	PermProductUpdate    = "PRODUCT_UPDATE"
	PermProductDelete    = "PRODUCT_DELETE"
	PermOrderView        = "ORDER_VIEW"
	PermOrderUpdate      = "ORDER_UPDATE"
)

// Entity names accepted by the lifecycle operations
const (
	EntityUser       = "users"
	EntityRole       = "roles"
	EntityPermission = "permissions"
	EntityClient     = "clients"
	EntityProduct    = "products"
)

// ProcessedEvent for idempotent consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
