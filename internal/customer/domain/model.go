package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer mirrors the gateway's customer record. The id is the
// gateway-assigned external id. Immutable after creation except notes.
type Customer struct {
	ID        string            `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null" json:"name"`
	Email     string            `gorm:"uniqueIndex;not null" json:"email"`
	Contact   string            `gorm:"not null" json:"contact"`
	GSTIN     string            `json:"gstin,omitempty"`
	Notes     datatypes.JSONMap `gorm:"type:jsonb" json:"notes,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

type CreateCustomerRequest struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Contact string         `json:"contact"`
	GSTIN   string         `json:"gstin,omitempty"`
	Notes   map[string]any `json:"notes,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	FetchTokens(ctx context.Context, customerID string) (map[string]any, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB) ([]Customer, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidContact = errors.New("invalid_contact")
	ErrNotFound       = errors.New("customer_not_found")
)
