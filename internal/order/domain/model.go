package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
)

// Token lifecycle statuses pushed by the gateway for recurring instruments.
const (
	TokenStatusConfirmed = "confirmed"
	TokenStatusRejected  = "rejected"
	TokenStatusCancelled = "cancelled"
	TokenStatusPaused    = "paused"
)

// Order mirrors the gateway order. Notes is an accumulating bag: reconcilers
// merge keys into it and never replace it wholesale. TokenID duplicates the
// token reference out of the Token bag so token events can fan out through a
// plain indexed column instead of querying inside JSON.
type Order struct {
	ID         string            `gorm:"primaryKey" json:"id"`
	CustomerID string            `gorm:"not null;index" json:"customer_id"`
	Amount     int64             `gorm:"not null" json:"amount"`
	Currency   string            `gorm:"not null;default:INR" json:"currency"`
	Receipt    string            `json:"receipt,omitempty"`
	Status     string            `gorm:"not null" json:"status"`
	Attempts   int               `gorm:"default:0" json:"attempts"`
	Notes      datatypes.JSONMap `gorm:"type:jsonb" json:"notes,omitempty"`
	Token      datatypes.JSONMap `gorm:"type:jsonb" json:"token,omitempty"`
	TokenID    string            `gorm:"index" json:"-"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

type CreateOrderRequest struct {
	CustomerID     string         `json:"customerId"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Receipt        string         `json:"receipt,omitempty"`
	Notes          map[string]any `json:"notes,omitempty"`
	Notification   map[string]any `json:"notification,omitempty"`
	PaymentCapture *bool          `json:"payment_capture,omitempty"`
}

// NotificationUpdate is the delivery report merged into an order's notes.
type NotificationUpdate struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DeliveredAt  int64  `json:"delivered_at,omitempty"`
	PaymentAfter int64  `json:"payment_after,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	List(ctx context.Context) ([]Order, error)

	// Webhook reconcilers.
	ApplyPaid(ctx context.Context, orderID string) error
	ApplyNotification(ctx context.Context, orderID string, update NotificationUpdate) error
	ApplyTokenEvent(ctx context.Context, tokenID string, status string, failureReason string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Order, error)
	FindByTokenID(ctx context.Context, db *gorm.DB, tokenID string) ([]Order, error)
	List(ctx context.Context, db *gorm.DB) ([]Order, error)
	Update(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
}

var (
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidToken    = errors.New("invalid_token")
	ErrNotFound        = errors.New("order_not_found")
)

// MinAmount is the smallest accepted order amount in minor currency units.
const MinAmount = 100
