package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusIssued    = "issued"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

const (
	NotifyStatusPending = "pending"
	NotifyStatusSent    = "sent"

	MediumSMS   = "sms"
	MediumEmail = "email"
)

// RegistrationInvoice mirrors a gateway registration invoice. paid_at,
// cancelled_at and expired_at are mutually exclusive terminal markers.
type RegistrationInvoice struct {
	ID            string            `gorm:"primaryKey" json:"id"`
	CustomerID    string            `gorm:"index" json:"customer_id"`
	OrderID       string            `json:"order_id,omitempty"`
	PaymentID     string            `json:"payment_id,omitempty"`
	Receipt       string            `json:"receipt,omitempty"`
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	Amount        int64             `gorm:"not null" json:"amount"`
	AmountPaid    int64             `gorm:"default:0" json:"amount_paid"`
	AmountDue     int64             `json:"amount_due"`
	Currency      string            `gorm:"not null;default:INR" json:"currency"`
	Description   string            `json:"description,omitempty"`
	Status        string            `gorm:"not null" json:"status"`
	SMSStatus     string            `gorm:"default:pending" json:"sms_status"`
	EmailStatus   string            `gorm:"default:pending" json:"email_status"`
	ExpireBy      int64             `json:"expire_by,omitempty"`
	IssuedAt      int64             `json:"issued_at,omitempty"`
	PaidAt        int64             `json:"paid_at,omitempty"`
	CancelledAt   int64             `json:"cancelled_at,omitempty"`
	ExpiredAt     int64             `json:"expired_at,omitempty"`
	ShortURL      string            `json:"short_url,omitempty"`
	Notes         datatypes.JSONMap `gorm:"type:jsonb" json:"notes,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RegistrationInvoice) TableName() string { return "registration_invoices" }

type CreateInvoiceRequest struct {
	CustomerID      string         `json:"customerId"`
	CustomerDetails map[string]any `json:"customerDetails,omitempty"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency,omitempty"`
	Description     string         `json:"description,omitempty"`
	Receipt         string         `json:"receipt,omitempty"`
	ExpireBy        int64          `json:"expireBy,omitempty"`
	Notes           map[string]any `json:"notes,omitempty"`
}

// PaidUpdate carries the settlement fields of an invoice.paid webhook.
type PaidUpdate struct {
	AmountPaid int64
	AmountDue  int64
	PaymentID  string
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*RegistrationInvoice, error)
	List(ctx context.Context) ([]RegistrationInvoice, error)
	Cancel(ctx context.Context, invoiceID string) (*RegistrationInvoice, error)
	Notify(ctx context.Context, invoiceID string, medium string) (*RegistrationInvoice, error)

	// Webhook reconcilers.
	ApplyPaid(ctx context.Context, invoiceID string, update PaidUpdate) error
	ApplyExpired(ctx context.Context, invoiceID string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *RegistrationInvoice) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*RegistrationInvoice, error)
	List(ctx context.Context, db *gorm.DB) ([]RegistrationInvoice, error)
	Update(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
}

var (
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidMedium   = errors.New("invalid_medium")
	ErrNotFound        = errors.New("invoice_not_found")
	ErrAlreadyCancelled = errors.New("invoice_already_cancelled")
)
