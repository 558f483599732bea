package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment statuses form a monotonic ladder. Stage encodes the ordering so
// stale webhook redeliveries can be rejected without per-handler status
// comparisons.
const (
	StatusCreated           = "created"
	StatusAuthorized        = "authorized"
	StatusCaptured          = "captured"
	StatusPartiallyRefunded = "partially_refunded"
	StatusRefunded          = "refunded"
	StatusFailed            = "failed"
)

// Stage ranks a status along the payment lifecycle. failed ranks with
// authorized: the gateway can deliver a failure and a capture for the same
// payment out of order, and the capture is the settled truth, so failed must
// not outrank captured. Once refunds begin the capture record is final and
// nothing re-applies over it. Unknown statuses rank below created so they
// never block a legitimate transition.
func Stage(status string) int {
	switch status {
	case StatusCreated:
		return 0
	case StatusAuthorized, StatusFailed:
		return 1
	case StatusCaptured:
		return 2
	case StatusPartiallyRefunded:
		return 3
	case StatusRefunded:
		return 4
	default:
		return -1
	}
}

// Payment is the local mirror of a gateway payment. Metadata is a merge-only
// bag: handlers add keys (latest raw payload, capture record, refunds list,
// failure record) and never replace the bag wholesale.
type Payment struct {
	ID         string `gorm:"primaryKey" json:"id"`
	OrderID    string `gorm:"not null;index" json:"order_id"`
	CustomerID string `gorm:"not null;index" json:"customer_id"`
	Amount     int64  `gorm:"not null" json:"amount"`
	Currency   string `gorm:"not null;default:INR" json:"currency"`
	Status     string `gorm:"not null" json:"status"`
	Recurring  string `json:"recurring,omitempty"`

	// Signature is set once by signature verification and never overwritten.
	Signature string `json:"signature,omitempty"`

	CaptureID        string     `json:"capture_id,omitempty"`
	CapturedAmount   int64      `json:"captured_amount,omitempty"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	CaptureMethod    string     `json:"capture_method,omitempty"`
	CaptureFee       int64      `json:"capture_fee,omitempty"`
	CaptureReference string     `json:"capture_reference,omitempty"`

	RefundedAmount int64 `gorm:"not null;default:0" json:"refunded_amount"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

type CreatePaymentRequest struct {
	Email       string         `json:"email"`
	Contact     string         `json:"contact"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	OrderID     string         `json:"orderId"`
	CustomerID  string         `json:"customerId"`
	Token       string         `json:"token"`
	Recurring   string         `json:"recurring,omitempty"`
	Description string         `json:"description,omitempty"`
	Notes       map[string]any `json:"notes,omitempty"`
}

type CaptureRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount,omitempty"`
}

type RefundRequest struct {
	PaymentID string         `json:"paymentId"`
	Amount    int64          `json:"amount,omitempty"`
	Notes     map[string]any `json:"notes,omitempty"`
	Speed     string         `json:"speed,omitempty"`
}

type VerifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type Service interface {
	// Synchronous gateway-coordinated actions.
	Create(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	List(ctx context.Context) ([]Payment, error)
	Capture(ctx context.Context, req CaptureRequest) (*Payment, error)
	Refund(ctx context.Context, req RefundRequest) (*Payment, error)
	VerifySignature(ctx context.Context, req VerifyRequest) (*Payment, error)

	// Webhook reconcilers. The payload is the provider's payment entity.
	ApplyAuthorized(ctx context.Context, payment map[string]any) error
	ApplyCaptured(ctx context.Context, payment map[string]any) error
	ApplyFailed(ctx context.Context, payment map[string]any) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Payment, error)
	List(ctx context.Context, db *gorm.DB) ([]Payment, error)
	Update(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
}

var (
	ErrInvalidRequest   = errors.New("invalid_payment_request")
	ErrInvalidAmount    = errors.New("invalid_refund_amount")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrNotFound         = errors.New("payment_not_found")
	ErrAlreadyCaptured  = errors.New("payment_already_captured")
	ErrNotCaptured      = errors.New("payment_not_captured")
)
