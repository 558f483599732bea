package domain

import (
	"context"
	"errors"
	"fmt"
)

// Payload is a provider-shaped response body. Callers extract only the fields
// they understand; the rest is preserved as-is for audit metadata.
type Payload = map[string]any

// Client is the outbound capability of the payment gateway. Every call blocks
// on network I/O and honours the context deadline.
type Client interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Payload, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Payload, error)
	CreateRecurringPayment(ctx context.Context, req CreateRecurringPaymentRequest) (Payload, error)
	CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (Payload, error)
	RefundPayment(ctx context.Context, paymentID string, req RefundRequest) (Payload, error)
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Payload, error)
	CancelInvoice(ctx context.Context, invoiceID string) (Payload, error)
	NotifyInvoice(ctx context.Context, invoiceID string, medium string) error
	FetchTokens(ctx context.Context, customerID string) (Payload, error)
}

type CreateCustomerRequest struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Contact string         `json:"contact"`
	GSTIN   string         `json:"gstin,omitempty"`
	Notes   map[string]any `json:"notes,omitempty"`
}

type CreateOrderRequest struct {
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Receipt        string         `json:"receipt,omitempty"`
	Notes          map[string]any `json:"notes,omitempty"`
	PaymentCapture bool           `json:"payment_capture"`
	Notification   map[string]any `json:"notification,omitempty"`
}

type CreateRecurringPaymentRequest struct {
	Email       string         `json:"email"`
	Contact     string         `json:"contact"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	OrderID     string         `json:"order_id"`
	CustomerID  string         `json:"customer_id"`
	Token       string         `json:"token"`
	Recurring   string         `json:"recurring"`
	Description string         `json:"description,omitempty"`
	Notes       map[string]any `json:"notes,omitempty"`
}

type RefundRequest struct {
	Amount int64          `json:"amount,omitempty"`
	Speed  string         `json:"speed,omitempty"`
	Notes  map[string]any `json:"notes,omitempty"`
}

type CreateInvoiceRequest struct {
	Type            string         `json:"type"`
	CustomerID      string         `json:"customer_id"`
	CustomerDetails map[string]any `json:"customer_details,omitempty"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Description     string         `json:"description,omitempty"`
	Receipt         string         `json:"receipt,omitempty"`
	ExpireBy        int64          `json:"expire_by,omitempty"`
	SMSNotify       bool           `json:"sms_notify"`
	EmailNotify     bool           `json:"email_notify"`
	Notes           map[string]any `json:"notes,omitempty"`
}

// Error carries the provider's failure back to the caller. The core never
// retries; retry policy belongs to the transport.
type Error struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gateway %s failed: %s", e.Op, e.Message)
}

// IsGatewayError reports whether err originated from the gateway.
func IsGatewayError(err error) bool {
	var ge *Error
	return errors.As(err, &ge)
}

var ErrMissingCredentials = errors.New("gateway credentials are not configured")
