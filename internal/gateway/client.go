// Package gateway implements the outbound payment-gateway client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	"go.uber.org/zap"
)

type client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *zap.Logger
	metrics   *obsmetrics.Metrics
}

// NewClient builds the HTTP gateway client. The timeout bounds every RPC in
// addition to the caller's context deadline.
func NewClient(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) domain.Client {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		baseURL:   strings.TrimRight(cfg.GatewayBaseURL, "/"),
		keyID:     cfg.GatewayKeyID,
		keySecret: cfg.GatewayKeySecret,
		http:      &http.Client{Timeout: timeout},
		log:       log.Named("gateway.client"),
		metrics:   metrics,
	}
}

func (c *client) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Payload, error) {
	return c.doJSON(ctx, "customer.create", http.MethodPost, "/v1/customers", req)
}

func (c *client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Payload, error) {
	return c.doJSON(ctx, "order.create", http.MethodPost, "/v1/orders", req)
}

func (c *client) CreateRecurringPayment(ctx context.Context, req domain.CreateRecurringPaymentRequest) (domain.Payload, error) {
	return c.doJSON(ctx, "payment.create_recurring", http.MethodPost, "/v1/payments/create/recurring", req)
}

func (c *client) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (domain.Payload, error) {
	body := map[string]any{"amount": amount, "currency": currency}
	return c.doJSON(ctx, "payment.capture", http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/capture", body)
}

func (c *client) RefundPayment(ctx context.Context, paymentID string, req domain.RefundRequest) (domain.Payload, error) {
	return c.doJSON(ctx, "payment.refund", http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refund", req)
}

func (c *client) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Payload, error) {
	return c.doJSON(ctx, "invoice.create", http.MethodPost, "/v1/invoices", req)
}

func (c *client) CancelInvoice(ctx context.Context, invoiceID string) (domain.Payload, error) {
	return c.doJSON(ctx, "invoice.cancel", http.MethodPost, "/v1/invoices/"+url.PathEscape(invoiceID)+"/cancel", nil)
}

func (c *client) NotifyInvoice(ctx context.Context, invoiceID string, medium string) error {
	path := "/v1/invoices/" + url.PathEscape(invoiceID) + "/notify_by/" + url.PathEscape(medium)
	_, err := c.doJSON(ctx, "invoice.notify", http.MethodPost, path, nil)
	return err
}

func (c *client) FetchTokens(ctx context.Context, customerID string) (domain.Payload, error) {
	return c.doJSON(ctx, "token.list", http.MethodGet, "/v1/customers/"+url.PathEscape(customerID)+"/tokens", nil)
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *client) doJSON(ctx context.Context, op string, method string, path string, body any) (domain.Payload, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, domain.ErrMissingCredentials
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordGatewayCall(op, "error")
		return nil, &domain.Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&gwErr)
		c.metrics.RecordGatewayCall(op, "error")
		c.log.Warn("gateway call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", gwErr.Error.Code),
		)
		return nil, &domain.Error{
			Op:      op,
			Status:  resp.StatusCode,
			Code:    gwErr.Error.Code,
			Message: gwErr.Error.Description,
		}
	}

	var out domain.Payload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.RecordGatewayCall(op, "error")
		return nil, &domain.Error{Op: op, Status: resp.StatusCode, Message: "malformed gateway response"}
	}
	c.metrics.RecordGatewayCall(op, "ok")
	return out, nil
}
