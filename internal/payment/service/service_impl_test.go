package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/paygate/internal/config"
	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
	"github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/internal/payment/repository"
	"github.com/smallbiznis/paygate/internal/payment/service"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testKeySecret = "key_secret_test"

// gatewayStub satisfies the gateway client with canned payloads so service
// tests exercise the merge logic without a network.
type gatewayStub struct {
	captureCalls int
	refundCalls  int
	capture      gatewaydomain.Payload
	refund       gatewaydomain.Payload
	create       gatewaydomain.Payload
	err          error
}

func (g *gatewayStub) CreateCustomer(ctx context.Context, req gatewaydomain.CreateCustomerRequest) (gatewaydomain.Payload, error) {
	return nil, errors.New("unexpected call")
}

func (g *gatewayStub) CreateOrder(ctx context.Context, req gatewaydomain.CreateOrderRequest) (gatewaydomain.Payload, error) {
	return nil, errors.New("unexpected call")
}

func (g *gatewayStub) CreateRecurringPayment(ctx context.Context, req gatewaydomain.CreateRecurringPaymentRequest) (gatewaydomain.Payload, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.create, nil
}

func (g *gatewayStub) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (gatewaydomain.Payload, error) {
	g.captureCalls++
	if g.err != nil {
		return nil, g.err
	}
	if g.capture != nil {
		return g.capture, nil
	}
	return gatewaydomain.Payload{"id": paymentID, "amount": float64(amount), "status": "captured"}, nil
}

func (g *gatewayStub) RefundPayment(ctx context.Context, paymentID string, req gatewaydomain.RefundRequest) (gatewaydomain.Payload, error) {
	g.refundCalls++
	if g.err != nil {
		return nil, g.err
	}
	if g.refund != nil {
		return g.refund, nil
	}
	return gatewaydomain.Payload{"id": "rfnd_" + paymentID, "amount": float64(req.Amount), "status": "processed"}, nil
}

func (g *gatewayStub) CreateInvoice(ctx context.Context, req gatewaydomain.CreateInvoiceRequest) (gatewaydomain.Payload, error) {
	return nil, errors.New("unexpected call")
}

func (g *gatewayStub) CancelInvoice(ctx context.Context, invoiceID string) (gatewaydomain.Payload, error) {
	return nil, errors.New("unexpected call")
}

func (g *gatewayStub) NotifyInvoice(ctx context.Context, invoiceID string, medium string) error {
	return errors.New("unexpected call")
}

func (g *gatewayStub) FetchTokens(ctx context.Context, customerID string) (gatewaydomain.Payload, error) {
	return nil, errors.New("unexpected call")
}

func newService(t *testing.T) (domain.Service, *gatewayStub, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stub := &gatewayStub{}
	svc := service.New(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		Cfg:     config.Config{GatewayKeySecret: testKeySecret},
		Gateway: stub,
		Repo:    repository.Provide(),
	})
	return svc, stub, db
}

func seedPayment(t *testing.T, db *gorm.DB, payment domain.Payment) {
	t.Helper()
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func loadPayment(t *testing.T, db *gorm.DB, id string) domain.Payment {
	t.Helper()
	var payment domain.Payment
	if err := db.First(&payment, "id = ?", id).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	return payment
}

func TestCaptureDefaultsToStoredAmount(t *testing.T) {
	svc, stub, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 5000, Currency: "INR", Status: domain.StatusAuthorized,
	})

	got, err := svc.Capture(context.Background(), domain.CaptureRequest{PaymentID: "pay_1"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if got.Status != domain.StatusCaptured {
		t.Fatalf("expected captured status, got %q", got.Status)
	}
	if got.CapturedAmount != 5000 {
		t.Fatalf("expected capture of stored amount 5000, got %d", got.CapturedAmount)
	}
	if stub.captureCalls != 1 {
		t.Fatalf("expected one gateway capture, got %d", stub.captureCalls)
	}
}

func TestCaptureOfCapturedPaymentIsRejectedWithoutGatewayCall(t *testing.T) {
	svc, stub, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 5000, Currency: "INR", Status: domain.StatusCaptured,
	})

	if _, err := svc.Capture(context.Background(), domain.CaptureRequest{PaymentID: "pay_1"}); !errors.Is(err, domain.ErrAlreadyCaptured) {
		t.Fatalf("expected ErrAlreadyCaptured, got %v", err)
	}
	if stub.captureCalls != 0 {
		t.Fatal("double capture must not reach the gateway")
	}
}

func TestCaptureUnknownPayment(t *testing.T) {
	svc, _, _ := newService(t)

	if _, err := svc.Capture(context.Background(), domain.CaptureRequest{PaymentID: "pay_missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefundAccumulatesAcrossPartialRefunds(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCaptured,
	})

	got, err := svc.Refund(context.Background(), domain.RefundRequest{PaymentID: "pay_1", Amount: 400})
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if got.Status != domain.StatusPartiallyRefunded || got.RefundedAmount != 400 {
		t.Fatalf("after first refund: status=%q refunded=%d", got.Status, got.RefundedAmount)
	}

	got, err = svc.Refund(context.Background(), domain.RefundRequest{PaymentID: "pay_1", Amount: 600})
	if err != nil {
		t.Fatalf("second refund: %v", err)
	}
	if got.Status != domain.StatusRefunded || got.RefundedAmount != 1000 {
		t.Fatalf("after final refund: status=%q refunded=%d", got.Status, got.RefundedAmount)
	}

	refunds, _ := got.Metadata["refunds"].([]any)
	if len(refunds) != 2 {
		t.Fatalf("expected two refund records in metadata, got %d", len(refunds))
	}
}

func TestRefundExceedingRemainingIsRejected(t *testing.T) {
	svc, stub, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusPartiallyRefunded,
		RefundedAmount: 700,
	})

	if _, err := svc.Refund(context.Background(), domain.RefundRequest{PaymentID: "pay_1", Amount: 500}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if stub.refundCalls != 0 {
		t.Fatal("over-refund must not reach the gateway")
	}
}

func TestRefundDefaultsToRemainingAmount(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusPartiallyRefunded,
		RefundedAmount: 300,
	})

	got, err := svc.Refund(context.Background(), domain.RefundRequest{PaymentID: "pay_1"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got.Status != domain.StatusRefunded || got.RefundedAmount != 1000 {
		t.Fatalf("expected full settlement: status=%q refunded=%d", got.Status, got.RefundedAmount)
	}
}

func TestRefundOfUncapturedPaymentIsRejected(t *testing.T) {
	svc, stub, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusAuthorized,
	})

	if _, err := svc.Refund(context.Background(), domain.RefundRequest{PaymentID: "pay_1"}); !errors.Is(err, domain.ErrNotCaptured) {
		t.Fatalf("expected ErrNotCaptured, got %v", err)
	}
	if stub.refundCalls != 0 {
		t.Fatal("invalid-state refund must not reach the gateway")
	}
	if loaded := loadPayment(t, db, "pay_1"); loaded.Status != domain.StatusAuthorized {
		t.Fatalf("rejected refund must not write, status became %q", loaded.Status)
	}
}

func paymentSignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureMarksAuthorized(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCreated,
	})

	got, err := svc.VerifySignature(context.Background(), domain.VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: paymentSignature("order_1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != domain.StatusAuthorized {
		t.Fatalf("expected authorized, got %q", got.Status)
	}
	if got.Signature == "" {
		t.Fatal("expected signature persisted")
	}
}

func TestVerifySignatureRejectsTamperedSignature(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCreated,
	})

	sig := paymentSignature("order_1", "pay_1")
	tampered := "0" + sig[1:]
	if tampered == sig {
		tampered = "1" + sig[1:]
	}
	if _, err := svc.VerifySignature(context.Background(), domain.VerifyRequest{
		OrderID: "order_1", PaymentID: "pay_1", Signature: tampered,
	}); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureDoesNotRegressCapturedPayment(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCaptured,
	})

	got, err := svc.VerifySignature(context.Background(), domain.VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: paymentSignature("order_1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != domain.StatusCaptured {
		t.Fatalf("verification must not regress status, got %q", got.Status)
	}
}

func TestApplyAuthorizedInsertsOnFirstMention(t *testing.T) {
	svc, _, db := newService(t)

	err := svc.ApplyAuthorized(context.Background(), map[string]any{
		"id": "pay_new", "order_id": "order_1", "amount": float64(2500), "currency": "inr",
	})
	if err != nil {
		t.Fatalf("apply authorized: %v", err)
	}
	loaded := loadPayment(t, db, "pay_new")
	if loaded.Status != domain.StatusAuthorized {
		t.Fatalf("expected authorized, got %q", loaded.Status)
	}
	if loaded.CustomerID != "unknown" {
		t.Fatalf("missing customer id must default to unknown, got %q", loaded.CustomerID)
	}
	if loaded.Amount != 2500 || loaded.Currency != "INR" {
		t.Fatalf("unexpected payment fields: amount=%d currency=%q", loaded.Amount, loaded.Currency)
	}
}

func TestApplyAuthorizedDoesNotRegressCapturedPayment(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCaptured,
		Metadata: datatypes.JSONMap{"existing": "kept"},
	})

	err := svc.ApplyAuthorized(context.Background(), map[string]any{
		"id": "pay_1", "status": "authorized", "bank": "HDFC",
	})
	if err != nil {
		t.Fatalf("apply authorized: %v", err)
	}
	loaded := loadPayment(t, db, "pay_1")
	if loaded.Status != domain.StatusCaptured {
		t.Fatalf("stale authorized event regressed status to %q", loaded.Status)
	}
	if loaded.Metadata["existing"] != "kept" || loaded.Metadata["bank"] != "HDFC" {
		t.Fatalf("metadata merge lost keys: %v", loaded.Metadata)
	}
}

func TestApplyCapturedIsIdempotent(t *testing.T) {
	svc, _, db := newService(t)
	payload := map[string]any{
		"id": "pay_1", "order_id": "order_1", "amount": float64(1000),
		"currency": "INR", "method": "card", "captured_at": float64(1700000000),
	}

	for i := 0; i < 2; i++ {
		if err := svc.ApplyCaptured(context.Background(), payload); err != nil {
			t.Fatalf("apply captured (pass %d): %v", i, err)
		}
	}
	loaded := loadPayment(t, db, "pay_1")
	if loaded.Status != domain.StatusCaptured || loaded.CapturedAmount != 1000 {
		t.Fatalf("unexpected state after redelivery: status=%q amount=%d", loaded.Status, loaded.CapturedAmount)
	}
}

func TestApplyCapturedSkipsRefundedPayment(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusRefunded,
		RefundedAmount: 1000,
	})

	if err := svc.ApplyCaptured(context.Background(), map[string]any{"id": "pay_1"}); err != nil {
		t.Fatalf("apply captured: %v", err)
	}
	if loaded := loadPayment(t, db, "pay_1"); loaded.Status != domain.StatusRefunded {
		t.Fatalf("late capture overwrote refunded payment: %q", loaded.Status)
	}
}

func TestApplyCapturedReconcilesOverOutOfOrderFailure(t *testing.T) {
	svc, _, db := newService(t)

	if err := svc.ApplyFailed(context.Background(), map[string]any{
		"id": "pay_1", "order_id": "order_1", "amount": float64(1000), "currency": "INR",
		"error_code": "GATEWAY_ERROR",
	}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	err := svc.ApplyCaptured(context.Background(), map[string]any{
		"id": "pay_1", "order_id": "order_1", "amount": float64(1000),
		"currency": "INR", "method": "card", "captured_at": float64(1700000000),
	})
	if err != nil {
		t.Fatalf("apply captured: %v", err)
	}

	loaded := loadPayment(t, db, "pay_1")
	if loaded.Status != domain.StatusCaptured {
		t.Fatalf("captured webhook after out-of-order failure left status %q", loaded.Status)
	}
	if loaded.CapturedAmount != 1000 {
		t.Fatalf("expected capture amount 1000, got %d", loaded.CapturedAmount)
	}
}

func TestCaptureOfFailedPaymentReachesGateway(t *testing.T) {
	svc, stub, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 5000, Currency: "INR", Status: domain.StatusFailed,
	})

	got, err := svc.Capture(context.Background(), domain.CaptureRequest{PaymentID: "pay_1"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if got.Status != domain.StatusCaptured {
		t.Fatalf("expected captured status, got %q", got.Status)
	}
	if stub.captureCalls != 1 {
		t.Fatalf("expected one gateway capture, got %d", stub.captureCalls)
	}
}

func TestApplyFailedSkipsCapturedPayment(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusCaptured,
	})

	if err := svc.ApplyFailed(context.Background(), map[string]any{"id": "pay_1", "error_code": "BAD"}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if loaded := loadPayment(t, db, "pay_1"); loaded.Status != domain.StatusCaptured {
		t.Fatalf("captured payment failed retroactively: %q", loaded.Status)
	}
}

func TestApplyFailedRecordsErrorDetails(t *testing.T) {
	svc, _, db := newService(t)
	seedPayment(t, db, domain.Payment{
		ID: "pay_1", OrderID: "order_1", CustomerID: "cust_1",
		Amount: 1000, Currency: "INR", Status: domain.StatusAuthorized,
	})

	err := svc.ApplyFailed(context.Background(), map[string]any{
		"id": "pay_1", "error_code": "BAD_REQUEST_ERROR", "error_description": "card declined",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	loaded := loadPayment(t, db, "pay_1")
	if loaded.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %q", loaded.Status)
	}
	if loaded.Metadata["error_code"] != "BAD_REQUEST_ERROR" {
		t.Fatalf("expected error details merged, got %v", loaded.Metadata)
	}
}

func TestCreateRequiresRecurringFields(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), domain.CreatePaymentRequest{
		Email: "a@b.c", Contact: "+910000000000", Amount: 1000,
		OrderID: "order_1", CustomerID: "cust_1",
	})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing token, got %v", err)
	}
}

func TestCreateInsertsGatewayPayment(t *testing.T) {
	svc, stub, db := newService(t)
	stub.create = gatewaydomain.Payload{"razorpay_payment_id": "pay_rec_1", "status": "created"}

	got, err := svc.Create(context.Background(), domain.CreatePaymentRequest{
		Email: "a@b.c", Contact: "+910000000000", Amount: 1500,
		OrderID: "order_1", CustomerID: "cust_1", Token: "tok_1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != "pay_rec_1" || got.Status != domain.StatusCreated {
		t.Fatalf("unexpected payment: id=%q status=%q", got.ID, got.Status)
	}
	if loaded := loadPayment(t, db, "pay_rec_1"); loaded.Recurring != "1" {
		t.Fatalf("expected recurring flag defaulted to 1, got %q", loaded.Recurring)
	}
}
