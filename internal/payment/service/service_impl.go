package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/paygate/internal/config"
	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
	"github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/internal/signature"
	"github.com/smallbiznis/paygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Gateway gatewaydomain.Client
	Repo    domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	gateway gatewaydomain.Client
	repo    domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		cfg:     p.Cfg,
		gateway: p.Gateway,
		repo:    p.Repo,
	}
}

// Create registers a recurring charge with the gateway and mirrors it locally
// with status created. The local insert happens only after the RPC succeeds.
func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Contact = strings.TrimSpace(req.Contact)
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Token = strings.TrimSpace(req.Token)
	if req.Email == "" || req.Contact == "" || req.OrderID == "" || req.CustomerID == "" || req.Token == "" || req.Amount <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}
	recurring := req.Recurring
	if recurring == "" {
		recurring = "1"
	}

	created, err := s.gateway.CreateRecurringPayment(ctx, gatewaydomain.CreateRecurringPaymentRequest{
		Email:       req.Email,
		Contact:     req.Contact,
		Amount:      req.Amount,
		Currency:    currency,
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		Token:       req.Token,
		Recurring:   recurring,
		Description: req.Description,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:         payloadString(created, "razorpay_payment_id"),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   currency,
		Status:     domain.StatusCreated,
		Recurring:  recurring,
		Metadata:   datatypes.JSONMap(created),
	}
	if payment.ID == "" {
		payment.ID = payloadString(created, "id")
	}
	if err := s.repo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}

	s.log.Info("recurring payment created", zap.String("payment_id", payment.ID))
	return payment, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Payment, error) {
	return s.repo.List(ctx, s.db)
}

// Capture settles an authorized hold. The amount defaults to the stored
// payment amount; the capture merge is shared with the captured-webhook path
// so both writers converge on identical field values.
func (s *Service) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.Payment, error) {
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		return nil, domain.ErrInvalidRequest
	}

	existing, err := s.repo.FindByID(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	if existing.Status == domain.StatusCaptured {
		return nil, domain.ErrAlreadyCaptured
	}
	if domain.Stage(existing.Status) > domain.Stage(domain.StatusCaptured) {
		return nil, domain.ErrAlreadyCaptured
	}

	amount := req.Amount
	if amount <= 0 {
		amount = existing.Amount
	}

	captured, err := s.gateway.CapturePayment(ctx, req.PaymentID, amount, existing.Currency)
	if err != nil {
		return nil, err
	}

	fields := captureFields(existing, captured, "manual")
	if err := s.repo.Update(ctx, s.db, existing.ID, fields); err != nil {
		return nil, err
	}

	s.log.Info("payment captured",
		zap.String("payment_id", existing.ID),
		zap.Int64("amount", amount),
	)
	return s.repo.FindByID(ctx, s.db, existing.ID)
}

// Refund reverses part or all of a captured payment. A refund completing the
// full amount transitions to refunded; otherwise partially_refunded.
func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (*domain.Payment, error) {
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		return nil, domain.ErrInvalidRequest
	}

	existing, err := s.repo.FindByID(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	if existing.Status != domain.StatusCaptured && existing.Status != domain.StatusPartiallyRefunded {
		return nil, domain.ErrNotCaptured
	}

	remaining := existing.Amount - existing.RefundedAmount
	amount := req.Amount
	if amount <= 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, domain.ErrInvalidAmount
	}

	speed := req.Speed
	if speed == "" {
		speed = "normal"
	}
	refund, err := s.gateway.RefundPayment(ctx, req.PaymentID, gatewaydomain.RefundRequest{
		Amount: amount,
		Speed:  speed,
		Notes:  req.Notes,
	})
	if err != nil {
		return nil, err
	}

	refundAmount := payloadInt64(refund, "amount")
	if refundAmount <= 0 {
		refundAmount = amount
	}
	refunded := existing.RefundedAmount + refundAmount
	fullRefund := refunded >= existing.Amount

	status := domain.StatusPartiallyRefunded
	refundStatus := "partial"
	if fullRefund {
		status = domain.StatusRefunded
		refundStatus = "full"
	}

	refunds, _ := existing.Metadata["refunds"].([]any)
	refunds = append(refunds, map[string]any(refund))

	metadata := mergeMetadata(existing.Metadata, map[string]any{
		"refund_status":   refundStatus,
		"amount_refunded": refunded,
		"refunds":         refunds,
		"refunded_at":     time.Now().UTC().Unix(),
	})

	err = s.repo.Update(ctx, s.db, existing.ID, map[string]any{
		"status":          status,
		"refunded_amount": refunded,
		"metadata":        datatypes.JSONMap(metadata),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment refunded",
		zap.String("payment_id", existing.ID),
		zap.Int64("amount", refundAmount),
		zap.Bool("full", fullRefund),
	)
	return s.repo.FindByID(ctx, s.db, existing.ID)
}

// VerifySignature validates the payment-confirmation triple and marks the
// payment authorized. The signature is persisted once and never overwritten.
func (s *Service) VerifySignature(ctx context.Context, req domain.VerifyRequest) (*domain.Payment, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, domain.ErrInvalidRequest
	}
	if !signature.VerifyPayment(req.OrderID, req.PaymentID, req.Signature, s.cfg.GatewayKeySecret) {
		return nil, domain.ErrInvalidSignature
	}

	existing, err := s.repo.FindByID(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}

	fields := map[string]any{}
	if domain.Stage(existing.Status) < domain.Stage(domain.StatusAuthorized) {
		fields["status"] = domain.StatusAuthorized
	}
	if existing.Signature == "" {
		fields["signature"] = req.Signature
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, s.db, existing.ID, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByID(ctx, s.db, existing.ID)
}

// ApplyAuthorized reconciles a payment.authorized webhook. The merge is
// idempotent at the entity level and never regresses a payment that has
// already advanced past authorization.
func (s *Service) ApplyAuthorized(ctx context.Context, payment map[string]any) error {
	id := payloadString(payment, "id")
	if id == "" {
		return domain.ErrInvalidRequest
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.insertFromWebhook(ctx, s.paymentFromPayload(payment, domain.StatusAuthorized))
	}

	fields := map[string]any{
		"metadata": datatypes.JSONMap(mergeMetadata(existing.Metadata, payment)),
	}
	// A stale authorized event after capture must not roll the status back.
	if domain.Stage(existing.Status) < domain.Stage(domain.StatusAuthorized) {
		fields["status"] = domain.StatusAuthorized
	}
	return s.repo.Update(ctx, s.db, existing.ID, fields)
}

// ApplyCaptured reconciles a payment.captured webhook. Capture fields always
// carry the most recent capture event's values; the gateway is the ordering
// authority and redelivers the latest truth.
func (s *Service) ApplyCaptured(ctx context.Context, payment map[string]any) error {
	id := payloadString(payment, "id")
	if id == "" {
		return domain.ErrInvalidRequest
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing == nil {
		record := s.paymentFromPayload(payment, domain.StatusCaptured)
		applyCaptureRecord(record, payment, "automatic")
		record.Metadata = datatypes.JSONMap(map[string]any{"capture": payment})
		return s.insertFromWebhook(ctx, record)
	}

	// Refunds have already begun; a late capture event carries nothing new.
	if domain.Stage(existing.Status) > domain.Stage(domain.StatusCaptured) {
		return nil
	}

	return s.repo.Update(ctx, s.db, existing.ID, captureFields(existing, payment, "automatic"))
}

// ApplyFailed reconciles a payment.failed webhook. Only non-terminal payments
// can fail; the provider's error details are merged into metadata.
func (s *Service) ApplyFailed(ctx context.Context, payment map[string]any) error {
	id := payloadString(payment, "id")
	if id == "" {
		return domain.ErrInvalidRequest
	}

	failure := map[string]any{
		"error_code":        payloadString(payment, "error_code"),
		"error_description": payloadString(payment, "error_description"),
		"failed_at":         time.Now().UTC().Unix(),
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing == nil {
		record := s.paymentFromPayload(payment, domain.StatusFailed)
		record.Metadata = datatypes.JSONMap(mergeMetadata(payment, failure))
		return s.insertFromWebhook(ctx, record)
	}

	if domain.Stage(existing.Status) > domain.Stage(domain.StatusAuthorized) {
		// Captured or refunded payments do not fail retroactively.
		return nil
	}

	metadata := mergeMetadata(existing.Metadata, payment)
	metadata = mergeMetadata(metadata, failure)
	return s.repo.Update(ctx, s.db, existing.ID, map[string]any{
		"status":   domain.StatusFailed,
		"metadata": datatypes.JSONMap(metadata),
	})
}

// insertFromWebhook inserts a payment first seen through a webhook. A
// concurrent delivery may have inserted the row between lookup and insert;
// the redelivered event converges on the same state, so the race is benign.
func (s *Service) insertFromWebhook(ctx context.Context, record *domain.Payment) error {
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}

// paymentFromPayload builds a Payment for first-webhook-mention creation.
func (s *Service) paymentFromPayload(payment map[string]any, status string) *domain.Payment {
	customerID := payloadString(payment, "customer_id")
	if customerID == "" {
		customerID = "unknown"
	}
	recurring := ""
	if _, ok := payment["recurring"]; ok {
		recurring = "0"
		switch cast := payment["recurring"].(type) {
		case bool:
			if cast {
				recurring = "1"
			}
		case string:
			recurring = cast
		}
	}
	return &domain.Payment{
		ID:         payloadString(payment, "id"),
		OrderID:    payloadString(payment, "order_id"),
		CustomerID: customerID,
		Amount:     payloadInt64(payment, "amount"),
		Currency:   strings.ToUpper(payloadString(payment, "currency")),
		Status:     status,
		Recurring:  recurring,
		Metadata:   datatypes.JSONMap(payment),
	}
}

// captureFields computes the capture merge shared by the captured-webhook
// path and the synchronous capture action. Prior metadata keys survive; the
// raw capture payload lands under the capture key.
func captureFields(existing *domain.Payment, payload map[string]any, defaultMethod string) map[string]any {
	method := payloadString(payload, "method")
	if method == "" {
		method = defaultMethod
	}

	fields := map[string]any{
		"status":            domain.StatusCaptured,
		"capture_id":        payloadString(payload, "id"),
		"captured_amount":   payloadInt64(payload, "amount"),
		"capture_method":    method,
		"capture_fee":       payloadInt64(payload, "fee"),
		"capture_reference": payloadString(payloadMap(payload, "acquirer_data"), "transaction_id"),
		"metadata":          datatypes.JSONMap(mergeMetadata(existing.Metadata, map[string]any{"capture": payload})),
	}
	if ts := payloadInt64(payload, "captured_at"); ts > 0 {
		fields["captured_at"] = time.Unix(ts, 0).UTC()
	} else {
		fields["captured_at"] = time.Now().UTC()
	}
	return fields
}

// applyCaptureRecord sets capture fields on a freshly built record.
func applyCaptureRecord(record *domain.Payment, payload map[string]any, defaultMethod string) {
	record.CaptureID = payloadString(payload, "id")
	record.CapturedAmount = payloadInt64(payload, "amount")
	record.CaptureMethod = payloadString(payload, "method")
	if record.CaptureMethod == "" {
		record.CaptureMethod = defaultMethod
	}
	record.CaptureFee = payloadInt64(payload, "fee")
	record.CaptureReference = payloadString(payloadMap(payload, "acquirer_data"), "transaction_id")
	ts := payloadInt64(payload, "captured_at")
	var capturedAt time.Time
	if ts > 0 {
		capturedAt = time.Unix(ts, 0).UTC()
	} else {
		capturedAt = time.Now().UTC()
	}
	record.CapturedAt = &capturedAt
}
