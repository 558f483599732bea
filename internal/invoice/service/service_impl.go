package service

import (
	"context"
	"strings"
	"time"

	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
	"github.com/smallbiznis/paygate/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Gateway gatewaydomain.Client
	Repo    domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	gateway gatewaydomain.Client
	repo    domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		gateway: p.Gateway,
		repo:    p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.RegistrationInvoice, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	created, err := s.gateway.CreateInvoice(ctx, gatewaydomain.CreateInvoiceRequest{
		Type:            "invoice",
		CustomerID:      req.CustomerID,
		CustomerDetails: req.CustomerDetails,
		Amount:          req.Amount,
		Currency:        currency,
		Description:     req.Description,
		Receipt:         req.Receipt,
		ExpireBy:        req.ExpireBy,
		SMSNotify:       true,
		EmailNotify:     true,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	invoice := &domain.RegistrationInvoice{
		ID:            stringField(created, "id"),
		CustomerID:    req.CustomerID,
		Receipt:       req.Receipt,
		InvoiceNumber: stringField(created, "invoice_number"),
		Amount:        req.Amount,
		AmountDue:     req.Amount,
		Currency:      currency,
		Description:   req.Description,
		Status:        domain.StatusIssued,
		SMSStatus:     domain.NotifyStatusPending,
		EmailStatus:   domain.NotifyStatusPending,
		ExpireBy:      req.ExpireBy,
		IssuedAt:      time.Now().UTC().Unix(),
		ShortURL:      stringField(created, "short_url"),
		Notes:         datatypes.JSONMap(req.Notes),
	}
	if err := s.repo.Insert(ctx, s.db, invoice); err != nil {
		return nil, err
	}

	s.log.Info("registration invoice created", zap.String("invoice_id", invoice.ID))
	return invoice, nil
}

func (s *Service) List(ctx context.Context) ([]domain.RegistrationInvoice, error) {
	return s.repo.List(ctx, s.db)
}

// Cancel rejects already-cancelled invoices before touching the gateway.
func (s *Service) Cancel(ctx context.Context, invoiceID string) (*domain.RegistrationInvoice, error) {
	existing, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	if existing.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	if _, err := s.gateway.CancelInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}

	err = s.repo.Update(ctx, s.db, invoiceID, map[string]any{
		"status":       domain.StatusCancelled,
		"cancelled_at": time.Now().UTC().Unix(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("registration invoice cancelled", zap.String("invoice_id", invoiceID))
	return s.repo.FindByID(ctx, s.db, invoiceID)
}

// Notify resends the invoice over sms or email and records the delivery flag.
func (s *Service) Notify(ctx context.Context, invoiceID string, medium string) (*domain.RegistrationInvoice, error) {
	medium = strings.ToLower(strings.TrimSpace(medium))
	if medium != domain.MediumSMS && medium != domain.MediumEmail {
		return nil, domain.ErrInvalidMedium
	}

	existing, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}

	if err := s.gateway.NotifyInvoice(ctx, invoiceID, medium); err != nil {
		return nil, err
	}

	field := "sms_status"
	if medium == domain.MediumEmail {
		field = "email_status"
	}
	if err := s.repo.Update(ctx, s.db, invoiceID, map[string]any{field: domain.NotifyStatusSent}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, invoiceID)
}

// ApplyPaid reconciles an invoice.paid webhook.
func (s *Service) ApplyPaid(ctx context.Context, invoiceID string, update domain.PaidUpdate) error {
	if invoiceID == "" {
		return domain.ErrNotFound
	}
	fields := map[string]any{
		"status":      domain.StatusPaid,
		"amount_paid": update.AmountPaid,
		"amount_due":  update.AmountDue,
		"paid_at":     time.Now().UTC().Unix(),
	}
	if update.PaymentID != "" {
		fields["payment_id"] = update.PaymentID
	}
	return s.repo.Update(ctx, s.db, invoiceID, fields)
}

// ApplyExpired reconciles an invoice.expired webhook.
func (s *Service) ApplyExpired(ctx context.Context, invoiceID string) error {
	if invoiceID == "" {
		return domain.ErrNotFound
	}
	return s.repo.Update(ctx, s.db, invoiceID, map[string]any{
		"status":     domain.StatusExpired,
		"expired_at": time.Now().UTC().Unix(),
	})
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
