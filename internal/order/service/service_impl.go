package service

import (
	"context"
	"strings"
	"time"

	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
	"github.com/smallbiznis/paygate/internal/order/domain"
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
		log:     p.Log.Named("order.service"),
		gateway: p.Gateway,
		repo:    p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if req.Amount < domain.MinAmount {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}
	capture := true
	if req.PaymentCapture != nil {
		capture = *req.PaymentCapture
	}

	created, err := s.gateway.CreateOrder(ctx, gatewaydomain.CreateOrderRequest{
		Amount:         req.Amount,
		Currency:       currency,
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		PaymentCapture: capture,
		Notification:   req.Notification,
	})
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         stringField(created, "id"),
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   currency,
		Receipt:    req.Receipt,
		Status:     domain.StatusCreated,
		Notes:      datatypes.JSONMap(req.Notes),
	}
	if tokenID := stringField(req.Notification, "token_id"); tokenID != "" {
		order.Token = datatypes.JSONMap{"token_id": tokenID}
		order.TokenID = tokenID
	}
	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("amount", order.Amount),
	)
	return order, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx, s.db)
}

// ApplyPaid marks the order paid. Paid is terminal; redelivery converges on
// the same state.
func (s *Service) ApplyPaid(ctx context.Context, orderID string) error {
	if orderID == "" {
		return domain.ErrNotFound
	}
	return s.repo.Update(ctx, s.db, orderID, map[string]any{
		"status": domain.StatusPaid,
	})
}

// ApplyNotification merges a delivery report into the order's notes. Other
// note keys are preserved.
func (s *Service) ApplyNotification(ctx context.Context, orderID string, update domain.NotificationUpdate) error {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}

	notes := order.Notes
	if notes == nil {
		notes = datatypes.JSONMap{}
	}
	entry := map[string]any{
		"id":            update.ID,
		"status":        update.Status,
		"payment_after": update.PaymentAfter,
	}
	if update.DeliveredAt > 0 {
		entry["delivered_at"] = update.DeliveredAt
	} else {
		entry["delivered_at"] = nil
	}
	notes["notification"] = entry

	return s.repo.Update(ctx, s.db, order.ID, map[string]any{
		"notes": notes,
	})
}

// ApplyTokenEvent fans a token status change out to every order referencing
// the token. Each order is updated independently; a failure on one does not
// roll back the others, and re-applying the event converges.
func (s *Service) ApplyTokenEvent(ctx context.Context, tokenID string, status string, failureReason string) error {
	if tokenID == "" {
		return domain.ErrInvalidToken
	}

	orders, err := s.repo.FindByTokenID(ctx, s.db, tokenID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Unix()
	for i := range orders {
		order := &orders[i]
		token := order.Token
		if token == nil {
			token = datatypes.JSONMap{"token_id": tokenID}
		}
		details := map[string]any{"status": status}
		if failureReason != "" {
			details["failure_reason"] = failureReason
		}
		token["recurring_details"] = details
		token["updated_at"] = now

		if err := s.repo.Update(ctx, s.db, order.ID, map[string]any{"token": token}); err != nil {
			return err
		}
	}

	s.log.Info("token event applied",
		zap.String("token_id", tokenID),
		zap.String("status", status),
		zap.Int("orders", len(orders)),
	)
	return nil
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
