package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/paygate/internal/customer/domain"
	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
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
		log:     p.Log.Named("customer.service"),
		gateway: p.Gateway,
		repo:    p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Contact = strings.TrimSpace(req.Contact)
	if req.Name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if req.Contact == "" {
		return nil, domain.ErrInvalidContact
	}

	created, err := s.gateway.CreateCustomer(ctx, gatewaydomain.CreateCustomerRequest{
		Name:    req.Name,
		Email:   req.Email,
		Contact: req.Contact,
		GSTIN:   req.GSTIN,
		Notes:   req.Notes,
	})
	if err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:      stringField(created, "id"),
		Name:    req.Name,
		Email:   req.Email,
		Contact: req.Contact,
		GSTIN:   req.GSTIN,
		Notes:   datatypes.JSONMap(req.Notes),
	}
	if err := s.repo.Insert(ctx, s.db, customer); err != nil {
		return nil, err
	}

	s.log.Info("customer created", zap.String("customer_id", customer.ID))
	return customer, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.List(ctx, s.db)
}

// FetchTokens proxies the gateway's saved-instrument listing. Tokens live at
// the gateway; the local store only records references on orders.
func (s *Service) FetchTokens(ctx context.Context, customerID string) (map[string]any, error) {
	existing, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return s.gateway.FetchTokens(ctx, customerID)
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
