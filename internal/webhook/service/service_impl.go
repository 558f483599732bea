// Package service routes verified, deduplicated gateway deliveries to the
// entity reconcilers. Webhooks and synchronous actions converge on the same
// reconciler merge logic, so both writers produce identical state.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/dedup"
	invoicedomain "github.com/smallbiznis/paygate/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/internal/signature"
	"github.com/smallbiznis/paygate/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Guard      dedup.Guard
	PaymentSvc paymentdomain.Service
	OrderSvc   orderdomain.Service
	InvoiceSvc invoicedomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	guard      dedup.Guard
	paymentSvc paymentdomain.Service
	orderSvc   orderdomain.Service
	invoiceSvc invoicedomain.Service
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("webhook.service"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		guard:      p.Guard,
		paymentSvc: p.PaymentSvc,
		orderSvc:   p.OrderSvc,
		invoiceSvc: p.InvoiceSvc,
		metrics:    p.Metrics,
	}
}

type envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

func (s *Service) Ingest(ctx context.Context, rawBody []byte, sig string, eventID string) (domain.Ack, error) {
	if sig == "" {
		s.metrics.RecordDelivery("unauthenticated")
		return domain.Ack{}, domain.ErrMissingSignature
	}

	seen, err := s.guard.Seen(ctx, eventID)
	if err != nil {
		return domain.Ack{}, err
	}
	if seen {
		s.log.Info("duplicate webhook delivery", zap.String("event_id", eventID))
		s.metrics.RecordDelivery("duplicate")
		return domain.Ack{Received: true, Duplicate: true}, nil
	}

	// The signature covers the exact raw bytes; verify before parsing.
	if !signature.VerifyWebhook(rawBody, sig, s.cfg.GatewayWebhookSecret) {
		s.metrics.RecordDelivery("unauthenticated")
		return domain.Ack{}, domain.ErrInvalidSignature
	}

	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil || env.Event == "" {
		s.metrics.RecordDelivery("malformed")
		return domain.Ack{}, domain.ErrInvalidPayload
	}

	record := &domain.EventRecord{
		ID:         s.genID.Generate(),
		EventID:    eventID,
		Event:      env.Event,
		Outcome:    domain.OutcomeProcessed,
		Payload:    datatypes.JSON(rawBody),
		ReceivedAt: time.Now().UTC(),
	}

	// Handler failures are isolated: the delivery is acknowledged either
	// way so the gateway does not retry an event we cannot process. The
	// audit row keeps the failure visible for operator replay.
	if handled, err := s.dispatch(ctx, env); err != nil {
		record.Outcome = domain.OutcomeFailed
		record.Error = err.Error()
		s.log.Error("webhook handler failed",
			zap.String("event", env.Event),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		s.metrics.RecordEvent(env.Event, domain.OutcomeFailed)
	} else if !handled {
		record.Outcome = domain.OutcomeIgnored
		s.log.Info("unhandled webhook event", zap.String("event", env.Event))
		s.metrics.RecordEvent(env.Event, domain.OutcomeIgnored)
	} else {
		s.metrics.RecordEvent(env.Event, domain.OutcomeProcessed)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.log.Warn("failed to write webhook audit record", zap.Error(err))
	}

	if err := s.guard.Record(ctx, eventID); err != nil {
		s.log.Warn("failed to record webhook event id", zap.Error(err))
	}

	s.metrics.RecordDelivery("ok")
	return domain.Ack{Received: true}, nil
}

// dispatch maps the event category to exactly one reconciler call. The
// returned bool is false for benign unknown events.
func (s *Service) dispatch(ctx context.Context, env envelope) (bool, error) {
	switch env.Event {
	case "payment.authorized":
		return true, s.paymentSvc.ApplyAuthorized(ctx, entity(env.Payload, "payment"))
	case "payment.captured":
		return true, s.paymentSvc.ApplyCaptured(ctx, entity(env.Payload, "payment"))
	case "payment.failed":
		return true, s.paymentSvc.ApplyFailed(ctx, entity(env.Payload, "payment"))

	case "order.paid":
		return true, s.orderSvc.ApplyPaid(ctx, entityID(env.Payload, "order"))

	case "invoice.paid":
		invoice := entity(env.Payload, "invoice")
		return true, s.invoiceSvc.ApplyPaid(ctx, fieldString(invoice, "id"), invoicedomain.PaidUpdate{
			AmountPaid: fieldInt64(invoice, "amount_paid"),
			AmountDue:  fieldInt64(invoice, "amount_due"),
			PaymentID:  entityID(env.Payload, "payment"),
		})
	case "invoice.expired":
		return true, s.invoiceSvc.ApplyExpired(ctx, entityID(env.Payload, "invoice"))

	case "token.confirmed":
		return true, s.applyToken(ctx, env.Payload, orderdomain.TokenStatusConfirmed, "")
	case "token.rejected":
		return true, s.applyToken(ctx, env.Payload, orderdomain.TokenStatusRejected, "Unknown reason")
	case "token.cancelled":
		return true, s.applyToken(ctx, env.Payload, orderdomain.TokenStatusCancelled, "")
	case "token.paused":
		return true, s.applyToken(ctx, env.Payload, orderdomain.TokenStatusPaused, "")

	case "order.notification.delivered":
		return true, s.applyNotification(ctx, env.Payload, "delivered")
	case "order.notification.failed":
		return true, s.applyNotification(ctx, env.Payload, "failed")

	default:
		return false, nil
	}
}

func (s *Service) applyToken(ctx context.Context, payload map[string]any, status string, defaultReason string) error {
	token := entity(payload, "token")
	reason := fieldString(fieldMap(token, "recurring_details"), "failure_reason")
	if reason == "" {
		reason = defaultReason
	}
	return s.orderSvc.ApplyTokenEvent(ctx, fieldString(token, "id"), status, reason)
}

func (s *Service) applyNotification(ctx context.Context, payload map[string]any, status string) error {
	notification := entity(payload, "notification")
	update := orderdomain.NotificationUpdate{
		ID:           fieldString(notification, "id"),
		Status:       status,
		PaymentAfter: fieldInt64(notification, "payment_after"),
	}
	if status == "delivered" {
		update.DeliveredAt = fieldInt64(notification, "delivered_at")
	}
	return s.orderSvc.ApplyNotification(ctx, fieldString(notification, "order_id"), update)
}

func entity(payload map[string]any, key string) map[string]any {
	return fieldMap(payload, key)
}

func entityID(payload map[string]any, key string) string {
	return fieldString(fieldMap(payload, key), "id")
}

func fieldMap(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload[key].(map[string]any); ok {
		return m
	}
	return nil
}

func fieldString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func fieldInt64(payload map[string]any, key string) int64 {
	if payload == nil {
		return 0
	}
	switch cast := payload[key].(type) {
	case float64:
		return int64(cast)
	case json.Number:
		parsed, err := cast.Int64()
		if err == nil {
			return parsed
		}
	}
	return 0
}
