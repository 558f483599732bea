package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/customer"
	customerdomain "github.com/smallbiznis/paygate/internal/customer/domain"
	"github.com/smallbiznis/paygate/internal/dedup"
	"github.com/smallbiznis/paygate/internal/gateway"
	"github.com/smallbiznis/paygate/internal/invoice"
	invoicedomain "github.com/smallbiznis/paygate/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	"github.com/smallbiznis/paygate/internal/order"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	"github.com/smallbiznis/paygate/internal/payment"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/internal/webhook"
	webhookdomain "github.com/smallbiznis/paygate/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	gateway.Module,
	dedup.Module,
	customer.Module,
	order.Module,
	payment.Module,
	invoice.Module,
	webhook.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(log, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
	paymentSvc  paymentdomain.Service
	invoiceSvc  invoicedomain.Service
	webhookSvc  webhookdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	CustomerSvc customerdomain.Service
	OrderSvc    orderdomain.Service
	PaymentSvc  paymentdomain.Service
	InvoiceSvc  invoicedomain.Service
	WebhookSvc  webhookdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		customerSvc: p.CustomerSvc,
		orderSvc:    p.OrderSvc,
		paymentSvc:  p.PaymentSvc,
		invoiceSvc:  p.InvoiceSvc,
		webhookSvc:  p.WebhookSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Webhooks --------
	api.POST("/webhooks/gateway", s.HandleGatewayWebhook)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id/tokens", s.ListCustomerTokens)

	// -------- Orders --------
	api.GET("/orders", s.ListOrders)
	api.POST("/orders", s.CreateOrder)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments", s.CreatePayment)
	api.PATCH("/payments", s.VerifyPayment)
	api.POST("/payments/capture", s.CapturePayment)
	api.POST("/payments/refund", s.RefundPayment)

	// -------- Registration invoices --------
	api.GET("/registration-invoices", s.ListRegistrationInvoices)
	api.POST("/registration-invoices", s.CreateRegistrationInvoice)
	api.POST("/registration-invoices/:id/cancel", s.CancelRegistrationInvoice)
	api.POST("/registration-invoices/:id/notify", s.NotifyRegistrationInvoice)
}
