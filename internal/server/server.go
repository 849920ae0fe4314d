// Package server wires the HTTP surface of the operations console.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/brightpane/brightpane/internal/activity"
	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	appconfig "github.com/brightpane/brightpane/internal/config"
	"github.com/brightpane/brightpane/internal/coupon"
	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	"github.com/brightpane/brightpane/internal/customer"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	"github.com/brightpane/brightpane/internal/invoice"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	"github.com/brightpane/brightpane/internal/observability"
	obslogger "github.com/brightpane/brightpane/internal/observability/logger"
	obsmetrics "github.com/brightpane/brightpane/internal/observability/metrics"
	obstracing "github.com/brightpane/brightpane/internal/observability/tracing"
	"github.com/brightpane/brightpane/internal/plan"
	plandomain "github.com/brightpane/brightpane/internal/plan/domain"
	"github.com/brightpane/brightpane/internal/providers/pdf"
	"github.com/brightpane/brightpane/internal/ratelimit"
	"github.com/brightpane/brightpane/internal/subscription"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	"github.com/brightpane/brightpane/internal/tenant"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	observability.Module,
	ratelimit.Module,
	tenant.Module,
	plan.Module,
	customer.Module,
	coupon.Module,
	activity.Module,
	pdf.Module,
	invoice.Module,
	subscription.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http")))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg appconfig.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine          *gin.Engine
	cfg             appconfig.Config
	db              *gorm.DB
	log             *zap.Logger
	planSvc         plandomain.Service
	customerSvc     customerdomain.Service
	couponSvc       coupondomain.Service
	couponLimiter   *ratelimit.CouponValidateLimiter
	subscriptionSvc subscriptiondomain.Service
	invoiceSvc      invoicedomain.Service
	activitySvc     activitydomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             appconfig.Config
	DB              *gorm.DB
	Log             *zap.Logger
	PlanSvc         plandomain.Service
	CustomerSvc     customerdomain.Service
	CouponSvc       coupondomain.Service
	CouponLimiter   *ratelimit.CouponValidateLimiter `optional:"true"`
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
	ActivitySvc     activitydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		planSvc:         p.PlanSvc,
		customerSvc:     p.CustomerSvc,
		couponSvc:       p.CouponSvc,
		couponLimiter:   p.CouponLimiter,
		subscriptionSvc: p.SubscriptionSvc,
		invoiceSvc:      p.InvoiceSvc,
		activitySvc:     p.ActivitySvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(TenantMiddleware(s.cfg))

	api.POST("/plans", s.CreatePlan)
	api.GET("/plans", s.ListPlans)
	api.GET("/plans/:id", s.GetPlan)

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.GET("/customers/:id/discount", s.GetCustomerDiscount)
	api.PUT("/customers/:id/discount", s.SetCustomerDiscount)
	api.DELETE("/customers/:id/discount", s.RemoveCustomerDiscount)

	api.POST("/coupons", s.CreateCoupon)
	api.GET("/coupons", s.ListCoupons)
	api.POST("/coupons/:id/disable", s.DisableCoupon)
	api.POST("/coupons/validate", s.ValidateCoupon)

	api.POST("/subscriptions", s.CreateSubscription)
	api.POST("/subscriptions/legacy", s.CreateLegacySubscription)
	api.GET("/subscriptions", s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.GetSubscription)
	api.PATCH("/subscriptions/:id", s.UpdateSubscription)
	api.DELETE("/subscriptions/:id", s.CancelSubscription)
	api.GET("/subscriptions/:id/activities", s.ListSubscriptionActivities)

	api.POST("/invoices", s.CreateStandaloneInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/finalize", s.FinalizeInvoice)
	api.POST("/invoices/:id/pay", s.PayInvoice)
	api.GET("/invoices/:id/document", s.GetInvoiceDocument)
	api.POST("/invoices/:id/document", s.RenderInvoiceDocument)
}
