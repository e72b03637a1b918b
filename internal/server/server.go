// Package server exposes the HTTP API: subscriptions, slot deltas, invoices
// and per-org invoicing settings. Business rules live in the services; the
// handlers only translate between HTTP and domain types.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/railzwaylabs/metron/internal/config"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	configdomain "github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/railzwaylabs/metron/internal/orgcontext"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	cache    *redis.Client
	registry *prometheus.Registry

	subscriptionSvc subscriptiondomain.Service
	slotSvc         slotdomain.Service
	invoiceSvc      invoicedomain.Service
	configSvc       configdomain.Service
	auditExportSvc  auditdomain.ExportService
}

type Param struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Cache    *redis.Client
	Registry *prometheus.Registry

	SubscriptionSvc subscriptiondomain.Service
	SlotSvc         slotdomain.Service
	InvoiceSvc      invoicedomain.Service
	ConfigSvc       configdomain.Service
	AuditExportSvc  auditdomain.ExportService
}

func New(p Param) *Server {
	return &Server{
		db:       p.DB,
		log:      p.Log.Named("server"),
		cfg:      p.Cfg,
		cache:    p.Cache,
		registry: p.Registry,

		subscriptionSvc: p.SubscriptionSvc,
		slotSvc:         p.SlotSvc,
		invoiceSvc:      p.InvoiceSvc,
		configSvc:       p.ConfigSvc,
		auditExportSvc:  p.AuditExportSvc,
	}
}

// OrgRequired resolves the acting organization from the X-Org-Id header and
// stores it on the request context.
func (s *Server) OrgRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("X-Org-Id"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, err := snowflake.ParseString(header)
		if err != nil || orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID))
		c.Next()
	}
}

func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.GetReadiness)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api/v1")
	api.Use(s.OrgRequired())
	{
		api.POST("/subscriptions", s.CreateSubscription)
		api.GET("/subscriptions", s.ListSubscriptions)
		api.GET("/subscriptions/:id", s.GetSubscription)
		api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
		api.POST("/subscriptions/:id/components/:component_id/slots", s.ApplySlotDelta)
		api.GET("/subscriptions/:id/components/:component_id/slots", s.GetActiveSlots)

		api.GET("/invoices", s.ListInvoices)
		api.GET("/invoices/:id", s.GetInvoice)
		api.GET("/invoices/:id/pdf", s.GetInvoicePDF)
		api.POST("/invoices/:id/void", s.VoidInvoice)

		api.GET("/invoicing-config", s.GetInvoicingConfig)
		api.PUT("/invoicing-config", s.PutInvoicingConfig)

		api.GET("/audit/export", s.ExportAuditEvents)
	}
	return engine
}

func RunHTTP(lc fx.Lifecycle, s *Server) {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", httpServer.Addr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
