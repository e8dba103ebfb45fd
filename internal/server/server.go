package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoiceledger/internal/config"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	overviewdomain "github.com/smallbiznis/invoiceledger/internal/invoiceoverview/domain"
	"github.com/smallbiznis/invoiceledger/internal/observability"
	obslogger "github.com/smallbiznis/invoiceledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoiceledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoiceledger/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http"), obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	InvoiceSvc  invoicedomain.Service
	OverviewSvc overviewdomain.Service
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	invoiceSvc  invoicedomain.Service
	overviewSvc overviewdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		invoiceSvc:  p.InvoiceSvc,
		overviewSvc: p.OverviewSvc,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	invoices := api.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/statistics", s.GetStatistics)
	invoices.GET("/:id", s.GetInvoiceByID)

	invoices.POST("/:id/line_items", s.AddLineItem)
	invoices.PUT("/:id/line_items/:index", s.UpdateLineItem)
	invoices.DELETE("/:id/line_items/:index", s.RemoveLineItem)

	invoices.POST("/:id/finalize", s.FinalizeInvoice)
	invoices.POST("/:id/cancel", s.CancelInvoice)
	invoices.POST("/:id/archive", s.ArchiveInvoice)

	invoices.POST("/:id/payments", s.RecordPayment)
	invoices.POST("/:id/reminders", s.SendReminder)
	invoices.GET("/:id/reminders/due", s.GetDueReminder)
	invoices.POST("/:id/notes", s.AddNote)
}
