package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/ndpcatalog/internal/account"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/approval"
	"github.com/smallbiznis/ndpcatalog/internal/audit"
	auditdomain "github.com/smallbiznis/ndpcatalog/internal/audit/domain"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/smallbiznis/ndpcatalog/internal/dataset"
	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	"github.com/smallbiznis/ndpcatalog/internal/identity"
	"github.com/smallbiznis/ndpcatalog/internal/observability"
	obsmiddleware "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ndpcatalog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/ndpcatalog/internal/observability/tracing"
	"github.com/smallbiznis/ndpcatalog/internal/organization"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/internal/ratelimit"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	identity.Module,
	remotecatalog.Module,
	account.Module,
	organization.Module,
	dataset.Module,
	audit.Module,
	approval.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// approvalService is the slice of *approval.Service used by the handlers.
type approvalService interface {
	Approve(ctx context.Context, datasetID string, actor *accountdomain.Account) (map[string]any, error)
	Reject(ctx context.Context, datasetID string, actor *accountdomain.Account) error
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	accountSvc  accountdomain.Service
	orgSvc      orgdomain.Service
	datasetSvc  datasetdomain.Service
	approvalSvc approvalService
	auditSvc    auditdomain.Service
	gate        *approval.Gate
	limiter     ratelimit.Limiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	AccountSvc  accountdomain.Service
	OrgSvc      orgdomain.Service
	DatasetSvc  datasetdomain.Service
	ApprovalSvc *approval.Service
	AuditSvc    auditdomain.Service
	Gate        *approval.Gate
	Limiter     ratelimit.Limiter   `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		accountSvc:  p.AccountSvc,
		orgSvc:      p.OrgSvc,
		datasetSvc:  p.DatasetSvc,
		approvalSvc: p.ApprovalSvc,
		auditSvc:    p.AuditSvc,
		gate:        p.Gate,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerCatalogRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCatalogRoutes() {
	ndp := s.engine.Group("/ndp")
	ndp.Use(s.ClientContext())
	ndp.Use(s.RateLimit())
	ndp.Use(s.IdentityRequired())

	ndp.POST("/package_create", s.CreatePackage)
	ndp.POST("/package_update", s.UpdatePackage)
	ndp.POST("/package_delete", s.DeletePackage)
	ndp.POST("/package_purge", s.PurgePackage)
	ndp.GET("/my_package_list", s.MyPackageList)
	ndp.POST("/my_package_list", s.MyPackageList)

	ndp.POST("/package_approve", s.ApprovePackage)
	ndp.POST("/package_reject", s.RejectPackage)

	ndp.GET("/audit_logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: errorPayload{
			Type:    "method_not_allowed",
			Message: "Method not allowed",
		}})
	})
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: errorPayload{
			Type:    "not_found",
			Message: "not found",
		}})
	})
}
