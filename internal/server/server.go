package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/parishkit/steward/internal/audit"
	auditdomain "github.com/parishkit/steward/internal/audit/domain"
	"github.com/parishkit/steward/internal/config"
	"github.com/parishkit/steward/internal/member"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
	"github.com/parishkit/steward/internal/observability"
	obsmiddleware "github.com/parishkit/steward/internal/observability/logger"
	obstracing "github.com/parishkit/steward/internal/observability/tracing"
	"github.com/parishkit/steward/internal/reference"
	referencedomain "github.com/parishkit/steward/internal/reference/domain"
	"github.com/parishkit/steward/internal/register"
	registerdomain "github.com/parishkit/steward/internal/register/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	member.Module,
	reference.Module,
	register.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
	db          *gorm.DB
	genID       *snowflake.Node
	memberSvc   memberdomain.Service
	registerSvc registerdomain.Service
	auditSvc    auditdomain.Service
	refrepo     referencedomain.Repository
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	MemberSvc   memberdomain.Service
	RegisterSvc registerdomain.Service
	AuditSvc    auditdomain.Service
	Refrepo     referencedomain.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		memberSvc:   p.MemberSvc,
		registerSvc: p.RegisterSvc,
		auditSvc:    p.AuditSvc,
		refrepo:     p.Refrepo,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	members := api.Group("/members")
	members.GET("", s.ListMembers)
	members.POST("", s.CreateMember)
	members.GET("/:id", s.GetMember)
	members.PUT("/:id", s.UpdateMember)
	members.DELETE("/:id", s.DeleteMember)
	members.GET("/:id/register-numbers", s.ListMemberRegisterNumbers)
	members.GET("/:id/register-numbers/current", s.GetMemberCurrentRegisterNumber)

	registers := api.Group("/register-numbers")
	registers.GET("/next", s.NextRegisterNumber)
	registers.GET("/preview", s.PreviewRegisterNumbers)
	registers.POST("/generate", s.GenerateRegisterNumbers)
	registers.GET("/status/:year", s.RegisterGenerationStatus)

	ref := api.Group("/reference")
	ref.GET("/membership-statuses", s.ListMembershipStatuses)
	ref.GET("/role-types", s.ListRoleTypes)
	ref.GET("/districts", s.ListDistricts)

	api.GET("/audit-logs", s.ListAuditLogs)
}
