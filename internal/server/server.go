package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benjask5360/tuckandtale/internal/cloudmetrics"
	"github.com/benjask5360/tuckandtale/internal/config"
	"github.com/benjask5360/tuckandtale/internal/genlock"
	"github.com/benjask5360/tuckandtale/internal/migration"
	"github.com/benjask5360/tuckandtale/internal/observability"
	obsmiddleware "github.com/benjask5360/tuckandtale/internal/observability/logger"
	obsmetrics "github.com/benjask5360/tuckandtale/internal/observability/metrics"
	obstracing "github.com/benjask5360/tuckandtale/internal/observability/tracing"
	"github.com/benjask5360/tuckandtale/internal/profile"
	"github.com/benjask5360/tuckandtale/internal/story"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"github.com/benjask5360/tuckandtale/internal/tracker"
	trackerdomain "github.com/benjask5360/tuckandtale/internal/tracker/domain"
	"github.com/benjask5360/tuckandtale/internal/usagelimits"
	usagedomain "github.com/benjask5360/tuckandtale/internal/usagelimits/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	migration.Module,
	fx.Provide(registerGin),
	profile.Module,
	story.Module,
	tracker.Module,
	usagelimits.Module,
	genlock.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	trackerSvc trackerdomain.Service
	usageSvc   usagedomain.Service
	storyRepo  storydomain.Repository
	guard      *genlock.GenerationGuard
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	TrackerSvc trackerdomain.Service
	UsageSvc   usagedomain.Service
	StoryRepo  storydomain.Repository
	Guard      *genlock.GenerationGuard `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		trackerSvc: p.TrackerSvc,
		usageSvc:   p.UsageSvc,
		storyRepo:  p.StoryRepo,
		guard:      p.Guard,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerUserRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/v1/users/:user_id")

	// Generation flow: the app asks for an allowance before kicking off a
	// story, then reports completion so counters and paywall state move.
	users.GET("/generation-allowance", s.GetGenerationAllowance)
	users.POST("/usage", s.RecordUsage)
	users.GET("/usage", s.GetUsage)
	users.GET("/paywall-behavior", s.GetPaywallBehavior)

	users.GET("/stories", s.ListStories)
	users.POST("/stories", s.CreateStory)

	// Billing glue, called by payment webhooks once money settles.
	users.POST("/credits", s.GrantCredits)
	users.POST("/purchases", s.RecordPurchase)
	users.POST("/subscription", s.ActivateSubscription)
}
