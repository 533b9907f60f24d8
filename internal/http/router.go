package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/sheetmirror-backend/internal/http/handlers"
	httpMW "github.com/yungbote/sheetmirror-backend/internal/http/middleware"
	"github.com/yungbote/sheetmirror-backend/internal/observability"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// ServiceName labels server spans; tracing is skipped when empty.
	ServiceName    string
	AllowedOrigins []string
	MaxUploadBytes int64

	MirrorHandler *httpH.MirrorHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Mirror
		if cfg.MirrorHandler != nil {
			mirror := api.Group("/mirror")
			mirror.POST("/learn", httpMW.LimitBody(cfg.MaxUploadBytes), cfg.MirrorHandler.Learn)
			mirror.POST("/confirm", cfg.MirrorHandler.Confirm)
			mirror.POST("/apply", cfg.MirrorHandler.Apply)
			mirror.GET("/download/:name", cfg.MirrorHandler.Download)
		}
	}

	return r
}
