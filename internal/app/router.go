package app

import (
	apphttp "github.com/yungbote/sheetmirror-backend/internal/http"
	"github.com/yungbote/sheetmirror-backend/internal/observability"
	"github.com/yungbote/sheetmirror-backend/internal/platform/envutil"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *apphttp.Server {
	log.Info("Wiring router...")
	serviceName := ""
	if envutil.Bool("OTEL_ENABLED", false) {
		serviceName = cfg.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MirrorHandler:  handlers.Mirror,
		HealthHandler:  handlers.Health,
	})
}
