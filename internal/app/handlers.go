package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/sheetmirror-backend/internal/http/handlers"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Mirror *httpH.MirrorHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(pingDB(db)),
		Mirror: httpH.NewMirrorHandlerWithDeps(httpH.MirrorHandlerDeps{
			Log:       log,
			Mirror:    services.Mirror,
			UploadDir: cfg.UploadDir,
		}),
	}
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
