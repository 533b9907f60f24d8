package app

import (
	"fmt"

	"github.com/yungbote/sheetmirror-backend/internal/data/db"
	"github.com/yungbote/sheetmirror-backend/internal/platform/gcp"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
	"github.com/yungbote/sheetmirror-backend/internal/realtime/bus"
)

type Clients struct {
	DB      *db.Service
	Bus     bus.Bus
	Archive gcp.Archive
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Store
	store, err := db.Open(cfg.Store, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init store: %w", err)
	}
	if err := db.AutoMigrateAll(store.DB()); err != nil {
		_ = store.Close()
		return Clients{}, fmt.Errorf("store automigrate: %w", err)
	}
	if err := db.EnsureMirrorIndexes(store.DB()); err != nil {
		_ = store.Close()
		return Clients{}, fmt.Errorf("store indexes: %w", err)
	}

	// Invalidation bus; in-process only without redis
	var b bus.Bus
	if cfg.Redis.Addr != "" {
		rb, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			_ = store.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		b = rb
	} else {
		log.Warn("REDIS_ADDR not set; definition cache is not shared across instances")
		b = bus.NewLocalBus()
	}

	// Archive
	archive, err := resolveArchive(log)
	if err != nil {
		_ = b.Close()
		_ = store.Close()
		return Clients{}, fmt.Errorf("init archive: %w", err)
	}

	return Clients{DB: store, Bus: b, Archive: archive}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
