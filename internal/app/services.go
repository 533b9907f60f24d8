package app

import (
	"fmt"

	mirrormod "github.com/yungbote/sheetmirror-backend/internal/modules/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/observability"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type Services struct {
	Store  *mirrormod.DefinitionStore
	Mirror mirrormod.Usecases
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	store, err := mirrormod.NewDefinitionStore(mirrormod.StoreDeps{
		Repo:       repos.SheetDefinition,
		Log:        log,
		Capacity:   cfg.CacheCapacity,
		Bus:        clients.Bus,
		InstanceID: cfg.InstanceID,
		Metrics:    metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init definition store: %w", err)
	}

	uc := mirrormod.New(mirrormod.UsecasesDeps{
		Log:             log,
		Store:           store,
		Metrics:         metrics,
		Archive:         clients.Archive,
		OutputDir:       cfg.OutputDir,
		MatchThreshold:  cfg.MatchThreshold,
		MatchCandidates: cfg.MatchCandidates,
	})

	return Services{Store: store, Mirror: uc}, nil
}
