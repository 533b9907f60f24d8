package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	repomirror "github.com/yungbote/sheetmirror-backend/internal/data/repos/mirror"
	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/observability"
	"github.com/yungbote/sheetmirror-backend/internal/platform/dbctx"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
	"github.com/yungbote/sheetmirror-backend/internal/realtime/bus"
)

const DefaultCacheCapacity = 256

type StoreDeps struct {
	Repo     repomirror.SheetDefinitionRepo
	Log      *logger.Logger
	Capacity int

	// Bus and InstanceID are optional; without a bus the cache is only
	// coherent within this process.
	Bus        bus.Bus
	InstanceID string
	Metrics    *observability.Metrics
}

// DefinitionStore fronts the durable definition repo with a bounded LRU.
// The repo is the source of truth; cached schemas are never handed out
// directly, callers get clones.
type DefinitionStore struct {
	repo    repomirror.SheetDefinitionRepo
	log     *logger.Logger
	cache   *lru.Cache[string, *types.Schema]
	loads   singleflight.Group
	bus     bus.Bus
	origin  string
	metrics *observability.Metrics
}

func NewDefinitionStore(deps StoreDeps) (*DefinitionStore, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("definition repo required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	capacity := deps.Capacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, err := lru.New[string, *types.Schema](capacity)
	if err != nil {
		return nil, fmt.Errorf("create definition cache: %w", err)
	}
	return &DefinitionStore{
		repo:    deps.Repo,
		log:     deps.Log.With("service", "DefinitionStore"),
		cache:   cache,
		bus:     deps.Bus,
		origin:  deps.InstanceID,
		metrics: deps.Metrics,
	}, nil
}

// Get returns the definition for id: cache first, then the repo, warming the
// cache. Concurrent misses for one id share a single repo read.
func (s *DefinitionStore) Get(ctx context.Context, id string) (*types.Schema, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if cached, ok := s.cache.Get(id); ok {
		s.metrics.ObserveCacheLookup("hit")
		return cached.Clone(), nil
	}
	s.metrics.ObserveCacheLookup("miss")

	v, err, _ := s.loads.Do(id, func() (interface{}, error) {
		row, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			return nil, err
		}
		schema, err := row.Schema()
		if err != nil {
			return nil, err
		}
		// A confirm that landed while we were reading wins.
		if found, _ := s.cache.ContainsOrAdd(id, schema); found {
			if cur, ok := s.cache.Peek(id); ok {
				return cur, nil
			}
		}
		s.metrics.SetCacheEntries(s.cache.Len())
		return schema, nil
	})
	if errors.Is(err, repomirror.ErrDefinitionNotFound) {
		s.metrics.ObserveCacheLookup("not_found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.(*types.Schema).Clone(), nil
}

// Put writes the store first, then the cache, then tells peers to evict.
func (s *DefinitionStore) Put(ctx context.Context, schema *types.Schema) error {
	row, err := types.NewSheetDefinition(schema)
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(dbctx.Context{Ctx: ctx}, row); err != nil {
		return err
	}
	s.cache.Add(schema.ID, schema.Clone())
	s.metrics.SetCacheEntries(s.cache.Len())

	if s.bus != nil {
		ev := bus.Event{Type: bus.EventDefinitionUpdated, DefinitionID: schema.ID, Origin: s.origin}
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.log.Warn("publish invalidation failed", "id", schema.ID, "error", err)
		}
	}
	return nil
}

func (s *DefinitionStore) Evict(id string) {
	s.cache.Remove(id)
	s.metrics.SetCacheEntries(s.cache.Len())
}

func (s *DefinitionStore) Len() int { return s.cache.Len() }

// Listen evicts entries that peers report as changed. Own events are ignored.
func (s *DefinitionStore) Listen(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.StartForwarder(ctx, func(ev bus.Event) {
		if ev.DefinitionID == "" || (s.origin != "" && ev.Origin == s.origin) {
			return
		}
		s.log.Debug("evicting definition on peer update", "id", ev.DefinitionID, "type", ev.Type)
		s.Evict(ev.DefinitionID)
	})
}

// Candidates returns stored definitions that could match a fingerprint: those
// with the same grid hash first, then the client's recent definitions.
func (s *DefinitionStore) Candidates(ctx context.Context, gridHash, clientKey string, limit int) ([]*types.Schema, error) {
	dbc := dbctx.Context{Ctx: ctx}
	byHash, err := s.repo.FindByGridHash(dbc, gridHash, limit)
	if err != nil {
		return nil, err
	}
	var recent []*types.SheetDefinition
	if strings.TrimSpace(clientKey) != "" {
		if recent, err = s.repo.ListCandidates(dbc, clientKey, limit); err != nil {
			return nil, err
		}
	}
	seen := map[string]bool{}
	out := make([]*types.Schema, 0, len(byHash)+len(recent))
	for _, row := range append(byHash, recent...) {
		if seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		schema, err := row.Schema()
		if err != nil {
			s.log.Warn("skipping undecodable definition", "id", row.ID, "error", err)
			continue
		}
		out = append(out, schema)
	}
	return out, nil
}
