package app

import (
	"database/sql"

	"github.com/minical/minical/internal/config"
	"github.com/minical/minical/internal/event_bus"
	"github.com/minical/minical/internal/utils"
	"github.com/minical/minical/pkg/eventcache"
	"github.com/minical/minical/pkg/kvcache"
	"github.com/minical/minical/pkg/remote"
	"github.com/minical/minical/pkg/syncer"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus   *event_bus.EventBus
	Clock utils.Clock

	EventCacheRepo    *eventcache.RepositoryImpl
	EventCacheService *eventcache.Service
	KVCacheRepo       kvcache.Repository

	RemoteClient remote.Client

	SyncService *syncer.Service
	SyncHandler *syncer.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
// The store handle is constructed once here and injected everywhere; there is
// no package-level singleton.
func BuildDependencies(db *sql.DB, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Clock = utils.SystemClock{}

	deps.EventCacheRepo = eventcache.NewRepository(db)
	deps.EventCacheService = eventcache.NewService(deps.EventCacheRepo)
	deps.KVCacheRepo = kvcache.NewRepository(db)

	deps.RemoteClient = remote.NewClient(cfg.Remote)

	deps.SyncService = syncer.NewService(deps.RemoteClient, deps.EventCacheService, deps.KVCacheRepo, deps.Bus, deps.Clock)
	deps.SyncHandler = syncer.NewHandler(deps.SyncService, deps.EventCacheService)

	deps.Bus.Subscribe(event_bus.CacheFallbackServed, func(e event_bus.Event) error {
		payload := e.Data.(event_bus.FallbackPayload)
		log.Infof("served %d cached events to user %d while backend was unreachable", payload.Served, payload.UserID)
		return nil
	})

	return deps
}
