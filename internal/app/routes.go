package app

import (
	"github.com/gorilla/mux"
	"github.com/minical/minical/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Events (remote-first with cache fallback)
	r.HandleFunc("/api/events", deps.SyncHandler.GetEvents).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/events", deps.SyncHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/events/cached", deps.SyncHandler.GetCachedEvents).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/events/{eventId}", deps.SyncHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/events/{eventId}", deps.SyncHandler.DeleteEvent).Methods("DELETE")

	// Cache maintenance
	r.HandleFunc("/api/cache/refresh", deps.SyncHandler.RefreshCache).Queries("from", "{from}", "to", "{to}").Methods("POST")
	r.HandleFunc("/api/cache", deps.SyncHandler.ClearCache).Methods("DELETE")
}
