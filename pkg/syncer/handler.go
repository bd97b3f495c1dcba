package syncer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/minical/minical/internal/rest"
	"github.com/minical/minical/pkg/event"
	"github.com/minical/minical/pkg/eventcache"
	log "github.com/sirupsen/logrus"
)

// Handler exposes the event mirror to the Mini App frontend.
type Handler struct {
	syncer *Service
	cache  *eventcache.Service
}

// EventDTO mirrors the backend's event JSON shape, so the frontend sees the
// same fields whether a response came from the backend or from the cache.
type EventDTO struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewHandler(s *Service, cache *eventcache.Service) *Handler {
	return &Handler{syncer: s, cache: cache}
}

// GetEvents serves a range read through the syncer: remote-first with cache
// fallback. The X-Data-Source header reports which source answered.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	from, to, ok := rangeParams(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.EventsForRange(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Data-Source", string(result.Source))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventsToDTOs(result.Events)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetCachedEvents serves a cache-only range read, never touching the network.
func (h *Handler) GetCachedEvents(w http.ResponseWriter, r *http.Request) {
	from, to, ok := rangeParams(w, r)
	if !ok {
		return
	}

	events, err := h.cache.QueryRange(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Data-Source", string(SourceCache))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventsToDTOs(events)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	created, err := h.syncer.CreateEvent(r.Context(), e)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(eventToDTO(*created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	e.ID = mux.Vars(r)["eventId"]

	updated, err := h.syncer.UpdateEvent(r.Context(), e)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventToDTO(*updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]
	if err := h.syncer.DeleteEvent(r.Context(), eventId); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshCache triggers a wide-window cleanup of the local mirror.
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	from, to, ok := rangeParams(w, r)
	if !ok {
		return
	}

	events, err := h.syncer.RefreshWindow(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Debugf("cache refreshed, %d events kept", len(events))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventsToDTOs(events)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// ClearCache wipes the local mirror (logout/reset).
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.syncer.Reset(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func rangeParams(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := event.ParseInstant(r.URL.Query().Get("from"))
	if err != nil {
		writeBadRequest(w, "Invalid from (date) format", "'from' must be in RFC3339 format")
		return time.Time{}, time.Time{}, false
	}
	to, err := event.ParseInstant(r.URL.Query().Get("to"))
	if err != nil {
		writeBadRequest(w, "Invalid to (date) format", "'to' must be in RFC3339 format")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (event.Event, bool) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return event.Event{}, false
	}

	e, err := dtoToEvent(dto)
	if err != nil {
		writeBadRequest(w, "Invalid event", err.Error())
		return event.Event{}, false
	}
	return e, true
}

func writeBadRequest(w http.ResponseWriter, message string, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   message,
		Details: details,
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}

func eventToDTO(e event.Event) EventDTO {
	return EventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Timezone:    e.Timezone,
		StartTime:   e.StartTime.UTC().Format(time.RFC3339),
		EndTime:     e.EndTime.UTC().Format(time.RFC3339),
		Metadata:    e.Metadata,
	}
}

func eventsToDTOs(events []event.Event) []EventDTO {
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	return dtos
}

func dtoToEvent(dto EventDTO) (event.Event, error) {
	e := event.Event{
		ID:          dto.ID,
		Title:       dto.Title,
		Description: dto.Description,
		Location:    dto.Location,
		Timezone:    dto.Timezone,
		Metadata:    dto.Metadata,
	}

	if dto.StartTime != "" {
		start, err := event.ParseInstant(dto.StartTime)
		if err != nil {
			return event.Event{}, err
		}
		e.StartTime = start
	}
	if dto.EndTime != "" {
		end, err := event.ParseInstant(dto.EndTime)
		if err != nil {
			return event.Event{}, err
		}
		e.EndTime = end
	}
	return e, nil
}
