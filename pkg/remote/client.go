package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minical/minical/internal/config"
	"github.com/minical/minical/pkg/event"
	"github.com/minical/minical/pkg/user"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnavailable marks transport-level failures: the backend could not
	// be reached at all. Callers use it to decide that falling back to the
	// local cache is legitimate.
	ErrUnavailable = errors.New("calendar backend is unavailable")

	// ErrNotFound is returned when the backend rejects an operation with 404.
	ErrNotFound = errors.New("event not found upstream")
)

type Client interface {
	ListEvents(ctx context.Context, from time.Time, to time.Time) ([]event.Event, error) // GET /events
	CreateEvent(ctx context.Context, e event.Event) (*event.Event, error)                // POST /events
	UpdateEvent(ctx context.Context, e event.Event) (*event.Event, error)                // PUT /events/{id}
	DeleteEvent(ctx context.Context, eventId string) error                               // DELETE /events/{id}
}

type ClientImpl struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.Remote) *ClientImpl {
	return &ClientImpl{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// eventDTO mirrors the backend's event JSON. Timestamps stay strings here and
// go through event.ParseInstant, the single place tolerant of the backend's
// occasionally missing zone designator.
type eventDTO struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

type eventListResponse struct {
	Events   []eventDTO `json:"events"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

const listPageSize = 100

// ListEvents fetches the authoritative event list for the given range,
// following pagination until the backend reports no more pages.
func (c *ClientImpl) ListEvents(ctx context.Context, from time.Time, to time.Time) ([]event.Event, error) {
	events := make([]event.Event, 0, 10)

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("start_date", from.UTC().Format(time.RFC3339))
		query.Set("end_date", to.UTC().Format(time.RFC3339))
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(listPageSize))

		req, err := c.newRequest(ctx, http.MethodGet, "/events?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			log.Debugf("events listing failed: %v", err)
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		var listResp eventListResponse
		err = decodeResponse(resp, http.StatusOK, &listResp)
		if err != nil {
			return nil, err
		}

		for _, dto := range listResp.Events {
			e, err := dtoToEvent(dto)
			if err != nil {
				err := fmt.Errorf("backend returned malformed event %q: %w", dto.ID, err)
				log.Error(err)
				return nil, err
			}
			events = append(events, e)
		}

		if len(events) >= listResp.Total || len(listResp.Events) == 0 {
			return events, nil
		}
	}
}

// CreateEvent stores a new event upstream. An id is assigned client-side when
// missing, so the caller can key the cache record immediately.
func (c *ClientImpl) CreateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	body, err := json.Marshal(eventToDTO(e))
	if err != nil {
		return nil, fmt.Errorf("could not encode event: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/events", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var dto eventDTO
	if err := decodeResponse(resp, http.StatusCreated, &dto); err != nil {
		return nil, err
	}

	created, err := dtoToEvent(dto)
	if err != nil {
		return nil, fmt.Errorf("backend returned malformed event: %w", err)
	}
	return &created, nil
}

// UpdateEvent replaces an existing event upstream.
func (c *ClientImpl) UpdateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	if e.ID == "" {
		return nil, event.ErrMissingID
	}

	body, err := json.Marshal(eventToDTO(e))
	if err != nil {
		return nil, fmt.Errorf("could not encode event: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/events/"+url.PathEscape(e.ID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var dto eventDTO
	if err := decodeResponse(resp, http.StatusOK, &dto); err != nil {
		return nil, err
	}

	updated, err := dtoToEvent(dto)
	if err != nil {
		return nil, fmt.Errorf("backend returned malformed event: %w", err)
	}
	return &updated, nil
}

// DeleteEvent removes an event upstream. A 404 surfaces as ErrNotFound so the
// caller can treat an already-deleted event as success.
func (c *ClientImpl) DeleteEvent(ctx context.Context, eventId string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventId), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		err := fmt.Errorf("backend returned non-OK status: %d", resp.StatusCode)
		log.Error(err)
		return err
	}
}

func (c *ClientImpl) newRequest(ctx context.Context, method string, path string, body *bytes.Reader) (*http.Request, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return nil, err
	}

	req.Header.Set("X-Telegram-User-Id", strconv.FormatInt(userId, 10))
	return req, nil
}

func decodeResponse(resp *http.Response, wantStatus int, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != wantStatus {
		err := fmt.Errorf("backend returned non-OK status: %d", resp.StatusCode)
		log.Error(err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Errorf("Failed to decode response: %v", err)
		return err
	}
	return nil
}

func dtoToEvent(dto eventDTO) (event.Event, error) {
	start, err := event.ParseInstant(dto.StartTime)
	if err != nil {
		return event.Event{}, fmt.Errorf("invalid start_time: %w", err)
	}

	e := event.Event{
		ID:          dto.ID,
		Title:       dto.Title,
		Description: dto.Description,
		Location:    dto.Location,
		Timezone:    dto.Timezone,
		StartTime:   start,
		Metadata:    dto.Metadata,
	}

	if dto.EndTime != "" {
		end, err := event.ParseInstant(dto.EndTime)
		if err != nil {
			return event.Event{}, fmt.Errorf("invalid end_time: %w", err)
		}
		e.EndTime = end
	}
	if dto.UpdatedAt != "" {
		updatedAt, err := event.ParseInstant(dto.UpdatedAt)
		if err != nil {
			return event.Event{}, fmt.Errorf("invalid updated_at: %w", err)
		}
		e.UpdatedAt = updatedAt
	}

	return e, e.Validate()
}

func eventToDTO(e event.Event) eventDTO {
	dto := eventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Timezone:    e.Timezone,
		StartTime:   e.StartTime.UTC().Format(time.RFC3339),
		EndTime:     e.EndTime.UTC().Format(time.RFC3339),
		Metadata:    e.Metadata,
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
