package eventcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minical/minical/pkg/event"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	UpsertEvents(ctx context.Context, userId int64, events []event.Event) error
	GetEvents(ctx context.Context, userId int64, from, to time.Time) ([]event.Event, error)
	GetEventIDs(ctx context.Context, userId int64, from, to time.Time) ([]string, error)
	DeleteEvent(ctx context.Context, userId int64, eventId string) error
	DeleteAllExcept(ctx context.Context, userId int64, keepIds []string) error
	Clear(ctx context.Context, userId int64) error
	ClearAll(ctx context.Context) error
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// UpsertEvents inserts or overwrites the given events by id. Applying the same
// list twice yields the same state.
func (r *RepositoryImpl) UpsertEvents(ctx context.Context, userId int64, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO cached_event (
                            id,
                            user_id,
                            title,
                            description,
                            location,
                            timezone,
                            start_time,
                            end_time,
                            metadata,
                            updated_at
						) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (user_id, id) DO UPDATE SET
							title = excluded.title,
							description = excluded.description,
							location = excluded.location,
							timezone = excluded.timezone,
							start_time = excluded.start_time,
							end_time = excluded.end_time,
							metadata = excluded.metadata,
							updated_at = excluded.updated_at`

	stmt, err := r.getQueryer().PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %v", err)
		log.Error(err)
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		metadata, err := marshalMetadata(e.Metadata)
		if err != nil {
			err := fmt.Errorf("could not encode event metadata: %w", err)
			log.Error(err)
			return err
		}

		timezone := e.Timezone
		if timezone == "" {
			timezone = "UTC"
		}
		updatedAt := e.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}

		_, err = stmt.ExecContext(ctx,
			e.ID,
			userId,
			e.Title,
			nullString(e.Description),
			nullString(e.Location),
			timezone,
			e.StartTime.UnixMilli(),
			e.EndTime.UnixMilli(),
			metadata,
			updatedAt.UnixMilli(),
		)
		if err != nil {
			err := fmt.Errorf("could not execute query: %v", err)
			log.Error(err)
			return err
		}
	}

	return nil
}

// GetEvents returns cached events whose start_time lies within [from, to]
// (inclusive), ordered ascending by start time. The id tie-break keeps the
// order deterministic for events sharing a start time.
func (r *RepositoryImpl) GetEvents(ctx context.Context, userId int64, from, to time.Time) ([]event.Event, error) {
	query := `SELECT id, title, description, location, timezone, start_time, end_time, metadata, updated_at
              FROM cached_event
              WHERE user_id = ?
                AND start_time >= ?
                AND start_time <= ?
			  ORDER BY start_time, id`

	rows, err := r.getQueryer().QueryContext(ctx, query, userId, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not query cached events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]event.Event, 0, 10)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			log.Error(err)
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetEventIDs returns the ids of cached events whose start_time lies within
// [from, to] (inclusive).
func (r *RepositoryImpl) GetEventIDs(ctx context.Context, userId int64, from, to time.Time) ([]string, error) {
	query := `SELECT id
              FROM cached_event
              WHERE user_id = ?
                AND start_time >= ?
                AND start_time <= ?`

	rows, err := r.getQueryer().QueryContext(ctx, query, userId, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not query cached event ids: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 10)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteEvent removes a single record. Deleting an absent id is a no-op.
func (r *RepositoryImpl) DeleteEvent(ctx context.Context, userId int64, eventId string) error {
	query := `DELETE FROM cached_event WHERE user_id = ? AND id = ?`
	_, err := r.getQueryer().ExecContext(ctx, query, userId, eventId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

// DeleteAllExcept removes every cached record of the user whose id is not in
// keepIds, regardless of date range. An empty keep list wipes the user's cache.
func (r *RepositoryImpl) DeleteAllExcept(ctx context.Context, userId int64, keepIds []string) error {
	if len(keepIds) == 0 {
		return r.Clear(ctx, userId)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keepIds)), ", ")
	query := fmt.Sprintf(`DELETE FROM cached_event WHERE user_id = ? AND id NOT IN (%s)`, placeholders)

	args := make([]interface{}, 0, len(keepIds)+1)
	args = append(args, userId)
	for _, id := range keepIds {
		args = append(args, id)
	}

	_, err := r.getQueryer().ExecContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

// Clear deletes all cached events of one user.
func (r *RepositoryImpl) Clear(ctx context.Context, userId int64) error {
	query := `DELETE FROM cached_event WHERE user_id = ?`
	_, err := r.getQueryer().ExecContext(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

// ClearAll deletes every cached event unconditionally.
func (r *RepositoryImpl) ClearAll(ctx context.Context) error {
	_, err := r.getQueryer().ExecContext(ctx, `DELETE FROM cached_event`)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var e event.Event
	var description sql.NullString
	var location sql.NullString
	var startTimeMillis int64
	var endTimeMillis int64
	var metadata sql.NullString
	var updatedAtMillis int64

	err := rows.Scan(&e.ID, &e.Title, &description, &location, &e.Timezone, &startTimeMillis, &endTimeMillis, &metadata, &updatedAtMillis)
	if err != nil {
		return event.Event{}, fmt.Errorf("could not scan row: %w", err)
	}

	e.Description = description.String
	e.Location = location.String
	e.StartTime = time.UnixMilli(startTimeMillis).UTC()
	e.EndTime = time.UnixMilli(endTimeMillis).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAtMillis).UTC()

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return event.Event{}, fmt.Errorf("could not decode event metadata: %w", err)
		}
	}

	return e, nil
}

func marshalMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
