package kvcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Repository is the generic auxiliary key-value table for non-event cached
// data, keyed per user. The event cache itself never touches it.
type Repository interface {
	Put(ctx context.Context, userId int64, key string, value string) error
	Get(ctx context.Context, userId int64, key string) (string, bool, error)
	Delete(ctx context.Context, userId int64, key string) error
	Clear(ctx context.Context, userId int64) error
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Put(ctx context.Context, userId int64, key string, value string) error {
	query := `INSERT INTO cache_kv (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (user_id, key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, userId, key, value, time.Now().UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int64, key string) (string, bool, error) {
	query := `SELECT value FROM cache_kv WHERE user_id = ? AND key = ?`

	var value string
	err := r.db.QueryRowContext(ctx, query, userId, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		err := fmt.Errorf("could not query cache_kv: %w", err)
		log.Error(err)
		return "", false, err
	}
	return value, true, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int64, key string) error {
	query := `DELETE FROM cache_kv WHERE user_id = ? AND key = ?`
	_, err := r.db.ExecContext(ctx, query, userId, key)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Clear(ctx context.Context, userId int64) error {
	query := `DELETE FROM cache_kv WHERE user_id = ?`
	_, err := r.db.ExecContext(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}
