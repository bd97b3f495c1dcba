package user

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const idKey contextKey = "telegramUserId"

var ErrNoUser = errors.New("no user in request context")

// WithId returns a context carrying the Telegram user id of the request.
func WithId(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// CurrentId retrieves the current Telegram user id from the context.
// Returns ErrNoUser if the id is not present.
func CurrentId(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(idKey).(int64)
	if !ok {
		log.Trace("user id not found in context")
		return 0, ErrNoUser
	}
	return id, nil
}
