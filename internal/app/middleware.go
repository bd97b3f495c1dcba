package app

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/minical/minical/internal/config"
	"github.com/minical/minical/pkg/user"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Propagate X-Telegram-User-Id header into context for downstream services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userIdHeader := req.Header.Get("X-Telegram-User-Id")
			ctx := req.Context()

			if userIdHeader != "" {
				userId, err := strconv.ParseInt(userIdHeader, 10, 64)
				if err != nil {
					log.Debugf("invalid X-Telegram-User-Id header: %q", userIdHeader)
					http.Error(w, "invalid X-Telegram-User-Id header", http.StatusBadRequest)
					return
				}
				ctx = user.WithId(ctx, userId)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
