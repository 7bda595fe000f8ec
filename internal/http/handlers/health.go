package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			a.logger(r).Warn().Err(err).Msg("health check failed")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
