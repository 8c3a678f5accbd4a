package server

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/metrics"
)

func registerAuthRoutes(api huma.API, authSvc v1.AuthService) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store v1.DataStore) {
	v1.RegisterBoardRoutes(api, store)
	v1.RegisterAuditRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/ws", hub.ServeWS)
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return metrics.Handler(gatherer)
}
