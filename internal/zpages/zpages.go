// Package zpages provides the optional status endpoints of a coupling
// participant: prometheus metrics and a health check reflecting the state
// of the coupling channel.
package zpages

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidscn/coupled-laplace/internal/build"
)

// HealthClient reports whether the participant is in a usable state.
type HealthClient interface {
	IsHealthy(context.Context) bool
}

// Configure configures router with the participant z-page endpoints.
func Configure(router gin.IRouter, registry *prometheus.Registry, health HealthClient) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	router.GET("/healthz", healthHandler(health, time.Now()))
}

// healthHandler returns a handler reporting participant liveness. A healthy
// coupling channel yields 200, anything else 500.
func healthHandler(client HealthClient, start time.Time) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		healthy := client.IsHealthy(ctx)

		res := struct {
			GitRev          string  `json:"git_rev"`
			Uptime          float64 `json:"uptime"`
			Goroutines      int     `json:"goroutines"`
			CouplingHealthy bool    `json:"coupling_status"`
		}{
			GitRev:          build.GitRevision(),
			Uptime:          time.Since(start).Seconds(),
			Goroutines:      runtime.NumGoroutine(),
			CouplingHealthy: healthy,
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusInternalServerError
		}

		ctx.JSON(status, res)
	}
}
