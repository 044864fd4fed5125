// Package health provides liveness and readiness handlers.
//
//	r.Get("/health/live", health.Liveness[*router.Context])
//	r.Get("/health/ready", health.Readiness[*router.Context](log,
//		health.Check{Name: "sessions", Fn: store.Ping},
//		health.Check{Name: "redis", Fn: kv.Ping, Optional: true},
//	))
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/core/response"
)

// Status values reported by Readiness.
const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// DefaultCheckTimeout bounds each dependency check.
const DefaultCheckTimeout = 2 * time.Second

// Check is a named dependency probe. A failing Optional check degrades the
// service without taking it out of rotation.
type Check struct {
	Name     string
	Fn       func(context.Context) error
	Optional bool
}

// Report is the readiness response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness reports that the process is up. It checks no dependencies.
func Liveness[C handler.Context](C) handler.Response {
	return response.String("ALIVE")
}

// Readiness runs every check and answers 200 when all required checks pass,
// 503 otherwise.
func Readiness[C handler.Context](log *slog.Logger, checks ...Check) handler.HandlerFunc[C] {
	return func(ctx C) handler.Response {
		report := Report{Status: StatusReady, Checks: make(map[string]string, len(checks))}

		for _, c := range checks {
			cctx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
			err := c.Fn(cctx)
			cancel()

			if err == nil {
				report.Checks[c.Name] = "ok"
				continue
			}

			report.Checks[c.Name] = "failed"
			if c.Optional {
				log.WarnContext(ctx, "optional dependency unavailable", logger.Component(c.Name), logger.Error(err))
				if report.Status == StatusReady {
					report.Status = StatusDegraded
				}
				continue
			}

			log.ErrorContext(ctx, "readiness check failed", logger.Component(c.Name), logger.Error(err))
			report.Status = StatusUnavailable
		}

		if report.Status == StatusUnavailable {
			return response.JSONWithStatus(report, http.StatusServiceUnavailable)
		}
		return response.JSON(report)
	}
}
