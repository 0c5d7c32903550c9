package app

import (
	"context"
	"fmt"
	"time"

	"devshell/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Uptime     string            `json:"uptime,omitempty"`
	Components map[string]string `json:"components"`
	LastBuild  *BuildResult      `json:"last_build,omitempty"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if !s.app.started.IsZero() {
		status.Uptime = time.Since(s.app.started).Round(time.Second).String()
	}

	// Check Watcher
	if s.app.watching() {
		status.Components["watcher"] = fmt.Sprintf("ok (%d entries)", len(s.app.Entries()))
	} else {
		status.Status = "down"
		status.Components["watcher"] = "stopped"
	}

	// Check Build
	if last, ok := s.app.rebuilder.Last(); !ok {
		status.Components["build"] = "idle"
	} else {
		status.LastBuild = &last
		switch {
		case last.Skipped:
			status.Components["build"] = "no command configured"
		case last.OK():
			status.Components["build"] = fmt.Sprintf("ok (%d builds)", s.app.rebuilder.Count())
		default:
			if status.Status == "up" {
				status.Status = "degraded"
			}
			status.Components["build"] = "failing"
		}
	}

	status.Components["runtime"] = fmt.Sprintf("%d MB heap, %d goroutines", util.HeapAllocMB(), util.Goroutines())
	return status
}

// Probe adapts Check to the observability server. Degraded still counts as
// healthy; only a stopped watcher fails the probe.
func (s *HealthService) Probe(ctx context.Context) (any, bool) {
	status := s.Check(ctx)
	return status, status.Status != "down"
}
