package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process health.
type SystemHandlers struct {
	scanner scannerAPI
	dataDir string
	started time.Time
	log     zerolog.Logger
}

// NewSystemHandlers creates the system handler group.
func NewSystemHandlers(scanner scannerAPI, dataDir string, started time.Time, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		scanner: scanner,
		dataDir: dataDir,
		started: started,
		log:     log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers the system routes on the /api router.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
}

// HandleHealth handles GET /api/health: liveness plus enough host stats to
// spot a starved process from the dashboard.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "online",
		"engine":         "HYDRA v2.0",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"signals_active": h.scanner.Store().Count(),
		"goroutines":     runtime.NumGoroutine(),
	}

	system := map[string]interface{}{}
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		system["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		system["memory_percent"] = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		system["disk_percent"] = diskStat.UsedPercent
	}
	resp["system"] = system

	writeJSON(w, resp)
}
