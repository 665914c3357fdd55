package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
	"github.com/ndewijer/investment-portfolio-manager/internal/di"
)

// SystemHandlers serves host and database diagnostics for the settings page.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	container *di.Container
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, container *di.Container) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		container: container,
	}
}

// HandleSystemInfo returns host, CPU, memory and disk usage.
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"goVersion":  runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"dataDir":    h.dataDir,
	}

	if hostInfo, err := host.Info(); err == nil {
		info["host"] = map[string]interface{}{
			"hostname": hostInfo.Hostname,
			"os":       hostInfo.OS,
			"platform": hostInfo.Platform,
			"uptime":   hostInfo.Uptime,
		}
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		info["cpuPercent"] = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		info["memory"] = map[string]interface{}{
			"totalBytes": memStat.Total,
			"usedBytes":  memStat.Used,
			"percent":    memStat.UsedPercent,
		}
	}

	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		info["disk"] = map[string]interface{}{
			"totalBytes": diskStat.Total,
			"freeBytes":  diskStat.Free,
			"percent":    diskStat.UsedPercent,
		}
	}

	h.writeJSON(w, http.StatusOK, info)
}

// HandleDatabaseStats returns per-database file sizes and health.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	databases := []*database.DB{
		h.container.PortfolioDB,
		h.container.IbkrDB,
		h.container.ConfigDB,
		h.container.CacheDB,
	}

	results := make([]map[string]interface{}, 0, len(databases))
	for _, db := range databases {
		entry := map[string]interface{}{
			"name":    db.Name(),
			"profile": string(db.Profile()),
			"path":    db.Path(),
			"healthy": db.HealthCheck(ctx) == nil,
		}
		if stats, err := db.GetStats(); err == nil {
			entry["sizeBytes"] = stats.SizeBytes
			entry["walSizeBytes"] = stats.WALSizeBytes
			entry["pageCount"] = stats.PageCount
		} else {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to collect database stats")
		}
		results = append(results, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"databases": results})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
