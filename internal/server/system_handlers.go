package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/bondwatch/internal/database"
	"github.com/aristath/bondwatch/internal/modules/valuation"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	bondsDB     *database.DB
	cacheDB     *database.DB
	store       *valuation.Store
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	bondsDB, cacheDB *database.DB,
	store *valuation.Store,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		bondsDB:     bondsDB,
		cacheDB:     cacheDB,
		store:       store,
	}
}

// DBInfo describes one database file
type DBInfo struct {
	Name   string  `json:"name"`
	SizeMB float64 `json:"size_mb"`
	Status string  `json:"status"`
}

// SystemStatusResponse is the system status payload
type SystemStatusResponse struct {
	Status       string    `json:"status"`
	UptimeHours  float64   `json:"uptime_hours"`
	CPUPercent   float64   `json:"cpu_percent"`
	RAMPercent   float64   `json:"ram_percent"`
	Databases    []DBInfo  `json:"databases"`
	LastRunID    string    `json:"last_run_id,omitempty"`
	LastRunAsOf  time.Time `json:"last_run_as_of,omitempty"`
	LastUniverse int       `json:"last_universe,omitempty"`
	LastScreened int       `json:"last_screened,omitempty"`
}

// HandleSystemStatus returns process, database and last-cycle status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.systemStats()

	response := SystemStatusResponse{
		Status:      "healthy",
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
	}

	for _, db := range []*database.DB{h.bondsDB, h.cacheDB} {
		if db == nil {
			continue
		}
		info := DBInfo{Name: db.Name(), Status: "ok"}
		if err := db.HealthCheck(r.Context()); err != nil {
			info.Status = err.Error()
			response.Status = "unhealthy"
		}
		if stat, err := os.Stat(db.Path()); err == nil {
			info.SizeMB = float64(stat.Size()) / 1024 / 1024
		}
		response.Databases = append(response.Databases, info)
	}

	if h.store != nil {
		if res := h.store.Current(); res != nil {
			response.LastRunID = res.RunID
			response.LastRunAsOf = res.AsOf
			response.LastUniverse = len(res.Universe)
			response.LastScreened = len(res.Screened)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// systemStats reads CPU and RAM usage. The short CPU sampling window
// keeps the endpoint responsive for dashboard polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
