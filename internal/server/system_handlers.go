package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/ecovest/internal/database"
	"github.com/aristath/ecovest/internal/modules/impact/handlers"
	"github.com/aristath/ecovest/internal/modules/impact/model"
	"github.com/aristath/ecovest/internal/scheduler"
)

// BundleSource exposes the active model bundle
type BundleSource interface {
	Current() *model.Bundle
}

// JobRunner starts a job outside its schedule
type JobRunner interface {
	RunAsync(job scheduler.Job) error
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	modelDir    string
	startupTime time.Time
	db          *database.DB
	bundles     BundleSource
	runner      JobRunner

	// Jobs (set after job registration)
	jobs map[string]scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	db *database.DB,
	bundles BundleSource,
	runner JobRunner,
	modelDir string,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		modelDir:    modelDir,
		startupTime: time.Now(),
		db:          db,
		bundles:     bundles,
		runner:      runner,
		jobs:        make(map[string]scheduler.Job),
	}
}

// SetJobs registers job references for manual triggering
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	for _, job := range jobs {
		if job != nil {
			h.jobs[job.Name()] = job
		}
	}
}

// RegisterRoutes registers system and job trigger routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/system/status", h.HandleSystemStatus)
	r.Post("/jobs/{name}", h.HandleTriggerJob)
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status     string                 `json:"status"` // "healthy" or "degraded"
	Uptime     string                 `json:"uptime"`
	CPUPercent float64                `json:"cpu_percent"`
	RAMPercent float64                `json:"ram_percent"`
	Goroutines int                    `json:"goroutines"`
	Database   *database.Stats        `json:"database,omitempty"`
	Model      map[string]interface{} `json:"model"`
	ModelDirMB float64                `json:"model_dir_mb"`
	Jobs       []string               `json:"jobs"`
}

// HandleSystemStatus returns host, database and model status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:     "healthy",
		Uptime:     time.Since(h.startupTime).Round(time.Second).String(),
		CPUPercent: cpuPercent,
		RAMPercent: ramPercent,
		Goroutines: runtime.NumGoroutine(),
		Model:      handlers.BundleInfo(h.bundles.Current()),
		ModelDirMB: h.getDirSize(h.modelDir),
		Jobs:       make([]string, 0, len(h.jobs)),
	}
	for name := range h.jobs {
		response.Jobs = append(response.Jobs, name)
	}
	sort.Strings(response.Jobs)

	stats, err := h.db.GetStats()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get database stats")
		response.Status = "degraded"
	} else {
		response.Database = stats
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob starts a registered job in the background
// POST /api/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.log.Warn().Str("job", name).Msg("Job not registered")
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Job not registered",
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")
	// failures are logged and counted by the runner
	if err := h.runner.RunAsync(job); err != nil {
		h.log.Warn().Err(err).Str("job", name).Msg("Job not started")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Job scheduler is shutting down",
		})
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": name + " triggered successfully",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages.
// Samples CPU over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
