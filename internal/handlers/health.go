package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/kaaltube/backend/internal/api"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Started time.Time
	NowFunc func() time.Time
}

type healthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	HeapAllocMB   float64   `json:"heapAllocMb"`
	Goroutines    int       `json:"goroutines"`
}

// Handle implements GET /api/v1/healthcheck.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	now := nowOrDefault(h.NowFunc)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	payload := healthResponse{
		Status:        "ok",
		Timestamp:     now,
		UptimeSeconds: now.Sub(h.Started).Seconds(),
		HeapAllocMB:   float64(mem.HeapAlloc) / (1 << 20),
		Goroutines:    runtime.NumGoroutine(),
	}

	api.WriteData(r.Context(), w, http.StatusOK, payload, "service is healthy")
}
