package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/bondwatch/internal/database"
)

// handleHealth returns liveness plus per-database health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	databases := map[string]string{}

	for _, db := range []*database.DB{s.bondsDB, s.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			status = "unhealthy"
			databases[db.Name()] = err.Error()
			continue
		}
		databases[db.Name()] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"databases": databases,
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}
