package api

import "net/http"

const (
	healthHealthy   = "healthy"
	healthUnhealthy = "unhealthy"
)

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelSize   string `json:"model_size"`
	EngineBusy  bool   `json:"engine_busy"`
	// EngineQueue counts jobs waiting for the engine.
	EngineQueue int `json:"engine_queue"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:      healthHealthy,
		ModelLoaded: s.orch.Ready(),
		ModelSize:   s.opts.DefaultVariant,
		EngineBusy:  s.orch.Gate().Busy(),
		EngineQueue: s.orch.Gate().Waiting(),
	}
	status := http.StatusOK
	if !resp.ModelLoaded {
		resp.Status = healthUnhealthy
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

type rootResponse struct {
	Service   string            `json:"service"`
	ModelSize string            `json:"model_size"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, rootResponse{
		Service:   "vidrestore",
		ModelSize: s.opts.DefaultVariant,
		Endpoints: map[string]string{
			"submit":   "POST /v1/jobs",
			"list":     "GET /v1/jobs",
			"status":   "GET /v1/jobs/{id}",
			"download": "GET /v1/jobs/{id}/download",
			"delete":   "DELETE /v1/jobs/{id}",
			"events":   "GET /v1/jobs/{id}/events",
			"logs":     "GET /v1/jobs/{id}/logs",
			"runsync":  "POST /v1/runsync",
			"backends": "GET /v1/backends",
			"stats":    "GET /v1/stats",
			"health":   "GET /healthz",
			"metrics":  "GET /metrics",
		},
	})
}
