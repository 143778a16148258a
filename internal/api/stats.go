package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByVariant          map[string]int `json:"by_variant"`
	AvgDurationSeconds float64        `json:"avg_duration_seconds"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		s.writeKindError(w, "get job stats", err)
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:              stats.Total,
		ByStatus:           stats.CountByStatus,
		ByVariant:          stats.CountByVariant,
		AvgDurationSeconds: stats.AvgDurationSeconds,
	})
}
