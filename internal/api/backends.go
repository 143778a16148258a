package api

import (
	"net/http"

	"github.com/seantiz/vidrestore/internal/backend"
)

type listBackendsResponse struct {
	DefaultVariant string                `json:"default_variant"`
	Backends       []backend.BackendInfo `json:"backends"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listBackendsResponse{
		DefaultVariant: s.opts.DefaultVariant,
		Backends:       s.registry.List(),
	})
}
