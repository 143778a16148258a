package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/vidrestore/internal/serverless"
)

// handleRunSync serves the synchronous adapter over HTTP. Every decodable
// request gets a 200 with the result object, success or error.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	// Base64 inflates the payload by a third.
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes/3*4+(1<<20))
	req, err := serverless.DecodeRequest(r.Body)
	if err != nil {
		s.writeKindError(w, "decode runsync request", err)
		return
	}
	if req.ID == "" {
		req.ID = middleware.GetReqID(r.Context())
	}

	s.clearWriteDeadline(w)
	resp := s.runsync.Handle(r.Context(), req)
	s.writeJSON(w, http.StatusOK, resp)
}
