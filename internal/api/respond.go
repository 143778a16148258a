package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/seantiz/vidrestore/internal/model"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeKindError maps a classified error to its HTTP status. Unclassified
// errors are logged and reported without detail.
func (s *Server) writeKindError(w http.ResponseWriter, op string, err error) {
	kind := model.KindOf(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(op, "kind", kind, "error", err)
		if kind == model.KindInternal {
			msg = op + " failed"
		}
	}
	s.writeJSON(w, status, errorResponse{Error: msg, ErrorType: string(kind)})
}

func statusForKind(k model.Kind) int {
	switch k {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
