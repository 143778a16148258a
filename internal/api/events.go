package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/orchestrator"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.orch.Status(r.Context(), id)
	if err != nil {
		s.writeKindError(w, "get job for events", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// A finished job has nothing left to stream.
	if model.IsTerminal(job.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", job.Status)
		return
	}

	s.clearWriteDeadline(w)

	ch, unsub := s.orch.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	done := func() {
		_ = writeSSEEvent(w, "done", s.streamStatus(r, id))
		if canFlush {
			flusher.Flush()
		}
	}

	// The job may have finished or been deleted before the subscription
	// existed; its channel would then never close.
	if status := s.streamStatus(r, id); model.IsTerminal(status) || status == streamDeleted {
		done()
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				done()
				return
			}
			var werr error
			if ev.Kind == orchestrator.EventStage {
				werr = writeSSEEvent(w, ev.Kind, ev.Data)
			} else {
				werr = writeSSEData(w, ev.Data)
			}
			if werr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

const streamDeleted = "deleted"

// streamStatus is the job's current status, or "deleted" once the record is gone.
func (s *Server) streamStatus(r *http.Request, id string) string {
	j, err := s.orch.Status(r.Context(), id)
	if err != nil {
		return streamDeleted
	}
	return j.Status
}

// logHistoryLine is a single log line in the history response.
type logHistoryLine struct {
	Seq       int    `json:"seq"`
	Line      string `json:"line"`
	CreatedAt string `json:"created_at"`
}

// logHistoryResponse is the JSON response for GET /v1/jobs/{id}/logs.
type logHistoryResponse struct {
	JobID string           `json:"job_id"`
	Lines []logHistoryLine `json:"lines"`
}

func (s *Server) handleGetLogHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	logLines, err := s.orch.Logs(r.Context(), id)
	if err != nil {
		s.writeKindError(w, "get log lines", err)
		return
	}

	lines := make([]logHistoryLine, len(logLines))
	for i, l := range logLines {
		lines[i] = logHistoryLine{
			Seq:       l.Seq,
			Line:      l.Line,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, logHistoryResponse{
		JobID: id,
		Lines: lines,
	})
}

// writeSSEData writes a log line as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, line string) error {
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
