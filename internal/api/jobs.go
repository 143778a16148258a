package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/orchestrator"
	"github.com/seantiz/vidrestore/internal/pipeline"
)

const (
	// videoField is the multipart file part carrying the upload.
	videoField = "video"
	// multipartMemory is how much of a multipart body is buffered in memory
	// before spilling to temporary files.
	multipartMemory = 32 << 20
)

// listJobsResponse wraps the list response.
type listJobsResponse struct {
	Jobs   []*model.Job `json:"jobs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

type deleteJobResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Ready() {
		s.writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	s.clearWriteDeadline(w)
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(videoField)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	params, err := s.paramsFromForm(r)
	if err != nil {
		s.writeKindError(w, "parse parameters", err)
		return
	}

	job, err := s.orch.Submit(r.Context(), orchestrator.Submission{
		Input: pipeline.Input{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		},
		Params: params,
	})
	if err != nil {
		s.writeKindError(w, "submit job", err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, job)
}

// paramsFromForm reads parameter overrides from form or query fields.
func (s *Server) paramsFromForm(r *http.Request) (model.Params, error) {
	variant := s.opts.DefaultVariant
	for _, key := range []string{"engine_variant", "model_size"} {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			variant = strings.ToLower(v)
			break
		}
	}
	p := model.DefaultParams(variant)

	floats := []struct {
		key string
		dst *float64
	}{
		{"cfg_scale", &p.CfgScale},
		{"cfg_rescale", &p.CfgRescale},
	}
	for _, f := range floats {
		if v := strings.TrimSpace(r.FormValue(f.key)); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, invalidField(f.key, v, err)
			}
			*f.dst = n
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"sample_steps", &p.SampleSteps},
		{"res_h", &p.ResH},
		{"res_w", &p.ResW},
		{"sp_size", &p.SPSize},
	}
	for _, f := range ints {
		if v := strings.TrimSpace(r.FormValue(f.key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, invalidField(f.key, v, err)
			}
			*f.dst = n
		}
	}

	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, invalidField("seed", v, err)
		}
		p.Seed = n
	}
	return p, nil
}

func invalidField(key, value string, err error) error {
	return model.NewError(model.KindValidation, fmt.Sprintf("invalid %s %q", key, value), err)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.orch.Status(r.Context(), id)
	if err != nil {
		s.writeKindError(w, "get job", err)
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.orch.List(r.Context())
	if err != nil {
		s.writeKindError(w, "list jobs", err)
		return
	}

	total := len(jobs)
	jobs = jobs[min(offset, total):]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleDownloadJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dl, err := s.orch.Download(r.Context(), id)
	if err != nil {
		s.writeKindError(w, "download job", err)
		return
	}
	defer dl.Body.Close()

	s.clearWriteDeadline(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		s.logger.Warn("download interrupted", "job_id", id, "error", err)
	}
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.orch.Delete(r.Context(), id); err != nil {
		s.writeKindError(w, "delete job", err)
		return
	}

	s.writeJSON(w, http.StatusOK, deleteJobResponse{Message: fmt.Sprintf("job %s deleted", id)})
}
