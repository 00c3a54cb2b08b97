package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrative"
)

// POST /analyze: multipart field "file" holding a CSV/TSV, XLSX or JSON dataset.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes.", s.cfg.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes.", s.cfg.MaxUploadBytes))
			return
		}
		writeDetail(w, http.StatusBadRequest, "Missing upload field \"file\".")
		return
	}
	defer file.Close()

	ct, _, _ := mime.ParseMediaType(hdr.Header.Get("Content-Type"))
	if !allowedType(ct) {
		writeDetail(w, http.StatusBadRequest, "Unsupported file type. Upload CSV or XLSX.")
		return
	}
	body, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	log := s.log.With("request_id", reqID, "file", hdr.Filename)
	key := uploadKey(hdr.Filename, body)
	if res, ok := s.byUpload.Get(key); ok {
		log.Debugw("Cache hit", "analysis_id", res.ID)
		writeJSON(w, http.StatusOK, res)
		return
	}

	start := time.Now()
	ds, err := dataset.DecodeBytes(hdr.Filename, body, s.cfg.Decode)
	if err != nil {
		log.Warnw("Decode failed", "error", err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := analysis.Analyze(ds, s.cfg.Options)
	switch {
	case errors.Is(err, analysis.ErrEmptyDataset):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Errorw("Analysis failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.cfg.Narrator != nil {
		n, nerr := s.cfg.Narrator.Narrate(r.Context(), res)
		if nerr != nil {
			log.Warnw("Narrative unavailable, keeping deterministic report", "error", nerr)
		} else {
			res = narrative.Apply(res, n)
		}
	}
	s.byUpload.Add(key, res)
	s.byID.Add(res.ID, res)
	log.Infow("Analyzed upload",
		"analysis_id", res.ID,
		"rows", res.Stats.Shape[0],
		"charts", len(res.Specs),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	writeJSON(w, http.StatusOK, res)
}

// GET /analyses/{id}
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := s.byID.Get(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("analysis %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": time.Since(s.startedAt).Seconds(),
		"cached":   s.byID.Len(),
	})
}
