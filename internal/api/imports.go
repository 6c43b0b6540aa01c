package api

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// createImport accepts a catalog CSV upload, spools it to disk, and records a
// queued job. The upload streams straight to the spool file; nothing is held
// in memory. Processing happens asynchronously, so the response is always 202
// with the job id to poll.
func (h *Handler) createImport(w http.ResponseWriter, r *http.Request) {
	src, err := importSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.New()
	spoolPath := filepath.Join(h.spoolDir, jobID.String()+".csv")

	f, err := os.Create(spoolPath)
	if err != nil {
		log.Printf("api: spool create failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(spoolPath)
		log.Printf("api: spool write failed: copy=%v close=%v", copyErr, closeErr)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if n == 0 {
		os.Remove(spoolPath)
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	job, err := h.store.CreateJob(r.Context(), domain.ImportJob{ID: jobID, SpoolPath: spoolPath})
	if err != nil {
		os.Remove(spoolPath)
		log.Printf("api: create job failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if h.importNudge != nil {
		h.importNudge.Nudge()
	}

	writeJSON(w, http.StatusAccepted, ImportAcceptedResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// importSource resolves the CSV byte stream for an upload: the "file" field
// of a multipart form, or the raw request body for anything else.
func importSource(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("malformed multipart body")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("missing file field")
		}
		if err != nil {
			return nil, errors.New("malformed multipart body")
		}
		if part.FormName() != "file" {
			continue
		}
		if name := part.FileName(); name != "" && !strings.HasSuffix(strings.ToLower(name), ".csv") {
			return nil, errors.New("only .csv files are accepted")
		}
		return part, nil
	}
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.store.GetImportJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		log.Printf("api: get job failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, importStatusResponse(job))
}

func (h *Handler) cancelImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	err = h.store.RequestJobCancel(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, store.ErrTransitionDenied):
		writeError(w, http.StatusConflict, "job already finished")
		return
	case err != nil:
		log.Printf("api: cancel job failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	writeJSON(w, http.StatusAccepted, ImportAcceptedResponse{
		JobID:  id.String(),
		Status: "cancel_requested",
	})
}

// importStatusResponse maps a job onto the wire form. RejectedSamples is
// always a JSON array, never null.
func importStatusResponse(job domain.ImportJob) ImportStatusResponse {
	samples := make([]RejectedSampleResponse, 0, len(job.RejectedSamples))
	for _, s := range job.RejectedSamples {
		samples = append(samples, RejectedSampleResponse{Line: s.Line, Reason: s.Reason})
	}

	resp := ImportStatusResponse{
		ID:              job.ID.String(),
		Status:          string(job.Status),
		TotalRows:       job.TotalRows,
		ProcessedRows:   job.ProcessedRows,
		Created:         job.CreatedCount,
		Updated:         job.UpdatedCount,
		Rejected:        job.RejectedCount,
		RejectedSamples: samples,
		Reason:          job.Reason,
		CreatedAt:       formatTime(job.CreatedAt),
	}
	if job.StartedAt != nil {
		resp.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = formatTime(*job.FinishedAt)
	}
	return resp
}
