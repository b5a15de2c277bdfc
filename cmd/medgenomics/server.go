package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/secureai/medgenomics/pkg/intake"
	"github.com/secureai/medgenomics/pkg/log"
)

// apiServer exposes the intake surface over plain JSON/HTTP, the way this
// codebase's metrics and health endpoints are plain handlers registered on
// a single mux rather than a generated RPC service.
type apiServer struct {
	surface *intake.Surface
}

func newAPIServer(surface *intake.Surface) *apiServer {
	return &apiServer{surface: surface}
}

func (a *apiServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/jobs", a.handleSubmit)
	mux.HandleFunc("/v1/jobs/", a.handleJobPath)
}

func (a *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload"
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, a.surface.MaxInputBytes()+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	jobID, err := a.surface.Submit(filename, body)
	if err != nil {
		a.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// handleJobPath dispatches /v1/jobs/{id}[/result|/proof|/cancel].
func (a *apiServer) handleJobPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	parts := strings.SplitN(rest, "/", 2)
	jobID := parts[0]
	if jobID == "" {
		httpError(w, http.StatusNotFound, "job id required")
		return
	}

	var action string
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		a.handleStatus(w, jobID)
	case action == "result" && r.Method == http.MethodGet:
		a.handleResult(w, jobID)
	case action == "proof" && r.Method == http.MethodGet:
		a.handleProof(w, jobID)
	case action == "cancel" && r.Method == http.MethodPost:
		a.handleCancel(w, jobID)
	default:
		httpError(w, http.StatusNotFound, "unknown route")
	}
}

func (a *apiServer) handleStatus(w http.ResponseWriter, jobID string) {
	view, err := a.surface.Status(jobID)
	if err != nil {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *apiServer) handleResult(w http.ResponseWriter, jobID string) {
	verdict, err := a.surface.Result(jobID)
	if err != nil {
		var notReady *intake.ErrNotReady
		if errors.As(err, &notReady) {
			httpError(w, http.StatusConflict, err.Error())
			return
		}
		httpError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (a *apiServer) handleProof(w http.ResponseWriter, jobID string) {
	proof, err := a.surface.Proof(jobID)
	if err != nil {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func (a *apiServer) handleCancel(w http.ResponseWriter, jobID string) {
	if err := a.surface.Cancel(jobID); err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation_requested"})
}

func (a *apiServer) writeSubmitError(w http.ResponseWriter, err error) {
	var tooLarge *intake.ErrInputTooLarge
	switch {
	case errors.As(err, &tooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, intake.ErrQueueAtCapacity{}):
		httpError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, intake.ErrEmptyInput{}):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		log.Logger.Error().Err(err).Msg("submit failed")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
