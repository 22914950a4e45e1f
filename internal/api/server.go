// Package api exposes the transcription service over HTTP. Handlers
// translate between the JSON wire shapes the browser consumes and the
// speech/batch/transcript packages; domain failures travel inside 200
// responses as success=false payloads, reserving error statuses for
// validation problems and upstream refusals.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/batch"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/speech"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/transcript"
)

// listingTopDefault is the upstream page size when the caller does not ask for one.
const listingTopDefault = 100

// JobAPI is the slice of the speech client the HTTP layer needs.
type JobAPI interface {
	ListJobs(ctx context.Context, skip, top int) ([]speech.Job, error)
	GetJob(ctx context.Context, id string) (*speech.Job, error)
	SubmitJob(ctx context.Context, sub speech.SubmitRequest) (*speech.Job, error)
	CancelJob(ctx context.Context, id string) (bool, error)
	DeleteJob(ctx context.Context, id string) (bool, error)
	Locales(ctx context.Context) ([]speech.LocaleInfo, error)
	LocaleCodes(ctx context.Context) ([]string, error)
}

// ResultAPI aggregates completed jobs into transcripts.
type ResultAPI interface {
	Results(ctx context.Context, jobID string) (batch.Result, error)
	ResultsByFile(ctx context.Context, jobID string, fileIndex int) (batch.Result, error)
	ResultFileInfos(ctx context.Context, jobID string) ([]batch.FileInfo, error)
}

// Config carries the handler defaults and limits main resolves from the
// environment.
type Config struct {
	Port               int
	RateLimitPerMin    int
	DefaultLocale      string
	DefaultMinSpeakers int
	DefaultMaxSpeakers int
}

type Server struct {
	jobs    JobAPI
	results ResultAPI
	router  chi.Router
	cfg     Config
}

func NewServer(jobs JobAPI, results ResultAPI, cfg Config) *Server {
	srv := &Server{
		jobs:    jobs,
		results: results,
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(securityHeaders)
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)

		// Health stays reachable for probes; everything else is limited.
		r.Group(func(r chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
			}

			r.Get("/jobs", srv.handleListJobs)
			r.Post("/jobs", srv.handleSubmitJob)
			r.Get("/jobs/{jobID}", srv.handleGetJob)
			r.Post("/jobs/{jobID}/cancel", srv.handleCancelJob)
			r.Delete("/jobs/{jobID}", srv.handleDeleteJob)
			r.Get("/jobs/{jobID}/files", srv.handleJobFiles)
			r.Get("/jobs/{jobID}/results", srv.handleJobResults)
			r.Get("/jobs/{jobID}/results/{fileIndex}", srv.handleJobResultsByFile)
			r.Get("/locales", srv.handleLocales)
			r.Get("/locales/names", srv.handleLocaleNames)
			r.Post("/transcript/segment", srv.handleUpdateSegment)
			r.Post("/transcript/speakers", srv.handleUpdateSpeakers)
		})
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "speechd",
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	skip := 0
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	top := listingTopDefault
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			top = n
		}
	}

	jobs, err := s.jobs.ListJobs(r.Context(), skip, top)
	if err != nil {
		slog.Error("list jobs failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if jobs == nil {
		jobs = []speech.Job{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobs":    jobs,
		"count":   len(jobs),
	})
}

type submitJobRequest struct {
	ContentURLs []string `json:"contentUrls"`
	JobName     string   `json:"jobName"`
	Locale      string   `json:"locale"`
	MinSpeakers *int     `json:"minSpeakers"`
	MaxSpeakers *int     `json:"maxSpeakers"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "No data provided")
		return
	}
	if len(req.ContentURLs) == 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "No content URLs provided")
		return
	}

	sub := speech.SubmitRequest{
		ContentURLs: req.ContentURLs,
		DisplayName: req.JobName,
		Locale:      req.Locale,
		MinSpeakers: s.cfg.DefaultMinSpeakers,
		MaxSpeakers: s.cfg.DefaultMaxSpeakers,
	}
	if sub.DisplayName == "" {
		sub.DisplayName = "Batch Job " + time.Now().Format("2006-01-02 15:04:05")
	}
	if sub.Locale == "" {
		sub.Locale = s.cfg.DefaultLocale
	}
	if req.MinSpeakers != nil {
		sub.MinSpeakers = *req.MinSpeakers
	}
	if req.MaxSpeakers != nil {
		sub.MaxSpeakers = *req.MaxSpeakers
	}
	if err := speech.ValidateSpeakers(sub.MinSpeakers, sub.MaxSpeakers); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	job, err := s.jobs.SubmitJob(r.Context(), sub)
	if err != nil {
		slog.Error("submit job failed", "error", err)
		writeError(w, http.StatusBadGateway, codeAzure, "Failed to create batch job: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Batch job created successfully with %d file(s)", len(req.ContentURLs)),
		"job":     job,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		slog.Error("get job failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("Job %s not found", jobID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     job,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ok, err := s.jobs.CancelJob(r.Context(), jobID)
	if err != nil {
		slog.Error("cancel job failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadGateway, codeAzure, fmt.Sprintf("Failed to cancel job %s", jobID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Job %s cancelled successfully", jobID),
	})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	ok, err := s.jobs.DeleteJob(r.Context(), jobID)
	if err != nil {
		slog.Error("delete job failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadGateway, codeAzure, fmt.Sprintf("Failed to delete job %s", jobID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Job %s deleted successfully", jobID),
	})
}

func (s *Server) handleJobFiles(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	files, err := s.results.ResultFileInfos(r.Context(), jobID)
	if err != nil {
		slog.Error("list result files failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	if files == nil {
		files = []batch.FileInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

func (s *Server) handleJobResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	res, err := s.results.Results(r.Context(), jobID)
	if err != nil {
		slog.Error("fetch results failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleJobResultsByFile(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	fileIndex, err := strconv.Atoi(chi.URLParam(r, "fileIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid file index")
		return
	}

	res, err := s.results.ResultsByFile(r.Context(), jobID, fileIndex)
	if err != nil {
		slog.Error("fetch file results failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLocales(w http.ResponseWriter, r *http.Request) {
	codes, err := s.jobs.LocaleCodes(r.Context())
	if err != nil {
		slog.Error("fetch locales failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"locales": codes,
		"count":   len(codes),
	})
}

func (s *Server) handleLocaleNames(w http.ResponseWriter, r *http.Request) {
	locales, err := s.jobs.Locales(r.Context())
	if err != nil {
		slog.Error("fetch locales failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"locales": locales,
		"count":   len(locales),
	})
}

// updateSegmentRequest carries the browser's segment state plus one edit. The
// audit log rides along opaquely; the server only appends to it.
type updateSegmentRequest struct {
	Segments     []transcript.Segment `json:"segments"`
	SegmentIndex *int                 `json:"segmentIndex"`
	NewText      string               `json:"newText"`
	NewSpeaker   string               `json:"newSpeaker"`
	AuditLog     []json.RawMessage    `json:"auditLog"`
}

type updateSegmentResponse struct {
	Success           bool                     `json:"success"`
	Message           string                   `json:"message"`
	Segments          []transcript.Segment     `json:"segments"`
	FullTranscript    string                   `json:"fullTranscript"`
	AvailableSpeakers []string                 `json:"availableSpeakers"`
	SpeakerStatistics []transcript.SpeakerInfo `json:"speakerStatistics"`
	AuditLog          []json.RawMessage        `json:"auditLog"`
	LastEdit          transcript.AuditEntry    `json:"lastEdit"`
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req updateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "No data provided")
		return
	}
	var missing []string
	if req.SegmentIndex == nil {
		missing = append(missing, "segmentIndex")
	}
	if req.Segments == nil {
		missing = append(missing, "segments")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	segs := req.Segments
	entry, msg, err := transcript.UpdateSegment(segs, transcript.SegmentUpdate{
		Index:      *req.SegmentIndex,
		NewText:    req.NewText,
		NewSpeaker: req.NewSpeaker,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	rebuilt := transcript.Rebuild(segs)
	writeJSON(w, http.StatusOK, updateSegmentResponse{
		Success:           true,
		Message:           msg,
		Segments:          segs,
		FullTranscript:    rebuilt.FullTranscript,
		AvailableSpeakers: emptyRoster(rebuilt.Speakers),
		SpeakerStatistics: rebuilt.SpeakerStats,
		AuditLog:          appendAudit(req.AuditLog, entry),
		LastEdit:          entry,
	})
}

// updateSpeakersRequest applies an optional bulk speaker operation and
// recomputes the derived views. AvailableSpeakers is maintained by the
// client because it can list speakers that currently hold zero segments;
// recomputing it from segments alone would drop those.
type updateSpeakersRequest struct {
	Segments          []transcript.Segment `json:"segments"`
	AvailableSpeakers []string             `json:"availableSpeakers"`
	OldSpeaker        string               `json:"oldSpeaker"`
	NewSpeaker        string               `json:"newSpeaker"`
	OperationType     string               `json:"operationType"`
	AuditLog          []json.RawMessage    `json:"auditLog"`
}

type updateSpeakersResponse struct {
	Success           bool                     `json:"success"`
	Message           string                   `json:"message"`
	Segments          []transcript.Segment     `json:"segments"`
	FullTranscript    string                   `json:"fullTranscript"`
	AvailableSpeakers []string                 `json:"availableSpeakers"`
	SpeakerStatistics []transcript.SpeakerInfo `json:"speakerStatistics"`
	AuditLog          []json.RawMessage        `json:"auditLog"`
}

func (s *Server) handleUpdateSpeakers(w http.ResponseWriter, r *http.Request) {
	var req updateSpeakersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "No data provided")
		return
	}
	if req.Segments == nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Missing required fields: segments")
		return
	}

	segs := req.Segments
	transcript.AssignLineNumbers(segs)

	roster := req.AvailableSpeakers
	auditLog := req.AuditLog
	if req.OldSpeaker != "" && req.NewSpeaker != "" && req.OperationType != "" {
		var entry *transcript.AuditEntry
		roster, entry = transcript.ApplySpeakerOp(segs, roster, transcript.SpeakerOp{
			Type:       req.OperationType,
			OldSpeaker: req.OldSpeaker,
			NewSpeaker: req.NewSpeaker,
		})
		if entry != nil {
			auditLog = appendAudit(auditLog, *entry)
		}
	}

	if auditLog == nil {
		auditLog = []json.RawMessage{}
	}

	rebuilt := transcript.Rebuild(segs)
	writeJSON(w, http.StatusOK, updateSpeakersResponse{
		Success:           true,
		Message:           fmt.Sprintf("Updated speaker names for %d segments", len(segs)),
		Segments:          segs,
		FullTranscript:    rebuilt.FullTranscript,
		AvailableSpeakers: emptyRoster(roster),
		SpeakerStatistics: rebuilt.SpeakerStats,
		AuditLog:          auditLog,
	})
}

// Error codes carried in failure envelopes.
const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "RESOURCE_NOT_FOUND"
	codeAzure      = "AZURE_SERVICE_ERROR"
	codeInternal   = "INTERNAL_ERROR"
)

type errorEnvelope struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{ErrorCode: code, Message: message})
}

func appendAudit(log []json.RawMessage, entry transcript.AuditEntry) []json.RawMessage {
	raw, err := json.Marshal(entry)
	if err != nil {
		return log
	}
	return append(log, raw)
}

func emptyRoster(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
