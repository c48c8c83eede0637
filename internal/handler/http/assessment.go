package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/audio"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/service"
	"github.com/windfall/pronounce_service/pkg/response"
)

const (
	defaultLocale = "en-US"
	// maxFormMemory is how much of a multipart body is kept in memory.
	maxFormMemory = 10 << 20
	// maxRequestBytes caps a multipart upload: the audio plus room for fields.
	maxRequestBytes = audio.MaxInputBytes + 1<<20
)

// AssessmentHandler serves the assessment endpoints.
type AssessmentHandler struct {
	log           zerolog.Logger
	pronunciation *service.PronunciationService
	jobs          *service.JobService
	history       *service.HistoryService
	coaching      *service.CoachingService
}

// NewAssessmentHandler creates a new assessment handler.
func NewAssessmentHandler(
	log zerolog.Logger,
	pronunciation *service.PronunciationService,
	jobs *service.JobService,
	history *service.HistoryService,
	coaching *service.CoachingService,
) *AssessmentHandler {
	return &AssessmentHandler{
		log:           log,
		pronunciation: pronunciation,
		jobs:          jobs,
		history:       history,
		coaching:      coaching,
	}
}

// AssessResponse is the body of a synchronous assessment.
type AssessResponse struct {
	Report *assessment.Report `json:"report"`
	View   assessment.View    `json:"view"`
}

// Assess handles POST /api/v1/assessments
//
// Request: multipart/form-data with "audio" plus mode, reference_text or
// topic, locale and optional learner_id. Raw PCM uploads also set
// sample_rate, channels and sample_width.
func (h *AssessmentHandler) Assess(w http.ResponseWriter, r *http.Request) {
	req, learnerID, err := parseAssessmentForm(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	report, err := h.pronunciation.Assess(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.history.Record(r.Context(), learnerID, req, report)

	response.JSON(w, http.StatusOK, AssessResponse{Report: report, View: assessment.BuildView(*report)})
}

// SubmitJob handles POST /api/v1/assessments/jobs
// Same form as Assess; responds with { "job_id": "..." } at once.
func (h *AssessmentHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	req, learnerID, err := parseAssessmentForm(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	jobID, err := h.jobs.Submit(r.Context(), learnerID, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Accepted(w, map[string]string{"job_id": jobID})
}

// GetJob handles GET /api/v1/assessments/jobs/{jobID}
// Blocks until the result is available or the wait times out (504).
func (h *AssessmentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.jobs.GetResult(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// CoachRequest is the body of POST /api/v1/assessments/coach.
type CoachRequest struct {
	Report   *assessment.Report `json:"report"`
	Provider string             `json:"provider"`
}

// Coach handles POST /api/v1/assessments/coach
func (h *AssessmentHandler) Coach(w http.ResponseWriter, r *http.Request) {
	var req CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, errors.Validation("invalid request body"))
		return
	}
	if req.Report == nil {
		writeError(w, h.log, errors.Validation("report is required"))
		return
	}

	result, err := h.coaching.Coach(r.Context(), *req.Report, req.Provider)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// ListHistory handles GET /api/v1/learners/{learnerID}/assessments?limit=N
func (h *AssessmentHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, h.log, errors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), chi.URLParam(r, "learnerID"), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, records, &response.Meta{Total: len(records), Limit: limit})
}

func parseAssessmentForm(w http.ResponseWriter, r *http.Request) (service.AssessmentRequest, string, error) {
	var req service.AssessmentRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, "", errors.New(errors.ErrAudioTooLong, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
		}
		return req, "", errors.Validation("failed to parse multipart form")
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		return req, "", errors.Validation("audio file is required")
	}
	defer file.Close()

	src, err := audio.ReadBlob(file)
	if err != nil {
		return req, "", err
	}
	if v := r.FormValue("sample_rate"); v != "" {
		rate, err1 := strconv.Atoi(v)
		channels, err2 := strconv.Atoi(formValueOr(r, "channels", "1"))
		width, err3 := strconv.Atoi(formValueOr(r, "sample_width", "2"))
		if err1 != nil || err2 != nil || err3 != nil {
			return req, "", errors.Validation("sample_rate, channels and sample_width must be integers")
		}
		if rate <= 0 || channels <= 0 || width <= 0 {
			return req, "", errors.Validation("sample_rate, channels and sample_width must be positive")
		}
		src = audio.RawPCM(src.Data, width, rate, channels)
	}

	req = service.AssessmentRequest{
		Mode:          assessment.Mode(formValueOr(r, "mode", string(assessment.ModeScripted))),
		ReferenceText: r.FormValue("reference_text"),
		Topic:         r.FormValue("topic"),
		Locale:        formValueOr(r, "locale", defaultLocale),
		Audio:         src,
	}
	return req, r.FormValue("learner_id"), nil
}

func formValueOr(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
