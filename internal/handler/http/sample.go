package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/service"
	"github.com/windfall/pronounce_service/pkg/response"
)

// SampleHandler serves expected-pronunciation samples.
type SampleHandler struct {
	log           zerolog.Logger
	pronunciation *service.PronunciationService
	samples       *service.SampleService
	defaultVoice  string
}

// NewSampleHandler creates a new sample handler.
func NewSampleHandler(log zerolog.Logger, pronunciation *service.PronunciationService, samples *service.SampleService, defaultVoice string) *SampleHandler {
	return &SampleHandler{
		log:           log,
		pronunciation: pronunciation,
		samples:       samples,
		defaultVoice:  defaultVoice,
	}
}

// SampleRequest is the body of POST /api/v1/samples.
type SampleRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Locale  string `json:"locale"`
	Store   bool   `json:"store"`
}

// Create handles POST /api/v1/samples
// Without "store" the audio bytes are the response body; with it the sample
// is uploaded and { "audio_url", "mime" } is returned.
func (h *SampleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, errors.Validation("invalid request body"))
		return
	}
	if req.VoiceID == "" {
		req.VoiceID = h.defaultVoice
	}

	if req.Store {
		stored, err := h.samples.Store(r.Context(), req.Text, req.VoiceID, req.Locale)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		response.Created(w, stored)
		return
	}

	result, err := h.pronunciation.Sample(r.Context(), req.Text, req.VoiceID, req.Locale)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := response.Binary(w, result.MIME, result.Audio); err != nil {
		h.log.Warn().Err(err).Msg("Failed to write sample audio")
	}
}
