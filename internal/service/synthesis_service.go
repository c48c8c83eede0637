package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/observe"
)

// Synthesizer renders text as speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, locale string) (*client.SynthesisResult, error)
}

// LanguageDetector ranks candidate languages for a text, most confident first.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) ([]client.LanguageCandidate, error)
}

// DefaultMinConfidence is the detection confidence below which the language
// guard lets text through.
const DefaultMinConfidence = 0.5

// SynthesisService produces expected-pronunciation samples. It refuses text
// whose detected language differs from the voice's before calling the
// synthesizer.
type SynthesisService struct {
	synth         Synthesizer
	detector      LanguageDetector
	fallback      LanguageDetector
	minConfidence float64
	metrics       *observe.Metrics
	log           zerolog.Logger
}

// NewSynthesisService creates a SynthesisService. detector may be nil, in
// which case the Unicode script detector is used alone.
func NewSynthesisService(synth Synthesizer, detector LanguageDetector, metrics *observe.Metrics, log zerolog.Logger) *SynthesisService {
	return &SynthesisService{
		synth:         synth,
		detector:      detector,
		fallback:      client.ScriptDetector{},
		minConfidence: DefaultMinConfidence,
		metrics:       metrics,
		log:           log,
	}
}

// WithMinConfidence sets the detection confidence threshold.
func (s *SynthesisService) WithMinConfidence(c float64) *SynthesisService {
	s.minConfidence = c
	return s
}

// Synthesize renders text with voiceID. locale may be empty, in which case
// the voice's own locale is used.
func (s *SynthesisService) Synthesize(ctx context.Context, text, voiceID, locale string) (*client.SynthesisResult, error) {
	result, err := s.synthesize(ctx, text, voiceID, locale)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	s.metrics.RecordSample(ctx, outcome)
	return result, err
}

func (s *SynthesisService) synthesize(ctx context.Context, text, voiceID, locale string) (*client.SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidRequest("text is empty")
	}
	if voiceID == "" {
		return nil, errors.InvalidRequest("voice_id is required")
	}

	voiceLocale := VoiceLocale(voiceID)
	switch {
	case locale == "" && voiceLocale == "":
		return nil, errors.InvalidRequest("locale is required for voice " + voiceID)
	case locale == "":
		locale = voiceLocale
	case !validLocale(locale):
		return nil, errors.InvalidRequest("invalid locale " + locale)
	case voiceLocale != "" && LocaleFamily(voiceLocale) != LocaleFamily(locale):
		return nil, errors.InvalidRequest("voice " + voiceID + " does not support locale " + locale)
	}
	expected := LocaleFamily(locale)

	detected, err := s.detect(ctx, text)
	if err != nil {
		return nil, err
	}
	if detected != "" && detected != expected {
		return nil, errors.VoiceLanguageMismatch(detected, expected)
	}

	if s.synth == nil {
		return nil, errors.SynthesizerUnavailable(fmt.Errorf("synthesizer not configured"))
	}
	return s.synth.Synthesize(ctx, text, voiceID, locale)
}

// detect returns the language family of text, or "" when no candidate is
// confident enough. A failing remote detector falls back to script detection.
func (s *SynthesisService) detect(ctx context.Context, text string) (string, error) {
	var (
		candidates []client.LanguageCandidate
		err        error
	)
	if s.detector != nil {
		candidates, err = s.detector.Detect(ctx, text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			s.log.Warn().Err(err).Msg("Language detection failed, using script detection")
			candidates = nil
		}
	}
	if s.detector == nil || err != nil {
		if candidates, err = s.fallback.Detect(ctx, text); err != nil {
			return "", err
		}
	}

	if len(candidates) == 0 || candidates[0].Confidence < s.minConfidence {
		return "", nil
	}
	return LocaleFamily(candidates[0].Code), nil
}

// outcomeOf names an error for metrics: its AppError code, or a generic
// label for context and untyped errors.
func outcomeOf(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	if stderrors.Is(err, context.Canceled) {
		return "CANCELED"
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return string(errors.ErrTimeout)
	}
	return string(errors.ErrInternal)
}
