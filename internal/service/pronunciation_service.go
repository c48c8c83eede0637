package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/audio"
	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/observe"
)

// Assessor scores a normalized clip with the external speech service.
type Assessor interface {
	AssessScripted(ctx context.Context, clip audio.Clip, referenceText, locale string) (*assessment.RawResult, error)
	AssessUnscripted(ctx context.Context, clip audio.Clip, topic, locale string) (*assessment.RawResult, error)
}

// AssessmentRequest is one call to PronunciationService.Assess. Scripted
// requests need ReferenceText; unscripted requests need Topic.
type AssessmentRequest struct {
	Mode          assessment.Mode
	ReferenceText string
	Topic         string
	Locale        string
	Audio         audio.Source
}

// Validate checks the mode/reference pairing and the locale.
func (r AssessmentRequest) Validate() error {
	switch r.Mode {
	case assessment.ModeScripted:
		if strings.TrimSpace(r.ReferenceText) == "" {
			return errors.InvalidRequest("reference_text is required in scripted mode")
		}
	case assessment.ModeUnscripted:
		if strings.TrimSpace(r.Topic) == "" {
			return errors.InvalidRequest("topic is required in unscripted mode")
		}
	default:
		return errors.InvalidRequest(fmt.Sprintf("unknown mode %q", r.Mode))
	}
	if !validLocale(r.Locale) {
		return errors.InvalidRequest(fmt.Sprintf("invalid locale %q", r.Locale))
	}
	return nil
}

// PronunciationService is the single entry point of the assessment pipeline:
// capture, assess, classify, aggregate. It holds no per-user state and is
// safe for concurrent use.
type PronunciationService struct {
	assessor  Assessor
	synthesis *SynthesisService
	metrics   *observe.Metrics
	log       zerolog.Logger
}

// NewPronunciationService creates a PronunciationService. assessor may be
// nil when speech credentials are missing; Assess then fails with
// ASSESSOR_UNAVAILABLE.
func NewPronunciationService(assessor Assessor, synthesis *SynthesisService, metrics *observe.Metrics, log zerolog.Logger) *PronunciationService {
	return &PronunciationService{
		assessor:  assessor,
		synthesis: synthesis,
		metrics:   metrics,
		log:       log,
	}
}

// Assess runs one assessment. Errors from any stage are returned unchanged;
// a cancelled context yields the context error and no report.
func (s *PronunciationService) Assess(ctx context.Context, req AssessmentRequest) (*assessment.Report, error) {
	start := time.Now()
	report, err := s.assess(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.RecordAssessment(ctx, string(req.Mode), outcome, elapsed)
		s.log.Warn().
			Err(err).
			Str("mode", string(req.Mode)).
			Str("locale", req.Locale).
			Str("code", outcome).
			Dur("duration", elapsed).
			Msg("Assessment failed")
		return nil, err
	}

	s.metrics.RecordAssessment(ctx, string(req.Mode), "ok", elapsed)
	s.log.Info().
		Str("mode", string(req.Mode)).
		Str("locale", req.Locale).
		Int("words", len(report.Words)).
		Float64("pronunciation", report.Scores.Pronunciation).
		Dur("duration", elapsed).
		Msg("Assessment completed")
	return report, nil
}

func (s *PronunciationService) assess(ctx context.Context, req AssessmentRequest) (*assessment.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.assessor == nil {
		return nil, errors.AssessorUnavailable(fmt.Errorf("speech assessor not configured"))
	}

	clip, err := audio.Normalize(req.Audio, req.Locale)
	if err != nil {
		return nil, err
	}

	var raw *assessment.RawResult
	if req.Mode == assessment.ModeScripted {
		raw, err = s.assessor.AssessScripted(ctx, clip, req.ReferenceText, req.Locale)
	} else {
		raw, err = s.assessor.AssessUnscripted(ctx, clip, req.Topic, req.Locale)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = &assessment.RawResult{}
	}
	// Unscripted reports always carry content scores, zero when the service
	// recognized nothing.
	if req.Mode == assessment.ModeUnscripted && raw.Content == nil {
		raw.Content = &assessment.RawContentScores{}
	}
	if req.Mode == assessment.ModeScripted {
		raw.Content = nil
	}

	report := assessment.Build(*raw)
	return &report, nil
}

// Sample produces the expected-pronunciation clip for text.
func (s *PronunciationService) Sample(ctx context.Context, text, voiceID, locale string) (*client.SynthesisResult, error) {
	if s.synthesis == nil {
		return nil, errors.SynthesizerUnavailable(fmt.Errorf("synthesis not configured"))
	}
	return s.synthesis.Synthesize(ctx, text, voiceID, locale)
}
