package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/repository"
)

const (
	// DefaultHistoryLimit and MaxHistoryLimit bound ListByLearner.
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	assessmentCompletedEvent = "assessment.completed"
)

// EventPublisher publishes a JSON event with string attributes.
type EventPublisher interface {
	PublishWithAttributes(ctx context.Context, data interface{}, attrs map[string]string) error
}

// AssessmentCompleted is the event published after a report is stored.
type AssessmentCompleted struct {
	AssessmentID       string          `json:"assessment_id"`
	LearnerID          string          `json:"learner_id"`
	Mode               assessment.Mode `json:"mode"`
	Locale             string          `json:"locale"`
	PronunciationScore float64         `json:"pronunciation_score"`
	WordCount          int             `json:"word_count"`
	ErrorWords         int             `json:"error_words"`
	CompletedAt        time.Time       `json:"completed_at"`
}

// HistoryService keeps learners' past reports. Both collaborators are
// optional; a nil repository disables history entirely.
type HistoryService struct {
	repo      repository.AssessmentRepository
	publisher EventPublisher
	log       zerolog.Logger
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(repo repository.AssessmentRepository, publisher EventPublisher, log zerolog.Logger) *HistoryService {
	return &HistoryService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// Enabled reports whether reports are being stored.
func (s *HistoryService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Record stores report for learnerID and publishes a completion event.
// Failures are logged and never returned: history must not fail an
// assessment.
func (s *HistoryService) Record(ctx context.Context, learnerID string, req AssessmentRequest, report *assessment.Report) {
	if !s.Enabled() || learnerID == "" || report == nil {
		return
	}

	rec := &repository.AssessmentRecord{
		LearnerID:          learnerID,
		Mode:               req.Mode,
		Locale:             req.Locale,
		ReferenceText:      req.ReferenceText,
		Topic:              req.Topic,
		PronunciationScore: report.Scores.Pronunciation,
		Report:             *report,
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("learner_id", learnerID).Msg("Failed to save assessment report")
		return
	}

	if s.publisher == nil {
		return
	}
	event := AssessmentCompleted{
		AssessmentID:       rec.ID.String(),
		LearnerID:          learnerID,
		Mode:               req.Mode,
		Locale:             req.Locale,
		PronunciationScore: report.Scores.Pronunciation,
		WordCount:          len(report.Words),
		ErrorWords:         len(report.Words) - report.ErrorCounts[assessment.KindOK],
		CompletedAt:        rec.CreatedAt,
	}
	attrs := map[string]string{
		"event":        assessmentCompletedEvent,
		"learner_id":   learnerID,
		"mode":         string(req.Mode),
		"ordering_key": learnerID,
	}
	if err := s.publisher.PublishWithAttributes(ctx, event, attrs); err != nil {
		s.log.Error().Err(err).Str("assessment_id", event.AssessmentID).Msg("Failed to publish assessment event")
	}
}

// List returns up to limit of learnerID's newest reports.
func (s *HistoryService) List(ctx context.Context, learnerID string, limit int) ([]repository.AssessmentRecord, error) {
	if !s.Enabled() {
		return nil, errors.New(errors.ErrDatabase, "assessment history not configured")
	}
	if learnerID == "" {
		return nil, errors.Validation("learner_id is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.repo.ListByLearner(ctx, learnerID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list assessments", err)
	}
	if records == nil {
		records = []repository.AssessmentRecord{}
	}
	return records, nil
}
