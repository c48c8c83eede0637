package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/client"
)

// AssessmentRecord is a row in assessment_reports.
type AssessmentRecord struct {
	ID                 uuid.UUID         `json:"id"`
	LearnerID          string            `json:"learner_id"`
	Mode               assessment.Mode   `json:"mode"`
	Locale             string            `json:"locale"`
	ReferenceText      string            `json:"reference_text,omitempty"`
	Topic              string            `json:"topic,omitempty"`
	PronunciationScore float64           `json:"pronunciation_score"`
	Report             assessment.Report `json:"report"`
	CreatedAt          time.Time         `json:"created_at"`
}

// AssessmentRepository stores finished assessment reports.
type AssessmentRepository interface {
	Save(ctx context.Context, rec *AssessmentRecord) error
	ListByLearner(ctx context.Context, learnerID string, limit int) ([]AssessmentRecord, error)
}

// PostgresAssessmentRepository implements AssessmentRepository.
type PostgresAssessmentRepository struct {
	db *client.PostgresClient
}

// NewPostgresAssessmentRepository creates a new PostgresAssessmentRepository.
func NewPostgresAssessmentRepository(db *client.PostgresClient) *PostgresAssessmentRepository {
	return &PostgresAssessmentRepository{db: db}
}

// Save inserts rec. A zero ID or CreatedAt is filled in.
func (r *PostgresAssessmentRepository) Save(ctx context.Context, rec *AssessmentRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	report, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO assessment_reports
			(id, learner_id, mode, locale, reference_text, topic, pronunciation_score, report, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)`
	_, err = r.db.Pool.Exec(ctx, query,
		rec.ID, rec.LearnerID, string(rec.Mode), rec.Locale, rec.ReferenceText, rec.Topic,
		rec.PronunciationScore, report, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert assessment report: %w", err)
	}
	return nil
}

// ListByLearner returns the newest reports of a learner, newest first.
func (r *PostgresAssessmentRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]AssessmentRecord, error) {
	query := `
		SELECT id, learner_id, mode, locale, COALESCE(reference_text, ''), COALESCE(topic, ''),
		       pronunciation_score, report, created_at
		FROM assessment_reports
		WHERE learner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, query, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment reports: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AssessmentRecord, error) {
		var (
			rec    AssessmentRecord
			mode   string
			report []byte
		)
		if err := row.Scan(&rec.ID, &rec.LearnerID, &mode, &rec.Locale, &rec.ReferenceText, &rec.Topic,
			&rec.PronunciationScore, &report, &rec.CreatedAt); err != nil {
			return rec, err
		}
		rec.Mode = assessment.Mode(mode)
		if err := json.Unmarshal(report, &rec.Report); err != nil {
			return rec, fmt.Errorf("failed to decode report %s: %w", rec.ID, err)
		}
		// Positions are not serialized; speech order is.
		for i := range rec.Report.Words {
			rec.Report.Words[i].Position = i
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessment reports: %w", err)
	}
	return records, nil
}
