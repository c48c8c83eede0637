package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
)

const (
	jobKeyPrefix = "assessment:job:"
	// jobResultTTL bounds how long an unread result stays in Redis.
	jobResultTTL = 5 * time.Minute
	// DefaultJobWait is how long GetResult blocks for a result.
	DefaultJobWait = 10 * time.Second
	// DefaultJobTimeout bounds one background assessment.
	DefaultJobTimeout = 60 * time.Second
	// DefaultMaxJobs caps jobs in flight, and with it the audio they hold.
	DefaultMaxJobs = 8
)

// ResultQueue carries job outcomes from the background worker to the
// polling client. BLPop returns client.ErrQueueEmpty on timeout.
type ResultQueue interface {
	PushWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error)
}

// JobError is the serialized failure of a job.
type JobError struct {
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JobResult is what a finished job leaves in the queue.
type JobResult struct {
	JobID  string             `json:"job_id"`
	Status string             `json:"status"`
	Report *assessment.Report `json:"report,omitempty"`
	View   *assessment.View   `json:"view,omitempty"`
	Error  *JobError          `json:"error,omitempty"`
}

// JobService runs assessments in the background. Submit returns a job ID at
// once; the client fetches the outcome with GetResult.
type JobService struct {
	pronunciation *PronunciationService
	history       *HistoryService
	queue         ResultQueue
	slots         *semaphore.Weighted
	timeout       time.Duration
	wait          time.Duration
	log           zerolog.Logger
}

// NewJobService creates a JobService. queue may be nil when Redis is not
// configured; Submit then fails.
func NewJobService(pronunciation *PronunciationService, history *HistoryService, queue ResultQueue, log zerolog.Logger) *JobService {
	return &JobService{
		pronunciation: pronunciation,
		history:       history,
		queue:         queue,
		slots:         semaphore.NewWeighted(DefaultMaxJobs),
		timeout:       DefaultJobTimeout,
		wait:          DefaultJobWait,
		log:           log,
	}
}

// WithTimeouts overrides the job and wait timeouts.
func (s *JobService) WithTimeouts(job, wait time.Duration) *JobService {
	s.timeout = job
	s.wait = wait
	return s
}

// WithMaxJobs sets how many jobs may run at once. Values below 1 are ignored.
func (s *JobService) WithMaxJobs(n int) *JobService {
	if n > 0 {
		s.slots = semaphore.NewWeighted(int64(n))
	}
	return s
}

// Submit validates req and starts it in the background. The job outlives the
// caller's context but is bounded by the job timeout. When every slot is taken
// Submit fails with BUSY instead of queueing the audio.
func (s *JobService) Submit(ctx context.Context, learnerID string, req AssessmentRequest) (string, error) {
	if s.queue == nil {
		return "", errors.New(errors.ErrInternal, "job queue not configured")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	if !s.slots.TryAcquire(1) {
		return "", errors.New(errors.ErrBusy, "too many assessment jobs in flight, try again later")
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	go func() {
		defer s.slots.Release(1)
		defer cancel()
		s.run(jobCtx, jobID, learnerID, req)
	}()

	return jobID, nil
}

func (s *JobService) run(ctx context.Context, jobID, learnerID string, req AssessmentRequest) {
	result := JobResult{JobID: jobID, Status: "completed"}

	report, err := s.pronunciation.Assess(ctx, req)
	if err != nil {
		result.Status = "failed"
		result.Error = jobError(err)
	} else {
		view := assessment.BuildView(*report)
		result.Report = report
		result.View = &view
		s.history.Record(ctx, learnerID, req, report)
	}

	// The job context may have expired; the push still needs to land.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.queue.PushWithTTL(pushCtx, jobKeyPrefix+jobID, result, jobResultTTL); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to push job result")
		return
	}
	s.log.Info().Str("job_id", jobID).Str("status", result.Status).Msg("Job result pushed")
}

// GetResult waits for the job's outcome. It fails with TIMEOUT when nothing
// arrives within the wait period.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	if s.queue == nil {
		return nil, errors.New(errors.ErrInternal, "job queue not configured")
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, errors.Validation("invalid job_id")
	}

	data, err := s.queue.BLPop(ctx, s.wait, jobKeyPrefix+jobID)
	if err != nil {
		if stderrors.Is(err, client.ErrQueueEmpty) {
			return nil, errors.New(errors.ErrTimeout, "job result not ready, try again")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.InternalWrap("failed to read job result", err)
	}

	var result JobResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.InternalWrap(fmt.Sprintf("malformed result for job %s", jobID), err)
	}
	return &result, nil
}

func jobError(err error) *JobError {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return &JobError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	code := errors.ErrorCode(outcomeOf(err))
	return &JobError{Code: code, Message: err.Error()}
}
