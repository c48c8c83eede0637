package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/audio"
	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/repository"
)

// stubAssessor returns a fixed result and records how it was called.
type stubAssessor struct {
	mu       sync.Mutex
	result   *assessment.RawResult
	err      error
	calls    int
	lastMode assessment.Mode
	lastText string
	lastClip audio.Clip
	block    chan struct{}
	entered  chan struct{}
}

func (s *stubAssessor) AssessScripted(ctx context.Context, clip audio.Clip, referenceText, locale string) (*assessment.RawResult, error) {
	return s.record(ctx, assessment.ModeScripted, referenceText, clip)
}

func (s *stubAssessor) AssessUnscripted(ctx context.Context, clip audio.Clip, topic, locale string) (*assessment.RawResult, error) {
	return s.record(ctx, assessment.ModeUnscripted, topic, clip)
}

func (s *stubAssessor) record(ctx context.Context, mode assessment.Mode, text string, clip audio.Clip) (*assessment.RawResult, error) {
	s.mu.Lock()
	s.calls++
	s.lastMode, s.lastText, s.lastClip = mode, text, clip
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &assessment.RawResult{}, nil
	}
	// Hand out a copy so callers cannot alter the fixture.
	res := *s.result
	return &res, nil
}

func (s *stubAssessor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSynthesizer struct {
	calls  int
	result *client.SynthesisResult
	err    error
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, voiceID, locale string) (*client.SynthesisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &client.SynthesisResult{Audio: []byte("RIFF"), MIME: "audio/wav"}, nil
}

type stubDetector struct {
	candidates []client.LanguageCandidate
	err        error
	calls      int
}

func (s *stubDetector) Detect(ctx context.Context, text string) ([]client.LanguageCandidate, error) {
	s.calls++
	return s.candidates, s.err
}

// memQueue is an in-memory ResultQueue with BLPop semantics.
type memQueue struct {
	mu    sync.Mutex
	lists map[string][][]byte
	ttls  map[string]time.Duration
	added chan struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{
		lists: map[string][][]byte{},
		ttls:  map[string]time.Duration{},
		added: make(chan struct{}, 16),
	}
}

func (q *memQueue) PushWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.lists[key] = append(q.lists[key], data)
	q.ttls[key] = ttl
	q.mu.Unlock()
	q.added <- struct{}{}
	return nil
}

func (q *memQueue) BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	deadline := time.After(timeout)
	for {
		q.mu.Lock()
		if list := q.lists[key]; len(list) > 0 {
			q.lists[key] = list[1:]
			q.mu.Unlock()
			return list[0], nil
		}
		q.mu.Unlock()

		select {
		case <-q.added:
		case <-deadline:
			return nil, client.ErrQueueEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type memRepo struct {
	mu      sync.Mutex
	records []repository.AssessmentRecord
	err     error
}

func (r *memRepo) Save(ctx context.Context, rec *repository.AssessmentRecord) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.records = append(r.records, *rec)
	return nil
}

func (r *memRepo) ListByLearner(ctx context.Context, learnerID string, limit int) ([]repository.AssessmentRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.AssessmentRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].LearnerID == learnerID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

type published struct {
	data  interface{}
	attrs map[string]string
}

type memPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *memPublisher) PublishWithAttributes(ctx context.Context, data interface{}, attrs map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{data, attrs})
	return p.err
}

type stubCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastPrompt string
}

func (c *stubCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.lastSystem, c.lastPrompt = system, prompt
	return c.reply, c.err
}

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
		s.types = map[string]string{}
	}
	s.objects[key] = data
	s.types[key] = contentType
	return "https://cdn.example.com/" + key, nil
}

// oneSecond is 1s of 16 kHz mono silence.
func oneSecond() audio.Source {
	return audio.RawPCM(make([]byte, 32000), 2, 16000, 1)
}
