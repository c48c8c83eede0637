package service_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/logger"
	"github.com/windfall/pronounce_service/internal/service"
)

func sampleReport() *assessment.Report {
	r := assessment.Build(assessment.RawResult{
		RecognizedText: "I like apples",
		Words: []assessment.RawWord{
			word("I", 95, assessment.RawNone),
			word("like", 92, assessment.RawNone),
			word("apples", 40, assessment.RawMispronunciation),
		},
		Scores: assessment.Scores{Pronunciation: 72},
	})
	return &r
}

func TestHistory_RecordSavesAndPublishes(t *testing.T) {
	repo := &memRepo{}
	pub := &memPublisher{}
	h := service.NewHistoryService(repo, pub, logger.NewNop())

	h.Record(context.Background(), "learner-7", scripted("I like apples"), sampleReport())

	if len(repo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(repo.records))
	}
	rec := repo.records[0]
	if rec.Mode != assessment.ModeScripted || rec.ReferenceText != "I like apples" || rec.PronunciationScore != 72 {
		t.Errorf("record = %+v", rec)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	ev, ok := pub.events[0].data.(service.AssessmentCompleted)
	if !ok {
		t.Fatalf("event type = %T", pub.events[0].data)
	}
	if ev.LearnerID != "learner-7" || ev.WordCount != 3 || ev.ErrorWords != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.CompletedAt != rec.CreatedAt {
		t.Errorf("completed_at = %v, want %v", ev.CompletedAt, rec.CreatedAt)
	}
	attrs := pub.events[0].attrs
	if attrs["event"] != "assessment.completed" || attrs["mode"] != "scripted" || attrs["ordering_key"] != "learner-7" {
		t.Errorf("attrs = %v", attrs)
	}
}

func TestHistory_RecordSkips(t *testing.T) {
	repo := &memRepo{}
	h := service.NewHistoryService(repo, nil, logger.NewNop())

	h.Record(context.Background(), "", scripted("x"), sampleReport())
	h.Record(context.Background(), "learner", scripted("x"), nil)
	if len(repo.records) != 0 {
		t.Errorf("records = %d, want 0", len(repo.records))
	}

	// A disabled service must be callable.
	var disabled *service.HistoryService
	disabled.Record(context.Background(), "learner", scripted("x"), sampleReport())
	if disabled.Enabled() {
		t.Error("nil service reports enabled")
	}
}

func TestHistory_RecordFailuresAreSwallowed(t *testing.T) {
	pub := &memPublisher{}
	h := service.NewHistoryService(&memRepo{err: stderrors.New("db down")}, pub, logger.NewNop())

	h.Record(context.Background(), "learner", scripted("x"), sampleReport())
	if len(pub.events) != 0 {
		t.Error("event published for an unsaved report")
	}

	pub = &memPublisher{err: stderrors.New("pubsub down")}
	h = service.NewHistoryService(&memRepo{}, pub, logger.NewNop())
	h.Record(context.Background(), "learner", scripted("x"), sampleReport())
	if len(pub.events) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.events))
	}
}

func TestHistory_List(t *testing.T) {
	repo := &memRepo{}
	h := service.NewHistoryService(repo, nil, logger.NewNop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.Record(ctx, "a", scripted("x"), sampleReport())
	}
	h.Record(ctx, "b", scripted("x"), sampleReport())

	recs, err := h.List(ctx, "a", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}

	recs, err = h.List(ctx, "nobody", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("recs = %v, want empty non-nil", recs)
	}
}

func TestHistory_ListErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := service.NewHistoryService(nil, nil, logger.NewNop()).List(ctx, "a", 10); !errors.Is(err, errors.ErrDatabase) {
		t.Errorf("unconfigured err = %v", err)
	}
	h := service.NewHistoryService(&memRepo{}, nil, logger.NewNop())
	if _, err := h.List(ctx, "", 10); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("empty learner err = %v", err)
	}
	h = service.NewHistoryService(&memRepo{err: stderrors.New("boom")}, nil, logger.NewNop())
	if _, err := h.List(ctx, "a", 10); !errors.Is(err, errors.ErrDatabase) {
		t.Errorf("repo failure err = %v", err)
	}
}
