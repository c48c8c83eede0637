package service_test

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/logger"
	"github.com/windfall/pronounce_service/internal/service"
)

func coachReport() assessment.Report {
	return assessment.Build(assessment.RawResult{
		RecognizedText: "think three things",
		Words: []assessment.RawWord{
			word("think", 55, assessment.RawMispronunciation,
				assessment.Phoneme{Symbol: "θ", Score: 30}, assessment.Phoneme{Symbol: "ɪ", Score: 90}),
			word("three", 70, assessment.RawNone,
				assessment.Phoneme{Symbol: "θ", Score: 60}, assessment.Phoneme{Symbol: "r", Score: 75}),
			word("things", 0, assessment.RawOmission),
		},
		Scores: assessment.Scores{Pronunciation: 60, Accuracy: 55, Fluency: 70, Completeness: 66, Prosody: 50},
	})
}

func TestCoach(t *testing.T) {
	llm := &stubCompleter{reply: "1. Put your tongue between your teeth for th.\n- Slow down on three.\n\n* Say things fully."}
	coach := service.NewCoachingService(map[string]service.Completer{"gemini": llm, "openai": nil}, "gemini", logger.NewNop())

	out, err := coach.Coach(context.Background(), coachReport(), "")
	if err != nil {
		t.Fatalf("Coach: %v", err)
	}
	if out.Provider != "gemini" {
		t.Errorf("provider = %q", out.Provider)
	}
	want := []string{"Put your tongue between your teeth for th.", "Slow down on three.", "Say things fully."}
	if !reflect.DeepEqual(out.Tips, want) {
		t.Errorf("tips = %q", out.Tips)
	}
	if !reflect.DeepEqual(out.FocusWords, []string{"think (mispronunciation)", "things (omission)"}) {
		t.Errorf("focus = %q", out.FocusWords)
	}
	if !reflect.DeepEqual(out.WeakPhonemes, []string{"θ", "r"}) {
		t.Errorf("weak = %q", out.WeakPhonemes)
	}
	if !strings.Contains(llm.lastPrompt, "Problem words: think (mispronunciation), things (omission)") {
		t.Errorf("prompt = %q", llm.lastPrompt)
	}
	if llm.lastSystem == "" {
		t.Error("no system prompt sent")
	}
}

func TestCoach_KeepsNumbersInsideTips(t *testing.T) {
	llm := &stubCompleter{reply: "2) Practice 3 times a day\n10 minutes of shadowing helps"}
	coach := service.NewCoachingService(map[string]service.Completer{"openai": llm}, "openai", logger.NewNop())

	out, err := coach.Coach(context.Background(), coachReport(), "openai")
	if err != nil {
		t.Fatalf("Coach: %v", err)
	}
	want := []string{"Practice 3 times a day", "10 minutes of shadowing helps"}
	if !reflect.DeepEqual(out.Tips, want) {
		t.Errorf("tips = %q", out.Tips)
	}
}

func TestCoach_Errors(t *testing.T) {
	ctx := context.Background()
	coach := service.NewCoachingService(map[string]service.Completer{
		"gemini": &stubCompleter{err: stderrors.New("quota")},
		"openai": nil,
	}, "gemini", logger.NewNop())

	if _, err := coach.Coach(ctx, coachReport(), "openai"); !errors.Is(err, errors.ErrAIService) {
		t.Errorf("unconfigured provider err = %v", err)
	}
	if _, err := coach.Coach(ctx, coachReport(), ""); !errors.Is(err, errors.ErrAIService) {
		t.Errorf("failing provider err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := coach.Coach(cancelled, coachReport(), ""); !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}

func TestFocusWordsLimit(t *testing.T) {
	raw := assessment.RawResult{}
	for i := 0; i < 12; i++ {
		raw.Words = append(raw.Words, word("bad", 10, assessment.RawMispronunciation))
	}
	if got := len(service.FocusWords(assessment.Build(raw))); got != 8 {
		t.Errorf("focus words = %d, want 8", got)
	}
	if got := service.FocusWords(assessment.Report{}); got == nil || len(got) != 0 {
		t.Errorf("empty report focus = %v", got)
	}
}
