package service_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/logger"
	"github.com/windfall/pronounce_service/internal/service"
)

func TestSynthesize_LanguageGuard(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		voice      string
		locale     string
		candidates []client.LanguageCandidate
		wantCode   errors.ErrorCode
		wantSynth  bool
	}{
		{
			name:       "matching language",
			text:       "Good morning",
			voice:      "en-US-JennyNeural",
			candidates: []client.LanguageCandidate{{Code: "en", Confidence: 0.99}},
			wantSynth:  true,
		},
		{
			name:       "regional variant of the same family",
			text:       "Cheers mate",
			voice:      "en-GB-SoniaNeural",
			locale:     "en-AU",
			candidates: []client.LanguageCandidate{{Code: "en", Confidence: 0.9}},
			wantSynth:  true,
		},
		{
			name:       "script subtag in detection",
			text:       "你好",
			voice:      "zh-CN-XiaoxiaoNeural",
			candidates: []client.LanguageCandidate{{Code: "zh-Hans", Confidence: 1}},
			wantSynth:  true,
		},
		{
			name:       "mismatch",
			text:       "Bonjour tout le monde",
			voice:      "en-US-JennyNeural",
			candidates: []client.LanguageCandidate{{Code: "fr", Confidence: 0.98}},
			wantCode:   errors.ErrVoiceLanguageMismatch,
		},
		{
			name:       "low confidence passes",
			text:       "ok",
			voice:      "en-US-JennyNeural",
			candidates: []client.LanguageCandidate{{Code: "pl", Confidence: 0.3}},
			wantSynth:  true,
		},
		{
			name:      "no candidates passes",
			text:      "123",
			voice:     "en-US-JennyNeural",
			wantSynth: true,
		},
		{
			name:     "empty text",
			text:     "   ",
			voice:    "en-US-JennyNeural",
			wantCode: errors.ErrInvalidRequest,
		},
		{
			name:     "missing voice",
			text:     "hello",
			wantCode: errors.ErrInvalidRequest,
		},
		{
			name:     "voice locale conflicts with requested locale",
			text:     "hello",
			voice:    "en-US-JennyNeural",
			locale:   "de-DE",
			wantCode: errors.ErrInvalidRequest,
		},
		{
			name:     "custom voice without locale",
			text:     "hello",
			voice:    "MyVoice",
			wantCode: errors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &stubSynthesizer{}
			det := &stubDetector{candidates: tt.candidates}
			svc := service.NewSynthesisService(synth, det, nil, logger.NewNop())

			res, err := svc.Synthesize(context.Background(), tt.text, tt.voice, tt.locale)
			if tt.wantCode != "" {
				if got := errors.CodeOf(err); got != tt.wantCode {
					t.Fatalf("code = %q, want %q (err %v)", got, tt.wantCode, err)
				}
				if res != nil {
					t.Error("got a result alongside an error")
				}
			} else if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if got := synth.calls == 1; got != tt.wantSynth {
				t.Errorf("synthesizer called = %v, want %v", got, tt.wantSynth)
			}
		})
	}
}

func TestSynthesize_MinConfidence(t *testing.T) {
	det := &stubDetector{candidates: []client.LanguageCandidate{{Code: "fr", Confidence: 0.6}}}
	svc := service.NewSynthesisService(&stubSynthesizer{}, det, nil, logger.NewNop()).WithMinConfidence(0.7)

	if _, err := svc.Synthesize(context.Background(), "salut", "en-US-JennyNeural", ""); err != nil {
		t.Errorf("Synthesize: %v", err)
	}
}

func TestSynthesize_DetectorFailureFallsBackToScript(t *testing.T) {
	synth := &stubSynthesizer{}
	det := &stubDetector{err: stderrors.New("translator down")}
	svc := service.NewSynthesisService(synth, det, nil, logger.NewNop())

	_, err := svc.Synthesize(context.Background(), "こんにちは", "en-US-JennyNeural", "")
	var appErr *errors.AppError
	if !errors.As(err, &appErr) || appErr.Code != errors.ErrVoiceLanguageMismatch {
		t.Fatalf("err = %v, want VOICE_LANGUAGE_MISMATCH", err)
	}
	if appErr.Detail("detected") != "ja" {
		t.Errorf("detected = %q, want ja", appErr.Detail("detected"))
	}
	if det.calls != 1 || synth.calls != 0 {
		t.Errorf("detector calls %d, synth calls %d", det.calls, synth.calls)
	}

	// Latin text gives the script detector nothing to go on.
	if _, err := svc.Synthesize(context.Background(), "hello", "en-US-JennyNeural", ""); err != nil {
		t.Errorf("Synthesize: %v", err)
	}
}

func TestSynthesize_CancelledDuringDetection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	det := &stubDetector{err: context.Canceled}
	synth := &stubSynthesizer{}
	svc := service.NewSynthesisService(synth, det, nil, logger.NewNop())

	if _, err := svc.Synthesize(ctx, "hello", "en-US-JennyNeural", ""); !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if synth.calls != 0 {
		t.Error("synthesizer called after cancellation")
	}
}

func TestSynthesize_PassesSynthesizerErrors(t *testing.T) {
	synth := &stubSynthesizer{err: errors.SynthesizerRejected("unknown voice")}
	svc := service.NewSynthesisService(synth, nil, nil, logger.NewNop())

	_, err := svc.Synthesize(context.Background(), "hello", "en-US-NopeNeural", "")
	if !errors.Is(err, errors.ErrSynthesizerRejected) {
		t.Errorf("err = %v, want SYNTHESIZER_REJECTED", err)
	}
}

func TestLocaleFamily(t *testing.T) {
	tests := map[string]string{
		"en-US":   "en",
		"en_GB":   "en",
		"zh-Hans": "zh",
		"ja":      "ja",
		"pt-BR":   "pt",
	}
	for in, want := range tests {
		if got := service.LocaleFamily(in); got != want {
			t.Errorf("LocaleFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVoiceLocale(t *testing.T) {
	tests := map[string]string{
		"en-US-JennyNeural":    "en-US",
		"zh-CN-XiaoxiaoNeural": "zh-CN",
		"MyVoice":              "",
		"Jenny-Neural":         "",
	}
	for in, want := range tests {
		if got := service.VoiceLocale(in); got != want {
			t.Errorf("VoiceLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
