package service_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/internal/logger"
	"github.com/windfall/pronounce_service/internal/service"
)

func TestSampleService_Store(t *testing.T) {
	store := &memStore{}
	synth := &stubSynthesizer{result: &client.SynthesisResult{Audio: []byte("ID3"), MIME: "audio/mpeg"}}
	samples := service.NewSampleService(newPronunciation(nil, synth, nil), store, logger.NewNop())

	if !samples.CanStore() {
		t.Fatal("CanStore = false")
	}
	got, err := samples.Store(context.Background(), "Hello world", "en-US-JennyNeural", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasPrefix(got.Key, "samples/en-US-JennyNeural/") || !strings.HasSuffix(got.Key, ".mp3") {
		t.Errorf("key = %q", got.Key)
	}
	if got.AudioURL != "https://cdn.example.com/"+got.Key || got.MIME != "audio/mpeg" {
		t.Errorf("stored = %+v", got)
	}
	if store.types[got.Key] != "audio/mpeg" || string(store.objects[got.Key]) != "ID3" {
		t.Errorf("object = %q %q", store.objects[got.Key], store.types[got.Key])
	}
}

func TestSampleService_MismatchUploadsNothing(t *testing.T) {
	store := &memStore{}
	samples := service.NewSampleService(newPronunciation(nil, &stubSynthesizer{}, nil), store, logger.NewNop())

	_, err := samples.Store(context.Background(), "Привет мир", "en-US-JennyNeural", "")
	if !errors.Is(err, errors.ErrVoiceLanguageMismatch) {
		t.Fatalf("err = %v", err)
	}
	if len(store.objects) != 0 {
		t.Error("object uploaded despite mismatch")
	}
}

func TestSampleService_Errors(t *testing.T) {
	pron := newPronunciation(nil, &stubSynthesizer{}, nil)

	noStore := service.NewSampleService(pron, nil, logger.NewNop())
	if noStore.CanStore() {
		t.Error("CanStore = true without a store")
	}
	if _, err := noStore.Store(context.Background(), "hi", "en-US-JennyNeural", ""); !errors.Is(err, errors.ErrStorageService) {
		t.Errorf("err = %v", err)
	}

	failing := service.NewSampleService(pron, &memStore{err: stderrors.New("bucket gone")}, logger.NewNop())
	if _, err := failing.Store(context.Background(), "hi", "en-US-JennyNeural", ""); !errors.Is(err, errors.ErrStorageService) {
		t.Errorf("err = %v", err)
	}
}

func TestSampleKey_SanitizesVoice(t *testing.T) {
	tests := []struct {
		voice, prefix string
	}{
		{"../../etc/passwd", "samples/______etc_passwd/"},
		{"en-US-Ava:DragonHDLatestNeural", "samples/en-US-Ava_DragonHDLatestNeural/"},
		{"a/b", "samples/a_b/"},
		{"..", "samples/voice/"},
		{"", "samples/voice/"},
	}
	for _, tt := range tests {
		t.Run(tt.voice, func(t *testing.T) {
			key := service.SampleKey("Hello", tt.voice, "en-US", "audio/mpeg")
			if !strings.HasPrefix(key, tt.prefix) {
				t.Errorf("key = %q, want prefix %q", key, tt.prefix)
			}
			if strings.Count(key, "/") != 2 {
				t.Errorf("key %q has extra path segments", key)
			}
		})
	}
}

func TestSampleKey(t *testing.T) {
	a := service.SampleKey("Hello", "en-US-JennyNeural", "en-US", "audio/wav")
	b := service.SampleKey("  Hello ", "en-US-JennyNeural", "en-US", "audio/wav")
	if a != b {
		t.Errorf("surrounding space changed the key: %q vs %q", a, b)
	}
	if c := service.SampleKey("Hello", "en-US-GuyNeural", "en-US", "audio/wav"); c == a {
		t.Error("different voice gave the same key")
	}
	if !strings.HasSuffix(a, ".wav") {
		t.Errorf("key = %q", a)
	}
	if k := service.SampleKey("x", "v", "en-US", "audio/ogg; codecs=opus"); !strings.HasSuffix(k, ".ogg") {
		t.Errorf("key = %q", k)
	}
	if d := service.SampleKey("Hello", "en-US-JennyNeural", "", "audio/wav"); d != a {
		t.Errorf("empty locale key %q differs from voice locale key %q", d, a)
	}
	if e := service.SampleKey("Hello", "en-US-JennyNeural", "en-us", "audio/wav"); e != a {
		t.Errorf("lower-case locale key %q differs from %q", e, a)
	}
	if f := service.SampleKey("Hello", "en-US-JennyNeural", "en-GB", "audio/wav"); f == a {
		t.Error("different locale gave the same key")
	}
	// samples/<voice>/ + 24 hex chars + extension
	if got := len(strings.TrimSuffix(strings.TrimPrefix(a, "samples/en-US-JennyNeural/"), ".wav")); got != 24 {
		t.Errorf("hash length = %d", got)
	}
}
