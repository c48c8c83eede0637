package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/errors"
)

// BlobStore uploads an object and returns a URL it can be fetched from.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// StoredSample is an uploaded expected-pronunciation clip.
type StoredSample struct {
	AudioURL string `json:"audio_url"`
	MIME     string `json:"mime"`
	Key      string `json:"key"`
}

// SampleService synthesizes samples and uploads them to a blob store.
type SampleService struct {
	pronunciation *PronunciationService
	store         BlobStore
	log           zerolog.Logger
}

// NewSampleService creates a SampleService. store may be nil.
func NewSampleService(pronunciation *PronunciationService, store BlobStore, log zerolog.Logger) *SampleService {
	return &SampleService{
		pronunciation: pronunciation,
		store:         store,
		log:           log,
	}
}

// CanStore reports whether a blob store is configured.
func (s *SampleService) CanStore() bool {
	return s.store != nil
}

// Store synthesizes text and uploads it. The object key is derived from the
// voice, locale and text, so repeating a request overwrites the same object.
func (s *SampleService) Store(ctx context.Context, text, voiceID, locale string) (*StoredSample, error) {
	if s.store == nil {
		return nil, errors.New(errors.ErrStorageService, "sample storage not configured")
	}

	result, err := s.pronunciation.Sample(ctx, text, voiceID, locale)
	if err != nil {
		return nil, err
	}

	key := SampleKey(text, voiceID, locale, result.MIME)
	url, err := s.store.Put(ctx, key, result.Audio, result.MIME)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageService, "failed to upload sample", err)
	}

	s.log.Info().Str("key", key).Int("bytes", len(result.Audio)).Msg("Sample stored")
	return &StoredSample{AudioURL: url, MIME: result.MIME, Key: key}, nil
}

// SampleKey names the stored object for a sample. The locale is resolved
// against the voice first, so an empty locale and the voice's own locale
// share a key. The voice segment of the path keeps only [A-Za-z0-9_-].
func SampleKey(text, voiceID, locale, mime string) string {
	locale = ResolveLocale(voiceID, locale)
	sum := sha256.Sum256([]byte(voiceID + "\x00" + locale + "\x00" + strings.TrimSpace(text)))
	return "samples/" + keySegment(voiceID) + "/" + hex.EncodeToString(sum[:12]) + extensionFor(mime)
}

func keySegment(s string) string {
	seg := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if strings.Trim(seg, "_") == "" {
		return "voice"
	}
	return seg
}

func extensionFor(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	switch strings.TrimSpace(mime) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".mp3"
	}
}
