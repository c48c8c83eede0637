// Package audio normalizes recorded learner audio into the single format the
// speech assessor accepts: mono 16-bit PCM in a WAV container.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"

	"github.com/windfall/pronounce_service/internal/errors"
)

const (
	// MinDuration and MaxDuration bound accepted recordings, in seconds.
	MinDuration = 0.5
	MaxDuration = 120.0

	// MaxInputBytes rejects oversized uploads before any decoding.
	MaxInputBytes = 64 << 20

	// DefaultSampleRate is the rate the assessor documents for PCM WAV input.
	DefaultSampleRate = 16000

	outputWidth = 2
)

// Source is an incoming recording. A zero SampleRate means Data is a
// container blob; otherwise Data is raw interleaved little-endian PCM.
type Source struct {
	Data        []byte
	SampleRate  int
	Channels    int
	SampleWidth int
}

// RawPCM describes raw PCM bytes with explicit format parameters.
func RawPCM(data []byte, sampleWidth, sampleRate, channels int) Source {
	return Source{Data: data, SampleRate: sampleRate, Channels: channels, SampleWidth: sampleWidth}
}

// Blob describes a container file (WAV) whose header carries the format.
func Blob(data []byte) Source {
	return Source{Data: data}
}

// ReadBlob reads a container file from r, refusing more than MaxInputBytes.
func ReadBlob(r io.Reader) (Source, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return Source{}, errors.Wrap(errors.ErrValidation, "failed to read audio", err)
	}
	if len(data) > MaxInputBytes {
		return Source{}, tooLarge()
	}
	return Blob(data), nil
}

// Clip is a normalized recording. It is immutable: accessors hand out copies
// or read-only views.
type Clip struct {
	wav []byte

	SampleRate       int
	Channels         int
	SampleWidthBytes int
	DurationSeconds  float64
	Container        string
}

// Bytes returns a copy of the WAV-encoded clip.
func (c Clip) Bytes() []byte {
	return bytes.Clone(c.wav)
}

// Reader returns a fresh reader over the WAV-encoded clip.
func (c Clip) Reader() *bytes.Reader {
	return bytes.NewReader(c.wav)
}

// Len returns the encoded size in bytes.
func (c Clip) Len() int {
	return len(c.wav)
}

// ContentType is the MIME descriptor the assessor expects for this clip.
func (c Clip) ContentType() string {
	return fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", c.SampleRate)
}

// PreferredRate returns the sample rate normalized clips use for locale.
func PreferredRate(locale string) int {
	return DefaultSampleRate
}

// Accepted reports whether rate can be forwarded unchanged for locale.
// English assessment only documents 16 kHz; other locales also take 8 kHz.
func Accepted(locale string, rate int) bool {
	if isEnglish(locale) {
		return rate == DefaultSampleRate
	}
	return rate == 8000 || rate == DefaultSampleRate
}

func isEnglish(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(locale), "en")
	}
	base, _ := tag.Base()
	return base.String() == "en"
}

// Normalize converts src into a mono 16-bit WAV clip for locale.
//
// Multichannel input is downmixed by averaging; input whose rate the assessor
// does not accept is linearly resampled to PreferredRate. Fails with
// AUDIO_UNSUPPORTED on unknown containers or formats, AUDIO_TOO_SHORT below
// MinDuration and AUDIO_TOO_LONG above MaxDuration or MaxInputBytes.
func Normalize(src Source, locale string) (Clip, error) {
	if len(src.Data) > MaxInputBytes {
		return Clip{}, tooLarge()
	}

	var (
		pcm                   []byte
		rate, channels, width int
		float                 bool
	)
	if src.SampleRate == 0 {
		if !IsWAV(src.Data) {
			return Clip{}, errors.AudioUnsupported("unknown audio container, expected WAV")
		}
		info, err := parseWAV(src.Data)
		if err != nil {
			return Clip{}, errors.Wrap(errors.ErrAudioUnsupported, "malformed WAV file", err)
		}
		switch info.format {
		case formatPCM:
		case formatIEEEFloat:
			if info.sampleWidth != 4 {
				return Clip{}, errors.AudioUnsupported(fmt.Sprintf("unsupported float width %d bytes", info.sampleWidth))
			}
			float = true
		default:
			return Clip{}, errors.AudioUnsupported(fmt.Sprintf("unsupported WAV format tag 0x%04x", info.format))
		}
		pcm, rate, channels, width = info.data, info.sampleRate, info.channels, info.sampleWidth
	} else {
		pcm, rate, channels, width = src.Data, src.SampleRate, src.Channels, src.SampleWidth
	}

	if width < 1 || width > 4 {
		return Clip{}, errors.AudioUnsupported(fmt.Sprintf("unsupported sample width %d bytes", width))
	}
	if channels < 1 || rate <= 0 {
		return Clip{}, errors.AudioUnsupported(fmt.Sprintf("invalid format: %d channels at %d Hz", channels, rate))
	}

	frames := len(pcm) / (width * channels)
	duration := float64(frames) / float64(rate)
	if duration < MinDuration {
		return Clip{}, errors.AudioTooShort(duration, MinDuration)
	}
	if duration > MaxDuration {
		return Clip{}, errors.AudioTooLong(duration, MaxDuration)
	}

	samples := decodeSamples(pcm[:frames*width*channels], width, float)
	samples = downmix(samples, channels)
	if !Accepted(locale, rate) {
		target := PreferredRate(locale)
		samples = resample(samples, rate, target)
		rate = target
	}

	return Clip{
		wav:              EncodeWAV(encodeSamples(samples), rate, 1, outputWidth),
		SampleRate:       rate,
		Channels:         1,
		SampleWidthBytes: outputWidth,
		DurationSeconds:  float64(len(samples)) / float64(rate),
		Container:        "wav",
	}, nil
}

func tooLarge() *errors.AppError {
	return errors.New(errors.ErrAudioTooLong, fmt.Sprintf("audio exceeds %d bytes", MaxInputBytes))
}
