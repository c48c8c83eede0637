package client

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/windfall/pronounce_service/internal/errors"
)

const (
	ttsProvider = "azure_tts"

	// DefaultTTSFormat is the output format requested from the synthesis service.
	DefaultTTSFormat = "riff-24khz-16bit-mono-pcm"
)

// SynthesisResult is synthesized speech and its MIME type.
type SynthesisResult struct {
	Audio []byte
	MIME  string
}

// AzureTTSClient wraps the Azure AI Speech text-to-speech REST API.
type AzureTTSClient struct {
	apiKey  string
	region  string
	baseURL string
	format  string
	client  *http.Client
	policy  RetryPolicy
	observe RetryObserver
}

// TTSOption configures an AzureTTSClient.
type TTSOption func(*AzureTTSClient)

// WithTTSBaseURL overrides the regional endpoint.
func WithTTSBaseURL(u string) TTSOption {
	return func(c *AzureTTSClient) { c.baseURL = u }
}

// WithTTSRetryPolicy replaces DefaultRetryPolicy.
func WithTTSRetryPolicy(p RetryPolicy) TTSOption {
	return func(c *AzureTTSClient) { c.policy = p }
}

// WithTTSRetryObserver registers a callback invoked before each retry.
func WithTTSRetryObserver(o RetryObserver) TTSOption {
	return func(c *AzureTTSClient) { c.observe = o }
}

// WithTTSFormat sets the X-Microsoft-OutputFormat value.
func WithTTSFormat(format string) TTSOption {
	return func(c *AzureTTSClient) { c.format = format }
}

// NewAzureTTSClient creates a new Azure text-to-speech client.
func NewAzureTTSClient(apiKey, region string, opts ...TTSOption) *AzureTTSClient {
	c := &AzureTTSClient{
		apiKey:  apiKey,
		region:  region,
		baseURL: fmt.Sprintf("https://%s.tts.speech.microsoft.com", region),
		format:  DefaultTTSFormat,
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize renders text with the given voice.
func (c *AzureTTSClient) Synthesize(ctx context.Context, text, voiceID, locale string) (*SynthesisResult, error) {
	if c.apiKey == "" || c.region == "" {
		return nil, errors.SynthesizerUnavailable(fmt.Errorf("azure speech credentials not configured"))
	}

	ssml, err := buildSSML(text, voiceID, locale)
	if err != nil {
		return nil, errors.InternalWrap("failed to build ssml", err)
	}

	var result *SynthesisResult
	err = c.policy.do(ctx, ttsProvider, c.observe, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cognitiveservices/v1", bytes.NewReader(ssml))
		if err != nil {
			return backoff.Permanent(errors.InternalWrap("failed to create request", err))
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/ssml+xml")
		req.Header.Set("X-Microsoft-OutputFormat", c.format)
		req.Header.Set("User-Agent", "pronounce_service")

		res, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			statusErr := fmt.Errorf("azure tts api error %d: %s", res.StatusCode, bytes.TrimSpace(body))
			if transientStatus(res.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(errors.SynthesizerRejected(statusErr.Error()))
		}

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
		mime := res.Header.Get("Content-Type")
		if mime == "" {
			mime = mimeForFormat(c.format)
		}
		result = &SynthesisResult{Audio: data, MIME: mime}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.SynthesizerUnavailable(err)
	}
	return result, nil
}

func buildSSML(text, voiceID, locale string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="`)
	if err := xml.EscapeText(&buf, []byte(locale)); err != nil {
		return nil, err
	}
	buf.WriteString(`"><voice name="`)
	if err := xml.EscapeText(&buf, []byte(voiceID)); err != nil {
		return nil, err
	}
	buf.WriteString(`">`)
	if err := xml.EscapeText(&buf, []byte(text)); err != nil {
		return nil, err
	}
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}

func mimeForFormat(format string) string {
	switch {
	case strings.HasPrefix(format, "riff-"):
		return "audio/wav"
	case strings.HasPrefix(format, "ogg-"):
		return "audio/ogg"
	case strings.HasPrefix(format, "webm-"):
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}
