package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
)

const translatorProvider = "azure_translator"

// LanguageCandidate is one ranked language guess for a text.
type LanguageCandidate struct {
	Code       string  `json:"language"`
	Confidence float64 `json:"score"`
}

// AzureTranslatorClient calls the Azure AI Translator /detect endpoint.
type AzureTranslatorClient struct {
	apiKey  string
	region  string
	baseURL string
	client  *http.Client
	policy  RetryPolicy
	observe RetryObserver
}

// TranslatorOption configures an AzureTranslatorClient.
type TranslatorOption func(*AzureTranslatorClient)

// WithTranslatorBaseURL overrides the global endpoint.
func WithTranslatorBaseURL(u string) TranslatorOption {
	return func(c *AzureTranslatorClient) { c.baseURL = u }
}

// WithTranslatorRetryPolicy replaces DefaultRetryPolicy.
func WithTranslatorRetryPolicy(p RetryPolicy) TranslatorOption {
	return func(c *AzureTranslatorClient) { c.policy = p }
}

// WithTranslatorRetryObserver registers a callback invoked before each retry.
func WithTranslatorRetryObserver(o RetryObserver) TranslatorOption {
	return func(c *AzureTranslatorClient) { c.observe = o }
}

// NewAzureTranslatorClient creates a translator client. region may be empty
// for global resources.
func NewAzureTranslatorClient(apiKey, region string, opts ...TranslatorOption) *AzureTranslatorClient {
	c := &AzureTranslatorClient{
		apiKey:  apiKey,
		region:  region,
		baseURL: "https://api.cognitive.microsofttranslator.com",
		client:  &http.Client{Timeout: 10 * time.Second},
		policy:  DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type detectResponse struct {
	Language     string  `json:"language"`
	Score        float64 `json:"score"`
	Alternatives []struct {
		Language string  `json:"language"`
		Score    float64 `json:"score"`
	} `json:"alternatives"`
}

// Detect returns language candidates for text, most confident first.
func (c *AzureTranslatorClient) Detect(ctx context.Context, text string) ([]LanguageCandidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("azure translator key not configured")
	}

	body, err := json.Marshal([]map[string]string{{"Text": text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var parsed []detectResponse
	err = c.policy.do(ctx, translatorProvider, c.observe, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect?api-version=3.0", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		if c.region != "" {
			req.Header.Set("Ocp-Apim-Subscription-Region", c.region)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			statusErr := fmt.Errorf("azure translator api error %d: %s", res.StatusCode, bytes.TrimSpace(msg))
			if transientStatus(res.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		parsed = nil
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var out []LanguageCandidate
	for _, d := range parsed {
		out = append(out, LanguageCandidate{Code: d.Language, Confidence: d.Score})
		for _, alt := range d.Alternatives {
			out = append(out, LanguageCandidate{Code: alt.Language, Confidence: alt.Score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// ScriptDetector guesses a language from the Unicode script of the text. It
// only names languages whose script identifies them; Latin-script text gives
// no candidate.
type ScriptDetector struct{}

var scriptLanguages = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Han, "zh"},
	{unicode.Thai, "th"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
}

// Detect implements the same contract as AzureTranslatorClient.Detect.
func (ScriptDetector) Detect(ctx context.Context, text string) ([]LanguageCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		for _, s := range scriptLanguages {
			if unicode.Is(s.table, r) {
				counts[s.code]++
				break
			}
		}
	}
	if letters == 0 {
		return nil, nil
	}

	// Kana anywhere in Han text means Japanese.
	if counts["ja"] > 0 && counts["zh"] > 0 {
		counts["ja"] += counts["zh"]
		delete(counts, "zh")
	}

	out := make([]LanguageCandidate, 0, len(counts))
	for code, n := range counts {
		out = append(out, LanguageCandidate{Code: code, Confidence: float64(n) / float64(letters)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}
