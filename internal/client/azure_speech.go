package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/audio"
	"github.com/windfall/pronounce_service/internal/errors"
)

const speechProvider = "azure_speech"

// AzureSpeechClient wraps the Azure AI Speech short-audio REST API with
// pronunciation assessment enabled.
type AzureSpeechClient struct {
	apiKey  string
	region  string
	baseURL string
	client  *http.Client
	policy  RetryPolicy
	observe RetryObserver
}

// SpeechOption configures an AzureSpeechClient.
type SpeechOption func(*AzureSpeechClient)

// WithSpeechBaseURL overrides the regional endpoint.
func WithSpeechBaseURL(u string) SpeechOption {
	return func(c *AzureSpeechClient) { c.baseURL = u }
}

// WithSpeechRetryPolicy replaces DefaultRetryPolicy.
func WithSpeechRetryPolicy(p RetryPolicy) SpeechOption {
	return func(c *AzureSpeechClient) { c.policy = p }
}

// WithSpeechRetryObserver registers a callback invoked before each retry.
func WithSpeechRetryObserver(o RetryObserver) SpeechOption {
	return func(c *AzureSpeechClient) { c.observe = o }
}

// WithSpeechHTTPClient replaces the default HTTP client.
func WithSpeechHTTPClient(h *http.Client) SpeechOption {
	return func(c *AzureSpeechClient) { c.client = h }
}

// NewAzureSpeechClient creates a new Azure Speech client.
func NewAzureSpeechClient(apiKey, region string, opts ...SpeechOption) *AzureSpeechClient {
	c := &AzureSpeechClient{
		apiKey:  apiKey,
		region:  region,
		baseURL: fmt.Sprintf("https://%s.stt.speech.microsoft.com", region),
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssessScripted scores clip against a known reference text.
func (c *AzureSpeechClient) AssessScripted(ctx context.Context, clip audio.Clip, referenceText, locale string) (*assessment.RawResult, error) {
	return c.assess(ctx, clip, locale, pronunciationParams{
		ReferenceText:           referenceText,
		GradingSystem:           "HundredMark",
		Granularity:             "Phoneme",
		Dimension:               "Comprehensive",
		EnableMiscue:            true,
		EnableProsodyAssessment: true,
	}, false)
}

// AssessUnscripted scores free speech on topic, including content scores.
func (c *AzureSpeechClient) AssessUnscripted(ctx context.Context, clip audio.Clip, topic, locale string) (*assessment.RawResult, error) {
	return c.assess(ctx, clip, locale, pronunciationParams{
		GradingSystem:           "HundredMark",
		Granularity:             "Phoneme",
		Dimension:               "Comprehensive",
		EnableProsodyAssessment: true,
		Topic:                   topic,
	}, true)
}

type pronunciationParams struct {
	ReferenceText           string `json:"ReferenceText"`
	GradingSystem           string `json:"GradingSystem"`
	Granularity             string `json:"Granularity"`
	Dimension               string `json:"Dimension"`
	EnableMiscue            bool   `json:"EnableMiscue"`
	EnableProsodyAssessment bool   `json:"EnableProsodyAssessment"`
	Topic                   string `json:"Topic,omitempty"`
}

func (c *AzureSpeechClient) assess(ctx context.Context, clip audio.Clip, locale string, params pronunciationParams, unscripted bool) (*assessment.RawResult, error) {
	if c.apiKey == "" || c.region == "" {
		return nil, errors.AssessorUnavailable(fmt.Errorf("azure speech credentials not configured"))
	}

	u, err := url.Parse(c.baseURL + "/speech/recognition/conversation/cognitiveservices/v1")
	if err != nil {
		return nil, errors.InternalWrap("invalid speech endpoint", err)
	}
	q := u.Query()
	q.Set("language", locale)
	q.Set("format", "detailed")
	u.RawQuery = q.Encode()

	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return nil, errors.InternalWrap("failed to marshal assessment params", err)
	}
	header := base64.StdEncoding.EncodeToString(jsonBytes)

	var resp speechResponse
	err = c.policy.do(ctx, speechProvider, c.observe, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), clip.Reader())
		if err != nil {
			return backoff.Permanent(errors.InternalWrap("failed to create request", err))
		}
		req.Header.Set("Pronunciation-Assessment", header)
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		req.Header.Set("Content-Type", clip.ContentType())
		req.Header.Set("Accept", "application/json;text/xml")

		return c.send(req, &resp)
	})
	if err != nil {
		return nil, finishAssessorError(ctx, err)
	}

	return resp.rawResult(unscripted)
}

func (c *AzureSpeechClient) send(req *http.Request, out *speechResponse) error {
	res, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		statusErr := fmt.Errorf("azure speech api error %d: %s", res.StatusCode, bytes.TrimSpace(body))
		if transientStatus(res.StatusCode) {
			return statusErr
		}
		return backoff.Permanent(errors.AssessorRejected(statusErr.Error()))
	}

	*out = speechResponse{}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return backoff.Permanent(errors.AssessorUnavailable(fmt.Errorf("failed to decode response: %w", err)))
	}
	return nil
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// finishAssessorError maps the outcome of an exhausted retry loop. Context
// errors pass through untouched and typed errors are kept as they are.
func finishAssessorError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errors.AssessorUnavailable(err)
}

type speechResponse struct {
	RecognitionStatus string
	DisplayText       string
	NBest             []speechCandidate
}

type utteranceScores struct {
	AccuracyScore     *float64
	FluencyScore      *float64
	CompletenessScore *float64
	PronScore         *float64
	ProsodyScore      *float64
}

type speechCandidate struct {
	Display string
	utteranceScores
	PronunciationAssessment *utteranceScores
	ContentAssessment       *contentAssessment
	Words                   []speechWord
}

type contentAssessment struct {
	GrammarScore    float64
	VocabularyScore float64
	TopicScore      float64
	ContentScore    *float64
}

type errorTypes struct {
	ErrorTypes []string
}

type wordAssessment struct {
	AccuracyScore *float64
	ErrorType     string
	Feedback      *struct {
		Prosody *struct {
			Break      *errorTypes
			Intonation *errorTypes
		}
	}
}

type speechWord struct {
	Word                    string
	AccuracyScore           float64
	ErrorType               string
	PronunciationAssessment *wordAssessment
	Phonemes                []speechPhoneme
}

type speechPhoneme struct {
	Phoneme                 string
	AccuracyScore           float64
	PronunciationAssessment *struct {
		AccuracyScore *float64
	}
}

func (r *speechResponse) rawResult(unscripted bool) (*assessment.RawResult, error) {
	out := &assessment.RawResult{Words: []assessment.RawWord{}}
	if unscripted {
		out.Content = &assessment.RawContentScores{}
	}

	switch r.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return out, nil
	case "Error":
		return nil, errors.AssessorRejected("speech service reported a recognition error")
	default:
		return nil, errors.AssessorRejected("unexpected recognition status " + r.RecognitionStatus)
	}
	if len(r.NBest) == 0 {
		return out, nil
	}

	best := r.NBest[0]
	out.RecognizedText = r.DisplayText
	if out.RecognizedText == "" {
		out.RecognizedText = best.Display
	}

	scores := best.utteranceScores
	if best.PronunciationAssessment != nil {
		scores = *best.PronunciationAssessment
	}
	out.Scores = assessment.Scores{
		Pronunciation: deref(scores.PronScore),
		Accuracy:      deref(scores.AccuracyScore),
		Completeness:  deref(scores.CompletenessScore),
		Fluency:       deref(scores.FluencyScore),
		Prosody:       deref(scores.ProsodyScore),
	}

	if unscripted && best.ContentAssessment != nil {
		ca := best.ContentAssessment
		out.Content = &assessment.RawContentScores{
			Grammar:    ca.GrammarScore,
			Vocabulary: ca.VocabularyScore,
			Topic:      ca.TopicScore,
			Content:    ca.ContentScore,
		}
	}

	for _, w := range best.Words {
		out.Words = append(out.Words, w.rawWord())
	}
	return out, nil
}

func (w speechWord) rawWord() assessment.RawWord {
	rw := assessment.RawWord{
		Text:          w.Word,
		AccuracyScore: w.AccuracyScore,
		ErrorType:     assessment.RawErrorType(w.ErrorType),
	}
	if pa := w.PronunciationAssessment; pa != nil {
		if pa.AccuracyScore != nil {
			rw.AccuracyScore = *pa.AccuracyScore
		}
		if pa.ErrorType != "" {
			rw.ErrorType = assessment.RawErrorType(pa.ErrorType)
		}
		if fb := pa.Feedback; fb != nil && fb.Prosody != nil {
			rw.ProsodyFlags = append(prosodyFlags(fb.Prosody.Break), prosodyFlags(fb.Prosody.Intonation)...)
		}
	}
	if rw.ErrorType == "" {
		rw.ErrorType = assessment.RawNone
	}

	for _, p := range w.Phonemes {
		score := p.AccuracyScore
		if p.PronunciationAssessment != nil && p.PronunciationAssessment.AccuracyScore != nil {
			score = *p.PronunciationAssessment.AccuracyScore
		}
		rw.Phonemes = append(rw.Phonemes, assessment.Phoneme{Symbol: p.Phoneme, Score: score})
	}
	return rw
}

func prosodyFlags(et *errorTypes) []assessment.RawErrorType {
	if et == nil {
		return nil
	}
	var flags []assessment.RawErrorType
	for _, t := range et.ErrorTypes {
		if t == "" || t == string(assessment.RawNone) {
			continue
		}
		flags = append(flags, assessment.RawErrorType(t))
	}
	return flags
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
