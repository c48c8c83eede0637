// Package assessment turns raw pronunciation-assessment output into the
// report learners see: each recognized word gets exactly one error label, the
// labels are counted, scores are bounded, and the result is a value that can
// be rendered without referring back to the audio it came from.
package assessment

// Mode selects scripted (known reference text) or unscripted (free speech on
// a topic) assessment.
type Mode string

const (
	ModeScripted   Mode = "scripted"
	ModeUnscripted Mode = "unscripted"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeScripted || m == ModeUnscripted
}

// RawErrorType is a per-word error flag as reported by the speech service.
type RawErrorType string

const (
	RawNone             RawErrorType = "None"
	RawMispronunciation RawErrorType = "Mispronunciation"
	RawOmission         RawErrorType = "Omission"
	RawInsertion        RawErrorType = "Insertion"
	RawUnexpectedBreak  RawErrorType = "UnexpectedBreak"
	RawMissingBreak     RawErrorType = "MissingBreak"
	RawMonotone         RawErrorType = "Monotone"
)

// ErrorKind is the closed taxonomy every recognized word is labelled with.
type ErrorKind string

const (
	KindOK               ErrorKind = "ok"
	KindMispronunciation ErrorKind = "mispronunciation"
	KindOmission         ErrorKind = "omission"
	KindInsertion        ErrorKind = "insertion"
	KindUnexpectedBreak  ErrorKind = "unexpected_break"
	KindMissingBreak     ErrorKind = "missing_break"
	KindMonotone         ErrorKind = "monotone"
)

// Kinds lists every ErrorKind in badge order.
var Kinds = []ErrorKind{
	KindOK,
	KindMispronunciation,
	KindOmission,
	KindInsertion,
	KindUnexpectedBreak,
	KindMissingBreak,
	KindMonotone,
}

// Phoneme is one scored phoneme of a word.
type Phoneme struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// RawWord is one word record from the speech service. ErrorType is the
// word's primary flag; ProsodyFlags carries any additional break or
// intonation flags reported in the word's prosody feedback.
type RawWord struct {
	Text          string
	AccuracyScore float64
	ErrorType     RawErrorType
	ProsodyFlags  []RawErrorType
	Phonemes      []Phoneme
}

// Flags returns every raw flag set on the word.
func (w RawWord) Flags() []RawErrorType {
	flags := make([]RawErrorType, 0, 1+len(w.ProsodyFlags))
	if w.ErrorType != "" {
		flags = append(flags, w.ErrorType)
	}
	return append(flags, w.ProsodyFlags...)
}

// Scores are the utterance-level phonetic scores, each in [0,100].
type Scores struct {
	Pronunciation float64 `json:"pronunciation"`
	Accuracy      float64 `json:"accuracy"`
	Completeness  float64 `json:"completeness"`
	Fluency       float64 `json:"fluency"`
	Prosody       float64 `json:"prosody"`
}

// RawContentScores are the unscripted content fields from the service.
// Content is the service's own aggregate when it sends one; reports derive
// their content score from the three dimensions instead.
type RawContentScores struct {
	Grammar    float64
	Vocabulary float64
	Topic      float64
	Content    *float64
}

// RawResult is everything the speech service returned for one utterance.
type RawResult struct {
	RecognizedText string
	Words          []RawWord
	Scores         Scores
	Content        *RawContentScores
}

// ClassifiedWord is a RawWord with its label and speech-order position.
type ClassifiedWord struct {
	Text          string    `json:"text"`
	ErrorKind     ErrorKind `json:"error_kind"`
	AccuracyScore float64   `json:"accuracy_score"`
	Phonemes      []Phoneme `json:"phonemes"`
	Position      int       `json:"-"`
}

// DisplayStyle is the logical style the word is rendered with.
func (w ClassifiedWord) DisplayStyle() DisplayStyle {
	return StyleFor(w.ErrorKind)
}

// ContentScores are the unscripted content dimensions, each in [0,100].
type ContentScores struct {
	Content    float64 `json:"content"`
	Grammar    float64 `json:"grammar"`
	Vocabulary float64 `json:"vocabulary"`
	Topic      float64 `json:"topic"`
}

// Report is the outcome of one assessment. It holds no reference to the
// source audio; treat it as read-only once built.
type Report struct {
	RecognizedText string            `json:"recognized_text"`
	Words          []ClassifiedWord  `json:"words"`
	ErrorCounts    map[ErrorKind]int `json:"error_counts"`
	Scores         Scores            `json:"scores"`
	ContentScores  *ContentScores    `json:"content_scores,omitempty"`
}

// Mode reports unscripted when content scores are present.
func (r Report) Mode() Mode {
	if r.ContentScores != nil {
		return ModeUnscripted
	}
	return ModeScripted
}
