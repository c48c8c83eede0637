package client

import "errors"

// Coaching replies are a handful of short tips; these bound every LLM
// backend the same way.
const (
	completionTemperature = 0.4
	completionMaxTokens   = 400
)

// ErrEmptyCompletion is returned when a model answers with no text.
var ErrEmptyCompletion = errors.New("model returned no text")
