package assessment

import "math"

// Aggregate folds classified words and utterance scores into a Report.
//
// Words keep their input order and are renumbered from 0. Every score is
// clamped to [0,100] and unknown kinds count as ok. Phoneme detail is kept
// only for ok and mispronunciation words. When content is non-nil the report
// carries content scores with content = round_half_up(mean(grammar,
// vocabulary, topic)).
//
// Aggregate does not retain or modify its inputs, so calling it twice on the
// same values yields equal reports.
func Aggregate(recognizedText string, words []ClassifiedWord, scores Scores, content *RawContentScores) Report {
	counts := make(map[ErrorKind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}

	out := make([]ClassifiedWord, 0, len(words))
	for _, w := range words {
		if _, ok := counts[w.ErrorKind]; !ok {
			w.ErrorKind = KindOK
		}
		counts[w.ErrorKind]++

		phonemes := []Phoneme{}
		if hasPhonemeDetail(w.ErrorKind) {
			for _, p := range w.Phonemes {
				phonemes = append(phonemes, Phoneme{Symbol: p.Symbol, Score: clamp(p.Score)})
			}
		}

		out = append(out, ClassifiedWord{
			Text:          w.Text,
			ErrorKind:     w.ErrorKind,
			AccuracyScore: clamp(w.AccuracyScore),
			Phonemes:      phonemes,
			Position:      len(out),
		})
	}

	report := Report{
		RecognizedText: recognizedText,
		Words:          out,
		ErrorCounts:    counts,
		Scores: Scores{
			Pronunciation: clamp(scores.Pronunciation),
			Accuracy:      clamp(scores.Accuracy),
			Completeness:  clamp(scores.Completeness),
			Fluency:       clamp(scores.Fluency),
			Prosody:       clamp(scores.Prosody),
		},
	}

	if content != nil {
		grammar := clamp(content.Grammar)
		vocabulary := clamp(content.Vocabulary)
		topic := clamp(content.Topic)
		report.ContentScores = &ContentScores{
			Content:    clamp(roundHalfUp((grammar + vocabulary + topic) / 3)),
			Grammar:    grammar,
			Vocabulary: vocabulary,
			Topic:      topic,
		}
	}

	return report
}

// Build classifies raw service output and aggregates it in one step.
func Build(raw RawResult) Report {
	return Aggregate(raw.RecognizedText, ClassifyAll(raw.Words), raw.Scores, raw.Content)
}

func hasPhonemeDetail(k ErrorKind) bool {
	return k == KindOK || k == KindMispronunciation
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
