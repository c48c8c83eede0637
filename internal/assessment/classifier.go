package assessment

// classifyOrder is the precedence used when a word carries several flags.
var classifyOrder = []struct {
	raw  RawErrorType
	kind ErrorKind
}{
	{RawOmission, KindOmission},
	{RawInsertion, KindInsertion},
	{RawMispronunciation, KindMispronunciation},
	{RawUnexpectedBreak, KindUnexpectedBreak},
	{RawMissingBreak, KindMissingBreak},
	{RawMonotone, KindMonotone},
}

// Classify labels a word from its raw flags alone. Low accuracy without a
// flag stays ok so the label never disagrees with what the service reported.
func Classify(w RawWord) ErrorKind {
	flags := w.Flags()
	for _, c := range classifyOrder {
		for _, f := range flags {
			if f == c.raw {
				return c.kind
			}
		}
	}
	return KindOK
}

// ClassifyAll labels words in speech order, assigning positions from 0.
func ClassifyAll(words []RawWord) []ClassifiedWord {
	out := make([]ClassifiedWord, len(words))
	for i, w := range words {
		out[i] = ClassifiedWord{
			Text:          w.Text,
			ErrorKind:     Classify(w),
			AccuracyScore: w.AccuracyScore,
			Phonemes:      append([]Phoneme(nil), w.Phonemes...),
			Position:      i,
		}
	}
	return out
}
