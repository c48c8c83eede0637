package assessment

// DisplayStyle is the logical rendering style of a transcript word. The UI
// decides what each style looks like.
type DisplayStyle string

const (
	StylePlain                  DisplayStyle = "plain"
	StyleUnderline              DisplayStyle = "underline"
	StyleBracketed              DisplayStyle = "bracketed"
	StyleStrikethrough          DisplayStyle = "strikethrough"
	StyleStrikethroughBracketed DisplayStyle = "strikethrough+bracketed"
	StyleWavyUnderline          DisplayStyle = "wavy_underline"
)

var styles = map[ErrorKind]DisplayStyle{
	KindOK:               StylePlain,
	KindMispronunciation: StyleUnderline,
	KindOmission:         StyleBracketed,
	KindInsertion:        StyleStrikethrough,
	KindUnexpectedBreak:  StyleStrikethroughBracketed,
	KindMissingBreak:     StyleBracketed,
	KindMonotone:         StyleWavyUnderline,
}

// StyleFor maps an error kind to its display style.
func StyleFor(k ErrorKind) DisplayStyle {
	if s, ok := styles[k]; ok {
		return s
	}
	return StylePlain
}

// Badge summarizes how many words carry one error kind.
type Badge struct {
	Kind  ErrorKind `json:"kind"`
	Count int       `json:"count"`
}

// AnnotatedWord is one transcript entry ready for rendering. Tooltips lists
// phoneme scores in original order and is empty when no detail exists, in
// which case only the word score is shown.
type AnnotatedWord struct {
	Position      int          `json:"position"`
	Text          string       `json:"text"`
	ErrorKind     ErrorKind    `json:"error_kind"`
	DisplayStyle  DisplayStyle `json:"display_style"`
	AccuracyScore float64      `json:"accuracy_score"`
	Tooltips      []Phoneme    `json:"tooltips"`
}

// RadarAxis is one dimension of a radar chart.
type RadarAxis struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// View is the UI-facing projection of a Report.
type View struct {
	Badges     []Badge         `json:"badges"`
	Transcript []AnnotatedWord `json:"transcript"`
	Radar      [][]RadarAxis   `json:"radar"`
}

// PronunciationDimensions and ContentDimensions name the radar axes in order.
var (
	PronunciationDimensions = []string{"pronunciation", "accuracy", "completeness", "fluency", "prosody"}
	ContentDimensions       = []string{"content", "grammar", "vocabulary", "topic"}
)

// BuildView derives badges, the annotated transcript and radar sets from r.
func BuildView(r Report) View {
	v := View{
		Badges:     make([]Badge, 0, len(Kinds)),
		Transcript: make([]AnnotatedWord, 0, len(r.Words)),
		Radar:      RadarSets(r),
	}
	for _, k := range Kinds {
		v.Badges = append(v.Badges, Badge{Kind: k, Count: r.ErrorCounts[k]})
	}
	for _, w := range r.Words {
		v.Transcript = append(v.Transcript, AnnotatedWord{
			Position:      w.Position,
			Text:          w.Text,
			ErrorKind:     w.ErrorKind,
			DisplayStyle:  w.DisplayStyle(),
			AccuracyScore: w.AccuracyScore,
			Tooltips:      append([]Phoneme{}, w.Phonemes...),
		})
	}
	return v
}

// RadarSets returns the pronunciation axes, followed by the content axes for
// unscripted reports.
func RadarSets(r Report) [][]RadarAxis {
	s := r.Scores
	sets := [][]RadarAxis{{
		{Name: "pronunciation", Value: s.Pronunciation},
		{Name: "accuracy", Value: s.Accuracy},
		{Name: "completeness", Value: s.Completeness},
		{Name: "fluency", Value: s.Fluency},
		{Name: "prosody", Value: s.Prosody},
	}}
	if c := r.ContentScores; c != nil {
		sets = append(sets, []RadarAxis{
			{Name: "content", Value: c.Content},
			{Name: "grammar", Value: c.Grammar},
			{Name: "vocabulary", Value: c.Vocabulary},
			{Name: "topic", Value: c.Topic},
		})
	}
	return sets
}
