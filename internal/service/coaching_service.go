package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/assessment"
	"github.com/windfall/pronounce_service/internal/errors"
)

// Completer is an LLM that answers a prompt under a system instruction.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const (
	maxFocusWords    = 8
	maxWeakPhonemes  = 5
	weakPhonemeScore = 80
	maxTips          = 5
)

const coachSystemPrompt = `You are a friendly English pronunciation coach.
You receive the result of an automatic pronunciation assessment.
Reply with at most 5 short, concrete tips, one per line, no numbering, no preamble.
Focus on the listed problem words and weak sounds. Use plain language a learner understands.`

// Coaching is LLM-written advice for one report.
type Coaching struct {
	Provider     string   `json:"provider"`
	Tips         []string `json:"tips"`
	FocusWords   []string `json:"focus_words"`
	WeakPhonemes []string `json:"weak_phonemes"`
}

// CoachingService turns a report into practice tips.
type CoachingService struct {
	providers       map[string]Completer
	defaultProvider string
	log             zerolog.Logger
}

// NewCoachingService creates a CoachingService. Nil providers are skipped.
func NewCoachingService(providers map[string]Completer, defaultProvider string, log zerolog.Logger) *CoachingService {
	ps := make(map[string]Completer, len(providers))
	for name, p := range providers {
		if p != nil {
			ps[name] = p
		}
	}
	return &CoachingService{
		providers:       ps,
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// Coach asks the named provider (or the default) for tips on report.
func (s *CoachingService) Coach(ctx context.Context, report assessment.Report, provider string) (*Coaching, error) {
	if provider == "" {
		provider = s.defaultProvider
	}
	llm, ok := s.providers[provider]
	if !ok {
		return nil, errors.New(errors.ErrAIService, fmt.Sprintf("coaching provider %q not configured", provider))
	}

	focus := FocusWords(report)
	weak := WeakPhonemes(report)
	out := &Coaching{
		Provider:     provider,
		Tips:         []string{},
		FocusWords:   focus,
		WeakPhonemes: weak,
	}

	text, err := llm.Complete(ctx, coachSystemPrompt, CoachingPrompt(report, focus, weak))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrAIService, "failed to generate coaching", err)
	}
	out.Tips = parseTips(text)

	s.log.Debug().Str("provider", provider).Int("tips", len(out.Tips)).Msg("Coaching generated")
	return out, nil
}

// FocusWords lists the non-ok words of report in speech order, up to a
// fixed limit.
func FocusWords(report assessment.Report) []string {
	words := []string{}
	for _, w := range report.Words {
		if w.ErrorKind == assessment.KindOK {
			continue
		}
		words = append(words, fmt.Sprintf("%s (%s)", w.Text, w.ErrorKind))
		if len(words) == maxFocusWords {
			break
		}
	}
	return words
}

// WeakPhonemes returns the lowest-scoring phonemes below the weak threshold,
// worst first, each symbol once.
func WeakPhonemes(report assessment.Report) []string {
	type scored struct {
		symbol string
		score  float64
	}
	worst := map[string]float64{}
	for _, w := range report.Words {
		for _, p := range w.Phonemes {
			if p.Score >= weakPhonemeScore {
				continue
			}
			if cur, ok := worst[p.Symbol]; !ok || p.Score < cur {
				worst[p.Symbol] = p.Score
			}
		}
	}

	list := make([]scored, 0, len(worst))
	for sym, sc := range worst {
		list = append(list, scored{sym, sc})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score < list[j].score
		}
		return list[i].symbol < list[j].symbol
	})

	out := []string{}
	for i := 0; i < len(list) && i < maxWeakPhonemes; i++ {
		out = append(out, list[i].symbol)
	}
	return out
}

// CoachingPrompt renders the user prompt sent to the LLM.
func CoachingPrompt(report assessment.Report, focus, weak []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recognized text: %q\n", report.RecognizedText)
	s := report.Scores
	fmt.Fprintf(&sb, "Scores: pronunciation %.0f, accuracy %.0f, fluency %.0f, completeness %.0f, prosody %.0f\n",
		s.Pronunciation, s.Accuracy, s.Fluency, s.Completeness, s.Prosody)
	if c := report.ContentScores; c != nil {
		fmt.Fprintf(&sb, "Content: grammar %.0f, vocabulary %.0f, topic %.0f\n", c.Grammar, c.Vocabulary, c.Topic)
	}
	if len(focus) > 0 {
		fmt.Fprintf(&sb, "Problem words: %s\n", strings.Join(focus, ", "))
	} else {
		sb.WriteString("Problem words: none\n")
	}
	if len(weak) > 0 {
		fmt.Fprintf(&sb, "Weak sounds: %s\n", strings.Join(weak, ", "))
	}
	return sb.String()
}

var bulletPrefix = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

func parseTips(text string) []string {
	tips := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		tips = append(tips, line)
		if len(tips) == maxTips {
			break
		}
	}
	return tips
}
