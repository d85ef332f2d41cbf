// Package classify scores stored items for hate speech and persists
// the results.
package classify

import (
	"context"
	"strings"
)

// DefaultThreshold is the hate score at or above which an item counts
// as flagged. Every surface that talks about "flagged" items reads
// this one constant (or the config value seeded from it) so the word
// means the same thing in classification, queries and display.
const DefaultThreshold = 0.20

// Score is the binary toxicity verdict for one text.
type Score struct {
	NonHate    float64 `json:"non_hate"`
	HateSpeech float64 `json:"hate_speech"`
}

// Flagged reports whether a hate score meets the threshold.
func Flagged(hateSpeech, threshold float64) bool {
	return hateSpeech >= threshold
}

// Scorer is any binary toxicity classifier. ScoreBatch must return
// exactly one score per input text, in input order.
type Scorer interface {
	Name() string
	ScoreBatch(ctx context.Context, texts []string) ([]Score, error)
}

// lexiconWeights maps attack words and phrases to hate evidence
// weights. Multi-word entries are matched as adjacent token pairs.
var lexiconWeights = map[string]float64{
	"hate":          0.30,
	"hateful":       0.35,
	"kill":          0.45,
	"die":           0.35,
	"stupid":        0.25,
	"idiot":         0.30,
	"idiots":        0.30,
	"moron":         0.30,
	"trash":         0.25,
	"garbage":       0.25,
	"scum":          0.60,
	"vermin":        0.70,
	"subhuman":      0.80,
	"inferior":      0.40,
	"disgusting":    0.30,
	"ugly":          0.20,
	"worthless":     0.40,
	"fuck":          0.20,
	"fucking":       0.20,
	"shit":          0.15,
	"bitch":         0.40,
	"bitches":       0.40,
	"asshole":       0.35,
	"bastard":       0.30,
	"dumbass":       0.35,
	"kill yourself": 0.90,
	"go back":       0.50,
	"get out":       0.25,
	"not welcome":   0.45,
	"dont belong":   0.45,
	"don't belong":  0.45,
}

// LexiconScorer is a deterministic local classifier built from a
// weighted attack lexicon. It is the default backend, so the pipeline
// runs end to end without any external inference service, and it
// doubles as a predictable scorer for tests. Matched weights combine
// as independent evidence, saturating below 1.
type LexiconScorer struct {
	weights map[string]float64
}

// NewLexiconScorer returns a scorer over the builtin lexicon, with
// extra term weights merged in (overriding builtin entries).
func NewLexiconScorer(extra map[string]float64) *LexiconScorer {
	weights := make(map[string]float64, len(lexiconWeights)+len(extra))
	for term, w := range lexiconWeights {
		weights[term] = w
	}
	for term, w := range extra {
		weights[strings.ToLower(term)] = w
	}
	return &LexiconScorer{weights: weights}
}

func (s *LexiconScorer) Name() string { return "lexicon" }

func (s *LexiconScorer) ScoreBatch(ctx context.Context, texts []string) ([]Score, error) {
	scores := make([]Score, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores[i] = s.score(text)
	}
	return scores, nil
}

func (s *LexiconScorer) score(text string) Score {
	tokens := strings.Fields(strings.ToLower(text))

	hate := 0.0
	add := func(w float64) { hate += (1 - hate) * w }

	for i, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:\"'()[]")
		if w, ok := s.weights[tok]; ok {
			add(w)
		}
		if i+1 < len(tokens) {
			next := strings.Trim(tokens[i+1], ".,!?;:\"'()[]")
			if w, ok := s.weights[tok+" "+next]; ok {
				add(w)
			}
		}
	}

	return Score{NonHate: 1 - hate, HateSpeech: hate}
}
