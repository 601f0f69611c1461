// Package taxonomy resolves free-text role descriptions against a closed
// vocabulary of standardized job titles, with an AI-suggested fallback when no
// vocabulary entry scores highly enough.
//
// A resolution is only returned at or above MinConfidence; below that the
// caller proceeds without a suggested title. Fallback suggestions are
// speculative and must be confirmed by the user, never silently substituted.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/genai"
)

// Confidence thresholds and scores for vocabulary matching.
const (
	// MinConfidence is the floor below which no match is returned.
	MinConfidence = 50
	// scoreExactTitle is awarded when the input equals a standardized title.
	scoreExactTitle = 100
	// scoreExactTerm is awarded when the input equals a known synonym.
	scoreExactTerm = 95
	// scoreTermInInput is awarded when the input contains a known term.
	scoreTermInInput = 75
	// scoreInputInTitle is awarded when a title contains the whole input.
	scoreInputInTitle = 65
)

// Match is a resolved job title with its confidence and provenance.
type Match struct {
	Title        string   `json:"title"`
	Confidence   int      `json:"confidence"` // 0-100
	MatchedTerms []string `json:"matched_terms,omitempty"`
	IsFallback   bool     `json:"is_fallback"`
}

// vocabEntry maps a standardized title to the terms that indicate it.
type vocabEntry struct {
	title string
	terms []string
}

// vocabulary is the closed set of standardized gig titles. Terms are
// lowercase; the title itself always counts as a term.
var vocabulary = []vocabEntry{
	{"Bartender", []string{"bartender", "bar staff", "mixologist", "cocktail maker", "barman", "barmaid"}},
	{"Waiter", []string{"waiter", "waitress", "waiting staff", "server", "table service"}},
	{"Chef", []string{"chef", "cook", "line cook", "head chef"}},
	{"Sous Chef", []string{"sous chef", "second chef", "deputy chef"}},
	{"Kitchen Porter", []string{"kitchen porter", "kitchen assistant", "dishwasher", "kp"}},
	{"Barista", []string{"barista", "coffee maker", "coffee bar"}},
	{"Event Staff", []string{"event staff", "event crew", "festival staff", "steward", "usher"}},
	{"Security Guard", []string{"security guard", "security", "bouncer", "door supervisor", "doorman"}},
	{"Cleaner", []string{"cleaner", "cleaning", "housekeeper", "housekeeping", "janitor"}},
	{"Receptionist", []string{"receptionist", "front desk", "front of house", "concierge"}},
	{"Host", []string{"host", "hostess", "greeter"}},
	{"DJ", []string{"dj", "disc jockey", "music selector"}},
	{"Photographer", []string{"photographer", "photography", "event photographer"}},
	{"Videographer", []string{"videographer", "camera operator", "video maker"}},
	{"Delivery Driver", []string{"delivery driver", "courier", "driver", "rider"}},
	{"Warehouse Operative", []string{"warehouse operative", "warehouse", "picker", "packer", "forklift"}},
	{"Baker", []string{"baker", "pastry chef", "bakery"}},
	{"Sommelier", []string{"sommelier", "wine expert", "wine steward"}},
}

// KnownTitles returns the standardized titles in vocabulary order.
func KnownTitles() []string {
	titles := make([]string, len(vocabulary))
	for i, e := range vocabulary {
		titles[i] = e.title
	}
	return titles
}

// IsKnownTitle reports whether text equals a standardized title or synonym,
// ignoring case. Used by the escalation monitor's short-answer whitelist.
func IsKnownTitle(text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return false
	}
	for _, e := range vocabulary {
		for _, term := range e.terms {
			if needle == term {
				return true
			}
		}
	}
	return false
}

// Resolver resolves free text to standardized titles, consulting the AI
// fallback when vocabulary matching comes up short.
type Resolver struct {
	genaiClient genai.ClientInterface
}

// NewResolver creates a resolver. The genai client may be nil, in which case
// the AI fallback is disabled and only vocabulary matches are returned.
func NewResolver(genaiClient genai.ClientInterface) *Resolver {
	return &Resolver{genaiClient: genaiClient}
}

// Resolve maps free text to a standardized title. Returns nil (and no error)
// when nothing clears MinConfidence. Fallback errors degrade to nil rather
// than failing the caller's turn.
func (r *Resolver) Resolve(ctx context.Context, freeText string) (*Match, error) {
	needle := strings.ToLower(strings.TrimSpace(freeText))
	if needle == "" {
		return nil, nil
	}

	if m := matchVocabulary(needle); m != nil {
		slog.Debug("taxonomy.Resolve: vocabulary match", "title", m.Title, "confidence", m.Confidence)
		return m, nil
	}

	if r.genaiClient == nil {
		slog.Debug("taxonomy.Resolve: no vocabulary match and fallback disabled")
		return nil, nil
	}

	m, err := r.resolveFallback(ctx, freeText)
	if err != nil {
		slog.Warn("taxonomy.Resolve: AI fallback failed, proceeding without title", "error", err)
		return nil, nil
	}
	if m == nil || m.Confidence < MinConfidence {
		slog.Debug("taxonomy.Resolve: fallback below confidence floor", "hasMatch", m != nil)
		return nil, nil
	}
	slog.Info("taxonomy.Resolve: AI fallback match", "title", m.Title, "confidence", m.Confidence)
	return m, nil
}

// matchVocabulary scores the input against every vocabulary entry and returns
// the best match at or above MinConfidence, or nil.
func matchVocabulary(needle string) *Match {
	var best *Match
	for _, e := range vocabulary {
		if needle == strings.ToLower(e.title) {
			return &Match{Title: e.title, Confidence: scoreExactTitle, MatchedTerms: []string{needle}}
		}
		score := 0
		var matched []string
		for _, term := range e.terms {
			var termScore int
			switch {
			case needle == term:
				termScore = scoreExactTerm
			case containsWord(needle, term):
				termScore = scoreTermInInput
			case len(needle) >= 3 && strings.Contains(strings.ToLower(e.title), needle):
				termScore = scoreInputInTitle
			default:
				continue
			}
			matched = append(matched, term)
			if termScore > score {
				score = termScore
			}
		}
		if score >= MinConfidence && (best == nil || score > best.Confidence) {
			best = &Match{Title: e.title, Confidence: score, MatchedTerms: matched}
		}
	}
	return best
}

// containsWord reports whether haystack contains term on word boundaries.
func containsWord(haystack, term string) bool {
	idx := strings.Index(haystack, term)
	if idx < 0 {
		return false
	}
	beforeOK := idx == 0 || !isWordChar(haystack[idx-1])
	after := idx + len(term)
	afterOK := after == len(haystack) || !isWordChar(haystack[after])
	return beforeOK && afterOK
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// fallbackSuggestion is the JSON shape requested from the model.
type fallbackSuggestion struct {
	Title      string `json:"title"`
	Confidence int    `json:"confidence"`
}

const fallbackSystemPrompt = `You map a free-text description of gig work to exactly one standardized job title.
Choose the closest title from this list when possible, otherwise propose a concise conventional title (max 3 words).
Return JSON: {"title": string, "confidence": number 0-100}.
Confidence reflects how certain you are the title matches the description.`

// resolveFallback asks the model for a suggested title.
func (r *Resolver) resolveFallback(ctx context.Context, freeText string) (*Match, error) {
	prompt := fmt.Sprintf("Known titles: %s\n\nDescription: %s",
		strings.Join(KnownTitles(), ", "), freeText)

	var suggestion fallbackSuggestion
	if err := r.genaiClient.GenerateJSON(ctx, fallbackSystemPrompt, prompt, &suggestion); err != nil {
		return nil, fmt.Errorf("fallback suggestion failed: %w", err)
	}
	if strings.TrimSpace(suggestion.Title) == "" {
		return nil, nil
	}
	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 100 {
		suggestion.Confidence = 100
	}
	return &Match{
		Title:      strings.TrimSpace(suggestion.Title),
		Confidence: suggestion.Confidence,
		IsFallback: true,
	}, nil
}
