// Package escalation watches every user turn for signs of abuse, distress, or
// repeated irrelevance, and hands the conversation to human support once a
// threshold is crossed.
//
// The unrelated-turn count is monotonic for the lifetime of one conversation:
// an intervening valid answer does not reset it, so the threshold cannot be
// evaded by alternating valid and unproductive turns. Only a full
// conversation restart starts a fresh count.
package escalation

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/taxonomy"
)

// Monitor tuning constants.
const (
	// Threshold is the number of flagged turns that triggers escalation.
	Threshold = 3
	// minAnswerLength is the floor below which a short answer is suspect
	// unless it matches the whitelist or shares a keyword with the question.
	minAnswerLength = 10
)

// abuseTerms flag a turn immediately regardless of length or relevance.
var abuseTerms = []string{
	"fuck", "shit", "bitch", "asshole", "bastard", "cunt", "dickhead",
	"wanker", "piss off", "screw you", "idiot", "moron", "stupid bot",
	"kill myself", "hurt myself", "want to die",
}

// shortAnswerWhitelist holds known-valid short answers that must never be
// flagged: acknowledgements, declines, and common city names.
var shortAnswerWhitelist = map[string]bool{
	"yes": true, "no": true, "yeah": true, "yep": true, "nope": true,
	"ok": true, "okay": true, "sure": true, "none": true, "skip": true,
	"london": true, "manchester": true, "birmingham": true, "leeds": true,
	"glasgow": true, "liverpool": true, "bristol": true, "edinburgh": true,
	"cardiff": true, "sheffield": true, "newcastle": true, "brighton": true,
}

// bareNumberPattern matches answers that are just a number, optionally with a
// currency symbol or decimal part ("15", "£12.50", "12.21").
var bareNumberPattern = regexp.MustCompile(`^[£$€]?\d+([.,]\d+)?$`)

// Assessment is the monitor's judgement of one raw submission.
type Assessment struct {
	Flagged bool
	Reason  string
}

// Monitor is the heuristic per-turn classifier. It is stateless; callers own
// the running count in the conversation's EscalationState.
type Monitor struct{}

// NewMonitor creates a turn monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Assess classifies one raw submission against the question that prompted it.
// It runs before the field validator on every turn.
func (m *Monitor) Assess(input, question string) Assessment {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		// Empty input is handled as insufficient by the validator, not as
		// irrelevance.
		return Assessment{}
	}

	for _, term := range abuseTerms {
		if strings.Contains(normalized, term) {
			slog.Info("escalation.Assess: abusive or distressed input flagged")
			return Assessment{Flagged: true, Reason: "abusive or distressed language"}
		}
	}

	if len(normalized) >= minAnswerLength {
		return Assessment{}
	}
	if shortAnswerWhitelist[normalized] {
		return Assessment{}
	}
	if bareNumberPattern.MatchString(normalized) {
		return Assessment{}
	}
	if taxonomy.IsKnownTitle(normalized) {
		return Assessment{}
	}
	if sharesKeyword(normalized, question) {
		return Assessment{}
	}

	slog.Debug("escalation.Assess: short unrelated answer flagged", "length", len(normalized))
	return Assessment{Flagged: true, Reason: "short answer unrelated to the question"}
}

// sharesKeyword reports whether the answer shares any substantial word with
// the question text.
func sharesKeyword(answer, question string) bool {
	questionWords := make(map[string]bool)
	for _, w := range splitWords(strings.ToLower(question)) {
		if len(w) >= 3 {
			questionWords[w] = true
		}
	}
	for _, w := range splitWords(answer) {
		if len(w) >= 3 && questionWords[w] {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}
