// Package severity assigns an urgency tier to a finished symptom interview.
package severity

import (
	"regexp"
	"strings"
)

// Level is the urgency tier of a consultation.
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	Critical Level = "CRITICAL"
)

// RedFlagsCategory is the follow-up category whose affirmative answers escalate to Critical.
const RedFlagsCategory = "red_flags"

var labels = map[Level]string{
	Low:      "🟢 Low",
	Medium:   "🟡 Medium!",
	Critical: "🔴 CRITICAL!!!",
}

// Decorated returns the provider-facing label for the tier.
func (l Level) Decorated() string {
	if label, ok := labels[l]; ok {
		return label
	}
	return labels[Low]
}

// Valid reports whether l is one of the three known tiers.
func (l Level) Valid() bool {
	_, ok := labels[l]
	return ok
}

// Lower returns the lowercase form used in storage and metrics labels.
func (l Level) Lower() string {
	return strings.ToLower(string(l))
}

// Parse maps a stored value (any case) back to a Level.
func Parse(raw string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(raw)))
	return l, l.Valid()
}

var affirmative = regexp.MustCompile(`(?i)\b(yes|yep|yeah|affirmative|true|certainly|of course)\b`)

var criticalPatterns = compileAll(
	`\b(severe|sudden|tearing|crushing|unbearable|worst)\b`,
	`\b(profuse|heavy)\s+(sweating|diaphoresis)\b`,
	`\b(hemoptysis|blood\s+in\s+sputum|massive\s+bleeding)\b`,
	`\b(syncope|fainted|loss\s+of\s+consciousness)\b`,
	`\b(hypoxia|very\s+low\s+oxygen)\b`,
	`\b(neurological\s+deficits|facial\s+droop|speech\s+difficulty)\b`,
	`\b(pressure|squeez(ing)?|tight(ness)?|radiat(e|ing))\b`,
	`\b(jaw|arm|back)\b`,
	`\b(nausea|vomiting|shortness\s+of\s+breath|dyspnea)\b`,
)

var riskFactorPatterns = compileAll(
	`\b(hypertension|high\s+blood\s+pressure|bp\s*\d{2,3}/\d{2,3})\b`,
	`\b(diabetes|high\s+blood\s+sugar)\b`,
	`\b(smok(e|ing|er)|tobacco)\b`,
	`\b(high\s+cholesterol|hyperlipidemia)\b`,
	`\b(obese|obesity|overweight)\b`,
	`\b(family\s+history|coronary\s+artery\s+disease|cad|stent|angioplasty|heart\s+attack|myocardial\s+infarction|mi)\b`,
	`\b(copd|asthma|heart\s+failure|valve\s+disease)\b`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

// Classify maps accumulated follow-up answers to a tier. It is pure and
// deterministic; the first matching rule wins (Critical, then Medium, then Low).
// Each answer is matched on its own so a pattern never spans two answers.
// The symptom name is accepted for symmetry with the rest of the case record;
// the keyword sets apply to every symptom.
func Classify(_ string, responses map[string][]string) Level {
	if hasRedFlags(responses) {
		return Critical
	}
	if anyAnswerMatches(responses, criticalPatterns) {
		return Critical
	}
	if anyAnswerMatches(responses, riskFactorPatterns) {
		return Medium
	}
	return Low
}

func hasRedFlags(responses map[string][]string) bool {
	for _, answer := range responses[RedFlagsCategory] {
		if affirmative.MatchString(answer) || matchesAny(answer, criticalPatterns) {
			return true
		}
	}
	return false
}

func anyAnswerMatches(responses map[string][]string, patterns []*regexp.Regexp) bool {
	for _, answers := range responses {
		for _, answer := range answers {
			if matchesAny(answer, patterns) {
				return true
			}
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
