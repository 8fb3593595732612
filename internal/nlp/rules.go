// Package nlp extracts patient details from free text and phrases the
// assistant's side of the intake conversation.
package nlp

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	// Invalid is returned by ExtractField when nothing usable was found.
	Invalid = "INVALID"
	// NoMatch is returned by MatchSymptom when no catalog entry fits.
	NoMatch = "NO_SYMPTOM_FOUND"
)

// Field names a piece of patient identity collected during intake.
type Field string

const (
	FieldName  Field = "name"
	FieldEmail Field = "email"
)

var (
	namePrefix      = regexp.MustCompile(`(?i)^(my name is|i am|i'm|name:|name is|call me)\s*`)
	nonNameChars    = regexp.MustCompile(`[^a-zA-Z\s]`)
	validName       = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
	validEmail      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	emailInText     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	collapsedSpaces = regexp.MustCompile(`\s+`)
)

// synonymList maps lay phrasing to a fragment of a catalog symptom name.
// Earlier entries win.
var synonymList = []struct {
	phrase   string
	fragment string
}{
	{"short of breath", "breath"},
	{"can't breathe", "breath"},
	{"cannot breathe", "breath"},
	{"breathless", "breath"},
	{"winded", "breath"},
	{"heart is racing", "palpitation"},
	{"heart racing", "palpitation"},
	{"pounding heart", "palpitation"},
	{"fluttering", "palpitation"},
	{"skipping beats", "palpitation"},
	{"irregular heart", "palpitation"},
	{"passed out", "syncope"},
	{"blacked out", "syncope"},
	{"fainted", "syncope"},
	{"fainting", "syncope"},
	{"lightheaded", "dizz"},
	{"light headed", "dizz"},
	{"dizzy", "dizz"},
	{"swollen", "swelling"},
	{"puffy ankles", "swelling"},
	{"tired", "fatigue"},
	{"exhausted", "fatigue"},
	{"no energy", "fatigue"},
	{"chest hurts", "chest"},
	{"tight chest", "chest"},
	{"chest tightness", "chest"},
	{"pain in my chest", "chest"},
	{"high bp", "blood pressure"},
	{"hypertension", "blood pressure"},
	{"coughing blood", "cough"},
	{"blue lips", "cyanosis"},
	{"leg pain walking", "claudication"},
}

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "with": {}, "for": {}, "pain": {}, "discomfort": {},
}

var transitions = []string{
	"Alright, moving on.",
	"Let's move on.",
	"Thank you for sharing.",
	"Noted, thank you.",
	"Okay, next question.",
}

// RuleAssistant answers every Assistant call with deterministic rules.
type RuleAssistant struct{}

func NewRuleAssistant() *RuleAssistant {
	return &RuleAssistant{}
}

func (RuleAssistant) ExtractField(_ context.Context, text string, field Field) (string, error) {
	clean := strings.TrimSpace(text)
	switch field {
	case FieldName:
		name := namePrefix.ReplaceAllString(clean, "")
		name = strings.TrimSpace(nonNameChars.ReplaceAllString(name, ""))
		name = collapsedSpaces.ReplaceAllString(name, " ")
		if validName.MatchString(name) {
			return name, nil
		}
		return Invalid, nil
	case FieldEmail:
		if m := emailInText.FindString(clean); m != "" {
			return m, nil
		}
		return Invalid, nil
	default:
		return Invalid, fmt.Errorf("nlp: unknown field %q", field)
	}
}

func (RuleAssistant) IsValidName(name string) bool {
	return validName.MatchString(strings.TrimSpace(name))
}

func (RuleAssistant) IsValidEmail(email string) bool {
	return validEmail.MatchString(strings.TrimSpace(email))
}

// MatchSymptom returns the catalog name that best fits text, or NoMatch.
func (RuleAssistant) MatchSymptom(_ context.Context, text string, catalog []string) (string, error) {
	return matchSymptomRules(text, catalog), nil
}

func (RuleAssistant) RephraseQuestion(_ context.Context, question string) (string, error) {
	return strings.TrimSpace(question), nil
}

func (RuleAssistant) TransitionPhrase(_ context.Context, index, _ int) (string, error) {
	if index < 0 {
		index = 0
	}
	return transitions[index%len(transitions)], nil
}

func (RuleAssistant) AcknowledgeSymptom(_ context.Context, symptom string, hasFollowUps bool) (string, error) {
	if hasFollowUps {
		return fmt.Sprintf("I'm sorry to hear you're dealing with %s. I'd like to ask a few questions to better understand your situation.", strings.ToLower(symptom)), nil
	}
	return fmt.Sprintf("Thank you for letting me know about your %s.", strings.ToLower(symptom)), nil
}

func (RuleAssistant) CompletionMessage(_ context.Context, patientName string) (string, error) {
	return FallbackCompletionMessage(patientName), nil
}

func (RuleAssistant) GenericErrorMessage(context.Context) (string, error) {
	return FallbackErrorMessage, nil
}

// FallbackErrorMessage is used whenever no better apology is available.
const FallbackErrorMessage = "I apologize, but I encountered an error. Please try again."

// FallbackCompletionMessage is the closing text used when generation is unavailable.
func FallbackCompletionMessage(patientName string) string {
	if strings.TrimSpace(patientName) == "" {
		return "Thank you! I've collected all your symptom information. Our cardiologist will review your case and follow up with you soon."
	}
	return fmt.Sprintf("Thank you, %s! I've collected all your symptom information. Our cardiologist will review your case and follow up with you soon.", patientName)
}

// CleanNameFallback strips everything but letters and spaces; it returns ""
// when fewer than two characters remain.
func CleanNameFallback(text string) string {
	name := strings.TrimSpace(nonNameChars.ReplaceAllString(text, ""))
	name = collapsedSpaces.ReplaceAllString(name, " ")
	if len(name) < 2 {
		return ""
	}
	return name
}

// FindEmail returns the first email-looking substring of text, or "".
func FindEmail(text string) string {
	return emailInText.FindString(text)
}

func matchSymptomRules(text string, catalog []string) string {
	needle := normalize(text)
	if needle == "" || len(catalog) == 0 {
		return NoMatch
	}

	for _, name := range catalog {
		if strings.EqualFold(strings.TrimSpace(text), name) {
			return name
		}
	}
	for _, name := range catalog {
		for _, alias := range aliases(name) {
			if alias != "" && containsPhrase(needle, alias) {
				return name
			}
		}
	}
	for _, syn := range synonymList {
		if !containsPhrase(needle, syn.phrase) {
			continue
		}
		for _, name := range catalog {
			if strings.Contains(strings.ToLower(name), syn.fragment) {
				return name
			}
		}
	}

	best, bestScore := NoMatch, 0
	words := tokenSet(needle)
	for _, name := range catalog {
		score := 0
		for _, tok := range strings.Fields(normalize(name)) {
			if _, stop := stopWords[tok]; stop || len(tok) < 3 {
				continue
			}
			if _, ok := words[strings.TrimSuffix(tok, "s")]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// aliases lists the phrasings of a catalog name that count as a direct mention:
// the whole name, the part before any "/" or "(", a parenthetical term and any
// multi-word "/" alternative.
func aliases(name string) []string {
	out := []string{normalize(name)}
	head := name
	if i := strings.IndexAny(head, "/("); i > 0 {
		head = head[:i]
	}
	out = append(out, normalize(head))
	if open := strings.Index(name, "("); open >= 0 {
		if closeIdx := strings.Index(name[open:], ")"); closeIdx > 0 {
			out = append(out, normalize(name[open+1:open+closeIdx]))
		}
	}
	for _, part := range strings.Split(name, "/")[1:] {
		if i := strings.Index(part, "("); i >= 0 {
			part = part[:i]
		}
		if p := normalize(part); len(strings.Fields(p)) > 1 {
			out = append(out, p)
		}
	}
	return out
}

func containsPhrase(haystack, phrase string) bool {
	phrase = normalize(phrase)
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+phrase+" ")
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
		out[strings.TrimSuffix(tok, "s")] = struct{}{}
	}
	return out
}
