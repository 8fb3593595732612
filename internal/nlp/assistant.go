package nlp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/cardio-intake/pkg/logging"
)

const systemPrompt = "You are a courteous intake assistant for a cardiology clinic. " +
	"You never give medical advice or a diagnosis. Reply with only the requested text."

// LLMAssistant phrases replies with a language model and falls back to the
// deterministic rules for extraction and matching.
type LLMAssistant struct {
	client LLMClient
	model  string
	rules  *RuleAssistant
	logger *logging.Logger
}

func NewLLMAssistant(client LLMClient, model string, logger *logging.Logger) *LLMAssistant {
	if client == nil {
		panic("nlp: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMAssistant{client: client, model: model, rules: NewRuleAssistant(), logger: logger}
}

func (a *LLMAssistant) complete(ctx context.Context, prompt string, maxTokens int32) (string, error) {
	resp, err := a.client.Complete(ctx, LLMRequest{
		Model:       a.model,
		System:      []string{systemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	text := strings.Trim(strings.TrimSpace(resp.Text), `"`)
	if text == "" {
		return "", errors.New("nlp: empty completion")
	}
	return text, nil
}

// ExtractField tries the regex rules first and only asks the model when they fail.
func (a *LLMAssistant) ExtractField(ctx context.Context, text string, field Field) (string, error) {
	value, err := a.rules.ExtractField(ctx, text, field)
	if err != nil || value != Invalid {
		return value, err
	}
	var prompt string
	switch field {
	case FieldName:
		prompt = fmt.Sprintf("Extract just the person's name from: %q. Return only the name or %q if no name found.", text, Invalid)
	case FieldEmail:
		prompt = fmt.Sprintf("Extract just the email address from: %q. Return only the email or %q if no email found.", text, Invalid)
	}
	out, err := a.complete(ctx, prompt, 40)
	if err != nil {
		return Invalid, err
	}
	if strings.EqualFold(out, Invalid) {
		return Invalid, nil
	}
	return out, nil
}

func (a *LLMAssistant) IsValidName(name string) bool {
	return a.rules.IsValidName(name)
}

func (a *LLMAssistant) IsValidEmail(email string) bool {
	return a.rules.IsValidEmail(email)
}

// MatchSymptom accepts a model answer only if it names a catalog entry exactly.
func (a *LLMAssistant) MatchSymptom(ctx context.Context, text string, catalog []string) (string, error) {
	if name := matchSymptomRules(text, catalog); name != NoMatch {
		return name, nil
	}
	if len(catalog) == 0 {
		return NoMatch, nil
	}
	prompt := fmt.Sprintf(`A patient has sent this message: %q

Available symptoms in our database: %s

Identify if the message mentions any of the available symptoms. Respond with ONLY the exact symptom name from the list if found, or %q if none match. Be flexible with synonyms and lay descriptions.`,
		text, strings.Join(catalog, ", "), NoMatch)
	out, err := a.complete(ctx, prompt, 40)
	if err != nil {
		return NoMatch, err
	}
	for _, name := range catalog {
		if strings.EqualFold(strings.TrimSpace(out), name) {
			return name, nil
		}
	}
	if !strings.EqualFold(out, NoMatch) {
		a.logger.Debug("llm symptom match outside catalog", "answer", out)
	}
	return NoMatch, nil
}

func (a *LLMAssistant) RephraseQuestion(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`Make this medical intake question sound conversational and empathetic while keeping the same medical content.
Original question: %q
Single sentence, no extra details or examples. If it is already concise, return it unchanged. Return only the question.`, question)
	return a.complete(ctx, prompt, 80)
}

func (a *LLMAssistant) TransitionPhrase(ctx context.Context, index, total int) (string, error) {
	prompt := fmt.Sprintf(`Write a soft transitional phrase (maximum 5 words) for moving to the next intake question.
Current progress: question %d of %d. Avoid words like "great", "amazing" or "wonderful". Examples: Alright, moving on. Let's move on.`, index, total)
	return a.complete(ctx, prompt, 20)
}

func (a *LLMAssistant) AcknowledgeSymptom(ctx context.Context, symptom string, hasFollowUps bool) (string, error) {
	next := "Thank them for the information."
	if hasFollowUps {
		next = "Mention that you need to ask a few questions to better understand their situation."
	}
	prompt := fmt.Sprintf(`A patient has mentioned they have %q. Write a brief, empathetic acknowledgment (1-2 sentences) that shows understanding of their concern. %s Stay professional and reassuring.`, symptom, next)
	return a.complete(ctx, prompt, 120)
}

func (a *LLMAssistant) CompletionMessage(ctx context.Context, patientName string) (string, error) {
	who := "the patient"
	if strings.TrimSpace(patientName) != "" {
		who = fmt.Sprintf("a patient named %q", patientName)
	}
	prompt := fmt.Sprintf(`Write a 2-3 sentence message for %s who has just finished describing their symptoms. Thank them for the detail and say their information has been sent to the cardiologist. Be reassuring and professional.`, who)
	return a.complete(ctx, prompt, 160)
}

func (a *LLMAssistant) GenericErrorMessage(ctx context.Context) (string, error) {
	return a.complete(ctx, "Write a polite 1-2 sentence apology asking the patient to try again or rephrase their last message.", 60)
}
