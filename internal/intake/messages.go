package intake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	greetingSymptoms = "Hello! I'm your cardiology intake assistant. I've noted your submission. Let's proceed with your symptoms. Please describe what you're experiencing (e.g., chest pain, shortness of breath)."
	greetingName     = "Hello! I'm your cardiology intake assistant. Before we talk about your symptoms, could you please tell me your full name?"
	greetingWelcome  = "Welcome! Please type any message to get started."
	welcomeReply     = "Hello! I'm your cardiology intake assistant. Let's proceed with your symptoms. Please describe what you're experiencing (e.g., chest pain, shortness of breath)."

	nameRetry     = `I didn't catch your name properly. Could you please tell me your full name? (Just type your name, like "John Smith")`
	emailRetry    = "Please provide a valid email address (like john@example.com). "
	emailRetryTip = "Just type your email address directly."
	emailAccepted = "Thank you! Now, could you please describe what symptoms you're experiencing? For example, chest pain, shortness of breath, palpitations, etc."

	symptomUnknown = "I couldn't find information about that symptom. Could you please describe it differently?"
	catalogDown    = "I'm having trouble looking up symptoms right now. Could you please describe what you're experiencing again in a moment?"

	completedNotice = "Your consultation has been completed and our cardiologist has been notified. If you have additional symptoms or concerns, please start a new consultation. Thank you!"

	bookedSuffix      = "\n📋 The appointment has been created in our system.\n📞 Our staff will contact you with meeting details and any additional instructions."
	manualFollowUp    = "📞 Our team will contact you shortly to schedule your appointment."
	notifiedSuffix    = "\n👨‍⚕️ The cardiologist has been notified and will review your case."
	notNotifiedSuffix = "\n👨‍⚕️ Your information has been saved and our medical team will be notified."

	declinedOffer = "No problem, we won't book a time right now."

	// ChannelErrorMessage is sent when an inbound frame cannot be processed.
	ChannelErrorMessage = "I apologize, but I encountered a technical issue. Let me try to help you continue. Could you please repeat your last message?"
	// AttachFailedMessage is sent when pre-chat patient details cannot be saved.
	AttachFailedMessage = "We couldn't attach your details, but you can continue and we'll save your info later."
)

// slotLayout renders a slot for the patient.
const slotLayout = "Monday, January 2 at 3:04 PM MST"

func nameAccepted(name string, fallback bool) string {
	if fallback {
		return fmt.Sprintf("Thank you, %s! Now, could you please provide your email address so we can send you appointment details?", name)
	}
	return fmt.Sprintf("Nice to meet you, %s! Now, could you please provide your email address so we can send you appointment details?", name)
}

func emailRetryMessage(attempts int) string {
	if attempts >= 2 {
		return emailRetry + emailRetryTip
	}
	return emailRetry
}

func symptomNotRecognized(catalog []string) string {
	if len(catalog) > 10 {
		catalog = catalog[:10]
	}
	return fmt.Sprintf("I didn't recognize that symptom. Here are some common symptoms I can help with: %s. Could you please describe your symptoms using these terms?", strings.Join(catalog, ", "))
}

func acknowledgeFallback(symptom string, hasFollowUps bool) string {
	if hasFollowUps {
		return fmt.Sprintf("Thank you for telling me about your %s. I have a few follow-up questions.", strings.ToLower(symptom))
	}
	return fmt.Sprintf("Thank you for telling me about your %s.", strings.ToLower(symptom))
}

func ultimateFallback(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "for providing your information"
	}
	return fmt.Sprintf("Thank you, %s! Your symptom details have been recorded. Our medical team will review your case and contact you soon. If this is urgent, please call our emergency line.", name)
}

func formatSlot(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(slotLayout)
}

func proposalMessage(slot time.Time, loc *time.Location) string {
	return fmt.Sprintf("\n\nBased on your symptoms, we'd like to see you soon. The earliest available appointment is %s. Would you like me to book it? (yes/no)", formatSlot(slot, loc))
}

func confirmRetry(slot time.Time, loc *time.Location) string {
	return fmt.Sprintf("Please reply \"yes\" to book %s or \"no\" to see other available times. (yes/no)", formatSlot(slot, loc))
}

func offerList(slots []time.Time, loc *time.Location) string {
	var b strings.Builder
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatSlot(s, loc))
	}
	b.WriteString("\nReply with the number of your preferred time, or type \"none\" if none of these work.")
	return b.String()
}

func offerMessage(slots []time.Time, loc *time.Location) string {
	return "\n\nHere are the next available appointment times:\n\n" + offerList(slots, loc)
}

func alternativesMessage(slots []time.Time, loc *time.Location) string {
	return "Here are other available appointment times:\n\n" + offerList(slots, loc)
}

func bookingFailedMessage(failed time.Time, remaining []time.Time, loc *time.Location) string {
	return fmt.Sprintf("I'm sorry, I couldn't reserve %s. Please pick a different time:\n\n", formatSlot(failed, loc)) + offerList(remaining, loc)
}

func selectRetry(n int) string {
	opts := make([]string, n)
	for i := range opts {
		opts[i] = strconv.Itoa(i + 1)
	}
	return fmt.Sprintf("Please reply with one of the option numbers: %s, or type \"none\".", strings.Join(opts, ", "))
}

func bookedMessage(at time.Time, loc *time.Location) string {
	return fmt.Sprintf("\n\n📅 Your appointment is scheduled for: %s", formatSlot(at, loc)) + bookedSuffix
}

func notifiedMessage(ok bool) string {
	if ok {
		return notifiedSuffix
	}
	return notNotifiedSuffix
}

var (
	affirmativeTokens = tokenSet("yes", "y", "ok", "okay", "confirm", "book", "schedule")
	negativeTokens    = tokenSet("no", "n", "later", "change", "different")
	declineTokens     = tokenSet("none", "no", "n")
)

func tokenSet(tokens ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

// firstToken lowercases the reply and returns its first word without
// surrounding punctuation.
func firstToken(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?;:\"'()#")
}

func hasToken(set map[string]struct{}, token string) bool {
	_, ok := set[token]
	return ok
}
