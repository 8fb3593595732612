package intake

import "github.com/wolfman30/cardio-intake/internal/nlp"

// RetryPolicy bounds how many times a field is re-asked before the raw
// message is salvaged with Fallback.
type RetryPolicy struct {
	MaxAttempts int
	Fallback    func(raw string) (string, bool)
}

// Exhausted reports whether attempts has reached the limit.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Recover applies Fallback once the policy is exhausted.
func (p RetryPolicy) Recover(attempts int, raw string) (string, bool) {
	if !p.Exhausted(attempts) || p.Fallback == nil {
		return "", false
	}
	return p.Fallback(raw)
}

// NamePolicy echoes the letters of the raw message after three misses.
var NamePolicy = RetryPolicy{
	MaxAttempts: 3,
	Fallback: func(raw string) (string, bool) {
		name := nlp.CleanNameFallback(raw)
		return name, name != ""
	},
}

// EmailPolicy pulls the first email-shaped substring after three misses.
var EmailPolicy = RetryPolicy{
	MaxAttempts: 3,
	Fallback: func(raw string) (string, bool) {
		email := nlp.FindEmail(raw)
		return email, email != ""
	},
}
