package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/cardio-intake/internal/nlp"
)

func TestRunScriptWithRules(t *testing.T) {
	var buf bytes.Buffer
	failures := runScript(context.Background(), nlp.NewRuleAssistant(), &buf)

	assert.Equal(t, 0, failures)
	assert.Contains(t, buf.String(), "Palpitations")
	assert.NotContains(t, buf.String(), "❌")
}
