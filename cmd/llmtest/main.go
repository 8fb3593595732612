package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/cardio-intake/cmd/mainconfig"
	"github.com/wolfman30/cardio-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// llmtest exercises the configured NLP collaborator end to end with a short
// intake script and prints what each call returned.
func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var awsCfg *aws.Config
	if cfg.LLMProvider == "bedrock" || cfg.BedrockModelID != "" {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			fmt.Printf("❌ aws config: %v\n", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	assistant, closeAssistant, err := bootstrap.BuildAssistant(ctx, cfg, awsCfg, logger)
	if err != nil {
		fmt.Printf("❌ assistant: %v\n", err)
		os.Exit(1)
	}
	defer closeAssistant()

	fmt.Printf("NLP provider check (provider=%s)\n\n", cfg.LLMProvider)
	if failures := runScript(ctx, assistant, os.Stdout); failures > 0 {
		os.Exit(1)
	}
}

func runScript(ctx context.Context, a intake.Assistant, w io.Writer) int {
	catalog := []string{"Chest Pain / Discomfort", "Shortness of Breath (Dyspnea)", "Palpitations"}
	failures := 0
	step := func(name string, fn func() (string, error)) {
		start := time.Now()
		out, err := fn()
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failures++
			_, _ = fmt.Fprintf(w, "❌ %-20s %v (%v)\n", name, err, elapsed)
			return
		}
		_, _ = fmt.Fprintf(w, "✅ %-20s %q (%v)\n", name, out, elapsed)
	}

	step("match symptom", func() (string, error) {
		return a.MatchSymptom(ctx, "my heart is racing", catalog)
	})
	step("rephrase question", func() (string, error) {
		return a.RephraseQuestion(ctx, "How long have you had it?")
	})
	step("acknowledge", func() (string, error) {
		return a.AcknowledgeSymptom(ctx, "Palpitations", true)
	})
	step("completion", func() (string, error) {
		return a.CompletionMessage(ctx, "Jane")
	})
	return failures
}
