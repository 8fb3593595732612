package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wolfman30/cardio-intake/cmd/mainconfig"
	"github.com/wolfman30/cardio-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// catalogStore is the slice of the patient repository the seeder needs.
type catalogStore interface {
	UpsertSymptom(ctx context.Context, symptom patients.Symptom) (*patients.Symptom, error)
	ListSymptomCatalog(ctx context.Context) ([]patients.Symptom, error)
}

// openStore connects to DATABASE_URL. Tests replace it.
var openStore = func(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (catalogStore, func(), error) {
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		return nil, nil, fmt.Errorf("seed: DATABASE_URL is unset or unreachable")
	}
	return patients.NewPostgresRepository(pool), pool.Close, nil
}

func main() {
	mainconfig.LoadEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Manage the cardiology symptom catalog",
		SilenceUsage: true,
	}
	root.AddCommand(newSymptomsCmd(), newListCmd())
	return root
}

func newSymptomsCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "symptoms",
		Short: "Load symptoms and follow-up questions from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("seed: read %s: %w", file, err)
			}
			catalog, err := patients.ParseCatalog(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				printCatalog(out, catalog)
				return nil
			}

			cfg := appconfig.Load()
			logger := logging.New(cfg.LogLevel)
			store, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			for _, s := range catalog {
				if _, err := store.UpsertSymptom(cmd.Context(), s); err != nil {
					return fmt.Errorf("seed: upsert %q: %w", s.Name, err)
				}
			}
			logger.Info("symptom catalog seeded", "file", file, "symptoms", len(catalog))
			_, _ = fmt.Fprintf(out, "Seeded %d symptoms\n", len(catalog))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "data/symptoms.yaml", "catalog file (YAML or JSON)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print without writing")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored symptom catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appconfig.Load()
			store, closeStore, err := openStore(cmd.Context(), cfg, logging.New(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer closeStore()

			catalog, err := store.ListSymptomCatalog(cmd.Context())
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), catalog)
			return nil
		},
	}
}

func printCatalog(w io.Writer, catalog []patients.Symptom) {
	sorted := append([]patients.Symptom(nil), catalog...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, s := range sorted {
		_, _ = fmt.Fprintf(w, "%s (%d questions)\n", s.Name, len(s.FlattenQuestions()))
	}
	_, _ = fmt.Fprintf(w, "%d symptoms\n", len(sorted))
}
