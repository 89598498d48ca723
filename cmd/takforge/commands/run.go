package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/clinsight/takforge/engine"
	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/logger"
	"github.com/clinsight/takforge/oracle/openrouter"
	"github.com/clinsight/takforge/registry"
	"github.com/clinsight/takforge/tak"
	"github.com/clinsight/takforge/tak/source"
	"github.com/clinsight/takforge/tak/template"
)

// RunCmd processes the definition catalog into artifacts.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the definition catalog into validated artifacts",
	Long: `Load the definition catalog, then drive every definition through the
generate-validate-retry loop until it reaches a terminal disposition.

Definitions the registry already resolved as valid or needs_review are
skipped unless --force is given. The run aborts before any oracle call
if the catalog fails validation or a required template is missing.

Examples:
  takforge run                 # Full catalog
  takforge run --test          # One definition, for cheap smoke checks
  takforge run --force         # Regenerate resolved definitions too
  takforge run --workers 4     # Four definitions in flight`,
	RunE: func(cmd *cobra.Command, args []string) error {
		testMode, _ := cmd.Flags().GetBool("test")
		force, _ := cmd.Flags().GetBool("force")
		workersFlag, _ := cmd.Flags().GetInt("workers")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		defs, err := source.NewCatalog(cfg.Paths.Catalog).Load()
		if err != nil {
			return err
		}

		templates, err := template.Load(cfg.Paths.Templates)
		if err != nil {
			return err
		}
		types := make([]tak.ConceptType, 0, len(defs))
		for _, def := range defs {
			if def.Type.Supported() {
				types = append(types, def.Type)
			}
		}
		if err := templates.Require(types); err != nil {
			return err
		}

		if cfg.Engine.WatchTemplates {
			watcher, err := template.NewWatcher(templates, logger.Named("templates"))
			if err != nil {
				return err
			}
			watcher.Start()
			defer watcher.Stop()
		}

		database, err := openDatabase(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		workers := cfg.Engine.Workers
		if workersFlag > 0 {
			workers = workersFlag
		}

		eng := engine.New(
			openrouter.NewClient(openrouter.Config{
				APIKey:            cfg.OpenRouter.APIKey,
				BaseURL:           cfg.OpenRouter.BaseURL,
				Model:             cfg.OpenRouter.Model,
				Temperature:       cfg.OpenRouter.Temperature,
				MaxTokens:         cfg.OpenRouter.MaxTokens,
				Timeout:           time.Duration(cfg.Engine.OracleTimeoutMS) * time.Millisecond,
				RequestsPerMinute: cfg.OpenRouter.RequestsPerMinute,
				Logger:            logger.Named("oracle"),
			}),
			registry.New(database),
			templates,
			engine.Options{
				MaxAttempts: cfg.Engine.MaxAttempts,
				OutputDir:   cfg.Paths.Output,
				Workers:     workers,
				TestMode:    testMode,
				Force:       force,
			},
			logger.Named("engine"),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if testMode {
			pterm.Warning.Println("Test mode: processing a single definition")
		}

		summary, err := eng.Run(ctx, defs)
		if err != nil {
			return err
		}

		printSummary(summary)
		return nil
	},
}

func printSummary(summary *engine.Summary) {
	pterm.Println()
	pterm.DefaultSection.Printf("Run %s", summary.RunID)

	rows := pterm.TableData{{"Definition", "Disposition", "Attempts", "Tokens", "Artifact"}}
	for _, o := range summary.Outcomes {
		disposition := string(o.Disposition)
		if o.Skipped {
			disposition += " (skipped)"
		}
		rows = append(rows, []string{
			o.ID,
			disposition,
			pterm.Sprintf("%d", o.AttemptsUsed),
			pterm.Sprintf("%d", o.TokenCost),
			o.OutputPath,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.Println()
	pterm.Info.Printf("valid %d  invalid %d  needs_review %d  skipped %d  tokens %d  elapsed %v\n",
		summary.Valid, summary.Invalid, summary.NeedsReview, summary.Skipped,
		summary.TokenCost, summary.Duration.Round(time.Millisecond))
}

func init() {
	RunCmd.Flags().Bool("test", false, "Process only the first catalog definition")
	RunCmd.Flags().Bool("force", false, "Regenerate definitions the registry already resolved")
	RunCmd.Flags().Int("workers", 0, "Concurrent definitions in flight (default from config)")
}
