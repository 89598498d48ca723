package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/registry"
)

// StatusCmd shows the provenance registry.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry dispositions and token spend",
	Long: `List every definition the engine has processed, with its disposition,
attempt count, accumulated token cost, and artifact location.

Example:
  takforge status
  takforge status --disposition needs_review`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("disposition")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		database, err := openDatabase(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		reg := registry.New(database)
		ctx := context.Background()

		entries, err := reg.List(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			pterm.Info.Println("Registry is empty; run `takforge run` first")
			return nil
		}

		rows := pterm.TableData{{"Definition", "Disposition", "Attempts", "Tokens", "Last run", "Artifact"}}
		totalTokens := 0
		shown := 0
		for _, e := range entries {
			totalTokens += e.TotalTokenCost
			if filter != "" && string(e.Disposition) != filter {
				continue
			}
			shown++
			rows = append(rows, []string{
				e.ID,
				string(e.Disposition),
				pterm.Sprintf("%d", e.AttemptsUsed),
				pterm.Sprintf("%d", e.TotalTokenCost),
				e.LastRunAt.Local().Format("2006-01-02 15:04"),
				e.OutputPath,
			})
		}

		if shown == 0 {
			pterm.Info.Printf("No registry entries with disposition %q\n", filter)
			return nil
		}
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

		counts, err := reg.CountByDisposition(ctx)
		if err != nil {
			return err
		}
		pterm.Println()
		pterm.Info.Printf("valid %d  invalid %d  needs_review %d  pending %d  total tokens %d\n",
			counts[registry.DispositionValid],
			counts[registry.DispositionInvalid],
			counts[registry.DispositionNeedsReview],
			counts[registry.DispositionPending],
			totalTokens)
		return nil
	},
}

func init() {
	StatusCmd.Flags().String("disposition", "", "Only show entries with this disposition")
}
