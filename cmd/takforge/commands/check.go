package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/tak"
	"github.com/clinsight/takforge/tak/source"
	"github.com/clinsight/takforge/validate"
)

// CheckCmd re-validates an artifact file against its catalog definition.
var CheckCmd = &cobra.Command{
	Use:   "check <definition-id> <artifact-file>",
	Short: "Validate an existing artifact against its catalog definition",
	Long: `Run both validators over an artifact on disk, without touching the
oracle or the registry. Useful after hand-editing an artifact that was
parked for review.

Example:
  takforge check HR_STATE "TAKs/states/STATE_VALIDATE_HR_STATE.xml"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, artifactPath := args[0], args[1]

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		defs, err := source.NewCatalog(cfg.Paths.Catalog).Load()
		if err != nil {
			return err
		}
		var def *tak.Definition
		for i := range defs {
			if defs[i].ID == id {
				def = &defs[i]
				break
			}
		}
		if def == nil {
			return errors.Newf("definition %q not found in catalog %s", id, cfg.Paths.Catalog)
		}
		if err := def.Validate(); err != nil {
			return err
		}

		data, err := os.ReadFile(artifactPath)
		if err != nil {
			return errors.Wrapf(err, "failed to read artifact %s", artifactPath)
		}
		artifact := string(data)

		structural := validate.Structural(artifact, def.Type)
		printResult("Structural", structural)

		business := validate.Result{Status: validate.StatusPass}
		if structural.Status == validate.StatusPass {
			business = validate.Business(artifact, def)
			printResult("Business", business)
		} else {
			pterm.Info.Println("Business validation skipped until the artifact is well-formed")
		}

		switch {
		case structural.Status == validate.StatusPass && business.Status == validate.StatusPass:
			pterm.Success.Printf("%s conforms to definition %s\n", artifactPath, id)
			return nil
		case structural.Status == validate.StatusPass && business.Status == validate.StatusUncertain:
			pterm.Warning.Println("Artifact could not be fully verified; review the findings above")
			return errors.New("validation uncertain")
		default:
			return errors.New("validation failed")
		}
	},
}

func printResult(name string, result validate.Result) {
	switch result.Status {
	case validate.StatusPass:
		pterm.Success.Printf("%s validation passed\n", name)
		return
	case validate.StatusUncertain:
		pterm.Warning.Printf("%s validation uncertain\n", name)
	default:
		pterm.Error.Printf("%s validation failed\n", name)
	}
	for _, f := range result.Findings {
		marker := pterm.Error
		if f.Severity == validate.SeverityUncertain {
			marker = pterm.Warning
		}
		marker.Printf("  %s\n", f.String())
	}
}
