package validate

import (
	"fmt"
	"strings"
)

// Compose renders the two validators' findings into a correction directive
// for the next generation attempt. Structural defects are listed before
// business defects so the oracle fixes document shape before field values.
// The empty string means there is nothing to correct.
func Compose(structural, business Result) string {
	structuralDefects := structural.Violations()
	businessDefects := business.Violations()
	unresolved := business.Uncertain()

	if len(structuralDefects) == 0 && len(businessDefects) == 0 && len(unresolved) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The previous artifact was rejected. Correct every defect listed below and return the complete corrected XML document, nothing else.\n")

	writeSection(&b, "Structural defects", structuralDefects)
	writeSection(&b, "Business defects", businessDefects)
	writeSection(&b, "Ambiguous values (state each exactly once, unambiguously)", unresolved)

	return b.String()
}

func writeSection(b *strings.Builder, title string, findings []Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, f := range findings {
		fmt.Fprintf(b, "%d. %s\n", i+1, f.String())
	}
}
