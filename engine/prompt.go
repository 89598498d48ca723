package engine

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/tak"
)

// systemPrompt is identical on every attempt; correction pressure lives in
// the per-attempt feedback, not here.
const systemPrompt = `You translate clinical temporal-abstraction concept definitions into XML artifacts.
Follow the provided template structure exactly. Return only the XML document, with no commentary and no markdown fences.`

// buildPrompt assembles one attempt's user prompt: the per-type template,
// the definition rendered as YAML, and, after a rejection, the previous
// artifact plus the correction directive.
func buildPrompt(tmpl string, def *tak.Definition, previousArtifact, feedback string) (string, error) {
	rendered, err := yaml.Marshal(def)
	if err != nil {
		return "", errors.Wrapf(err, "render definition %s", def.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate the %s artifact for the following concept definition.\n\n", def.Type)

	b.WriteString("Template:\n")
	b.WriteString(strings.TrimSpace(tmpl))
	b.WriteString("\n\nDefinition:\n")
	b.Write(rendered)

	if feedback != "" {
		b.WriteString("\nYour previous attempt:\n")
		b.WriteString(strings.TrimSpace(previousArtifact))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(feedback))
		b.WriteString("\n")
	}

	return b.String(), nil
}
