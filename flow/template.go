package flow

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/quarrylabs/quarry/core"
)

// RenderPrompt renders a prompt template against the given variables.
// Every variable the template references must be present in vars;
// a missing variable fails with core.ErrMissingParameters rather than
// rendering a hole into the prompt.
func RenderPrompt(name, text string, vars map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: prompt %q: %v", core.ErrConfigValue, name, err)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("%w: prompt %q: %v", core.ErrMissingParameters, name, err)
	}
	return out.String(), nil
}
