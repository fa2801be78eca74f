package content

import (
	"fmt"
	"strings"
	"text/template"
)

// RenderPrompt renders a caption prompt template against the step params.
// Templates use the standard text/template syntax, e.g.
// "Write a {{.content_type}} caption about {{.topic}}".
func RenderPrompt(input string, params map[string]any) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, params); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}

	return rendered.String(), nil
}
