// Package template renders Go template strings for generated configuration
// files (virtual hosts, application config, download URLs).
package template

import (
	"bytes"
	"fmt"
	"text/template"
)

// Render executes the template string s with data as the data object.
// Unknown keys are errors: a generated config file with a hole in it is
// worse than a failed run.
func Render(name, s string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
