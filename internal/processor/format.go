package processor

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultOutputTemplate passes the recognized text through unchanged
const DefaultOutputTemplate = "{{.Output}}"

// OutputFormatter renders recognized text through the user's output template
type OutputFormatter struct {
	source string
	tmpl   *template.Template
}

type templateData struct {
	Output string
}

// NewOutputFormatter parses source; an empty source means DefaultOutputTemplate
func NewOutputFormatter(source string) (*OutputFormatter, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultOutputTemplate
	}
	tmpl, err := template.New("output").Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid output template: %w", err)
	}
	return &OutputFormatter{source: source, tmpl: tmpl}, nil
}

// Source returns the template text
func (f *OutputFormatter) Source() string { return f.source }

// Format substitutes text into the template
func (f *OutputFormatter) Format(text string) (string, error) {
	var b strings.Builder
	if err := f.tmpl.Execute(&b, templateData{Output: text}); err != nil {
		return "", fmt.Errorf("failed to render output template: %w", err)
	}
	return b.String(), nil
}
