// Package renderer renders the DCA dashboard to markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed *.md
var templates embed.FS

// RenderDashboard renders the whole dashboard: title, summary cards and the
// current page of transactions.
func RenderDashboard(d *Dashboard) string {
	partials := map[string]string{
		"dashboard_title":        "dashboard_title.md",
		"dashboard_cards":        "dashboard_cards.md",
		"dashboard_transactions": "dashboard_transactions.md",
	}
	return renderTemplate("dashboard", "dashboard.md", partials, d)
}

// RenderTransactions renders only the current page of transactions.
func RenderTransactions(d *Dashboard) string {
	return renderTemplate("transactions", "dashboard_transactions.md", nil, d)
}

// renderTemplate renders the main template after parsing its partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
