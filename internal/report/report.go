// Package report renders the HTML artifacts reviewers actually read: the
// per-loan consistency report and the portfolio accuracy histogram.
package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// usd formats a dollar amount with thousands separators, e.g. $9,804.17.
func usd(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// pct formats a percentage with two decimals.
func pct(v float64) string {
	return printer.Sprintf("%.2f%%", v)
}

var funcs = template.FuncMap{
	"usd": usd,
	"pct": pct,
}

func render(tmpl *template.Template, path string, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return eris.Wrapf(err, "report: render %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: mkdir for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
