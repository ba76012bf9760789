package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/unkn0wn-root/devwebgen/internal/convert"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// summary renders the short result box; dir is empty for analyze runs.
func summary(res *convert.Result, dir string) string {
	r := res.Report
	params := r.Parameters.Total
	if n := len(r.Classification.Parameters); n > 0 {
		params = n
	}
	row := func(label string, value any) string {
		return labelStyle.Render(label) + fmt.Sprint(value)
	}
	lines := []string{
		titleStyle.Render(r.Collection) + " (" + r.Format + ")",
		row("requests", r.Requests.Total),
		row("correlations", r.Correlations.Total),
		row("parameters", params),
		row("auth configs", r.Authentication.TotalConfigs),
		row("custom scripts", r.CustomScripts.Total),
		row("side files", len(r.SideFiles)),
	}
	if dir != "" {
		lines = append(lines, row("output", okStyle.Render(dir)+fmt.Sprintf(" (%d files)", len(res.Written))))
	}
	var b strings.Builder
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	if n := len(res.Warnings); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d warning(s)", n)) + "\n")
		for _, w := range res.Warnings {
			b.WriteString("  - " + w.String() + "\n")
		}
	}
	return b.String()
}

func highlight(w io.Writer, script string) error {
	if err := quick.Highlight(w, script, "javascript", "terminal256", "monokai"); err != nil {
		_, err = io.WriteString(w, script)
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func renderMarkdown(w io.Writer, md string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	out, err := renderer.Render(md)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
