package scripts

import (
	"regexp"
	"strings"
)

type RenderOptions struct {
	// Indent prefixes every emitted line.
	Indent string
	// Response replaces the bare identifier response in test code.
	Response string
	// Ref renders a variable read; nil reads load.global.
	Ref func(name string) string
	// Target renders the left-hand side of a variable write; nil uses Global.
	Target func(name string) string
	// Extracted reports names already assigned from an extractor of the
	// same request.
	Extracted func(name string) bool
}

// Render emits the converted statements inside a block so declarations of
// different requests never collide. Warnings cover response reads that no
// extractor provides.
func (c *Converted) Render(opts RenderOptions) (string, []string) {
	if c == nil || len(c.Lines) == 0 {
		return "", nil
	}
	var (
		b        strings.Builder
		warnings []string
	)
	title := "// Pre-request Script"
	if c.Kind == KindTest {
		title = "// Post-response Script"
	}
	inner := opts.Indent + "    "
	b.WriteString("\n" + opts.Indent + title + "\n")
	if c.Unsupported {
		b.WriteString(opts.Indent + "// WARNING: Some code requires manual conversion\n")
	}
	b.WriteString(opts.Indent + "{\n")
	for _, line := range c.Lines {
		code := line.Code
		switch line.kind {
		case lineSet:
			if line.FromResponse {
				if opts.Extracted != nil && opts.Extracted(line.Set) {
					code = "// " + line.Set + " is extracted from the response: " + line.Source
				} else {
					code = "// TODO: Extract " + line.Set + " from the response - " + line.Source
					warnings = append(warnings, "Value of "+line.Set+" is read from the response and needs an extractor")
				}
				break
			}
			target := opts.Target
			if target == nil {
				target = Global
			}
			code = target(line.Set) + " = " + rewriteGets(line.Expr, opts.Ref) + ";"
		case lineGet:
			if opts.Ref != nil {
				code = rewriteGets(line.Source, opts.Ref)
			}
		}
		if c.Kind == KindTest && opts.Response != "" && line.kind != lineTodo && !line.FromResponse {
			code = replaceUnquoted(code, responseWordRe, opts.Response)
		}
		for _, l := range strings.Split(code, "\n") {
			b.WriteString(inner + l + "\n")
		}
	}
	b.WriteString(opts.Indent + "}\n")
	return b.String(), warnings
}

// replaceUnquoted replaces matches of re outside string and template
// literals.
func replaceUnquoted(code string, re *regexp.Regexp, repl string) string {
	var (
		b     strings.Builder
		quote byte
		start int
	)
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			b.WriteString(code[start : i+1])
			start = i + 1
			quote = 0
		case quote == 0 && (c == '"' || c == '\'' || c == '`'):
			b.WriteString(re.ReplaceAllString(code[start:i], repl))
			start = i
			quote = c
		}
	}
	if quote != 0 {
		b.WriteString(code[start:])
	} else {
		b.WriteString(re.ReplaceAllString(code[start:], repl))
	}
	return b.String()
}
