// Package scripts converts Postman and Bruno request scripts into DevWeb code
// line by line. Anything it cannot map is kept as a TODO comment and reported.
package scripts

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/extract"
)

type Kind string

const (
	KindPreRequest Kind = "pre-request"
	KindTest       Kind = "test"
)

// ValidationName names the text-check extractor added for status assertions.
const ValidationName = "validationCheck"

type lineKind int

const (
	lineCode lineKind = iota
	lineSet
	lineGet
	lineTodo
)

// Line is one converted statement. Source is the trimmed input line.
type Line struct {
	Source string
	Code   string
	Set    string
	Expr   string
	// FromResponse marks a set whose value is read from the response.
	FromResponse bool
	kind         lineKind
}

type Converted struct {
	Kind        Kind
	Lines       []Line
	Variables   []string
	Assertions  []string
	Warnings    []string
	Unsupported bool
}

var (
	bruSetRe = regexp.MustCompile(`bru\.(?:setVar|setEnvVar)\s*\(\s*["']([^"']+)["']\s*,\s*(.+)\s*\)`)
	pmSetRe  = regexp.MustCompile(`pm\.(?:environment|collectionVariables|globals|variables)\.set\s*\(\s*["']([^"']+)["']\s*,\s*(.+)\s*\)`)
	bruGetRe = regexp.MustCompile(`bru\.(?:getVar|getEnvVar)\s*\(\s*["']([^"']+)["']\s*\)`)
	pmGetRe  = regexp.MustCompile(`pm\.(?:environment|collectionVariables|globals|variables)\.get\s*\(\s*["']([^"']+)["']\s*\)`)

	testCallRe   = regexp.MustCompile(`\btest\s*\(`)
	testNameRe   = regexp.MustCompile(`\btest\s*\(\s*["']([^"']+)["']`)
	statusEqRe   = regexp.MustCompile(`\.to\.(?:equal|eql)\s*\(\s*(\d+)\s*\)`)
	haveStatusRe = regexp.MustCompile(`\.to\.have\.status\s*\(\s*(\d+)\s*\)`)
	consoleRe    = regexp.MustCompile(`console\.log\((.*)\)`)
	declRe       = regexp.MustCompile(`^(?:const|let|var)\s+\w+\s*=`)
	declKwRe     = regexp.MustCompile(`^(?:const|let|var)\b`)
	closerRe     = regexp.MustCompile(`^[\]})]+[;,]?$`)

	responseDataRe = regexp.MustCompile(`jsonData|responseBody|res\.body|res\.get|res\(|pm\.response|response\.json|response\.body`)
	apiRe          = regexp.MustCompile(`\b(?:pm|bru|req|postman)\.`)
	responseWordRe = regexp.MustCompile(`\bresponse\b`)
	identRe        = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// Global renders the load.global member for name, bracketed when name is
// not an identifier.
func Global(name string) string {
	if identRe.MatchString(name) {
		return "load.global." + name
	}
	return "load.global[" + strconv.Quote(name) + "]"
}

// Convert maps script to DevWeb statements. It returns nil for blank input.
func Convert(script string, kind Kind) *Converted {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	c := &Converted{Kind: kind}
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") || closerRe.MatchString(line) {
			continue
		}
		c.convertLine(line)
	}
	return c
}

func (c *Converted) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func (c *Converted) todo(line, code, warning string) {
	c.Lines = append(c.Lines, Line{Source: line, Code: code, kind: lineTodo})
	c.warn(warning)
	c.Unsupported = true
}

func (c *Converted) code(line, code string) {
	if apiRe.MatchString(code) {
		c.manual(line)
		return
	}
	c.Lines = append(c.Lines, Line{Source: line, Code: code, kind: lineCode})
}

func (c *Converted) manual(line string) {
	c.todo(line, "// TODO: Manual conversion needed - "+line, "Unsupported code pattern: "+clip(line, 50)+"...")
}

func (c *Converted) convertLine(line string) {
	test := c.Kind == KindTest
	switch {
	case containsAny(line, "bru.setVar", "bru.setEnvVar"):
		c.set(line, bruSetRe)
	case containsAny(line, "bru.getVar", "bru.getEnvVar"):
		c.get(line)
	case containsAny(line, "pm.environment.set", "pm.collectionVariables.set", "pm.globals.set", "pm.variables.set"):
		c.set(line, pmSetRe)
	case containsAny(line, "pm.environment.get", "pm.collectionVariables.get", "pm.globals.get", "pm.variables.get"):
		c.get(line)
	case test && responseDataRe.MatchString(line) && !isStatusAssertion(line):
		c.todo(line, "// TODO: Convert response access - "+line,
			"Response body access requires manual conversion with proper response variable")
	case test && (testCallRe.MatchString(line) || containsAny(line, "expect(", "pm.response.to")):
		c.assertion(line)
	case strings.Contains(line, "Date.now()") || strings.Contains(line, "new Date()"):
		c.code(line, line)
	case strings.Contains(line, "Math.random()"):
		c.code(line, declKwRe.ReplaceAllString(line, "const"))
	case strings.Contains(line, "CryptoJS"):
		c.todo(line, "// TODO: CryptoJS not available in DevWeb - use Node.js crypto module\n// "+line,
			"CryptoJS not supported - convert to Node.js crypto module")
	case strings.Contains(line, "crypto"):
		c.code(line, line)
	case strings.Contains(line, "console.log"):
		c.code(line, consoleRe.ReplaceAllString(line, "load.log($1)"))
	case strings.Contains(line, "JSON.parse") || strings.Contains(line, "JSON.stringify"):
		c.code(line, line)
	case declRe.MatchString(line) && !opensBlock(line):
		c.code(line, line)
	default:
		c.manual(line)
	}
}

func opensBlock(line string) bool {
	line = strings.TrimSuffix(line, ";")
	return strings.HasSuffix(line, "{") || strings.HasSuffix(line, "(") || strings.HasSuffix(line, "[")
}

func (c *Converted) set(line string, re *regexp.Regexp) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		c.manual(line)
		return
	}
	name := m[1]
	expr := strings.TrimSuffix(strings.TrimSpace(m[2]), ";")
	c.Variables = append(c.Variables, name)
	fromResponse := responseDataRe.MatchString(expr)
	if !fromResponse && apiRe.MatchString(rewriteGets(expr, nil)) {
		c.manual(line)
		return
	}
	c.Lines = append(c.Lines, Line{
		Source:       line,
		Code:         Global(name) + " = " + rewriteGets(expr, nil) + ";",
		Set:          name,
		Expr:         expr,
		FromResponse: fromResponse,
		kind:         lineSet,
	})
}

func (c *Converted) get(line string) {
	code := rewriteGets(line, nil)
	if apiRe.MatchString(code) {
		c.manual(line)
		return
	}
	c.Lines = append(c.Lines, Line{Source: line, Code: code, kind: lineGet})
}

func rewriteGets(line string, ref func(string) string) string {
	if ref == nil {
		ref = Global
	}
	repl := func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllStringFunc(s, func(call string) string {
			return ref(re.FindStringSubmatch(call)[1])
		})
	}
	return repl(pmGetRe, repl(bruGetRe, line))
}

func isStatusAssertion(line string) bool {
	_, ok := statusCode(line)
	return ok
}

func statusCode(line string) (string, bool) {
	if m := haveStatusRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if strings.Contains(line, "pm.response.code") || strings.Contains(line, "res.status") ||
		strings.Contains(line, "res.getStatus()") || strings.Contains(line, "response.status") {
		if m := statusEqRe.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func (c *Converted) assertion(line string) {
	if code, ok := statusCode(line); ok {
		c.Assertions = append(c.Assertions, "status equals "+code)
		c.Lines = append(c.Lines, Line{
			Source: line,
			Code: "if (response.status !== " + code + ") {\n" +
				"    load.log(\"Expected status " + code + ", got \" + response.status, load.LogLevel.error);\n" +
				"}",
			kind: lineCode,
		})
		return
	}
	if m := testNameRe.FindStringSubmatch(line); m != nil {
		c.Assertions = append(c.Assertions, m[1])
		c.Lines = append(c.Lines, Line{Source: line, Code: "// Assertion: " + m[1], kind: lineCode})
		c.warn("pm.test assertions need manual conversion to extractors and conditionals")
		return
	}
	c.todo(line, "// TODO: Convert assertion - "+line, "Complex assertion needs manual conversion: "+clip(line, 50))
}

// Validation returns the text check extractor implied by status assertions.
func (c *Converted) Validation() (extract.Spec, bool) {
	if c == nil {
		return extract.Spec{}, false
	}
	for _, a := range c.Assertions {
		lower := strings.ToLower(a)
		if strings.Contains(lower, "status") || strings.Contains(lower, "code") {
			return extract.Spec{
				Kind:   extract.KindTextCheck,
				Name:   ValidationName,
				Text:   "success",
				Scope:  "load.ExtractorScope.Body",
				FailOn: false,
			}, true
		}
	}
	return extract.Spec{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
