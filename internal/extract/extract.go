// Package extract models the response extractors a generated script can attach
// to a request and renders them as DevWeb SDK constructor calls.
package extract

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindJSON      Kind = "json"
	KindBoundary  Kind = "boundary"
	KindHeader    Kind = "header"
	KindCookie    Kind = "cookie"
	KindRegex     Kind = "regex"
	KindTextCheck Kind = "textcheck"
)

const (
	defaultLeft    = "<"
	defaultRight   = ">"
	defaultPattern = "(.+)"
	bodyScope      = "load.ExtractorScope.Body"
)

// Spec describes one extractor. Only the fields relevant to Kind are read.
type Spec struct {
	Kind    Kind   `json:"type"`
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Left    string `json:"left,omitempty"`
	Right   string `json:"right,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Header  string `json:"header,omitempty"`
	Cookie  string `json:"cookie,omitempty"`
	Text    string `json:"text,omitempty"`
	Scope   string `json:"scope,omitempty"`
	FailOn  bool   `json:"failOn,omitempty"`
}

// ParseKind accepts the canonical names plus the aliases used in converted
// scripts; unknown input falls back to json.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boundary":
		return KindBoundary
	case "header":
		return KindHeader
	case "cookie":
		return KindCookie
	case "regex", "regexp":
		return KindRegex
	case "textcheck", "validation":
		return KindTextCheck
	default:
		return KindJSON
	}
}

// Validation reports whether the extractor exists to fail the request rather
// than to capture a value.
func (s Spec) Validation() bool {
	return s.Kind == KindTextCheck
}

func Render(s Spec) string {
	name := quote(s.Name)
	switch s.Kind {
	case KindBoundary:
		return fmt.Sprintf("new load.BoundaryExtractor(%s, %s, %s)",
			name, quote(orDefault(s.Left, defaultLeft)), quote(orDefault(s.Right, defaultRight)))
	case KindHeader:
		header := orDefault(s.Header, s.Name)
		return fmt.Sprintf("new load.BoundaryExtractor(%s, %s, %s)", name, quote(header+": "), quote("\r\n"))
	case KindCookie:
		return fmt.Sprintf("new load.CookieExtractor(%s, %s)", name, quote(orDefault(s.Cookie, s.Name)))
	case KindRegex:
		return fmt.Sprintf("new load.RegexpExtractor(%s, %s)", name, quote(orDefault(s.Pattern, defaultPattern)))
	case KindTextCheck:
		scope := orDefault(s.Scope, bodyScope)
		return fmt.Sprintf("new load.TextCheckExtractor(%s, { text: %s, scope: %s, failOn: %t })",
			name, quote(s.Text), scope, s.FailOn)
	default:
		return fmt.Sprintf("new load.JsonPathExtractor(%s, %s)", name, quote(JSONPath(s)))
	}
}

// JSONPath returns the path a json extractor reads, defaulting to $.<name>.
func JSONPath(s Spec) string {
	p := strings.TrimSpace(s.Path)
	if p == "" || p == "$" {
		return "$." + s.Name
	}
	if !strings.HasPrefix(p, "$") {
		return "$." + strings.TrimPrefix(p, ".")
	}
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func quote(s string) string {
	return strconv.Quote(s)
}
