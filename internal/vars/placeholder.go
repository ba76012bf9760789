package vars

import (
	"regexp"
	"strings"
)

// Style is the delimiter family a reference was written in.
type Style int

const (
	StyleMustache Style = iota // {{name}}
	StyleDollar                // ${name}
)

// BuiltinSigil prefixes names the source tool generates at runtime.
const BuiltinSigil = "$"

var (
	refPattern         = regexp.MustCompile(`\{\{([^{}]+)\}\}|\$\{([^{}]+)\}`)
	placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}|\$\{(.*?)\}|\{(.*?)\}|<(.*?)>`)
)

type Ref struct {
	Name  string
	Start int
	End   int
	Style Style
}

// Find returns the {{x}} and ${x} references in s in order of appearance.
func Find(s string) []Ref {
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Ref, 0, len(matches))
	for _, m := range matches {
		ref := Ref{Start: m[0], End: m[1]}
		switch {
		case m[2] >= 0:
			ref.Name = strings.TrimSpace(s[m[2]:m[3]])
			ref.Style = StyleMustache
		case m[4] >= 0:
			ref.Name = strings.TrimSpace(s[m[4]:m[5]])
			ref.Style = StyleDollar
		}
		if ref.Name == "" {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// Names lists referenced names once each, first appearance first.
func Names(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, ref := range Find(s) {
		if _, ok := seen[ref.Name]; ok {
			continue
		}
		seen[ref.Name] = struct{}{}
		out = append(out, ref.Name)
	}
	return out
}

// IsPlaceholder reports whether s contains any of {{x}}, ${x}, {x} or <x>.
func IsPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

// FirstName returns the name inside the first placeholder of any shape.
func FirstName(s string) (string, bool) {
	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if name := strings.TrimSpace(group); name != "" {
			return name, true
		}
	}
	return "", false
}

func IsBuiltin(name string) bool {
	return strings.HasPrefix(strings.TrimSpace(name), BuiltinSigil)
}

// Whole reports whether s is exactly one reference with nothing around it.
func Whole(s string) (Ref, bool) {
	refs := Find(s)
	if len(refs) != 1 {
		return Ref{}, false
	}
	if refs[0].Start != 0 || refs[0].End != len(s) {
		return Ref{}, false
	}
	return refs[0], true
}
