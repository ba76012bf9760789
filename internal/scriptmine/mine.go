// Package scriptmine finds variable reads and writes in pre-request and test
// scripts by pattern. It does not parse JavaScript; results are best effort.
package scriptmine

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/devwebgen/internal/extract"
)

// Value types inferred from names and source expressions.
const (
	TypeToken     = "token"
	TypeSessionID = "sessionId"
	TypeAuth      = "auth"
	TypeID        = "id"
	TypeCSRF      = "csrf"
	TypeNonce     = "nonce"
	TypeTimestamp = "timestamp"
	TypeDynamic   = "dynamic"
	TypeHeader    = "header"
)

var (
	// accessors whose dotted suffix is read as a JSON path
	jsonAccessRe = regexp.MustCompile(`(?:jsonData|responseBody|res\.body|response\.body|response\.json\(\)|JSON\.parse\(responseBody\))((?:\.|\[).+)`)
	bracketKeyRe = regexp.MustCompile(`\[["']([^"']+)["']\]`)
	jsonSourceRe = regexp.MustCompile(`jsonData|response\.body|response\.json|res\.body|JSON\.parse`)
	headerSrcRe  = regexp.MustCompile(`header|getResponseHeader`)
	cookieSrcRe  = regexp.MustCompile(`cookie`)
)

type Write struct {
	Name      string
	Source    string
	Rule      string
	Produces  bool
	Extractor extract.Kind
	// Path is a JSON path for json extractors, or the header or cookie
	// name when one can be read from the source.
	Path string
}

type Result struct {
	Writes []Write
	Reads  []string
}

// WrittenNames returns written names once each in order.
func (r Result) WrittenNames() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range r.Writes {
		if _, ok := seen[w.Name]; ok {
			continue
		}
		seen[w.Name] = struct{}{}
		out = append(out, w.Name)
	}
	return out
}

// Producing filters Writes down to the correlation-producing idioms.
func (r Result) Producing() []Write {
	var out []Write
	for _, w := range r.Writes {
		if w.Produces {
			out = append(out, w)
		}
	}
	return out
}

// Mine scans one script. Writes are reported per rule row, in match order;
// reads are de-duplicated.
func Mine(script string) Result {
	var res Result
	if strings.TrimSpace(script) == "" {
		return res
	}
	seenRead := make(map[string]struct{})
	for _, rule := range Rules {
		for _, m := range rule.Pattern.FindAllStringSubmatch(script, -1) {
			name := strings.TrimSpace(m[rule.NameGroup])
			if name == "" {
				continue
			}
			if rule.Op == OpRead {
				if _, ok := seenRead[name]; ok {
					continue
				}
				seenRead[name] = struct{}{}
				res.Reads = append(res.Reads, name)
				continue
			}
			source := strings.TrimSpace(m[rule.ExprGroup])
			kind := ExtractorFor(source)
			res.Writes = append(res.Writes, Write{
				Name:      name,
				Source:    source,
				Rule:      rule.Name,
				Produces:  rule.Produces,
				Extractor: kind,
				Path:      pathFor(kind, source),
			})
		}
	}
	return res
}

// MineAll mines scripts concurrently; results keep the input order.
func MineAll(ctx context.Context, scripts []string) ([]Result, error) {
	out := make([]Result, len(scripts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, script := range scripts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Mine(script)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractorFor picks an extractor from substrings of the right-hand side.
func ExtractorFor(source string) extract.Kind {
	switch {
	case jsonSourceRe.MatchString(source):
		return extract.KindJSON
	case headerSrcRe.MatchString(source):
		return extract.KindHeader
	case cookieSrcRe.MatchString(source):
		return extract.KindCookie
	default:
		return extract.KindJSON
	}
}

// JSONPath derives $.a.b from a dotted accessor suffix. It returns "$" when
// the source has no recognised accessor.
func JSONPath(source string) string {
	m := jsonAccessRe.FindStringSubmatch(source)
	if m == nil {
		return "$"
	}
	path := bracketKeyRe.ReplaceAllString(m[1], ".$1")
	path = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(path), ";"))
	return "$" + path
}

var quotedArgRe = regexp.MustCompile(`\(\s*["']([^"']+)["']`)

func pathFor(kind extract.Kind, source string) string {
	switch kind {
	case extract.KindHeader, extract.KindCookie:
		if m := quotedArgRe.FindStringSubmatch(source + ")"); m != nil {
			return m[1]
		}
		return ""
	default:
		return JSONPath(source)
	}
}

// InferType classifies a value by name, then by source. The order of the
// checks matters: "authToken" is a token, not auth.
func InferType(name, source string) string {
	n := strings.ToLower(name)
	s := strings.ToLower(source)
	switch {
	case strings.Contains(n, "token") || strings.Contains(s, "token"):
		return TypeToken
	case strings.Contains(n, "session"):
		return TypeSessionID
	case strings.Contains(n, "auth"):
		return TypeAuth
	case strings.Contains(n, "id"):
		return TypeID
	case strings.Contains(n, "csrf"):
		return TypeCSRF
	case strings.Contains(n, "nonce"):
		return TypeNonce
	case strings.Contains(n, "timestamp"):
		return TypeTimestamp
	default:
		return TypeDynamic
	}
}
