// Package params finds values worth moving into test data and renders the
// parameters.yml and CSV files that feed them.
package params

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/jsonx"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

// Sources of extracted parameters.
const (
	SourceCollection = "collection"
	SourceURL        = "url"
	SourceQuery      = "queryParam"
	SourceHeader     = "header"
	SourceForm       = "formData"
	SourceJSONBody   = "jsonBody"
	SourceBody       = "body"
)

const (
	minHeaderLen = 20
	minFieldLen  = 5
)

var (
	hostRe  = regexp.MustCompile(`^(https?)://([^/?#]+)`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlRe   = regexp.MustCompile(`^https?://.+`)
	dateRe  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	uuidRe  = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	templateRe = regexp.MustCompile(`\{\{.*?\}\}|\$\{.*?\}`)
)

var skippedHeaders = map[string]struct{}{
	"content-type":  {},
	"accept":        {},
	"user-agent":    {},
	"connection":    {},
	"cache-control": {},
}

var staticValues = map[string]struct{}{
	"true":  {},
	"false": {},
	"null":  {},
	"0":     {},
	"1":     {},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type Parameter struct {
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Source string   `json:"source"`
	Type   string   `json:"type"`
	UsedIn []string `json:"usedIn,omitempty"`
}

type extractor struct {
	out   []*Parameter
	byKey map[string]*Parameter
}

func (e *extractor) add(key, value, source, request string) {
	if key == "" {
		return
	}
	if p, ok := e.byKey[key]; ok {
		if request != "" && !contains(p.UsedIn, request) {
			p.UsedIn = append(p.UsedIn, request)
		}
		return
	}
	p := &Parameter{Key: key, Value: value, Source: source, Type: DetectType(value)}
	if request != "" {
		p.UsedIn = []string{request}
	}
	e.byKey[key] = p
	e.out = append(e.out, p)
}

// Extract collects parameter candidates when classification is turned off:
// collection variables first, then per request the host, query values, long
// header values and body fields. Keys are unique; later sightings only add
// to UsedIn.
func Extract(coll *collection.Collection, env []collection.Variable) []Parameter {
	e := &extractor{byKey: make(map[string]*Parameter)}
	for _, v := range coll.Declared(env) {
		e.add(v.Key, v.Value, SourceCollection, "")
	}
	if coll != nil {
		for _, req := range coll.Requests {
			e.request(req)
		}
	}
	out := make([]Parameter, 0, len(e.out))
	for _, p := range e.out {
		out = append(out, *p)
	}
	return out
}

func (e *extractor) request(req *collection.Request) {
	if m := hostRe.FindStringSubmatch(req.URL); m != nil && !strings.Contains(m[2], "{{") {
		e.add("baseUrl", m[1]+"://"+m[2], SourceURL, req.Name)
	}
	if _, query, ok := strings.Cut(req.URL, "?"); ok {
		query, _, _ = strings.Cut(query, "#")
		for _, part := range strings.Split(query, "&") {
			k, v, _ := strings.Cut(part, "=")
			key, err1 := url.QueryUnescape(k)
			value, err2 := url.QueryUnescape(v)
			if err1 != nil || err2 != nil || key == "" {
				continue
			}
			if shouldParameterize(value, SourceQuery) {
				e.add("query_"+key, value, SourceQuery, req.Name)
			}
		}
	}
	for _, h := range req.EnabledHeaders() {
		if _, skip := skippedHeaders[strings.ToLower(h.Key)]; skip {
			continue
		}
		if shouldParameterize(h.Value, SourceHeader) {
			e.add("header_"+h.Key, h.Value, SourceHeader, req.Name)
		}
	}
	switch req.Body.Kind {
	case collection.BodyJSON:
		root, err := jsonx.Parse([]byte(req.Body.Raw))
		if err != nil {
			e.rawBody(req)
			return
		}
		e.jsonBody(root, "", req.Name)
	case collection.BodyText:
		e.rawBody(req)
	case collection.BodyURLEncoded:
		for _, f := range req.Body.Fields {
			if !f.Disabled && shouldParameterize(f.Value, SourceForm) {
				e.add("form_"+f.Key, f.Value, SourceForm, req.Name)
			}
		}
	}
}

func (e *extractor) rawBody(req *collection.Request) {
	for _, name := range vars.Names(req.Body.Raw) {
		e.add(name, "", SourceBody, req.Name)
	}
}

// jsonBody flattens nested object keys with "_"; arrays are not descended.
func (e *extractor) jsonBody(v *jsonx.Value, prefix, request string) {
	if v.Kind != jsonx.Object {
		return
	}
	for _, m := range v.Members {
		key := m.Key
		if prefix != "" {
			key = prefix + "_" + m.Key
		}
		switch m.Value.Kind {
		case jsonx.Object:
			e.jsonBody(m.Value, key, request)
		case jsonx.String:
			if shouldParameterize(m.Value.Text, SourceJSONBody) {
				e.add(key, m.Value.Text, SourceJSONBody, request)
			}
		}
	}
}

func shouldParameterize(value, context string) bool {
	if value == "" {
		return false
	}
	if templateRe.MatchString(value) {
		return true
	}
	if _, ok := staticValues[strings.ToLower(value)]; ok {
		return false
	}
	switch context {
	case SourceURL, SourceQuery:
		return true
	case SourceHeader:
		return len(value) > minHeaderLen
	case SourceForm, SourceJSONBody:
		return len(value) > minFieldLen
	default:
		return false
	}
}

// DetectType guesses a display type for a value.
func DetectType(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return "string"
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return "number"
	}
	if v == "true" || v == "false" {
		return "boolean"
	}
	if emailRe.MatchString(v) {
		return "email"
	}
	if urlRe.MatchString(v) {
		return "url"
	}
	if dateRe.MatchString(v) && parsesAsDate(v) {
		return "date"
	}
	if uuidRe.MatchString(v) {
		return "uuid"
	}
	return "string"
}

func parsesAsDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
