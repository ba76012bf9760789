// Package correlation pairs values produced by one request with later
// requests that use them.
package correlation

import (
	"net/url"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/extract"
	"github.com/unkn0wn-root/devwebgen/internal/jsonx"
	"github.com/unkn0wn-root/devwebgen/internal/scriptmine"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

// Usage locations.
const (
	LocationPreRequest  = "preRequest"
	LocationHeaders     = "headers"
	LocationURL         = "url"
	LocationQueryString = "queryString"
	LocationBody        = "body"
	LocationAuth        = "auth"
)

// Rule links the latest earlier producer of Name to one consumer.
type Rule struct {
	Name            string       `json:"name"`
	Type            string       `json:"type"`
	ProducerRequest string       `json:"producerRequest"`
	ProducerIndex   int          `json:"producerIndex"`
	ConsumerRequest string       `json:"consumerRequest"`
	ConsumerIndex   int          `json:"consumerIndex"`
	Extractor       extract.Spec `json:"extractor"`
	UsageLocation   string       `json:"usageLocation"`
	UsagePath       string       `json:"usagePath"`
}

// Use is one place a request reads a produced name.
type Use struct {
	Name     string
	Type     string
	Location string
	Path     string
}

// Mined carries the script mining results and the effective auth config of
// each request by position.
type Mined struct {
	Tests       []scriptmine.Result
	PreRequests []scriptmine.Result
	Auth        []*auth.Config
}

// Detect runs both passes over reqs, mining scripts as it goes.
func Detect(reqs []*collection.Request) []Rule {
	rules, _ := DetectMined(reqs, Mined{})
	return rules
}

// useKey identifies a consumption by position; request names repeat.
type useKey struct {
	name     string
	consumer int
}

// DetectMined runs both passes with pre-mined scripts and returns the rules
// together with the registry they were drawn from.
func DetectMined(reqs []*collection.Request, mined Mined) ([]Rule, *Registry) {
	reg := BuildRegistry(reqs, mined.Tests)
	var (
		rules []Rule
		seen  = make(map[useKey]struct{})
	)
	for i, req := range reqs {
		var pre scriptmine.Result
		if mined.PreRequests != nil && i < len(mined.PreRequests) {
			pre = mined.PreRequests[i]
		} else {
			pre = scriptmine.Mine(req.PreRequestScript)
		}
		var cfg *auth.Config
		if i < len(mined.Auth) {
			cfg = mined.Auth[i]
		}
		for _, use := range Consumed(req, pre, cfg, reg) {
			producer, ok := reg.Latest(use.Name, req.Index)
			if !ok {
				continue
			}
			key := useKey{name: use.Name, consumer: req.Index}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			typ := producer.Type
			if typ == "" {
				typ = use.Type
			}
			rules = append(rules, Rule{
				Name:            use.Name,
				Type:            typ,
				ProducerRequest: producer.Request,
				ProducerIndex:   producer.Index,
				ConsumerRequest: req.Name,
				ConsumerIndex:   req.Index,
				Extractor:       producer.Extractor,
				UsageLocation:   use.Location,
				UsagePath:       use.Path,
			})
		}
	}
	return rules, reg
}

type useSet struct {
	out  []Use
	seen map[string]struct{}
}

func (s *useSet) add(u Use) {
	s.seen[u.Name] = struct{}{}
	s.out = append(s.out, u)
}

func (s *useSet) has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// Consumed runs the consume scan for one request. Only names the registry
// knows are reported, except the Authorization special case which is always
// kept so a token consumer is never missed. cfg is the auth config that
// applies to req, or nil.
func Consumed(req *collection.Request, pre scriptmine.Result, cfg *auth.Config, reg *Registry) []Use {
	set := &useSet{seen: make(map[string]struct{})}

	for _, name := range pre.Reads {
		if reg.Has(name) {
			set.add(Use{Name: name, Type: "variable", Location: LocationPreRequest, Path: name})
		}
	}

	for _, h := range req.EnabledHeaders() {
		if !vars.IsPlaceholder(h.Value) {
			continue
		}
		name, _ := vars.FirstName(h.Value)
		if name != "" && reg.Has(name) {
			set.add(Use{Name: name, Type: "header", Location: LocationHeaders, Path: h.Key})
		}
		if strings.EqualFold(h.Key, "authorization") {
			authName := name
			if authName == "" {
				authName = NameAuthToken
			}
			if !set.has(authName) {
				set.add(Use{Name: authName, Type: scriptmine.TypeToken, Location: LocationHeaders, Path: "Authorization"})
			}
		}
		if strings.Contains(strings.ToLower(h.Value), "bearer") && name != "" && !set.has(name) {
			set.add(Use{Name: name, Type: scriptmine.TypeToken, Location: LocationHeaders, Path: h.Key})
		}
	}

	for _, u := range authUses(cfg) {
		if reg.Has(u.Name) && !set.has(u.Name) {
			set.add(u)
		}
	}

	for _, u := range urlUses(req.URL) {
		if reg.Has(u.Name) && !set.has(u.Name) {
			set.add(u)
		}
	}

	for _, u := range bodyUses(req.Body) {
		if reg.Has(u.Name) && !set.has(u.Name) {
			set.add(u)
		}
	}
	return set.out
}

// authUses reports placeholders in auth values; bearer and oauth2 values
// count as tokens.
func authUses(cfg *auth.Config) []Use {
	if cfg == nil {
		return nil
	}
	typ := "auth"
	if cfg.Type == auth.TypeBearer || cfg.Type == auth.TypeOAuth2 {
		typ = scriptmine.TypeToken
	}
	var out []Use
	for _, key := range cfg.Keys() {
		for _, name := range vars.Names(cfg.Values[key]) {
			out = append(out, Use{Name: name, Type: typ, Location: LocationAuth, Path: key})
		}
	}
	return out
}

// urlUses reports placeholders in the host, path and query of raw. A query
// that cannot be unescaped falls back to a plain scan of the whole URL.
func urlUses(raw string) []Use {
	host, path, query := splitURL(raw)
	var out []Use
	for _, name := range vars.Names(host) {
		out = append(out, Use{Name: name, Type: "url", Location: LocationURL, Path: "host"})
	}
	for _, name := range vars.Names(path) {
		out = append(out, Use{Name: name, Type: "path", Location: LocationURL, Path: "path"})
	}
	if query == "" {
		return out
	}
	pairs, err := parseQuery(query)
	if err != nil {
		var fallback []Use
		for _, name := range vars.Names(raw) {
			fallback = append(fallback, Use{Name: name, Type: "url", Location: LocationURL, Path: "url"})
		}
		return fallback
	}
	for _, kv := range pairs {
		if !vars.IsPlaceholder(kv[1]) {
			continue
		}
		if name, ok := vars.FirstName(kv[1]); ok {
			out = append(out, Use{Name: name, Type: "query", Location: LocationQueryString, Path: kv[0]})
		}
	}
	return out
}

// splitURL separates a raw URL into the origin part, the path and the query
// without resolving placeholders; a leading {{baseUrl}} counts as the origin.
func splitURL(raw string) (host, path, query string) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s, query = s[:i], s[i+1:]
	}
	rest := s
	prefix := ""
	if i := strings.Index(rest, "://"); i >= 0 {
		prefix, rest = rest[:i+3], rest[i+3:]
	}
	if prefix != "" || !strings.HasPrefix(rest, "/") {
		if i := strings.Index(rest, "/"); i >= 0 {
			host, path = prefix+rest[:i], rest[i:]
		} else {
			host = prefix + rest
		}
		return host, path, query
	}
	return "", rest, query
}

// parseQuery keeps parameter order, which url.ParseQuery does not.
func parseQuery(query string) ([][2]string, error) {
	var out [][2]string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]string{key, value})
	}
	return out, nil
}

func bodyUses(body collection.Body) []Use {
	var out []Use
	switch body.Kind {
	case collection.BodyJSON:
		root, err := jsonx.Parse([]byte(body.Raw))
		if err != nil {
			return rawBodyUses(body.Raw)
		}
		root.Walk(func(path string, leaf *jsonx.Value) {
			if leaf.Kind != jsonx.String || !vars.IsPlaceholder(leaf.Text) {
				return
			}
			if name, ok := vars.FirstName(leaf.Text); ok {
				out = append(out, Use{Name: name, Type: "body", Location: LocationBody, Path: path})
			}
		})
	case collection.BodyText:
		return rawBodyUses(body.Raw)
	case collection.BodyURLEncoded, collection.BodyMultipart:
		for _, f := range body.Fields {
			if f.Disabled || !vars.IsPlaceholder(f.Value) {
				continue
			}
			if name, ok := vars.FirstName(f.Value); ok {
				out = append(out, Use{Name: name, Type: "body", Location: LocationBody, Path: f.Key})
			}
		}
	}
	return out
}

func rawBodyUses(raw string) []Use {
	var out []Use
	for _, name := range vars.Names(raw) {
		out = append(out, Use{Name: name, Type: "body", Location: LocationBody, Path: "$"})
	}
	return out
}
