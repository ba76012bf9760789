package correlation

import (
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/extract"
	"github.com/unkn0wn-root/devwebgen/internal/scriptmine"
)

// Conventional names asserted by the URL and name heuristics.
const (
	NameAuthToken = "authToken"
	NameUserID    = "userId"
	NameSessionID = "sessionId"
	NameAuthCode  = "authCode"
	NameCreatedID = "createdId"
)

// Producer is a value a request makes available to later requests.
type Producer struct {
	Name      string
	Type      string
	Index     int
	Request   string
	Extractor extract.Spec
	// Origin records which source asserted the value: script, heuristic or
	// example-header.
	Origin string
}

const (
	OriginScript        = "script"
	OriginHeuristic     = "heuristic"
	OriginExampleHeader = "example-header"
)

// Registry maps names to their producers in request order. It is read-only
// once BuildRegistry returns.
type Registry struct {
	byName map[string][]Producer
	names  []string
}

// BuildRegistry runs the produce pass. tests holds the mined test script of
// each request by position; a nil slice mines them here.
func BuildRegistry(reqs []*collection.Request, tests []scriptmine.Result) *Registry {
	reg := &Registry{byName: make(map[string][]Producer)}
	for i, req := range reqs {
		var mined scriptmine.Result
		if tests != nil && i < len(tests) {
			mined = tests[i]
		} else {
			mined = scriptmine.Mine(req.TestScript)
		}
		for _, p := range produced(req, mined) {
			if _, ok := reg.byName[p.Name]; !ok {
				reg.names = append(reg.names, p.Name)
			}
			reg.byName[p.Name] = append(reg.byName[p.Name], p)
		}
	}
	return reg
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[name]
	return ok
}

// Latest returns the producer of name with the greatest index strictly below
// before.
func (r *Registry) Latest(name string, before int) (Producer, bool) {
	if r == nil {
		return Producer{}, false
	}
	var (
		best  Producer
		found bool
	)
	for _, p := range r.byName[name] {
		if p.Index >= before {
			continue
		}
		if !found || p.Index > best.Index {
			best, found = p, true
		}
	}
	return best, found
}

// Names lists produced names in order of first production.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

func (r *Registry) Producers(name string) []Producer {
	if r == nil {
		return nil
	}
	return append([]Producer(nil), r.byName[name]...)
}

type producedSet struct {
	out  []Producer
	seen map[string]struct{}
	req  *collection.Request
}

func (s *producedSet) add(p Producer) {
	if _, ok := s.seen[p.Name]; ok {
		return
	}
	s.seen[p.Name] = struct{}{}
	p.Index = s.req.Index
	p.Request = s.req.Name
	s.out = append(s.out, p)
}

func (s *producedSet) hasType(typ string) bool {
	for _, p := range s.out {
		if p.Type == typ {
			return true
		}
	}
	return false
}

// produced gathers one request's candidates; the first candidate for a name
// wins.
func produced(req *collection.Request, mined scriptmine.Result) []Producer {
	set := &producedSet{seen: make(map[string]struct{}), req: req}

	for _, w := range mined.Producing() {
		set.add(Producer{
			Name:      w.Name,
			Type:      scriptmine.InferType(w.Name, w.Source),
			Extractor: writeSpec(w),
			Origin:    OriginScript,
		})
	}

	url := strings.ToLower(req.URL)
	name := strings.ToLower(req.Name)

	if containsAny(url, "/login", "/auth", "/token") || containsAny(name, "login", "auth") {
		if !set.hasType(scriptmine.TypeToken) {
			set.add(Producer{
				Name:      NameAuthToken,
				Type:      scriptmine.TypeToken,
				Extractor: extract.Spec{Kind: extract.KindJSON, Name: NameAuthToken, Path: "$.access_token"},
				Origin:    OriginHeuristic,
			})
		}
		set.add(Producer{
			Name:      NameUserID,
			Type:      scriptmine.TypeID,
			Extractor: extract.Spec{Kind: extract.KindJSON, Name: NameUserID, Path: "$.userId"},
			Origin:    OriginHeuristic,
		})
	}
	if strings.Contains(url, "/session") || strings.Contains(name, "session") {
		set.add(Producer{
			Name:      NameSessionID,
			Type:      scriptmine.TypeSessionID,
			Extractor: extract.Spec{Kind: extract.KindJSON, Name: NameSessionID, Path: "$.sessionId"},
			Origin:    OriginHeuristic,
		})
	}
	if containsAny(url, "/oauth", "/authorize") {
		set.add(Producer{
			Name:      NameAuthCode,
			Type:      scriptmine.TypeToken,
			Extractor: extract.Spec{Kind: extract.KindBoundary, Name: NameAuthCode, Left: "code=", Right: "&"},
			Origin:    OriginHeuristic,
		})
	}
	if strings.EqualFold(req.Method, "POST") &&
		(containsAny(url, "/create", "/add") || containsAny(name, "create", "add")) {
		set.add(Producer{
			Name:      NameCreatedID,
			Type:      scriptmine.TypeID,
			Extractor: extract.Spec{Kind: extract.KindJSON, Name: NameCreatedID, Path: "$.id"},
			Origin:    OriginHeuristic,
		})
	}

	for _, h := range req.ExampleHeaders {
		key := strings.ToLower(h.Key)
		if h.Key == "" || !containsAny(key, "token", "authorization", "cookie") {
			continue
		}
		set.add(Producer{
			Name:      h.Key,
			Type:      scriptmine.TypeHeader,
			Extractor: extract.Spec{Kind: extract.KindHeader, Name: h.Key, Header: h.Key},
			Origin:    OriginExampleHeader,
		})
	}
	return set.out
}

func writeSpec(w scriptmine.Write) extract.Spec {
	spec := extract.Spec{Kind: w.Extractor, Name: w.Name}
	switch w.Extractor {
	case extract.KindHeader:
		spec.Header = w.Path
	case extract.KindCookie:
		spec.Cookie = w.Path
	default:
		spec.Path = extract.JSONPath(extract.Spec{Name: w.Name, Path: w.Path})
	}
	return spec
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
