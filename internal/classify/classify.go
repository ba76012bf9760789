// Package classify decides, for every variable name a collection knows
// about, whether generated code reads it from runtime state or from test
// data.
package classify

import (
	"regexp"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/scriptmine"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindDynamic
	KindParameterized
	KindBuiltin
)

func (k Kind) String() string {
	switch k {
	case KindDynamic:
		return "dynamic"
	case KindParameterized:
		return "parameterized"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Reason names the rule that classified an entry.
type Reason string

const (
	ReasonCorrelation   Reason = "correlation"
	ReasonScriptSet     Reason = "script-set"
	ReasonRuntimePrefix Reason = "runtime-prefix"
	ReasonSigil         Reason = "builtin-sigil"
	ReasonDeclared      Reason = "declared"
	ReasonReferenced    Reason = "referenced"
)

// RuntimePrefix marks declared-but-empty names that a script fills in.
const RuntimePrefix = "_"

// Cycling modes written to parameters.yml.
const (
	NextOnce      = "once"
	NextIteration = "iteration"
)

var (
	usernameLike = regexp.MustCompile(`(?i)username|user|email|login|account`)
	passwordLike = regexp.MustCompile(`(?i)password|passwd|pwd|secret`)
)

type Entry struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"-"`
	Reason   Reason `json:"reason"`
	Value    string `json:"value,omitempty"`
	Declared bool   `json:"declared"`
}

type Parameter struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	NextValue string `json:"nextValue"`
	LinkedTo  string `json:"linkedTo,omitempty"`
}

// Input is everything the classifier looks at. Scripts may be left nil, in
// which case every request script and collection script is mined here.
type Input struct {
	Collection  *collection.Collection
	Environment []collection.Variable
	Rules       []correlation.Rule
	Scripts     []scriptmine.Result
}

// Result is read-only after Classify returns.
type Result struct {
	entries map[string]Entry
	order   []string
	params  []Parameter
}

func Classify(in Input) *Result {
	res := &Result{entries: make(map[string]Entry)}

	declared := in.Collection.Declared(in.Environment)
	declaredValue := make(map[string]string, len(declared))
	for _, v := range declared {
		declaredValue[v.Key] = v.Value
	}

	ruleNames := make(map[string]struct{}, len(in.Rules))
	for _, r := range in.Rules {
		ruleNames[r.Name] = struct{}{}
	}

	scripts := in.Scripts
	if scripts == nil {
		scripts = mineCollection(in.Collection)
	}
	scriptSet := make(map[string]struct{})
	for _, s := range scripts {
		for _, name := range s.WrittenNames() {
			scriptSet[name] = struct{}{}
		}
	}

	for _, name := range universe(declared, in.Rules, scripts, in.Collection) {
		value, isDeclared := declaredValue[name]
		entry := Entry{Name: name, Value: value, Declared: isDeclared}
		_, correlated := ruleNames[name]
		_, scripted := scriptSet[name]
		switch {
		case correlated:
			entry.Kind, entry.Reason = KindDynamic, ReasonCorrelation
		case scripted:
			entry.Kind, entry.Reason = KindDynamic, ReasonScriptSet
		case isDeclared && strings.TrimSpace(value) == "" && strings.HasPrefix(name, RuntimePrefix):
			entry.Kind, entry.Reason = KindDynamic, ReasonRuntimePrefix
		case vars.IsBuiltin(name):
			entry.Kind, entry.Reason = KindBuiltin, ReasonSigil
		case isDeclared:
			entry.Kind, entry.Reason = KindParameterized, ReasonDeclared
		default:
			entry.Kind, entry.Reason = KindParameterized, ReasonReferenced
		}
		res.entries[name] = entry
		res.order = append(res.order, name)
	}
	res.params = linkCredentials(res)
	return res
}

// universe orders names: declarations, correlation names, script writes,
// then names only seen in request text.
func universe(
	declared []collection.Variable,
	rules []correlation.Rule,
	scripts []scriptmine.Result,
	coll *collection.Collection,
) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, v := range declared {
		add(v.Key)
	}
	for _, r := range rules {
		add(r.Name)
	}
	for _, s := range scripts {
		for _, name := range s.WrittenNames() {
			add(name)
		}
		for _, name := range s.Reads {
			add(name)
		}
	}
	if coll != nil {
		for _, req := range coll.Requests {
			for _, name := range Referenced(req) {
				add(name)
			}
		}
	}
	return out
}

// Referenced lists the {{x}} and ${x} names a request uses outside its
// scripts, in URL, header, body and auth order.
func Referenced(req *collection.Request) []string {
	var out []string
	seen := make(map[string]struct{})
	scan := func(s string) {
		for _, name := range vars.Names(s) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	scan(req.URL)
	for _, h := range req.EnabledHeaders() {
		scan(h.Key)
		scan(h.Value)
	}
	switch req.Body.Kind {
	case collection.BodyJSON, collection.BodyText:
		scan(req.Body.Raw)
	case collection.BodyURLEncoded, collection.BodyMultipart:
		for _, f := range req.Body.Fields {
			if f.Disabled {
				continue
			}
			scan(f.Key)
			scan(f.Value)
		}
	}
	if req.Auth != nil {
		scan(string(req.Auth.Params))
	}
	return out
}

func mineCollection(coll *collection.Collection) []scriptmine.Result {
	if coll == nil {
		return nil
	}
	out := make([]scriptmine.Result, 0, len(coll.Scripts)+2*len(coll.Requests))
	for _, s := range coll.Scripts {
		out = append(out, scriptmine.Mine(s))
	}
	for _, req := range coll.Requests {
		out = append(out, scriptmine.Mine(req.PreRequestScript), scriptmine.Mine(req.TestScript))
	}
	if coll.Auth != nil {
		out = append(out, scriptmine.Result{Reads: vars.Names(string(coll.Auth.Params))})
	}
	return out
}

// linkCredentials assigns cycling modes. The first username-like parameter
// in classification order is the linked key; password-like parameters read
// a new row each iteration on the same row position as that key.
func linkCredentials(res *Result) []Parameter {
	var linked string
	for _, name := range res.order {
		e := res.entries[name]
		if e.Kind != KindParameterized || passwordLike.MatchString(name) {
			continue
		}
		if usernameLike.MatchString(name) {
			linked = name
			break
		}
	}
	var out []Parameter
	for _, name := range res.order {
		e := res.entries[name]
		if e.Kind != KindParameterized {
			continue
		}
		p := Parameter{Name: name, Value: e.Value, NextValue: NextOnce}
		if linked != "" && name != linked && passwordLike.MatchString(name) {
			p.NextValue = NextIteration
			p.LinkedTo = linked
		}
		out = append(out, p)
	}
	return out
}

// Kind reports how name was classified; names outside the universe are
// KindUnknown.
func (r *Result) Kind(name string) Kind {
	if r == nil {
		return KindUnknown
	}
	return r.entries[strings.TrimSpace(name)].Kind
}

func (r *Result) Entry(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	e, ok := r.entries[strings.TrimSpace(name)]
	return e, ok
}

func (r *Result) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

func (r *Result) Parameters() []Parameter {
	if r == nil {
		return nil
	}
	return append([]Parameter(nil), r.params...)
}

// LinkedKey returns the username-like parameter passwords are tied to.
func (r *Result) LinkedKey() string {
	for _, p := range r.Parameters() {
		if p.LinkedTo != "" {
			return p.LinkedTo
		}
	}
	return ""
}

func (r *Result) Dynamic() []string {
	return r.names(KindDynamic)
}

func (r *Result) Builtin() []string {
	return r.names(KindBuiltin)
}

func (r *Result) names(kind Kind) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, name := range r.order {
		if r.entries[name].Kind == kind {
			out = append(out, name)
		}
	}
	return out
}
