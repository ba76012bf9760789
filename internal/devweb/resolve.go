package devweb

import (
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

// resolution is how one {{name}} renders: literal text, an expression, or
// nothing when the reference has to stay verbatim.
type resolution struct {
	text    string
	expr    string
	literal bool
	ok      bool
}

// resolver maps references to script expressions. With classes set it
// follows the classification; without it declared values are inlined and
// only correlated names read global state.
type resolver struct {
	classes *classify.Result
	static  *vars.Resolver
	dynamic map[string]bool
	warn    func(msg string)
}

func (r *resolver) resolve(name string) resolution {
	if vars.IsBuiltin(name) {
		if lit, ok := vars.Literal(name); ok {
			return resolution{expr: lit, ok: true}
		}
		r.warn("no built-in value for {{" + name + "}}; a manual value is needed")
		return resolution{expr: "/* TODO: manual value for " + name + " */ \"\"", ok: true}
	}
	if r.classes != nil {
		switch r.classes.Kind(name) {
		case classify.KindDynamic:
			return resolution{expr: globalMember(name), ok: true}
		case classify.KindParameterized:
			return resolution{expr: member("load.params", name), ok: true}
		}
	} else {
		if r.dynamic[name] {
			return resolution{expr: globalMember(name), ok: true}
		}
		if v, ok := r.static.Resolve(name); ok {
			return resolution{text: v, literal: true, ok: true}
		}
	}
	r.warn("unresolved variable {{" + name + "}} kept as is")
	return resolution{}
}

// ref renders a bare name read by converted script code.
func (r *resolver) ref(name string) string {
	res := r.resolve(name)
	switch {
	case !res.ok:
		return globalMember(name)
	case res.literal:
		return jsString(res.text)
	default:
		return res.expr
	}
}

type segment struct {
	text   string
	expr   string
	isExpr bool
}

// str renders s as a JavaScript expression. Strings without resolved
// expressions stay plain literals; a lone reference becomes its expression;
// anything mixed becomes a template literal.
func (r *resolver) str(s string) string {
	refs := vars.Find(s)
	if len(refs) == 0 {
		return jsString(s)
	}
	var (
		segs []segment
		text strings.Builder
		pos  int
	)
	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, segment{text: text.String()})
			text.Reset()
		}
	}
	for _, ref := range refs {
		text.WriteString(s[pos:ref.Start])
		res := r.resolve(ref.Name)
		switch {
		case !res.ok:
			text.WriteString(s[ref.Start:ref.End])
		case res.literal:
			text.WriteString(res.text)
		default:
			flush()
			segs = append(segs, segment{expr: res.expr, isExpr: true})
		}
		pos = ref.End
	}
	text.WriteString(s[pos:])
	flush()

	exprs := 0
	for _, sg := range segs {
		if sg.isExpr {
			exprs++
		}
	}
	switch {
	case exprs == 0:
		var all strings.Builder
		for _, sg := range segs {
			all.WriteString(sg.text)
		}
		return jsString(all.String())
	case len(segs) == 1:
		return segs[0].expr
	}
	var b strings.Builder
	b.WriteString("`")
	for _, sg := range segs {
		if sg.isExpr {
			b.WriteString("${" + sg.expr + "}")
		} else {
			b.WriteString(templateText(sg.text))
		}
	}
	b.WriteString("`")
	return b.String()
}
