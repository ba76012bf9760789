package devweb

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// node is a piece of JavaScript emitted by the object writer.
type node interface {
	write(b *strings.Builder, indent string)
}

type expr string

func (e expr) write(b *strings.Builder, indent string) {
	lines := strings.Split(string(e), "\n")
	b.WriteString(lines[0])
	for _, l := range lines[1:] {
		b.WriteString("\n" + indent + l)
	}
}

type prop struct {
	key string
	val node
}

// object keeps insertion order; setting an existing key replaces its value
// in place.
type object struct {
	props []prop
	bare  bool
}

func (o *object) set(key string, val node) {
	for i := range o.props {
		if o.props[i].key == key {
			o.props[i].val = val
			return
		}
	}
	o.props = append(o.props, prop{key: key, val: val})
}

func (o *object) has(key string) bool {
	for _, p := range o.props {
		if strings.EqualFold(p.key, key) {
			return true
		}
	}
	return false
}

func (o *object) empty() bool {
	return o == nil || len(o.props) == 0
}

func (o *object) write(b *strings.Builder, indent string) {
	if len(o.props) == 0 {
		b.WriteString("{}")
		return
	}
	inner := indent + "    "
	b.WriteString("{\n")
	for i, p := range o.props {
		b.WriteString(inner)
		if o.bare && identRe.MatchString(p.key) {
			b.WriteString(p.key)
		} else {
			b.WriteString(jsString(p.key))
		}
		b.WriteString(": ")
		p.val.write(b, inner)
		if i < len(o.props)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
}

type array []node

func (a array) write(b *strings.Builder, indent string) {
	if len(a) == 0 {
		b.WriteString("[]")
		return
	}
	inner := indent + "    "
	b.WriteString("[\n")
	for i, n := range a {
		b.WriteString(inner)
		n.write(b, inner)
		if i < len(a)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "]")
}

// call wraps a node as the single argument of a constructor or function.
type call struct {
	fn  string
	arg node
}

func (c call) write(b *strings.Builder, indent string) {
	b.WriteString(c.fn + "(")
	c.arg.write(b, indent)
	b.WriteString(")")
}

func render(n node, indent string) string {
	var b strings.Builder
	n.write(&b, indent)
	return b.String()
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

var templateEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")

// templateText escapes literal text for use inside a template literal.
func templateText(s string) string {
	return templateEscaper.Replace(s)
}

func globalMember(name string) string {
	return member("load.global", name)
}

// member renders base.name, or base["name"] when name is not an identifier.
func member(base, name string) string {
	if identRe.MatchString(name) {
		return base + "." + name
	}
	return base + "[" + jsString(name) + "]"
}
