package collection

import (
	"encoding/json"
	"strings"
)

type Format string

const (
	FormatPostman Format = "postman"
	FormatBruno   Format = "bruno"
	FormatBru     Format = "bruno-bru"
)

type Header struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

type BodyKind string

const (
	BodyNone       BodyKind = "none"
	BodyText       BodyKind = "raw-text"
	BodyJSON       BodyKind = "raw-json"
	BodyURLEncoded BodyKind = "urlencoded"
	BodyMultipart  BodyKind = "multipart"
)

type Field struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Body is a tagged union; Raw is set for the raw kinds and Fields for the
// form kinds.
type Body struct {
	Kind   BodyKind `json:"kind"`
	Raw    string   `json:"raw,omitempty"`
	Fields []Field  `json:"fields,omitempty"`
}

func (b Body) IsZero() bool {
	return b.Kind == "" || b.Kind == BodyNone
}

// AuthBlock keeps the type-specific section undecoded; it may be an array of
// key/value pairs or a plain object depending on the exporter.
type AuthBlock struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Request struct {
	Index            int        `json:"index"`
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Folder           string     `json:"folder,omitempty"`
	Depth            int        `json:"depth"`
	Method           string     `json:"method"`
	URL              string     `json:"url"`
	Headers          []Header   `json:"headers,omitempty"`
	Body             Body       `json:"body"`
	PreRequestScript string     `json:"preRequestScript,omitempty"`
	TestScript       string     `json:"testScript,omitempty"`
	Auth             *AuthBlock `json:"auth,omitempty"`
	Description      string     `json:"description,omitempty"`
	ExampleHeaders   []Header   `json:"exampleHeaders,omitempty"`
	ExampleBodies    []string   `json:"exampleBodies,omitempty"`
}

// EnabledHeaders skips disabled and keyless entries.
func (r *Request) EnabledHeaders() []Header {
	if r == nil {
		return nil
	}
	out := make([]Header, 0, len(r.Headers))
	for _, h := range r.Headers {
		if h.Disabled || strings.TrimSpace(h.Key) == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}

type Variable struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

type AuthLevel string

const (
	AuthLevelCollection AuthLevel = "collection"
	AuthLevelFolder     AuthLevel = "folder"
	AuthLevelRequest    AuthLevel = "request"
)

type AuthOwner struct {
	Name   string
	Folder string
	Level  AuthLevel
	Block  *AuthBlock
}

type Collection struct {
	Name       string
	Format     Format
	Schema     string
	Variables  []Variable
	Auth       *AuthBlock
	Requests   []*Request
	AuthOwners []AuthOwner
	// Scripts holds collection and folder level script text; it is only
	// scanned for variable writes.
	Scripts  []string
	Warnings []string
}

// Declared merges collection variables with environment values; environment
// entries win and new keys are appended in their own order.
func (c *Collection) Declared(env []Variable) []Variable {
	var base []Variable
	if c != nil {
		base = c.Variables
	}
	out := make([]Variable, 0, len(base)+len(env))
	pos := make(map[string]int, len(base)+len(env))
	add := func(v Variable) {
		if v.Disabled || strings.TrimSpace(v.Key) == "" {
			return
		}
		if i, ok := pos[v.Key]; ok {
			out[i] = v
			return
		}
		pos[v.Key] = len(out)
		out = append(out, v)
	}
	for _, v := range base {
		add(v)
	}
	for _, v := range env {
		add(v)
	}
	return out
}

func (c *Collection) Folders() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, req := range c.Requests {
		if _, ok := seen[req.Folder]; ok {
			continue
		}
		seen[req.Folder] = struct{}{}
		out = append(out, req.Folder)
	}
	return out
}
