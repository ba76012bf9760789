package collection

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
)

var bruBlockStartRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9:_-]*)\s*([{\[])\s*$`)

var bruVerbs = map[string]struct{}{
	"get":     {},
	"post":    {},
	"put":     {},
	"delete":  {},
	"patch":   {},
	"options": {},
	"head":    {},
	"connect": {},
	"trace":   {},
}

type bruBlock struct {
	name  string
	lines []string
}

// bruFile is one parsed .bru document.
type bruFile struct {
	name       string
	seq        int
	method     string
	url        string
	bodyMode   string
	authMode   string
	headers    []Header
	bodies     map[string]string
	forms      map[string][]Field
	auth       map[string]map[string]string
	vars       []Variable
	postVars   []Variable
	preScript  string
	postScript string
	tests      string
	docs       string
}

func splitBruBlocks(data []byte) []bruBlock {
	scanner := bufio.NewScanner(bytes.NewReader(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))))
	scanner.Buffer(make([]byte, 0, 1024), 4*1024*1024)

	var (
		blocks []bruBlock
		cur    *bruBlock
		closer string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if cur != nil {
			if strings.TrimRight(line, " \t") == closer {
				blocks = append(blocks, *cur)
				cur = nil
				continue
			}
			cur.lines = append(cur.lines, line)
			continue
		}
		m := bruBlockStartRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		cur = &bruBlock{name: strings.ToLower(m[1])}
		closer = "}"
		if m[2] == "[" {
			closer = "]"
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

// dict reads "key: value" lines; a leading "~" marks the entry disabled.
func (b bruBlock) dict() []Variable {
	var out []Variable
	for _, line := range b.lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		disabled := strings.HasPrefix(line, "~")
		line = strings.TrimPrefix(line, "~")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out = append(out, Variable{Key: key, Value: strings.TrimSpace(value), Disabled: disabled})
	}
	return out
}

// list reads the entries of a bracketed block such as vars:secret.
func (b bruBlock) list() []string {
	var out []string
	for _, line := range b.lines {
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// text returns the block body with the two-space indentation removed.
func (b bruBlock) text() string {
	out := make([]string, 0, len(b.lines))
	for _, line := range b.lines {
		switch {
		case strings.HasPrefix(line, "  "):
			line = line[2:]
		case strings.HasPrefix(line, "\t"):
			line = line[1:]
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func parseBru(data []byte) *bruFile {
	f := &bruFile{
		method: "GET",
		bodies: make(map[string]string),
		forms:  make(map[string][]Field),
		auth:   make(map[string]map[string]string),
	}
	for _, b := range splitBruBlocks(data) {
		switch {
		case b.name == "meta":
			for _, kv := range b.dict() {
				switch kv.Key {
				case "name":
					f.name = kv.Value
				case "seq":
					f.seq, _ = strconv.Atoi(kv.Value)
				}
			}
		case isBruVerb(b.name):
			f.method = strings.ToUpper(b.name)
			for _, kv := range b.dict() {
				switch kv.Key {
				case "url":
					f.url = kv.Value
				case "body":
					f.bodyMode = strings.ToLower(kv.Value)
				case "auth":
					f.authMode = strings.ToLower(kv.Value)
				}
			}
		case b.name == "headers":
			for _, kv := range b.dict() {
				f.headers = append(f.headers, Header{Key: kv.Key, Value: kv.Value, Disabled: kv.Disabled})
			}
		case b.name == "body:form-urlencoded", b.name == "body:multipart-form":
			mode := strings.TrimPrefix(b.name, "body:")
			for _, kv := range b.dict() {
				field := Field{Key: kv.Key, Value: kv.Value, Type: "text", Disabled: kv.Disabled}
				if strings.HasPrefix(kv.Value, "@file(") && strings.HasSuffix(kv.Value, ")") {
					field.Type = "file"
					field.Value = strings.TrimSuffix(strings.TrimPrefix(kv.Value, "@file("), ")")
				}
				f.forms[mode] = append(f.forms[mode], field)
			}
		case strings.HasPrefix(b.name, "body:"):
			f.bodies[strings.TrimPrefix(b.name, "body:")] = b.text()
		case b.name == "body":
			f.bodies["json"] = b.text()
		case b.name == "auth":
			for _, kv := range b.dict() {
				if kv.Key == "mode" {
					f.authMode = strings.ToLower(kv.Value)
				}
			}
		case strings.HasPrefix(b.name, "auth:"):
			params := make(map[string]string)
			for _, kv := range b.dict() {
				params[kv.Key] = kv.Value
			}
			f.auth[strings.TrimPrefix(b.name, "auth:")] = params
		case b.name == "vars", b.name == "vars:pre-request":
			f.vars = append(f.vars, b.dict()...)
		case b.name == "vars:post-response":
			f.postVars = append(f.postVars, b.dict()...)
		case b.name == "script:pre-request":
			f.preScript = b.text()
		case b.name == "script:post-response":
			f.postScript = b.text()
		case b.name == "tests":
			f.tests = b.text()
		case b.name == "docs":
			f.docs = b.text()
		}
	}
	return f
}

func isBruVerb(name string) bool {
	_, ok := bruVerbs[name]
	return ok
}

func (f *bruFile) request(index int, folder string, depth int) *Request {
	req := &Request{
		Index:            index,
		ID:               fmt.Sprintf("req_%d", index),
		Name:             f.name,
		Folder:           folder,
		Depth:            depth,
		Method:           f.method,
		URL:              f.url,
		Headers:          f.headers,
		Body:             f.body(),
		PreRequestScript: f.preScript,
		Description:      f.docs,
	}
	if req.Name == "" {
		req.Name = defaultRequestName
	}
	// post-response vars are evaluated against the response, so they behave
	// like setVar calls in the post-response script
	var post []string
	for _, v := range f.postVars {
		if v.Disabled {
			continue
		}
		post = append(post, fmt.Sprintf("bru.setVar(%q, %s);", v.Key, v.Value))
	}
	req.TestScript = joinScripts(append(post, f.postScript), f.tests)
	req.Auth = f.authBlock()
	return req
}

func (f *bruFile) body() Body {
	mode := f.bodyMode
	if mode == "" && len(f.bodies)+len(f.forms) == 1 {
		for k := range f.bodies {
			mode = k
		}
		for k := range f.forms {
			mode = k
		}
	}
	switch mode {
	case "", "none":
		return Body{Kind: BodyNone}
	case "json":
		return rawBodyOf(f.bodies["json"])
	case "text", "xml", "sparql":
		raw := f.bodies[mode]
		if strings.TrimSpace(raw) == "" {
			return Body{Kind: BodyNone}
		}
		return Body{Kind: BodyText, Raw: raw}
	case "graphql":
		payload := map[string]any{"query": f.bodies["graphql"]}
		if decoded, ok := graphQLVariables(json.RawMessage(f.bodies["graphql:vars"])); ok {
			payload["variables"] = decoded
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return Body{Kind: BodyNone}
		}
		return Body{Kind: BodyJSON, Raw: string(data)}
	case "form-urlencoded", "formurlencoded":
		return Body{Kind: BodyURLEncoded, Fields: f.forms["form-urlencoded"]}
	case "multipart-form", "multipartform":
		return Body{Kind: BodyMultipart, Fields: f.forms["multipart-form"]}
	}
	return Body{Kind: BodyNone}
}

func (f *bruFile) authBlock() *AuthBlock {
	mode := f.authMode
	if _, skip := skippedAuthTypes[mode]; skip {
		return nil
	}
	params, ok := f.auth[mode]
	if !ok {
		params = map[string]string{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return &AuthBlock{Type: mode, Params: data}
}

// collectionAuth reads the auth block of a collection.bru or folder.bru,
// which has no verb line to name the mode.
func (f *bruFile) collectionAuth() *AuthBlock {
	if f.authMode != "" {
		return f.authBlock()
	}
	modes := make([]string, 0, len(f.auth))
	for mode := range f.auth {
		modes = append(modes, mode)
	}
	if len(modes) == 0 {
		return nil
	}
	sort.Strings(modes)
	f.authMode = modes[0]
	return f.authBlock()
}

func decodeBru(data []byte) (*Collection, error) {
	f := parseBru(data)
	if f.url == "" && f.name == "" {
		return nil, errdef.New(errdef.CodeParse, "bru document has no request")
	}
	req := f.request(0, "", 0)
	coll := &Collection{
		Name:      req.Name,
		Format:    FormatBru,
		Variables: f.vars,
		Requests:  []*Request{req},
	}
	if req.Auth != nil {
		coll.AuthOwners = append(coll.AuthOwners, AuthOwner{
			Name:  req.Name,
			Level: AuthLevelRequest,
			Block: req.Auth,
		})
	}
	return coll, nil
}
