package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
	"github.com/unkn0wn-root/devwebgen/internal/jsonx"
)

const (
	defaultRequestName = "Unnamed Request"
	defaultBrunoName   = "Bruno Collection"
	defaultProtocol    = "https"
)

var skippedAuthTypes = map[string]struct{}{
	"":        {},
	"noauth":  {},
	"none":    {},
	"inherit": {},
}

// Decode reads a collection from bytes. An empty format sniffs the input:
// anything that is valid JSON goes to the JSON reader, the rest is treated as
// Bruno text.
func Decode(data []byte, format Format) (*Collection, error) {
	switch format {
	case FormatBru:
		return decodeBru(data)
	case FormatPostman, FormatBruno:
		return decodeJSON(data)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return decodeJSON(data)
	}
	return decodeBru(data)
}

// decodeJSON reads a Postman v2.x or Bruno JSON export. Requests are numbered
// in depth-first pre-order; that index is the only ordering signal downstream.
func decodeJSON(data []byte) (*Collection, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "decode collection")
	}

	coll := &Collection{}
	if doc.Info != nil && strings.TrimSpace(doc.Info.Schema) != "" {
		coll.Format = FormatPostman
		coll.Schema = doc.Info.Schema
		coll.Name = doc.Info.Name
	} else {
		coll.Format = FormatBruno
		coll.Name = doc.Name
		if coll.Name == "" && doc.Info != nil {
			coll.Name = doc.Info.Name
		}
		if coll.Name == "" {
			coll.Name = defaultBrunoName
		}
	}

	coll.Variables = variables(doc.Variable)
	coll.Auth = parseAuth(doc.Auth)
	if doc.Root != nil && doc.Root.Request != nil {
		if coll.Auth == nil {
			coll.Auth = parseAuth(doc.Root.Request.Auth)
		}
		if doc.Root.Request.Vars != nil {
			coll.Variables = append(coll.Variables, variables(doc.Root.Request.Vars.Req)...)
		}
	}
	if coll.Auth != nil {
		coll.AuthOwners = append(coll.AuthOwners, AuthOwner{
			Name:  string(AuthLevelCollection),
			Level: AuthLevelCollection,
			Block: coll.Auth,
		})
	}
	coll.Scripts = append(coll.Scripts, eventScripts(doc.Event)...)

	d := &decoder{coll: coll}
	items := doc.Item
	if len(items) == 0 {
		items = doc.Items
	}
	switch {
	case len(items) > 0:
		d.walk(items, "", 0)
	case hasRequest(doc.Request):
		d.request(rawItem{Name: doc.Name, Request: doc.Request}, "", 0)
	}
	return coll, nil
}

type decoder struct {
	coll *Collection
}

func (d *decoder) walk(items []rawItem, folder string, depth int) {
	for _, item := range items {
		if hasRequest(item.Request) {
			d.request(item, folder, depth)
			continue
		}
		if !item.isFolder() {
			continue
		}
		path := item.Name
		if folder != "" {
			path = folder + "/" + item.Name
		}
		if block := parseAuth(item.Auth); block != nil {
			d.coll.AuthOwners = append(d.coll.AuthOwners, AuthOwner{
				Name:   item.Name,
				Folder: folder,
				Level:  AuthLevelFolder,
				Block:  block,
			})
		}
		if item.Root != nil && item.Root.Request != nil {
			if block := parseAuth(item.Root.Request.Auth); block != nil {
				d.coll.AuthOwners = append(d.coll.AuthOwners, AuthOwner{
					Name:   item.Name,
					Folder: folder,
					Level:  AuthLevelFolder,
					Block:  block,
				})
			}
		}
		d.coll.Scripts = append(d.coll.Scripts, eventScripts(item.Event)...)
		d.walk(item.children(), path, depth+1)
	}
}

func hasRequest(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (d *decoder) request(item rawItem, folder string, depth int) {
	idx := len(d.coll.Requests)
	req := &Request{
		Index:  idx,
		Name:   strings.TrimSpace(item.Name),
		Folder: folder,
		Depth:  depth,
		Method: "GET",
	}
	if req.Name == "" {
		req.Name = defaultRequestName
	}
	switch {
	case item.ID != "":
		req.ID = item.ID
	case item.UID != "":
		req.ID = item.UID
	default:
		req.ID = fmt.Sprintf("req_%d", idx)
	}

	raw := bytes.TrimSpace(item.Request)
	if len(raw) > 0 && raw[0] == '"' {
		var u string
		if err := json.Unmarshal(raw, &u); err == nil {
			req.URL = u
		}
	} else {
		var rr rawRequest
		if err := json.Unmarshal(raw, &rr); err != nil {
			d.warn("request %q: %v", req.Name, err)
		} else {
			d.fill(req, &rr)
		}
	}

	pre, test := splitEvents(item.Event)
	req.PreRequestScript = joinScripts(pre, req.PreRequestScript)
	req.TestScript = joinScripts(test, req.TestScript)
	if req.Auth == nil {
		req.Auth = parseAuth(item.Auth)
	}
	if req.Description == "" {
		req.Description = strings.TrimSpace(string(item.Description))
	}
	for _, resp := range item.Response {
		hdr := resp.Header
		if len(bytes.TrimSpace(hdr)) == 0 {
			hdr = resp.Headers
		}
		req.ExampleHeaders = append(req.ExampleHeaders, parseHeaders(hdr)...)
		if strings.TrimSpace(resp.Body) != "" {
			req.ExampleBodies = append(req.ExampleBodies, resp.Body)
		}
	}

	if req.Auth != nil {
		d.coll.AuthOwners = append(d.coll.AuthOwners, AuthOwner{
			Name:   req.Name,
			Folder: folder,
			Level:  AuthLevelRequest,
			Block:  req.Auth,
		})
	}
	d.coll.Requests = append(d.coll.Requests, req)
}

func (d *decoder) fill(req *Request, rr *rawRequest) {
	if m := strings.TrimSpace(rr.Method); m != "" {
		req.Method = strings.ToUpper(m)
	}
	req.URL = normalizeURL(rr.URL)
	hdr := rr.Header
	if len(bytes.TrimSpace(hdr)) == 0 {
		hdr = rr.Headers
	}
	req.Headers = parseHeaders(hdr)
	req.Body = normalizeBody(rr.Body)
	req.Auth = parseAuth(rr.Auth)
	req.Description = strings.TrimSpace(string(rr.Description))

	req.PreRequestScript = joinScripts(nil, string(rr.PreRequestScript))
	if rr.Script != nil {
		req.PreRequestScript = joinScripts([]string{req.PreRequestScript}, string(rr.Script.Req))
		req.TestScript = string(rr.Script.Res)
	}
	req.TestScript = joinScripts([]string{req.TestScript}, string(rr.Tests))
}

func (d *decoder) warn(format string, args ...any) {
	d.coll.Warnings = append(d.coll.Warnings, fmt.Sprintf(format, args...))
}

func variables(kvs []rawKV) []Variable {
	out := make([]Variable, 0, len(kvs))
	for _, kv := range kvs {
		key := strings.TrimSpace(kv.key())
		if key == "" {
			continue
		}
		out = append(out, Variable{Key: key, Value: string(kv.Value), Disabled: kv.disabled()})
	}
	return out
}

func parseAuth(raw json.RawMessage) *AuthBlock {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	var typ string
	for _, key := range []string{"type", "mode"} {
		if v, ok := m[key]; ok {
			_ = json.Unmarshal(v, &typ)
			if typ != "" {
				break
			}
		}
	}
	typ = strings.TrimSpace(typ)
	if _, skip := skippedAuthTypes[strings.ToLower(typ)]; skip {
		return nil
	}
	return &AuthBlock{Type: typ, Params: m[typ]}
}

func eventScripts(events []rawEvent) []string {
	pre, test := splitEvents(events)
	return append(pre, test...)
}

func splitEvents(events []rawEvent) (pre, test []string) {
	for _, ev := range events {
		if ev.Script == nil {
			continue
		}
		body := string(ev.Script.Exec)
		if strings.TrimSpace(body) == "" {
			continue
		}
		switch strings.ToLower(ev.Listen) {
		case "prerequest":
			pre = append(pre, body)
		case "test":
			test = append(test, body)
		}
	}
	return pre, test
}

func joinScripts(parts []string, extra string) string {
	var keep []string
	for _, p := range append(parts, extra) {
		if strings.TrimSpace(p) != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, "\n")
}

func normalizeURL(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	var u rawURL
	if err := json.Unmarshal(raw, &u); err != nil {
		return ""
	}
	// raw keeps {{var}} templates intact and avoids doubled schemes when the
	// host itself is a variable holding a full URL
	if u.Raw != "" {
		return u.Raw
	}
	protocol := u.Protocol
	if protocol == "" {
		protocol = defaultProtocol
	}
	host := joinParts(u.Host, ".")
	path := joinParts(u.Path, "/")
	return fmt.Sprintf("%s://%s/%s%s", protocol, host, path, buildQuery(u.Query))
}

func joinParts(raw json.RawMessage, sep string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(p, &obj); err == nil && obj.Value != "" {
			out = append(out, obj.Value)
		}
	}
	return strings.Join(out, sep)
}

func buildQuery(query []rawKV) string {
	var parts []string
	for _, q := range query {
		if q.disabled() {
			continue
		}
		key, value := q.key(), string(q.Value)
		if !strings.Contains(key, "{{") {
			key = url.QueryEscape(key)
		}
		if !strings.Contains(value, "{{") {
			value = url.QueryEscape(value)
		}
		parts = append(parts, key+"="+value)
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

func parseHeaders(raw json.RawMessage) []Header {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '[':
		var kvs []rawKV
		if err := json.Unmarshal(raw, &kvs); err != nil {
			return nil
		}
		out := make([]Header, 0, len(kvs))
		for _, kv := range kvs {
			out = append(out, Header{Key: kv.key(), Value: string(kv.Value), Disabled: kv.disabled()})
		}
		return out
	case '{':
		obj, err := jsonx.Parse(raw)
		if err != nil {
			return nil
		}
		out := make([]Header, 0, len(obj.Members))
		for _, m := range obj.Members {
			out = append(out, Header{Key: m.Key, Value: m.Value.Text})
		}
		return out
	case '"':
		var block string
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil
		}
		var out []Header
		for _, line := range strings.Split(block, "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			out = append(out, Header{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
		}
		return out
	}
	return nil
}

func normalizeBody(b *rawBody) Body {
	if b == nil {
		return Body{Kind: BodyNone}
	}
	switch strings.ToLower(b.Mode) {
	case "raw", "":
		if b.Raw == "" {
			return Body{Kind: BodyNone}
		}
		return rawBodyOf(b.Raw)
	case "json":
		return rawBodyOf(firstNonEmpty(b.JSON, b.Raw))
	case "text", "xml", "sparql":
		return Body{Kind: BodyText, Raw: firstNonEmpty(b.Text, b.XML, b.Raw)}
	case "urlencoded", "formurlencoded":
		return Body{Kind: BodyURLEncoded, Fields: fields(append(b.URLEncoded, b.FormURLEncoded...))}
	case "formdata", "multipartform":
		return Body{Kind: BodyMultipart, Fields: fields(append(b.FormData, b.MultipartForm...))}
	case "graphql":
		if b.GraphQL == nil {
			return Body{Kind: BodyNone}
		}
		payload := map[string]any{"query": b.GraphQL.Query}
		if decoded, ok := graphQLVariables(b.GraphQL.Variables); ok {
			payload["variables"] = decoded
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return Body{Kind: BodyNone}
		}
		return Body{Kind: BodyJSON, Raw: string(data)}
	default:
		if b.Raw != "" {
			return rawBodyOf(b.Raw)
		}
		return Body{Kind: BodyNone}
	}
}

// graphQLVariables accepts the variables either inline or as a JSON string.
func graphQLVariables(raw json.RawMessage) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil, false
		}
		raw = []byte(s)
	}
	var decoded any
	if err := json.Unmarshal(jsonc.ToJSON(raw), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

// rawBodyOf classifies raw text as JSON when it parses once comments are
// stripped; the stored text is the comment-free form.
func rawBodyOf(raw string) Body {
	if strings.TrimSpace(raw) == "" {
		return Body{Kind: BodyNone}
	}
	if json.Valid([]byte(raw)) {
		return Body{Kind: BodyJSON, Raw: raw}
	}
	stripped := jsonc.ToJSON([]byte(raw))
	if json.Valid(stripped) {
		return Body{Kind: BodyJSON, Raw: string(stripped)}
	}
	return Body{Kind: BodyText, Raw: raw}
}

func fields(kvs []rawKV) []Field {
	out := make([]Field, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, Field{
			Key:      kv.key(),
			Value:    string(kv.Value),
			Type:     kv.Type,
			Disabled: kv.disabled(),
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
