package devweb

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
	"github.com/unkn0wn-root/devwebgen/internal/extract"
	"github.com/unkn0wn-root/devwebgen/internal/jsonx"
	"github.com/unkn0wn-root/devwebgen/internal/payload"
	"github.com/unkn0wn-root/devwebgen/internal/scripts"
	"github.com/unkn0wn-root/devwebgen/internal/util"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

const ind = "    "

func (r *run) requestCode(i int, req *collection.Request, tx string) string {
	r.request = req.Name
	defer func() { r.request = "" }()

	safe := r.names[i]
	resp := safe + "_response"
	conv := r.scriptsFor(i)
	var produced []correlation.Rule
	if r.opts.Correlation {
		produced = correlation.Produced(r.in.Rules, i)
	}
	validation, hasValidation := conv.Test.Validation()

	var b strings.Builder
	if r.opts.Comments {
		fmt.Fprintf(&b, "\n%s// %s", ind, commentText(req.Name))
		if d := strings.TrimSpace(req.Description); d != "" {
			for _, l := range strings.Split(d, "\n") {
				fmt.Fprintf(&b, "\n%s// %s", ind, strings.TrimRight(strings.ReplaceAll(l, "*/", "* /"), " \t\r"))
			}
		}
		if deps := r.dependencies(i); len(deps) > 0 {
			fmt.Fprintf(&b, "\n%s// Depends on: %s", ind, commentText(strings.Join(deps, ", ")))
		}
	}

	if conv.Pre != nil {
		text, warns := conv.Pre.Render(scripts.RenderOptions{Indent: ind, Ref: r.res.ref, Target: globalMember})
		b.WriteString(strings.TrimRight(text, "\n"))
		r.scriptWarnings(conv.Pre.Warnings, warns)
	}

	opts := r.options(req, produced, validation, hasValidation)
	fmt.Fprintf(&b, "\n%sconst %s = new load.WebRequest(%s).sendSync();", ind, resp, render(opts, ind))
	fmt.Fprintf(&b, "\n%sload.log(`%s - Status: ${%s.status}`, load.LogLevel.%s);",
		ind, templateText(req.Name), resp, r.opts.LogLevel)

	if len(produced) > 0 {
		b.WriteString("\n")
		for _, rule := range produced {
			fmt.Fprintf(&b, "\n%s%s = %s;", ind, globalMember(rule.Name), member(resp+".extractors", rule.Name))
			if r.opts.Comments {
				fmt.Fprintf(&b, " // Extracted %s", rule.Type)
			}
		}
	}

	if conv.Test != nil {
		extracted := make(map[string]bool, len(produced))
		for _, rule := range produced {
			extracted[rule.Name] = true
		}
		text, warns := conv.Test.Render(scripts.RenderOptions{
			Indent:    ind,
			Response:  resp,
			Ref:       r.res.ref,
			Target:    globalMember,
			Extracted: func(name string) bool { return extracted[name] },
		})
		b.WriteString(strings.TrimRight(text, "\n"))
		r.scriptWarnings(conv.Test.Warnings, warns)
		if hasValidation {
			fmt.Fprintf(&b, "\n%s// Validation checks from test script", ind)
			fmt.Fprintf(&b, "\n%sif (%s) {", ind, member(resp+".extractors", validation.Name))
			fmt.Fprintf(&b, "\n%s    load.log(%s, load.LogLevel.info);", ind, jsString("Validation passed: "+validation.Name))
			fmt.Fprintf(&b, "\n%s}", ind)
		}
	}

	if isCritical(req) || hasValidation {
		b.WriteString(r.guard(req, resp, tx, validation, hasValidation))
	}
	return b.String()
}

// guard aborts the iteration when a critical request fails. Inside a
// transaction the transaction is stopped as failed first.
func (r *run) guard(req *collection.Request, resp, tx string, v extract.Spec, validation bool) string {
	stop := ""
	if tx != "" {
		stop = fmt.Sprintf("%s    %s.stop(load.TransactionStatus.Failed);\n", ind, tx)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n%s// Check validation for critical request\n", ind)
	fmt.Fprintf(&b, "%sif (%s.status !== 200 && %s.status !== 201) {\n", ind, resp, resp)
	fmt.Fprintf(&b, "%s    load.log(`%s failed with status ${%s.status}`, load.LogLevel.error);\n", ind, templateText(req.Name), resp)
	b.WriteString(stop)
	fmt.Fprintf(&b, "%s    return false;\n%s}", ind, ind)
	if validation {
		fmt.Fprintf(&b, "\n%sif (!%s) {\n", ind, member(resp+".extractors", v.Name))
		fmt.Fprintf(&b, "%s    load.log(%s, load.LogLevel.error);\n", ind, jsString(req.Name+" validation failed"))
		b.WriteString(stop)
		fmt.Fprintf(&b, "%s    return false;\n%s}", ind, ind)
	}
	return b.String()
}

func (r *run) scriptWarnings(groups ...[]string) {
	for _, g := range groups {
		for _, w := range g {
			r.warn.Add(diag.StageScripts, r.request, w)
		}
	}
}

// dependencies lists the producers of everything request i consumes, once
// each in rule order.
func (r *run) dependencies(i int) []string {
	var out []string
	for _, rule := range correlation.Consumers(r.in.Rules, i) {
		out = append(out, rule.ProducerRequest)
	}
	return util.DedupeNonEmptyStrings(out)
}

var criticalPaths = []string{"/login", "/auth", "/token", "/session"}

func isCritical(req *collection.Request) bool {
	u := strings.ToLower(req.URL)
	for _, p := range criticalPaths {
		if strings.Contains(u, p) {
			return true
		}
	}
	name := strings.ToLower(req.Name)
	return strings.Contains(name, "login") || strings.Contains(name, "auth") || strings.Contains(name, "token")
}

func (r *run) options(req *collection.Request, produced []correlation.Rule, v extract.Spec, validation bool) *object {
	r.nextID++
	base, query := splitQuery(req.URL)
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}

	opts := &object{bare: true}
	opts.set("id", expr(fmt.Sprint(r.nextID)))
	opts.set("url", expr(r.res.str(base)))
	opts.set("method", expr(jsString(method)))
	opts.set("returnBody", expr("true"))

	var cfg *auth.Config
	if r.opts.Authentication {
		cfg = auth.For(req, r.in.Auth)
	}

	if headers := r.headers(req, cfg); !headers.empty() {
		opts.set("headers", headers)
	}
	if qs := r.queryString(query, cfg); !qs.empty() {
		opts.set("queryString", qs)
	}

	switch {
	case req.Body.IsZero():
	case method == "POST" || method == "PUT" || method == "PATCH":
		if body := r.body(req.Body); body != nil {
			opts.set("body", body)
		}
	default:
		r.warn.Addf(diag.StageGenerate, req.Name, "%s request body is not sent", method)
	}

	var extractors array
	if r.opts.Correlation {
		for _, rule := range produced {
			spec := rule.Extractor
			if spec.Name == "" {
				spec.Name = rule.Name
			}
			extractors = append(extractors, expr(extract.Render(spec)))
		}
	}
	if validation {
		extractors = append(extractors, expr(extract.Render(v)))
	}
	if len(extractors) > 0 {
		opts.set("extractors", extractors)
	}

	if signing := auth.SigningOptions(cfg); signing != "" {
		opts.set("awsSigning", expr(signing))
	}
	return opts
}

func (r *run) headers(req *collection.Request, cfg *auth.Config) *object {
	h := &object{}
	for _, hdr := range req.EnabledHeaders() {
		if hdr.Value == "" {
			continue
		}
		h.set(hdr.Key, expr(r.res.str(hdr.Value)))
	}
	if cfg == nil {
		return h
	}
	key, value, ok := auth.HeaderInjection(cfg)
	if !ok || h.has(key) {
		return h
	}
	if cfg.Type == auth.TypeBearer {
		if token := cfg.Get("token"); len(vars.Find(token)) > 0 {
			value = r.res.str("Bearer " + token)
		}
	}
	h.set(key, expr(value))
	return h
}

func (r *run) queryString(query string, cfg *auth.Config) *object {
	q := &object{}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if k == "" {
			continue
		}
		q.set(unescape(k), expr(r.res.str(unescape(v))))
	}
	if key, value, ok := auth.QueryInjection(cfg); ok && !q.has(key) {
		q.set(key, expr(value))
	}
	return q
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// splitQuery cuts the query and fragment off raw.
func splitQuery(raw string) (base, query string) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	base, query, _ = strings.Cut(raw, "?")
	return base, query
}

func (r *run) body(body collection.Body) node {
	switch body.Kind {
	case collection.BodyJSON:
		v, err := jsonx.Parse([]byte(quoteBareRefs(body.Raw)))
		if err != nil {
			r.warn.Add(diag.StageGenerate, r.request, "JSON body does not parse; sent as text")
			return expr(r.res.str(body.Raw))
		}
		return r.jsonNode(v)
	case collection.BodyURLEncoded:
		form := &object{}
		for _, f := range body.Fields {
			if f.Disabled || f.Key == "" {
				continue
			}
			form.set(f.Key, expr(r.res.str(f.Value)))
		}
		return form
	case collection.BodyMultipart:
		var entries array
		for _, f := range body.Fields {
			if f.Disabled || f.Key == "" {
				continue
			}
			if f.Type == "file" {
				entries = append(entries, expr(fmt.Sprintf("new load.MultipartBody.FileEntry(%s, %s)",
					jsString(f.Key), r.res.str(f.Value))))
				continue
			}
			entries = append(entries, expr(fmt.Sprintf("new load.MultipartBody.StringEntry(%s, %s)",
				jsString(f.Key), r.res.str(f.Value))))
		}
		return call{fn: "new load.MultipartBody", arg: entries}
	default:
		if body.Raw == "" {
			return nil
		}
		return expr(r.res.str(body.Raw))
	}
}

func (r *run) jsonNode(v *jsonx.Value) node {
	switch v.Kind {
	case jsonx.Object:
		o := &object{}
		for _, m := range v.Members {
			o.set(m.Key, r.jsonNode(m.Value))
		}
		return o
	case jsonx.Array:
		a := make(array, 0, len(v.Items))
		for _, item := range v.Items {
			a = append(a, r.jsonNode(item))
		}
		return a
	case jsonx.String:
		if payload.IsBase64(v.Text, r.minLen()) {
			return expr(r.store.Hoist(v.Text).Expr)
		}
		return expr(r.res.str(v.Text))
	default:
		return expr(v.Text)
	}
}

func (r *run) minLen() int {
	if r.opts.PayloadMinLen > 0 {
		return r.opts.PayloadMinLen
	}
	return payload.DefaultMinLen
}

// quoteBareRefs wraps {{x}} references that stand outside JSON strings in
// quotes so {"n": {{count}}} parses. A whole-string reference renders as
// its bare expression afterwards, so the value keeps its type.
func quoteBareRefs(raw string) string {
	var (
		b      strings.Builder
		inStr  bool
		escape bool
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inStr:
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inStr = false
			}
		case c == '"':
			inStr = true
		case c == '{' && strings.HasPrefix(raw[i:], "{{"):
			if end := strings.Index(raw[i:], "}}"); end > 0 {
				b.WriteString(`"` + raw[i:i+end+2] + `"`)
				i += end + 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

var nonIdentRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// identifiers hands out unique JavaScript names derived from request names.
type identifiers struct {
	seen map[string]int
}

func newIdentifiers() *identifiers {
	return &identifiers{seen: make(map[string]int)}
}

func (ids *identifiers) next(name string) string {
	base := sanitizeName(name)
	ids.seen[base]++
	if n := ids.seen[base]; n > 1 {
		candidate := fmt.Sprintf("%s_%d", base, n)
		for ids.seen[candidate] > 0 {
			n++
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		ids.seen[candidate] = 1
		return candidate
	}
	return base
}

func sanitizeName(name string) string {
	s := strings.Trim(nonIdentRe.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "request"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}
