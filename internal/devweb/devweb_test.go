package devweb

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
)

const fixedTime = "2026-01-02T03:04:05Z"

func newCollection(vars []collection.Variable, reqs ...*collection.Request) *collection.Collection {
	for i, r := range reqs {
		r.Index = i
		if r.Method == "" {
			r.Method = "GET"
		}
	}
	return &collection.Collection{Name: "Shop", Format: collection.FormatPostman, Variables: vars, Requests: reqs}
}

func generate(t *testing.T, coll *collection.Collection, mutate func(*Input)) *Script {
	t.Helper()
	rules := correlation.Detect(coll.Requests)
	configs, _ := auth.Collect(coll)
	opts := DefaultOptions()
	opts.Timestamp = fixedTime
	in := Input{
		Collection: coll,
		Rules:      rules,
		Classes:    classify.Classify(classify.Input{Collection: coll, Rules: rules}),
		Auth:       configs,
		Options:    opts,
	}
	if mutate != nil {
		mutate(&in)
	}
	script, err := NewGenerator(nil).Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := Validate(script.Text); err != nil {
		t.Fatalf("generated script does not parse: %v\n%s", err, script.Text)
	}
	return script
}

func mustContain(t *testing.T, text string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(text, p) {
			t.Fatalf("expected script to contain %q\n%s", p, text)
		}
	}
}

func mustNotContain(t *testing.T, text string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if strings.Contains(text, p) {
			t.Fatalf("script should not contain %q\n%s", p, text)
		}
	}
}

func TestGenerateLoginProfile(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{
			Name:       "Login",
			Method:     "POST",
			URL:        "https://api.test/v1/signin",
			Body:       collection.Body{Kind: collection.BodyJSON, Raw: `{"user":"demo"}`},
			TestScript: `var jsonData = pm.response.json(); pm.environment.set("token", jsonData.access_token);`,
		},
		&collection.Request{
			Name:    "GetProfile",
			URL:     "https://api.test/v1/me",
			Headers: []collection.Header{{Key: "Authorization", Value: "Bearer {{token}}"}},
		},
	)
	script := generate(t, coll, nil)

	mustContain(t, script.Text,
		"load.global.token = null; // For token",
		`new load.JsonPathExtractor("token", "$.access_token")`,
		"load.global.token = Login_response.extractors.token; // Extracted token",
		`"Authorization": `+"`Bearer ${load.global.token}`",
		"// Depends on: Login",
		"const GetProfile_response = new load.WebRequest({",
		`let TS01 = new load.Transaction("default");`,
		"TS01.stop(load.TransactionStatus.Failed);",
		"TS01.stop(load.TransactionStatus.Passed);",
		"load.thinkTime(1);",
	)
	if strings.Index(script.Text, "Login_response =") > strings.Index(script.Text, "GetProfile_response =") {
		t.Fatalf("requests out of order")
	}
}

func TestGenerateParameterizedQuery(t *testing.T) {
	t.Parallel()

	coll := newCollection(
		[]collection.Variable{{Key: "apiKey", Value: "abc123"}},
		&collection.Request{Name: "Search", URL: "https://api.test/search?key={{apiKey}}&q=shoes%20red"},
	)
	script := generate(t, coll, nil)

	mustContain(t, script.Text,
		`url: "https://api.test/search"`,
		`"key": load.params.apiKey`,
		`"q": "shoes red"`,
	)
	mustNotContain(t, script.Text, "abc123", "load.global.apiKey")
}

func TestGenerateStaticWithoutClassification(t *testing.T) {
	t.Parallel()

	coll := newCollection(
		[]collection.Variable{{Key: "baseUrl", Value: "https://shop.test"}},
		&collection.Request{Name: "Home", URL: "{{baseUrl}}/home/{{missing}}"},
	)
	script := generate(t, coll, func(in *Input) { in.Classes = nil })

	mustContain(t, script.Text, `url: "https://shop.test/home/{{missing}}"`)
	var found bool
	for _, w := range script.Warnings {
		if w.Stage == diag.StageGenerate && w.Request == "Home" && strings.Contains(w.Message, "{{missing}}") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unresolved warning, got %v", script.Warnings)
	}
}

func TestGenerateBuiltins(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil, &collection.Request{
		Name:    "Stamp",
		URL:     "https://api.test/t?ts={{$timestamp}}",
		Headers: []collection.Header{{Key: "X-Trace", Value: "trace-{{$timestamp}}"}},
	})
	script := generate(t, coll, nil)
	mustContain(t, script.Text,
		`"ts": Math.floor(Date.now() / 1000)`,
		"`trace-${Math.floor(Date.now() / 1000)}`",
	)
}

func TestGeneratePayloadSideFile(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("QUJD", 500)
	body := `{"payload": {"data": "` + blob + `", "n": {{count}}}}`
	coll := newCollection(
		[]collection.Variable{{Key: "count", Value: "3"}},
		&collection.Request{Name: "Upload A", Method: "POST", URL: "https://api.test/a",
			Body: collection.Body{Kind: collection.BodyJSON, Raw: body}},
		&collection.Request{Name: "Upload B", Method: "PUT", URL: "https://api.test/b",
			Body: collection.Body{Kind: collection.BodyJSON, Raw: body}},
	)
	script := generate(t, coll, nil)

	if len(script.SideFiles) != 1 {
		t.Fatalf("expected one side file, got %d", len(script.SideFiles))
	}
	f := script.SideFiles[0]
	if !strings.Contains(f.Content, blob) {
		t.Fatalf("side file lost the payload")
	}
	ref := "load.global.payload_" + f.Hash
	if got := strings.Count(script.Text, `"data": `+ref); got != 2 {
		t.Fatalf("expected both requests to reference %s, got %d", ref, got)
	}
	mustContain(t, script.Text, `"n": load.params.count`, f.Name)
	mustNotContain(t, script.Text, blob)
}

func TestGenerateForms(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{Name: "Form", Method: "POST", URL: "https://api.test/form",
			Body: collection.Body{Kind: collection.BodyURLEncoded, Fields: []collection.Field{
				{Key: "a", Value: "1"},
				{Key: "skip", Value: "x", Disabled: true},
			}}},
		&collection.Request{Name: "File", Method: "POST", URL: "https://api.test/file",
			Body: collection.Body{Kind: collection.BodyMultipart, Fields: []collection.Field{
				{Key: "note", Value: "hi"},
				{Key: "doc", Value: "/tmp/a.pdf", Type: "file"},
			}}},
		&collection.Request{Name: "Get With Body", URL: "https://api.test/g",
			Body: collection.Body{Kind: collection.BodyText, Raw: "ignored"}},
	)
	script := generate(t, coll, nil)

	mustContain(t, script.Text,
		`"a": "1"`,
		"new load.MultipartBody([",
		`new load.MultipartBody.StringEntry("note", "hi")`,
		`new load.MultipartBody.FileEntry("doc", "/tmp/a.pdf")`,
	)
	mustNotContain(t, script.Text, `"skip"`, `"ignored"`)
	var warned bool
	for _, w := range script.Warnings {
		if w.Request == "Get With Body" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning for the GET body")
	}
}

func TestGenerateTransactionsKeepOrder(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{Name: "one", Folder: "Shop/Users", URL: "https://api.test/1"},
		&collection.Request{Name: "two", Folder: "Admin/Users", URL: "https://api.test/2"},
		&collection.Request{Name: "three", Folder: "Shop/Users", URL: "https://api.test/3"},
	)
	script := generate(t, coll, nil)

	want := []Transaction{
		{Var: "TS01", Name: "Users", Folder: "Shop/Users"},
		{Var: "TS02", Name: "Users_1", Folder: "Admin/Users"},
	}
	if diff := cmp.Diff(want, script.Transactions); diff != "" {
		t.Fatalf("transactions mismatch (-want +got):\n%s", diff)
	}
	if got := strings.Count(script.Text, "TS01.start();"); got != 2 {
		t.Fatalf("expected TS01 to start twice, got %d", got)
	}
	if got := strings.Count(script.Text, "new load.Transaction("); got != 2 {
		t.Fatalf("expected two declarations, got %d", got)
	}
	order := regexp.MustCompile(`const (\w+)_response`).FindAllStringSubmatch(script.Text, -1)
	var names []string
	for _, m := range order {
		names = append(names, m[1])
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, names); diff != "" {
		t.Fatalf("request order changed (-want +got):\n%s", diff)
	}
}

func TestGenerateSequential(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{Name: "a", URL: "https://api.test/a"},
		&collection.Request{Name: "b", URL: "https://api.test/b"},
	)
	script := generate(t, coll, func(in *Input) { in.Options.Transactions = false })
	mustContain(t, script.Text, "load.sleep(1);")
	mustNotContain(t, script.Text, "new load.Transaction(", "load.thinkTime(")
}

func TestGenerateAuthInjection(t *testing.T) {
	t.Parallel()

	coll := newCollection(
		[]collection.Variable{{Key: "apiToken", Value: "s3cr3t"}},
		&collection.Request{Name: "Orders", URL: "https://api.test/orders"},
		&collection.Request{Name: "Explicit", URL: "https://api.test/x",
			Headers: []collection.Header{{Key: "authorization", Value: "Basic abc"}}},
	)
	coll.Auth = &collection.AuthBlock{Type: "bearer", Params: []byte(`[{"key":"token","value":"{{apiToken}}"}]`)}
	coll.AuthOwners = []collection.AuthOwner{{Name: "Shop", Level: collection.AuthLevelCollection, Block: coll.Auth}}
	script := generate(t, coll, nil)

	mustContain(t, script.Text,
		"// Authentication Setup",
		`"Authorization": `+"`Bearer ${load.params.apiToken}`",
		`"authorization": "Basic abc"`,
	)
	if got := strings.Count(script.Text, "`Bearer ${load.params.apiToken}`"); got != 1 {
		t.Fatalf("explicit header should win over injection, got %d injections", got)
	}
}

func TestGenerateScripts(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil, &collection.Request{
		Name:             "Check",
		URL:              "https://api.test/check",
		PreRequestScript: `pm.environment.set("stamp", Date.now());`,
		TestScript:       `pm.test("Status code is 200", function () { pm.response.to.have.status(200); });`,
	})
	script := generate(t, coll, nil)

	mustContain(t, script.Text,
		"// Pre-request Script",
		"load.global.stamp = Date.now();",
		`new load.TextCheckExtractor("validationCheck"`,
		"if (!Check_response.extractors.validationCheck) {",
	)
}

func TestGenerateNonIdentifierScriptVariable(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{
			Name:             "A",
			URL:              "https://api.test/a",
			PreRequestScript: `pm.variables.set("req-id", "abc");`,
		},
		&collection.Request{Name: "B", URL: "https://api.test/b/{{req-id}}"},
	)
	script := generate(t, coll, nil)

	mustContain(t, script.Text, `load.global["req-id"] = "abc";`)
	mustNotContain(t, script.Text, "load.global.req-id")
	if got := strings.Count(script.Text, `load.global["req-id"]`); got < 2 {
		t.Fatalf("expected the URL of B to read the script variable, got %d references\n%s", got, script.Text)
	}
}

func TestGenerateCorrelationDisabled(t *testing.T) {
	t.Parallel()

	coll := newCollection(nil,
		&collection.Request{
			Name:       "Login",
			Method:     "POST",
			URL:        "https://api.test/v1/signin",
			TestScript: `var jsonData = pm.response.json(); pm.environment.set("token", jsonData.access_token);`,
		},
		&collection.Request{
			Name:    "GetProfile",
			URL:     "https://api.test/v1/me",
			Headers: []collection.Header{{Key: "Authorization", Value: "Bearer {{token}}"}},
		},
	)
	script := generate(t, coll, func(in *Input) { in.Options.Correlation = false })

	mustNotContain(t, script.Text,
		"Login_response.extractors.token",
		`new load.JsonPathExtractor("token"`,
	)
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *collection.Collection {
		return newCollection(
			[]collection.Variable{{Key: "host", Value: "api.test"}},
			&collection.Request{Name: "A", URL: "https://{{host}}/a", Folder: "F"},
			&collection.Request{Name: "A", URL: "https://{{host}}/b", Folder: "G"},
		)
	}
	first := generate(t, build(), nil)
	second := generate(t, build(), nil)
	if diff := cmp.Diff(first.Text, second.Text); diff != "" {
		t.Fatalf("output not deterministic (-first +second):\n%s", diff)
	}
	mustContain(t, first.Text, "const A_response", "const A_2_response", "Generated on: "+fixedTime)
}

func TestGenerateCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coll := newCollection(nil, &collection.Request{Name: "a", URL: "https://api.test/a"})
	if _, err := NewGenerator(nil).Generate(ctx, Input{Collection: coll, Options: DefaultOptions()}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestQuoteBareRefs(t *testing.T) {
	t.Parallel()

	got := quoteBareRefs(`{"n": {{count}}, "s": "{{x}} \"{{y}}\"", "a": [{{z}}]}`)
	want := `{"n": "{{count}}", "s": "{{x}} \"{{y}}\"", "a": ["{{z}}"]}`
	if got != want {
		t.Fatalf("quoteBareRefs = %s", got)
	}
}

func TestIdentifiersUnique(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "a_2", "Get User", "1st", "", "a b"}), 1, 12).Draw(t, "names")
		ids := newIdentifiers()
		seen := make(map[string]bool)
		for _, n := range names {
			id := ids.next(n)
			if seen[id] {
				t.Fatalf("duplicate identifier %q for %v", id, names)
			}
			if !identRe.MatchString(id) {
				t.Fatalf("invalid identifier %q", id)
			}
			seen[id] = true
		}
	})
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Get User":    "Get_User",
		"1st call":    "_1st_call",
		"--":          "request",
		"list/items?": "list_items",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
