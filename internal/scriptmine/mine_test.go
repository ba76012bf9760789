package scriptmine

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/devwebgen/internal/extract"
)

func TestMinePostmanWrites(t *testing.T) {
	t.Parallel()

	script := strings.Join([]string{
		`var jsonData = pm.response.json();`,
		`pm.environment.set("token", jsonData.access_token);`,
		`pm.globals.set('orderId', jsonData["order"]['id']);`,
		`pm.collectionVariables.set("xsrf", pm.response.headers.get("X-CSRF-Token"));`,
		`pm.environment.set("sid", pm.cookies.get("JSESSIONID"));`,
		`pm.variables.set("local", 1);`,
	}, "\n")

	res := Mine(script)
	want := []Write{
		{Name: "token", Source: "jsonData.access_token", Rule: "pm-scope-set", Produces: true, Extractor: extract.KindJSON, Path: "$.access_token"},
		{Name: "orderId", Source: `jsonData["order"]['id']`, Rule: "pm-scope-set", Produces: true, Extractor: extract.KindJSON, Path: "$.order.id"},
		{Name: "xsrf", Source: `pm.response.headers.get("X-CSRF-Token"`, Rule: "pm-scope-set", Produces: true, Extractor: extract.KindHeader, Path: "X-CSRF-Token"},
		{Name: "sid", Source: `pm.cookies.get("JSESSIONID"`, Rule: "pm-scope-set", Produces: true, Extractor: extract.KindCookie, Path: "JSESSIONID"},
		{Name: "local", Source: "1", Rule: "pm-variables-set", Extractor: extract.KindJSON, Path: "$"},
	}
	if diff := cmp.Diff(want, res.Writes); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}
	if got := len(res.Producing()); got != 4 {
		t.Fatalf("expected 4 producing writes, got %d", got)
	}
}

func TestMineBrunoAndReads(t *testing.T) {
	t.Parallel()

	script := `
bru.setVar("userId", res.body.user.id);
bru.setEnvVar("region", "eu");
const t = bru.getVar("token");
const again = bru.getVar("token");
const h = pm.environment.get('host');
const e = bru.getEnvVar("region");
`
	res := Mine(script)
	if diff := cmp.Diff([]string{"userId", "region"}, res.WrittenNames()); diff != "" {
		t.Fatalf("written names mismatch (-want +got):\n%s", diff)
	}
	if res.Writes[0].Path != "$.user.id" || !res.Writes[0].Produces {
		t.Fatalf("unexpected bru write %+v", res.Writes[0])
	}
	if res.Writes[1].Produces {
		t.Fatalf("setEnvVar should not produce a correlation")
	}
	if diff := cmp.Diff([]string{"host", "token", "region"}, res.Reads); diff != "" {
		t.Fatalf("reads mismatch (-want +got):\n%s", diff)
	}
}

func TestMineMalformedNeverFails(t *testing.T) {
	t.Parallel()

	for _, script := range []string{"", "pm.environment.set(", "}}}{{{", "bru.setVar(\"\", x)"} {
		res := Mine(script)
		if len(res.Writes) != 0 || len(res.Reads) != 0 {
			t.Fatalf("expected empty result for %q, got %+v", script, res)
		}
	}
}

func TestJSONPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"jsonData.access_token":     "$.access_token",
		"jsonData.data.items[0].id": "$.data.items[0].id",
		`responseBody["a"]["b"]`:    "$.a.b",
		"pm.response.json().token":  "$.token",
		"Date.now()":                "$",
	}
	for in, want := range cases {
		if got := JSONPath(in); got != want {
			t.Fatalf("JSONPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInferType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, source, want string
	}{
		{"authToken", "", TypeToken},
		{"x", "jsonData.token", TypeToken},
		{"sessionKey", "", TypeSessionID},
		{"authCode", "", TypeAuth},
		{"userId", "", TypeID},
		{"csrf", "", TypeCSRF},
		{"nonce", "", TypeNonce},
		{"timestamp", "", TypeTimestamp},
		{"other", "", TypeDynamic},
	}
	for _, tc := range cases {
		if got := InferType(tc.name, tc.source); got != tc.want {
			t.Fatalf("InferType(%q, %q) = %s, want %s", tc.name, tc.source, got, tc.want)
		}
	}
}

func TestMineAllKeepsOrder(t *testing.T) {
	t.Parallel()

	scripts := []string{
		`bru.setVar("a", res.body.a)`,
		"",
		`pm.environment.set("c", jsonData.c)`,
	}
	results, err := MineAll(context.Background(), scripts)
	if err != nil {
		t.Fatalf("mine all: %v", err)
	}
	if len(results) != 3 || results[0].Writes[0].Name != "a" || len(results[1].Writes) != 0 || results[2].Writes[0].Name != "c" {
		t.Fatalf("unexpected results %+v", results)
	}
}
