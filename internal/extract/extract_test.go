package extract

import "testing"

func TestRender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		spec Spec
		want string
	}{
		{Spec{Kind: KindJSON, Name: "authToken", Path: "$.data.token"},
			`new load.JsonPathExtractor("authToken", "$.data.token")`},
		{Spec{Kind: KindJSON, Name: "id"},
			`new load.JsonPathExtractor("id", "$.id")`},
		{Spec{Kind: KindJSON, Name: "id", Path: "items[0].id"},
			`new load.JsonPathExtractor("id", "$.items[0].id")`},
		{Spec{Kind: KindBoundary, Name: "authCode", Left: "code=", Right: "&"},
			`new load.BoundaryExtractor("authCode", "code=", "&")`},
		{Spec{Kind: KindBoundary, Name: "b"},
			`new load.BoundaryExtractor("b", "<", ">")`},
		{Spec{Kind: KindHeader, Name: "X-Token"},
			`new load.BoundaryExtractor("X-Token", "X-Token: ", "\r\n")`},
		{Spec{Kind: KindCookie, Name: "sid", Cookie: "JSESSIONID"},
			`new load.CookieExtractor("sid", "JSESSIONID")`},
		{Spec{Kind: KindRegex, Name: "r"},
			`new load.RegexpExtractor("r", "(.+)")`},
		{Spec{Kind: KindTextCheck, Name: "validationCheck", Text: "success"},
			`new load.TextCheckExtractor("validationCheck", { text: "success", scope: load.ExtractorScope.Body, failOn: false })`},
	}
	for _, tc := range cases {
		if got := Render(tc.spec); got != tc.want {
			t.Fatalf("Render(%+v)\n got %s\nwant %s", tc.spec, got, tc.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	cases := map[string]Kind{
		"regexp":     KindRegex,
		"Validation": KindTextCheck,
		"header":     KindHeader,
		"":           KindJSON,
		"unknown":    KindJSON,
	}
	for in, want := range cases {
		if got := ParseKind(in); got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
}
