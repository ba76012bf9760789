package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
	"github.com/unkn0wn-root/devwebgen/internal/params"
	"github.com/unkn0wn-root/devwebgen/internal/payload"
	"github.com/unkn0wn-root/devwebgen/internal/scripts"
)

func fixture() Input {
	reqs := []*collection.Request{
		{Index: 0, Name: "Login", Method: "post", Folder: "Auth", URL: "https://api.test/login",
			TestScript: `pm.environment.set("token", pm.response.json().token);`},
		{Index: 1, Name: "Me", Method: "GET", URL: "https://api.test/me?q={{query}}",
			Headers: []collection.Header{{Key: "Authorization", Value: "Bearer {{token}}"}}},
	}
	coll := &collection.Collection{
		Name:      "Shop",
		Format:    collection.FormatPostman,
		Variables: []collection.Variable{{Key: "host", Value: "api.test"}},
		Requests:  reqs,
	}
	rules := correlation.Detect(reqs)
	return Input{
		Collection: coll,
		Rules:      rules,
		Parameters: params.Extract(coll, nil),
		Auth:       []auth.Config{{Name: "Shop", Type: auth.TypeBearer, Values: map[string]string{"token": "x"}}},
		Scripts: []devweb.Converted{
			{Test: scripts.Convert(reqs[0].TestScript, scripts.KindTest)},
			{},
		},
		Classes:   classify.Classify(classify.Input{Collection: coll, Rules: rules}),
		SideFiles: []payload.File{{Name: "payload_abc.js", Hash: "abc", Size: 1200}},
		Warnings:  []diag.Warning{{Stage: diag.StageGenerate, Request: "Me", Message: "something | odd"}},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	r := Build(fixture())
	if diff := cmp.Diff(map[string]int{"POST": 1, "GET": 1}, r.Requests.ByMethod); diff != "" {
		t.Fatalf("byMethod mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"Auth": 1, "root": 1}, r.Requests.ByFolder); diff != "" {
		t.Fatalf("byFolder mismatch (-want +got):\n%s", diff)
	}
	if r.Requests.WithCustomScripts != 1 || r.CustomScripts.Test != 1 || r.CustomScripts.PreRequest != 0 {
		t.Fatalf("unexpected script counts %+v", r.CustomScripts)
	}
	if r.Correlations.Total == 0 || r.Correlations.Summary.ByType["token"] == 0 {
		t.Fatalf("expected token correlation, got %+v", r.Correlations)
	}
	if r.Authentication.TotalConfigs != 1 {
		t.Fatalf("unexpected auth summary %+v", r.Authentication)
	}
	if diff := cmp.Diff([]string{"query"}, r.Classification.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
	if len(r.SideFiles) != 1 || r.SideFiles[0].Size != 1200 {
		t.Fatalf("unexpected side files %+v", r.SideFiles)
	}
}

func TestJSONEmptySlices(t *testing.T) {
	t.Parallel()

	out, err := Build(Input{}).JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(string(out), "null") {
		t.Fatalf("empty report should not contain null lists:\n%s", out)
	}
}

func TestJSONDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Build(fixture()).JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	second, err := Build(fixture()).JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("report not deterministic (-first +second):\n%s", diff)
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	md := Build(fixture()).Markdown()
	for _, want := range []string{
		"# Shop",
		"## Correlations",
		"| token | token | Login | Me |",
		"`payload_abc.js` (1200 bytes)",
		"Me: something | odd",
		"**Referenced but never declared:** `query`",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}
