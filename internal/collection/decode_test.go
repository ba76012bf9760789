package collection

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
)

func loadFixture(t *testing.T, name string) *Collection {
	t.Helper()
	coll, err := Load(context.Background(), filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return coll
}

func TestDecodePostmanOrderAndFolders(t *testing.T) {
	t.Parallel()

	coll := loadFixture(t, "postman_shop.json")
	if coll.Format != FormatPostman {
		t.Fatalf("expected postman format, got %s", coll.Format)
	}
	if coll.Name != "Shop API" {
		t.Fatalf("unexpected name %q", coll.Name)
	}

	var got [][3]any
	for _, req := range coll.Requests {
		got = append(got, [3]any{req.Index, req.Name, req.Folder})
	}
	want := [][3]any{
		{0, "Login", "Auth"},
		{1, "List products", "Catalog/Products"},
		{2, "Create order", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Auth", "Catalog/Products", ""}, coll.Folders()); diff != "" {
		t.Fatalf("folders mismatch (-want +got):\n%s", diff)
	}
	if coll.Requests[1].Depth != 2 {
		t.Fatalf("expected depth 2, got %d", coll.Requests[1].Depth)
	}
}

func TestDecodePostmanRequestDetails(t *testing.T) {
	t.Parallel()

	coll := loadFixture(t, "postman_shop.json")
	login := coll.Requests[0]
	if login.Method != "POST" {
		t.Fatalf("method not upper-cased: %s", login.Method)
	}
	if login.URL != "{{baseUrl}}/api/login" {
		t.Fatalf("expected raw url, got %s", login.URL)
	}
	if login.ID != "req_0" {
		t.Fatalf("expected synthesized id, got %s", login.ID)
	}
	if login.Body.Kind != BodyJSON {
		t.Fatalf("commented json body should be raw-json, got %s", login.Body.Kind)
	}
	if !json.Valid([]byte(login.Body.Raw)) {
		t.Fatalf("stored body should be plain json: %q", login.Body.Raw)
	}
	if !strings.Contains(login.TestScript, `pm.environment.set("authToken", jsonData.data.token);`) {
		t.Fatalf("test script not joined: %q", login.TestScript)
	}
	if len(login.EnabledHeaders()) != 1 {
		t.Fatalf("disabled header should be skipped: %#v", login.EnabledHeaders())
	}
	if len(login.ExampleHeaders) != 1 || login.ExampleHeaders[0].Key != "Set-Cookie" {
		t.Fatalf("example headers missing: %#v", login.ExampleHeaders)
	}
	if len(login.ExampleBodies) != 1 {
		t.Fatalf("example body missing")
	}

	list := coll.Requests[1]
	if want := "https://shop.example.com/api/products?page=1&q={{search}}"; list.URL != want {
		t.Fatalf("rebuilt url = %s, want %s", list.URL, want)
	}
	wantHeaders := []Header{
		{Key: "Accept", Value: "application/json"},
		{Key: "X-Trace", Value: "{{traceId}}"},
	}
	if diff := cmp.Diff(wantHeaders, list.Headers); diff != "" {
		t.Fatalf("object headers mismatch (-want +got):\n%s", diff)
	}

	order := coll.Requests[2]
	if order.Auth != nil {
		t.Fatalf("noauth should not produce a block")
	}
	if order.Body.Kind != BodyURLEncoded || len(order.Body.Fields) != 2 || order.Body.Fields[1].Value != "2" {
		t.Fatalf("unexpected urlencoded body: %#v", order.Body)
	}
}

func TestDecodePostmanVariablesAuthScripts(t *testing.T) {
	t.Parallel()

	coll := loadFixture(t, "postman_shop.json")
	if len(coll.Variables) != 5 || !coll.Variables[4].Disabled {
		t.Fatalf("unexpected variables: %#v", coll.Variables)
	}
	if coll.Auth == nil || coll.Auth.Type != "bearer" {
		t.Fatalf("collection auth missing: %#v", coll.Auth)
	}
	var levels []AuthLevel
	for _, o := range coll.AuthOwners {
		levels = append(levels, o.Level)
	}
	if diff := cmp.Diff([]AuthLevel{AuthLevelCollection, AuthLevelFolder}, levels); diff != "" {
		t.Fatalf("auth owners mismatch (-want +got):\n%s", diff)
	}
	if coll.AuthOwners[1].Name != "Catalog" {
		t.Fatalf("folder owner name = %s", coll.AuthOwners[1].Name)
	}
	if len(coll.Scripts) != 1 || !strings.Contains(coll.Scripts[0], "traceId") {
		t.Fatalf("collection scripts missing: %#v", coll.Scripts)
	}
}

func TestDecodeBrunoExport(t *testing.T) {
	t.Parallel()

	coll := loadFixture(t, "bruno_export.json")
	if coll.Format != FormatBruno || coll.Name != "Bruno Shop" {
		t.Fatalf("unexpected header: %s %s", coll.Format, coll.Name)
	}
	if len(coll.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(coll.Requests))
	}
	get := coll.Requests[0]
	if get.ID != "u-1" || get.Folder != "Users" {
		t.Fatalf("unexpected id/folder: %s %s", get.ID, get.Folder)
	}
	if get.Auth != nil {
		t.Fatalf("inherit should resolve to no request auth")
	}
	if len(get.EnabledHeaders()) != 1 {
		t.Fatalf("enabled=false header should be skipped")
	}
	if !strings.Contains(get.PreRequestScript, "requestedAt") || !strings.Contains(get.TestScript, "userEmail") {
		t.Fatalf("scripts not mapped: %q / %q", get.PreRequestScript, get.TestScript)
	}
	if !strings.Contains(get.TestScript, `test("ok"`) {
		t.Fatalf("tests not appended: %q", get.TestScript)
	}

	search := coll.Requests[1]
	if search.Body.Kind != BodyJSON || search.Body.Raw != `{"query":"query { me { id } }","variables":{"limit":5}}` {
		t.Fatalf("graphql body = %#v", search.Body)
	}
	if search.Auth == nil || search.Auth.Type != "basic" {
		t.Fatalf("request auth = %#v", search.Auth)
	}
	if coll.Auth == nil || coll.Auth.Type != "bearer" {
		t.Fatalf("root auth = %#v", coll.Auth)
	}
	if len(coll.Variables) != 1 || coll.Variables[0].Key != "host" {
		t.Fatalf("root vars = %#v", coll.Variables)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"info": `), FormatPostman)
	if err == nil {
		t.Fatalf("expected error")
	}
	if errdef.CodeOf(err) != errdef.CodeParse {
		t.Fatalf("expected parse code, got %s", errdef.CodeOf(err))
	}
}

func TestDecodeMalformedItemDegrades(t *testing.T) {
	t.Parallel()

	data := []byte(`{"info":{"name":"x","schema":"s"},"item":[
		{"name":"bad","request":{"method":42}},
		{"name":"plain","request":"https://example.com/a"}
	]}`)
	coll, err := Decode(data, "")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(coll.Requests) != 2 {
		t.Fatalf("expected both requests, got %d", len(coll.Requests))
	}
	if len(coll.Warnings) != 1 {
		t.Fatalf("expected one warning, got %#v", coll.Warnings)
	}
	if coll.Requests[1].URL != "https://example.com/a" || coll.Requests[1].Method != "GET" {
		t.Fatalf("string request = %#v", coll.Requests[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	if errdef.CodeOf(err) != errdef.CodeFilesystem {
		t.Fatalf("expected filesystem code, got %v", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, filepath.Join("testdata", "postman_shop.json")); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "postman_shop.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if issues := Validate(data); len(issues) != 0 {
		t.Fatalf("fixture should validate: %v", issues)
	}
	if issues := Validate([]byte(`{"item": "nope"}`)); len(issues) == 0 {
		t.Fatalf("expected schema issues")
	}
}

func TestDeclaredEnvironmentWins(t *testing.T) {
	t.Parallel()

	coll := &Collection{Variables: []Variable{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "c", Value: "3", Disabled: true},
	}}
	got := coll.Declared([]Variable{{Key: "b", Value: "env"}, {Key: "d", Value: "4"}})
	want := []Variable{{Key: "a", Value: "1"}, {Key: "b", Value: "env"}, {Key: "d", Value: "4"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("declared mismatch (-want +got):\n%s", diff)
	}
}
