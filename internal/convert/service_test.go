package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/unkn0wn-root/devwebgen/internal/bundle"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/scriptwriter"
	"github.com/unkn0wn-root/devwebgen/internal/telemetry"
)

func request(out string) Request {
	opts := devweb.DefaultOptions()
	opts.Timestamp = "2026-01-02T03:04:05Z"
	return Request{
		Collection:     filepath.Join("testdata", "shop.json"),
		OutputDir:      out,
		Options:        opts,
		Classification: true,
		Scenario:       bundle.DefaultScenario(),
	}
}

func TestAnalyzeBuildsScriptAndReport(t *testing.T) {
	t.Parallel()

	svc := NewService(zaptest.NewLogger(t), nil)
	res, err := svc.Analyze(context.Background(), request(""))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Report.Requests.Total != 2 {
		t.Fatalf("expected 2 requests, got %d", res.Report.Requests.Total)
	}
	if res.Report.Correlations.Total == 0 {
		t.Fatalf("expected the login token to be correlated")
	}
	text := res.Script.Text
	for _, part := range []string{"authToken", "extractors", "sendSync()", "TS01.start();"} {
		if !strings.Contains(text, part) {
			t.Fatalf("script missing %q:\n%s", part, text)
		}
	}
	if err := devweb.Validate(text); err != nil {
		t.Fatalf("script does not parse: %v", err)
	}
	if res.Bundle.Lookup(bundle.MainFile) == nil {
		t.Fatalf("bundle has no %s", bundle.MainFile)
	}
	if len(res.Written) != 0 {
		t.Fatalf("analyze must not write, got %v", res.Written)
	}
}

func TestAnalyzeWithEnvironment(t *testing.T) {
	t.Parallel()

	req := request("")
	req.Environment = filepath.Join("testdata", "staging.json")
	req.Classification = false
	req.Options.Parameterization = false
	res, err := NewService(nil, nil).Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(res.Script.Text, "https://staging.example.com/api/login") {
		t.Fatalf("environment value not inlined:\n%s", res.Script.Text)
	}
	if res.Bundle.Lookup(bundle.ParamsFile) != nil {
		t.Fatalf("parameters file should be omitted when parameterization is off")
	}
}

func TestRunWritesBundle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	svc := NewService(nil, nil)
	res, err := svc.Run(context.Background(), request(dir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var names []string
	for _, f := range res.Bundle.Files {
		names = append(names, f.Name)
	}
	if len(res.Written) != len(names) {
		t.Fatalf("wrote %d of %d files", len(res.Written), len(names))
	}
	data, err := os.ReadFile(filepath.Join(dir, bundle.MainFile))
	if err != nil {
		t.Fatalf("read main: %v", err)
	}
	if string(data) != res.Script.Text {
		t.Fatalf("written script differs from generated text")
	}

	if _, err := svc.Run(context.Background(), request(dir)); err == nil {
		t.Fatalf("expected refusal to overwrite existing files")
	}
	again := request(dir)
	again.Overwrite = true
	if _, err := svc.Run(context.Background(), again); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
}

type recordingWriter struct {
	dir   string
	names []string
}

func (w *recordingWriter) WriteBundle(
	_ context.Context,
	dir string,
	files []bundle.File,
	_ scriptwriter.Options,
) ([]string, error) {
	w.dir = dir
	for _, f := range files {
		w.names = append(w.names, f.Name)
	}
	return w.names, nil
}

func TestRunUsesWriter(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	svc := NewService(nil, nil)
	svc.Writer = w
	if _, err := svc.Run(context.Background(), request("out")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.dir != "out" {
		t.Fatalf("unexpected dir %q", w.dir)
	}
	if len(w.names) == 0 || w.names[0] != bundle.MainFile {
		t.Fatalf("expected %s first, got %v", bundle.MainFile, w.names)
	}
}

func TestServiceRequiresCollaborators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		svc  *Service
		run  bool
		want string
	}{
		{"reader", &Service{Generator: devweb.NewGenerator(nil)}, false, errReaderNotConfigured},
		{"generator", &Service{Reader: FileReader{}}, false, errGeneratorNotConfigured},
		{"writer", &Service{Reader: FileReader{}, Generator: devweb.NewGenerator(nil)}, true, errWriterNotConfigured},
	}
	for _, tc := range cases {
		var err error
		if tc.run {
			_, err = tc.svc.Run(context.Background(), request("out"))
		} else {
			_, err = tc.svc.Analyze(context.Background(), request(""))
		}
		if err == nil || err.Error() != tc.want {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRunRequiresOutputDir(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil, nil).Run(context.Background(), request(" ")); err == nil {
		t.Fatalf("expected error for empty output dir")
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewService(nil, nil).Analyze(ctx, request(""))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeMissingCollection(t *testing.T) {
	t.Parallel()

	req := request("")
	req.Collection = filepath.Join("testdata", "missing.json")
	if _, err := NewService(nil, nil).Analyze(context.Background(), req); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestAnalyzeRecordsStages(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	inst, err := telemetry.New(telemetry.Config{ServiceName: "devwebgen-test"},
		telemetry.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })

	if _, err := NewService(nil, inst).Analyze(context.Background(), request("")); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var got []string
	for _, span := range recorder.Ended() {
		got = append(got, span.Name())
	}
	want := []string{
		"devwebgen.load",
		"devwebgen.scripts",
		"devwebgen.auth",
		"devwebgen.correlation",
		"devwebgen.classify",
		"devwebgen.generate",
		"devwebgen.bundle",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stage spans mismatch (-want +got):\n%s", diff)
	}
	last := recorder.Ended()[len(got)-1]
	if last.Status().Code != codes.Ok {
		t.Fatalf("expected ok status, got %v", last.Status())
	}
}
