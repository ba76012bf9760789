package scriptwriter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unkn0wn-root/devwebgen/internal/bundle"
)

func TestWriteBundle(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	files := []bundle.File{
		{Name: "main.js", Content: []byte("// main\n")},
		{Name: "rts.yml", Content: []byte("a: 1\n")},
	}
	written, err := WriteBundle(context.Background(), dir, files, Options{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 files, got %v", written)
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.js"))
	if err != nil || string(data) != "// main\n" {
		t.Fatalf("unexpected main.js %q (%v)", data, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".devwebgen-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteBundleRefusesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.js"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	files := []bundle.File{
		{Name: "rts.yml", Content: []byte("a: 1\n")},
		{Name: "main.js", Content: []byte("new")},
	}
	if _, err := WriteBundle(context.Background(), dir, files, Options{}); err == nil {
		t.Fatalf("expected refusal without overwrite")
	}
	if _, err := os.Stat(filepath.Join(dir, "rts.yml")); err == nil {
		t.Fatalf("nothing should be written when refusing")
	}

	if _, err := WriteBundle(context.Background(), dir, files, Options{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "main.js"))
	if string(data) != "new" {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}

func TestWriteBundleCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WriteBundle(ctx, t.TempDir(), []bundle.File{{Name: "main.js"}}, Options{})
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.js"), []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := Diff(dir, "main.js", []byte("a\nc\n"))
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{"--- a/main.js", "+++ b/main.js", "-b", "+c"} {
		if !strings.Contains(out, want) {
			t.Fatalf("diff missing %q:\n%s", want, out)
		}
	}
	if out, _ := Diff(dir, "main.js", []byte("a\nb\n")); out != "" {
		t.Fatalf("identical content should not diff: %s", out)
	}
	out, err = Diff(dir, "new.js", []byte("x\n"))
	if err != nil || !strings.Contains(out, "+x") {
		t.Fatalf("missing file should diff against empty text: %q (%v)", out, err)
	}
}
