package payload

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func blob(n int, seed byte) string {
	raw := make([]byte, n)
	for i := range raw {
		raw[i] = byte(i) ^ seed
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestIsBase64(t *testing.T) {
	t.Parallel()

	long := blob(1500, 7)
	cases := []struct {
		name string
		in   string
		min  int
		want bool
	}{
		{"long payload", long, 0, true},
		{"short", blob(10, 1), 0, false},
		{"short with low threshold", blob(10, 1), 8, true},
		{"bad charset", strings.Repeat("ab-_", 300), 0, false},
		{"not multiple of four", long[:len(long)-1], 0, false},
		{"three pads", strings.Repeat("A", 1001) + "===", 0, false},
		{"inner pad", strings.Repeat("A", 500) + "=" + strings.Repeat("A", 503), 0, false},
		{"whitespace", strings.Repeat("AAAA", 250) + " AAA", 0, false},
	}
	for _, tc := range cases {
		if got := IsBase64(tc.in, tc.min); got != tc.want {
			t.Fatalf("%s: IsBase64 = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHoistDedupes(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := blob(1500, 1)
	b := blob(1500, 2)

	first := s.Hoist(a)
	second := s.Hoist(b)
	again := s.Hoist(a)
	if first != again {
		t.Fatalf("same content should reuse ref: %+v vs %+v", first, again)
	}
	if first.Hash == second.Hash {
		t.Fatalf("distinct content should get distinct hashes")
	}
	files := s.Files()
	if len(files) != 2 || files[0].Name != first.File || files[1].Name != second.File {
		t.Fatalf("unexpected files %+v", files)
	}
	if !strings.HasPrefix(first.File, "payload_") || len(first.Hash) != 12 {
		t.Fatalf("unexpected file name %s", first.File)
	}
	want := first.Expr + ` = "` + a + `";` + "\n"
	if files[0].Content != want {
		t.Fatalf("side file content mismatch")
	}
	if first.Expr != "load.global.payload_"+first.Hash {
		t.Fatalf("unexpected expr %s", first.Expr)
	}
}

func TestHoistConcurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	payloads := []string{blob(1200, 3), blob(1200, 4), blob(1200, 5)}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			s.Hoist(p)
		}(payloads[i%len(payloads)])
	}
	wg.Wait()
	if s.Len() != len(payloads) {
		t.Fatalf("expected %d files, got %d", len(payloads), s.Len())
	}
}

func TestHoistOneFilePerDistinctPayload(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		pool := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Za-z0-9+/]{4,40}`), 1, 5, rapid.ID[string]).Draw(t, "pool")
		picks := rapid.SliceOfN(rapid.IntRange(0, len(pool)-1), 1, 20).Draw(t, "picks")
		s := NewStore()
		seen := map[int]bool{}
		var order []string
		for _, i := range picks {
			ref := s.Hoist(pool[i])
			if !seen[i] {
				seen[i] = true
				order = append(order, ref.File)
			}
		}
		files := s.Files()
		if len(files) != len(order) {
			t.Fatalf("expected %d files, got %d", len(order), len(files))
		}
		for i, f := range files {
			if f.Name != order[i] {
				t.Fatalf("file %d = %s, want %s", i, f.Name, order[i])
			}
		}
	})
}
