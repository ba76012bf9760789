package diag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollectorDedupesInOrder(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	c := NewCollector(zap.New(core))
	c.Add(StageScripts, "Login", "CryptoJS not supported")
	c.Add(StageGenerate, "", "  ")
	c.Addf(StageGenerate, "Profile", "unresolved variable %s", "userId")
	c.Add(StageScripts, "Login", "CryptoJS not supported")
	c.AddAll(StageAuth, "", []string{"auth decode failed"})

	want := []string{
		"Login: CryptoJS not supported",
		"Profile: unresolved variable userId",
		"auth decode failed",
	}
	if diff := cmp.Diff(want, c.Strings()); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}
	if logs.Len() != 3 {
		t.Fatalf("expected 3 logged warnings, got %d", logs.Len())
	}
	entry := logs.All()[1]
	if entry.ContextMap()["request"] != "Profile" {
		t.Fatalf("request field missing: %v", entry.ContextMap())
	}
}

func TestNilCollector(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.Add(StageLoad, "x", "ignored")
	if c.List() != nil || c.Len() != 0 || c.Strings() != nil {
		t.Fatalf("nil collector should be empty")
	}
}
