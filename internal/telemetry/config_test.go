package telemetry

import (
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig("localhost:4317", true, "devwebgen-ci", "1.0.0", "10s", "x-api-key=secret, x-tenant = demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled() {
		t.Fatalf("expected telemetry to be enabled")
	}
	if !cfg.Insecure {
		t.Fatalf("expected insecure to be true")
	}
	if cfg.ServiceName != "devwebgen-ci" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Fatalf("unexpected dial timeout %s", cfg.DialTimeout)
	}
	if len(cfg.Headers) != 2 || cfg.Headers["x-api-key"] != "secret" ||
		cfg.Headers["x-tenant"] != "demo" {
		t.Fatalf("unexpected headers: %#v", cfg.Headers)
	}

	if _, err := NewConfig("", false, "", "", "soon", ""); err == nil {
		t.Fatalf("expected error for a malformed timeout")
	}
	cfg, err = NewConfig("", false, "", "", "", "")
	if err != nil || cfg.Enabled() || cfg.ServiceName != defaultService {
		t.Fatalf("unexpected disabled config %+v (%v)", cfg, err)
	}
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	headers, err := ParseHeaders("a=1, b=2,empty=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers["a"] != "1" || headers["b"] != "2" || headers["empty"] != "" {
		t.Fatalf("unexpected headers: %#v", headers)
	}

	headers, err = ParseHeaders("   ")
	if err != nil || headers != nil {
		t.Fatalf("expected nil headers, got %#v (%v)", headers, err)
	}
	if _, err := ParseHeaders("novalue"); err == nil {
		t.Fatalf("expected error for a header without '='")
	}
}
