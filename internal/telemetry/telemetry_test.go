package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInstrumenterRecordsStage(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(
		Config{ServiceName: "devwebgen-test", Version: "test"},
		WithSpanProcessor(recorder),
	)
	if err != nil {
		t.Fatalf("New instrumenter: %v", err)
	}
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background())
	})

	ctx, span := inst.Start(context.Background(), StageStart{Stage: "correlation", Collection: "Shop", Requests: 4})
	if ctx == nil || span == nil {
		t.Fatalf("expected span to be created")
	}
	span.End(StageResult{Items: 2, Warnings: 1})

	_, failed := inst.Start(context.Background(), StageStart{Stage: "load"})
	failed.End(StageResult{Err: errors.New("boom")})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	ro := spans[0]
	if got := ro.Name(); got != "devwebgen.correlation" {
		t.Fatalf("unexpected span name %q", got)
	}
	assertAttribute(t, ro, "devwebgen.stage", "correlation")
	assertAttribute(t, ro, "devwebgen.collection", "Shop")
	assertAttribute(t, ro, "devwebgen.requests", int64(4))
	assertAttribute(t, ro, "devwebgen.items", int64(2))
	assertAttribute(t, ro, "devwebgen.warnings", int64(1))
	if ro.Status().Code != codes.Ok {
		t.Fatalf("expected OK status, got %v", ro.Status().Code)
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[1].Status().Code)
	}
}

func TestNoopWhenDisabled(t *testing.T) {
	t.Parallel()

	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := inst.(noopInstrumenter); !ok {
		t.Fatalf("expected noop instrumenter, got %T", inst)
	}
	ctx := context.Background()
	got, span := inst.Start(ctx, StageStart{Stage: "load"})
	if got != ctx {
		t.Fatalf("noop should return the same context")
	}
	span.End(StageResult{})
}

func assertAttribute(t *testing.T, span sdktrace.ReadOnlySpan, key string, want interface{}) {
	t.Helper()
	for _, attr := range span.Attributes() {
		if string(attr.Key) != key {
			continue
		}
		var got interface{}
		switch attr.Value.Type() {
		case attribute.BOOL:
			got = attr.Value.AsBool()
		case attribute.INT64:
			got = attr.Value.AsInt64()
		case attribute.STRING:
			got = attr.Value.AsString()
		default:
			got = attr.Value.AsInterface()
		}
		if got != want {
			t.Fatalf("attribute %s = %v, want %v", key, got, want)
		}
		return
	}
	t.Fatalf("attribute %s not found", key)
}
