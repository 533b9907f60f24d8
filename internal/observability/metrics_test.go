package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetrics_WritePrometheus(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("GET", "/healthcheck", "200", 20*time.Millisecond)
	m.ObserveAPI("POST", "/api/mirror/apply", "503", time.Second)
	m.ObserveMirrorOp("apply", "", 30*time.Millisecond)
	m.ObserveCacheLookup("hit")
	m.ObserveCacheLookup("hit")
	m.SetCacheEntries(3)
	m.AddRenderDropped(2)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`sm_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`,
		`sm_api_requests_error_total 1`,
		`sm_mirror_operations_total{op="apply",status="ok"} 1`,
		`sm_definition_cache_lookups_total{result="hit"} 2`,
		`sm_definition_cache_entries 3`,
		`sm_render_dropped_writes_total 2`,
		`sm_mirror_operation_duration_seconds_bucket{op="apply",status="ok",le="0.05"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveMirrorOp("learn", "ok", time.Millisecond)
	m.ObserveCacheLookup("miss")
	m.AddRenderDropped(1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestLabelString(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	want := `{a="x\"y",b="unknown"}`
	if got != want {
		t.Fatalf("labelString: want=%q got=%q", want, got)
	}
	if got := withLe("", "+Inf"); got != `{le="+Inf"}` {
		t.Fatalf("withLe: got=%q", got)
	}
	if got := withLe(`{op="learn"}`, "0.5"); got != `{op="learn",le="0.5"}` {
		t.Fatalf("withLe with labels: got=%q", got)
	}
}

func TestHistogram_CumulativeBuckets(t *testing.T) {
	h := newHistogram("sm_test_seconds", "test", []float64{1, 0.1}, "op")
	h.observe(0.0625, "learn")
	h.observe(0.5, "learn")
	h.observe(3, "learn")

	var buf bytes.Buffer
	if err := h.writeTo(&buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE sm_test_seconds histogram",
		`sm_test_seconds_bucket{op="learn",le="0.1"} 1`,
		`sm_test_seconds_bucket{op="learn",le="1"} 2`,
		`sm_test_seconds_bucket{op="learn",le="+Inf"} 3`,
		`sm_test_seconds_sum{op="learn"} 3.5625`,
		`sm_test_seconds_count{op="learn"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestGauge_InflightGoesBackToZero(t *testing.T) {
	m := newMetrics()
	m.ApiInflightInc()
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ApiInflightDec()

	var buf bytes.Buffer
	if err := m.apiInflight.writeTo(&buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if !strings.Contains(buf.String(), "sm_api_inflight_requests 0\n") {
		t.Fatalf("inflight gauge: got\n%s", buf.String())
	}
}
