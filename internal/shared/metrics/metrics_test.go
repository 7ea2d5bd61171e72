package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramRendersCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	writeHistogram(&buf, "d", "test", h.Snapshot())
	out := buf.String()

	for _, want := range []string{
		`d_bucket{le="10"} 1`,
		`d_bucket{le="100"} 2`,
		`d_bucket{le="+Inf"} 3`,
		"d_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderIncludesDomainSeries(t *testing.T) {
	IncExport("pdf")
	IncExport("docx")
	AddIntake(2, 1)
	IncNotification("processed")
	out := Render()

	for _, want := range []string{
		"analysis_started_total",
		"intake_rejected_total",
		"sessions_active",
		`exports_total{format="docx"}`,
		`notifications_handled_total{outcome="processed"}`,
		`analysis_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
