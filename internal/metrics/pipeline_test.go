package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics() // must not panic on duplicate registration
}

func TestStatusLabel(t *testing.T) {
	if got := StatusLabel(nil); got != "ok" {
		t.Errorf("StatusLabel(nil) = %q", got)
	}
	if got := StatusLabel(errors.New("x")); got != "error" {
		t.Errorf("StatusLabel(err) = %q", got)
	}
}

func TestPagesTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(PagesTotal.WithLabelValues("hotels", "ok"))
	PagesTotal.WithLabelValues("hotels", "ok").Inc()
	after := testutil.ToFloat64(PagesTotal.WithLabelValues("hotels", "ok"))
	if after-before != 1 {
		t.Errorf("pages_total delta = %f, want 1", after-before)
	}
}
