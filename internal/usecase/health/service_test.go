package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}).WithStage(&mockPinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"source", "target", "stage"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_TargetDown(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("403")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["target"] != CheckError {
		t.Errorf("expected target %q, got %q", CheckError, r.Checks["target"])
	}
	if r.Checks["source"] != CheckOK {
		t.Errorf("expected source %q, got %q", CheckOK, r.Checks["source"])
	}
}

func TestCheck_AllDown(t *testing.T) {
	down := &mockPinger{err: errors.New("connection refused")}
	r := New(down, down).WithStage(down).Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NilStageIgnored(t *testing.T) {
	r := New(&mockPinger{}, &mockPinger{}).WithStage(nil).Check(context.Background())

	if _, ok := r.Checks["stage"]; ok {
		t.Error("stage check must be absent")
	}
	if len(r.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(r.Checks))
	}
}
