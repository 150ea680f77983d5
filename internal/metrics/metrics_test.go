package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil ||
		backendCallsTotal == nil || backendCallDurationSeconds == nil || backendInFlight == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveBackendCall(t *testing.T) {
	ObserveBackendCall("/fetch-data/", 200, 10*time.Millisecond)
	ObserveBackendCall("/fetch-data/", 0, time.Second)

	if val := testutil.ToFloat64(backendCallsTotal.WithLabelValues("/fetch-data/", "200")); val < 1 {
		t.Errorf("expected a 200 call to be counted, got %f", val)
	}
	if val := testutil.ToFloat64(backendCallsTotal.WithLabelValues("/fetch-data/", "error")); val < 1 {
		t.Errorf("expected a transport failure to be counted, got %f", val)
	}
}

func TestBackendInFlight(t *testing.T) {
	Init()
	before := testutil.ToFloat64(backendInFlight)
	IncBackendInFlight()
	if got := testutil.ToFloat64(backendInFlight); got != before+1 {
		t.Fatalf("expected gauge %f, got %f", before+1, got)
	}
	DecBackendInFlight()
	if got := testutil.ToFloat64(backendInFlight); got != before {
		t.Fatalf("expected gauge back to %f, got %f", before, got)
	}
}
