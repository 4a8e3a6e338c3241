package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	RecordRequest("GET", "/token", "OK")
	RecordRequestDuration("GET", "/token", "OK", 0.05)
	RecordTokenIssued("msgs")
	RecordTokenIssued("msgs")
	RecordIssuanceFailure("connectivity")
	RecordAuthFailure("invalid_token")

	text, err := GetMetricsText(reg)
	if err != nil {
		t.Fatalf("GetMetricsText failed: %v", err)
	}

	checks := []string{
		`docstore_broker_requests_total{method="GET",path="/token",status="OK"} 1`,
		`docstore_broker_tokens_issued_total{container="msgs"} 2`,
		`docstore_broker_issuance_failures_total{kind="connectivity"} 1`,
		`docstore_broker_auth_failures_total{reason="invalid_token"} 1`,
		`docstore_broker_info{version="1.0.0"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(text, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
	if !strings.Contains(text, "docstore_broker_request_duration_seconds") {
		t.Error("Expected duration histogram in output")
	}
}

func TestInitDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("First Init failed: %v", err)
	}
	if err := Init(reg); err == nil {
		t.Error("Expected error on duplicate registration into the same registry")
	}
}

func TestRecordBeforeInitIsNoOp(t *testing.T) {
	// Must not panic even if Init never ran for these globals.
	RecordRequest("GET", "/token", "OK")
	RecordTokenIssued("msgs")
	RecordIssuanceFailure("unknown")
	RecordAuthFailure("missing_token")
}
