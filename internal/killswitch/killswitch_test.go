package killswitch

import (
	"encoding/json"
	"testing"
	"time"
)

// Broadcaster and Subscriber both talk to *redis.Client directly rather than
// an interface, so exercising Publish/Run here would need a live Redis
// instance; that's integration-test territory. What's unit-testable in this
// package is the wire contract: Notice must round-trip through JSON exactly
// the way the Subscriber's Run loop expects to decode it.
func TestNotice_JSONRoundTrip(t *testing.T) {
	n := Notice{Reason: "risk breach", InitiatedBy: "ops@desk", At: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Notice
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != n {
		t.Fatalf("expected %+v, got %+v", n, got)
	}
}

func TestNotice_MalformedPayloadFailsToUnmarshal(t *testing.T) {
	var n Notice
	if err := json.Unmarshal([]byte("not json"), &n); err == nil {
		t.Fatalf("expected unmarshal error for malformed payload")
	}
}
