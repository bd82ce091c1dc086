package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEscalationStep_JSONSeconds(t *testing.T) {
	step := EscalationStep{
		Level:              2,
		TriggerDescription: "no response",
		RequiredActions:    []string{"alert_providers"},
		TimeOffset:         10 * time.Minute,
	}

	b, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"time_offset_seconds":600`) {
		t.Errorf("expected offset in seconds, got %s", b)
	}
	if strings.Contains(string(b), "600000000000") {
		t.Errorf("offset leaked as nanoseconds: %s", b)
	}

	var got EscalationStep
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TimeOffset != 10*time.Minute || got.Level != 2 || len(got.RequiredActions) != 1 {
		t.Errorf("unexpected decoded step: %+v", got)
	}
}
