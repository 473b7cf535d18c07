package model

import "testing"

func TestCapabilityForStage(t *testing.T) {
	tests := []struct {
		stage    string
		expected Capability
	}{
		{"entity-resolver", CapabilityExtraction},
		{"query-classifier", CapabilityClassification},
		{"graph-planner", CapabilityPlanning},
		{"graph-renderer", CapabilityAnswering},
		{"similarity-ranker", CapabilityRecommending},
		// Fallback
		{"unknown-stage", CapabilityAnswering},
		{"", CapabilityAnswering},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			got := CapabilityForStage(tt.stage)
			if got != tt.expected {
				t.Errorf("CapabilityForStage(%q) = %q, want %q", tt.stage, got, tt.expected)
			}
		})
	}
}

func TestCapabilityIsValid(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapabilityExtraction, true},
		{CapabilityClassification, true},
		{CapabilityPlanning, true},
		{CapabilityAnswering, true},
		{CapabilityRecommending, true},
		{Capability("coding"), false},
		{Capability(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			if got := tt.cap.IsValid(); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.cap, got, tt.expected)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	if got := ParseCapability("planning"); got != CapabilityPlanning {
		t.Errorf("ParseCapability(planning) = %q", got)
	}
	if got := ParseCapability("PLANNING"); got != "" {
		t.Errorf("ParseCapability(PLANNING) = %q, want empty", got)
	}
}
