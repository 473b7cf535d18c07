// Package model provides capability-based model selection for the question
// answering pipeline. Pipeline stages ask for a capability (extraction,
// planning, answering) and the registry resolves it to configured endpoints
// with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityExtraction pulls candidate entity names out of a question.
	CapabilityExtraction Capability = "extraction"

	// CapabilityClassification routes a question to graph or similarity handling.
	CapabilityClassification Capability = "classification"

	// CapabilityPlanning produces whitelisted query plans.
	CapabilityPlanning Capability = "planning"

	// CapabilityAnswering renders query results as natural language.
	CapabilityAnswering Capability = "answering"

	// CapabilityRecommending ranks and explains similar movies.
	CapabilityRecommending Capability = "recommending"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{
	CapabilityExtraction,
	CapabilityClassification,
	CapabilityPlanning,
	CapabilityAnswering,
	CapabilityRecommending,
}

// StageCapabilities maps pipeline stages to their capability.
var StageCapabilities = map[string]Capability{
	"entity-resolver":     CapabilityExtraction,
	"query-classifier":    CapabilityClassification,
	"graph-planner":       CapabilityPlanning,
	"graph-renderer":      CapabilityAnswering,
	"similarity-ranker":   CapabilityRecommending,
	"similarity-fallback": CapabilityRecommending,
}

// CapabilityForStage returns the capability for a pipeline stage.
// Returns CapabilityAnswering for unknown stages.
func CapabilityForStage(stage string) Capability {
	if c, ok := StageCapabilities[stage]; ok {
		return c
	}
	return CapabilityAnswering
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	for _, known := range Capabilities {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
