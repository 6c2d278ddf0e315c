// Package stage defines the contract every pipeline stage implements, the
// process-wide registry stage types are looked up by, and the stage
// configuration shape loaded from pipeline YAML/JSON documents.
package stage

// Config is one stage's entry in a pipeline document. Params
// is left as map[string]any rather than a concrete struct because each
// stage type defines its own parameter shape; individual stages re-marshal
// Params into their own typed struct during Init. Params are not checked
// against a stage's ParamSchema.
type Config struct {
	Name    string         `yaml:"name" json:"name"`
	Type    string         `yaml:"type" json:"type"`
	Params  map[string]any `yaml:"params" json:"params"`
	Inputs  []string       `yaml:"inputs" json:"inputs"`
	Outputs []string       `yaml:"outputs" json:"outputs"`
	// Enabled defaults to true when omitted; a pointer distinguishes
	// "absent" from "explicitly false".
	Enabled *bool `yaml:"enabled" json:"enabled"`
	// OnError selects this stage's FailurePolicy: "skip_packet" (default),
	// "drain_then_stop", or "fatal".
	OnError string `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// FailurePolicy resolves OnError to the FailurePolicy the executor should
// apply to this stage, defaulting to PolicySkipPacket for an unset or
// unrecognized value.
func (c Config) FailurePolicy() FailurePolicy {
	switch c.OnError {
	case "drain_then_stop":
		return PolicyDrainThenStop
	case "fatal":
		return PolicyFatal
	default:
		return PolicySkipPacket
	}
}

// IsEnabled reports whether the stage should be included in the graph.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
