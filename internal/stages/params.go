package stages

import (
	"bytes"
	"encoding/json"
)

// remarshalParams re-encodes a stage.Config's raw Params map into out,
// rejecting any key out does not declare a field for. Re-marshaling through JSON rather than a direct
// map-to-struct decoder keeps every stage's parameter type declared once,
// as an ordinary Go struct with json tags, instead of hand-rolled
// map-lookup code per stage.
func remarshalParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
