package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfigIsEnabledDefaultsTrue(t *testing.T) {
	c := Config{Name: "gain", Type: "gain"}
	assert.True(t, c.IsEnabled())
}

func TestConfigIsEnabledExplicitFalse(t *testing.T) {
	disabled := false
	c := Config{Name: "gain", Type: "gain", Enabled: &disabled}
	assert.False(t, c.IsEnabled())
}

func TestConfigFailurePolicyDefaultsToSkipPacket(t *testing.T) {
	c := Config{Name: "gain", Type: "gain"}
	assert.Equal(t, PolicySkipPacket, c.FailurePolicy())
}

func TestConfigFailurePolicyParsesOnError(t *testing.T) {
	assert.Equal(t, PolicyDrainThenStop, Config{OnError: "drain_then_stop"}.FailurePolicy())
	assert.Equal(t, PolicyFatal, Config{OnError: "fatal"}.FailurePolicy())
	assert.Equal(t, PolicySkipPacket, Config{OnError: "bogus"}.FailurePolicy())
}

func TestConfigUnmarshalsFromYAML(t *testing.T) {
	doc := `
name: ch0_gain
type: gain
params:
  factor: 2.5
inputs: ["eeg_source.raw"]
outputs: ["csv_sink.in"]
enabled: false
`
	var c Config
	require := assert.New(t)
	err := yaml.Unmarshal([]byte(doc), &c)
	require.NoError(err)
	require.Equal("ch0_gain", c.Name)
	require.Equal("gain", c.Type)
	require.Equal([]string{"eeg_source.raw"}, c.Inputs)
	require.Equal(2.5, c.Params["factor"])
	require.False(c.IsEnabled())
}
