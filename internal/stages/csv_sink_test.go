package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func TestCSVSinkRequiresRecordingsDir(t *testing.T) {
	var s CSVSink
	err := s.Init(stage.Config{Name: "csv", Params: map[string]any{}})
	require.Error(t, err)
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	var s CSVSink
	require.NoError(t, s.Init(stage.Config{Name: "csv", Params: map[string]any{
		"recordings_dir": dir,
		"board_name":     "testboard",
	}}))
	defer s.Close()

	pool := eegpipe.NewMemoryPool(4)
	meta := testMeta()
	in := voltagePacket(pool, meta, []float32{0.1, 0.2, 0.3, 0.4}, 2)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	assert.Nil(t, out, "csv_sink is terminal and emits nothing downstream")

	require.NoError(t, s.file.Sync())
	data, err := os.ReadFile(s.file.Name())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header + 2 sample rows
	assert.True(t, strings.HasPrefix(lines[0], "timestamp"))
	assert.Equal(t, constants.MaxCSVChannels+1, strings.Count(lines[0], ",")+1)
}

func TestCSVSinkFilenameFollowsNamingConvention(t *testing.T) {
	dir := t.TempDir()
	var s CSVSink
	require.NoError(t, s.Init(stage.Config{Name: "csv", Params: map[string]any{
		"recordings_dir": dir,
		"session_id":     "42",
		"board_name":     "openbci",
	}}))
	defer s.Close()

	name := filepath.Base(s.file.Name())
	assert.True(t, strings.HasPrefix(name, "session42_"))
	assert.True(t, strings.HasSuffix(name, "_boardopenbci.csv"))
}
