package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/config"
	"github.com/elata-labs/eegpipe/internal/control"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stage"
	"github.com/elata-labs/eegpipe/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apitestSource struct{ name string }

func (s *apitestSource) Name() string           { return s.name }
func (s *apitestSource) Init(stage.Config) error { return nil }
func (s *apitestSource) Mode() stage.Mode        { return stage.ModeProducer }
func (s *apitestSource) Close() error            { return nil }
func (s *apitestSource) Produce(ctx context.Context, pool *eegpipe.MemoryPool) (eegpipe.Packet, error) {
	<-ctx.Done()
	return nil, stage.ErrNoMorePackets
}

func init() {
	stage.Register("apitest.source", func() stage.Stage { return &apitestSource{name: "source"} })
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	doc := &config.Document{
		Version:  "1",
		Metadata: config.Metadata{Name: "demo", Description: "a demo pipeline", Version: "1"},
		Stages:   []stage.Config{{Name: "source", Type: "apitest.source"}},
	}
	require.NoError(t, config.Save(dir, "demo", doc))

	log := logging.NewLogger(logging.DefaultConfig())
	pool := eegpipe.NewMemoryPool(0)
	cp := control.New(dir, pool, log, telemetry.NoopObserver{})
	return New(cp, dir, log, nil), dir
}

func TestListPipelinesReturnsSummaries(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []pipelineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "demo", got[0].ID)
	assert.Equal(t, "a demo pipeline", got[0].Description)
}

func TestStartAndStopPipelineLifecycle(t *testing.T) {
	s, _ := testServer(t)

	startReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/demo/start", nil)
	startRec := httptest.NewRecorder()
	s.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusOK, startRec.Code)

	stateReq := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	stateRec := httptest.NewRecorder()
	s.ServeHTTP(stateRec, stateReq)
	require.Equal(t, http.StatusOK, stateRec.Code)

	stopReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/stop", nil)
	stopRec := httptest.NewRecorder()
	s.ServeHTTP(stopRec, stopReq)
	require.Equal(t, http.StatusOK, stopRec.Code)

	stateReq2 := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	stateRec2 := httptest.NewRecorder()
	s.ServeHTTP(stateRec2, stateReq2)
	assert.Equal(t, http.StatusNotFound, stateRec2.Code)
}

func TestStartUnknownPipelineReturns404(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/nope/start", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopPipelineWithNoneRunningReturns404(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/stop", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePipelinePersistsConfig(t *testing.T) {
	s, dir := testServer(t)

	newDoc := config.Document{
		Version:  "1",
		Metadata: config.Metadata{Name: "demo-v2", Version: "1"},
		Stages:   []stage.Config{{Name: "source", Type: "apitest.source"}},
	}
	body, err := json.Marshal(updateConfigRequest{Config: &newDoc})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/demo", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	path, err := config.ResolvePath(dir, "demo")
	require.NoError(t, err)
	reloaded, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo-v2", reloaded.Metadata.Name)
}

func TestControlDispatchReturns404WhenNothingRunning(t *testing.T) {
	s, _ := testServer(t)

	cmd := control.ControlCommand{Type: control.CommandSetParameter, TargetStage: "gain"}
	body, err := json.Marshal(cmd)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/control", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStreamReplaysPipelineStarted(t *testing.T) {
	s, _ := testServer(t)

	startReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/demo/start", nil)
	startRec := httptest.NewRecorder()
	s.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusOK, startRec.Code)
	defer s.cp.StopPipeline()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	sawStarted := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"type":1`) {
			sawStarted = true
		}
	}
	assert.True(t, sawStarted, "expected a PipelineStarted event in the SSE stream: %s", rec.Body.String())
}
