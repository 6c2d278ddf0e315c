// Package control implements the control plane: the
// start/stop/reconfigure/get_state verbs over a named pipeline, a
// monotonic session id assigned per start, and
// the lifecycle event bus internal/api's HTTP/SSE surface subscribes to.
//
// A verb-shaped object owning one resource's lifecycle, reshaped around a
// software DAG of stages instead of a kernel block device.
package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/config"
	"github.com/elata-labs/eegpipe/internal/executor"
	"github.com/elata-labs/eegpipe/internal/graph"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stage"
	"github.com/elata-labs/eegpipe/internal/stages"
	"github.com/elata-labs/eegpipe/internal/telemetry"
)

// metaProvider is implemented by source stages that can report their
// driver's current SensorMeta (internal/stages.EEGSource does); the
// control plane type-asserts each built stage instance against it rather
// than checking for a concrete internal/stages type.
type metaProvider interface {
	SourceMeta() *eegpipe.SensorMeta
}

// broadcastSetter is implemented by sink stages that push frames out over a
// websocket hub (internal/stages.WebsocketSink does); the control plane
// wires its configured Broadcaster into every matching instance at start
// time so api.Server's hub doesn't need its own copy of the stage graph.
type broadcastSetter interface {
	SetBroadcaster(b stages.Broadcaster)
}

// runningPipeline bundles everything ControlPlane needs to stop or
// reconfigure the one pipeline it may have running.
type runningPipeline struct {
	id        string
	sessionID uint64
	doc       *config.Document
	g         *graph.Graph
	exec      *executor.Executor
	done      chan struct{} // closed once StopPipeline/watchFatal retires this pipeline
}

// ControlPlane owns at most one running pipeline at a time and mediates
// every start/stop/reconfigure/get_state operation against it.
type ControlPlane struct {
	configDir string
	pool      *eegpipe.MemoryPool
	log       *logging.Logger
	obs       telemetry.Observer
	bus       *EventBus

	sessionSeq  atomic.Uint64
	broadcaster stages.Broadcaster

	mu      sync.Mutex
	current *runningPipeline
}

// SetBroadcaster configures the Broadcaster every websocket_sink instance
// built by a future StartPipeline is wired to. Safe to call before the
// first StartPipeline; cmd/eeg-daemon calls it once with api.Server's hub.
func (cp *ControlPlane) SetBroadcaster(b stages.Broadcaster) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.broadcaster = b
}

// New builds a ControlPlane that resolves pipeline ids against configDir.
func New(configDir string, pool *eegpipe.MemoryPool, log *logging.Logger, obs telemetry.Observer) *ControlPlane {
	if obs == nil {
		obs = telemetry.NoopObserver{}
	}
	return &ControlPlane{
		configDir: configDir,
		pool:      pool,
		log:       log,
		obs:       obs,
		bus:       NewEventBus(),
	}
}

// Events returns the event bus every control-plane operation publishes to.
func (cp *ControlPlane) Events() *EventBus { return cp.bus }

// StartPipeline loads the pipeline document named id, builds its graph and
// executor, and starts it. Starting the id that is already running is a
// no-op (idempotent); starting a different id while one is running is a
// conflict.
func (cp *ControlPlane) StartPipeline(id string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.current != nil {
		if cp.current.id == id {
			return nil
		}
		return &eegpipe.Error{Op: "ControlPlane.StartPipeline", Code: eegpipe.ErrCodePipelineConflict, StageName: cp.current.id}
	}

	path, err := config.ResolvePath(cp.configDir, id)
	if err != nil {
		return err
	}
	doc, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := config.Validate(doc); err != nil {
		return err
	}

	g, err := graph.Build(doc.Stages)
	if err != nil {
		return err
	}

	instances := make(map[string]stage.Stage, len(g.Configs))
	for name, cfg := range g.Configs {
		st, err := stage.New(cfg.Type)
		if err != nil {
			return err
		}
		if cp.broadcaster != nil {
			if bs, ok := st.(broadcastSetter); ok {
				bs.SetBroadcaster(cp.broadcaster)
			}
		}
		instances[name] = st
	}

	policies := make(executor.Policies, len(g.Configs))
	for name, cfg := range g.Configs {
		policies[name] = cfg.FailurePolicy()
	}

	exec, err := executor.New(g, instances, policies, cp.pool, cp.log, cp.obs)
	if err != nil {
		return err
	}

	sessionID := cp.sessionSeq.Add(1)
	exec.Start()

	rp := &runningPipeline{id: id, sessionID: sessionID, doc: doc, g: g, exec: exec, done: make(chan struct{})}
	cp.current = rp

	go cp.watchFatal(rp)

	cp.bus.Publish(Event{Type: EventPipelineStarted, At: now(), PipelineID: id, SessionID: sessionID, Config: doc})

	for name, st := range instances {
		if mp, ok := st.(metaProvider); ok {
			if meta := mp.SourceMeta(); meta != nil {
				cp.bus.Publish(Event{Type: EventSourceReady, At: now(), PipelineID: id, SessionID: sessionID, StageName: name, Meta: meta})
			}
		}
	}

	return nil
}

// watchFatal selects on the executor's fatal_error_rx and translates the
// first fatal error into a stop plus a PipelineFailed event. It also exits cleanly once rp.done closes, which
// StopPipeline does for a normal, non-fatal shutdown so this goroutine
// never outlives its pipeline.
func (cp *ControlPlane) watchFatal(rp *runningPipeline) {
	var err error
	select {
	case err = <-rp.exec.FatalErrors():
	case <-rp.done:
		return
	}

	cp.mu.Lock()
	isCurrent := cp.current == rp
	if isCurrent {
		cp.current.exec.Stop()
		cp.current = nil
	}
	cp.mu.Unlock()

	if isCurrent {
		close(rp.done)
		cp.bus.Publish(Event{Type: EventPipelineFailed, At: now(), PipelineID: rp.id, SessionID: rp.sessionID, Error: err.Error()})
	}
}

// StopPipeline signals the running pipeline's executor to stop, joins it,
// and emits PipelineStopped. It is a no-op error path if nothing is
// running.
func (cp *ControlPlane) StopPipeline() error {
	cp.mu.Lock()
	running := cp.current
	cp.mu.Unlock()
	if running == nil {
		return &eegpipe.Error{Op: "ControlPlane.StopPipeline", Code: eegpipe.ErrCodePipelineNotRunning}
	}

	running.exec.Stop()

	cp.mu.Lock()
	retired := cp.current == running
	if retired {
		cp.current = nil
	}
	cp.mu.Unlock()
	if retired {
		close(running.done)
	}

	cp.bus.Publish(Event{Type: EventPipelineStopped, At: now(), PipelineID: running.id, SessionID: running.sessionID})
	return nil
}

// Dispatch executes a ControlCommand against the running pipeline.
// CommandSetParameter is routed to the named stage's control mailbox
//; CommandShutdown stops the pipeline.
func (cp *ControlPlane) Dispatch(cmd ControlCommand) error {
	switch cmd.Type {
	case CommandShutdown:
		return cp.StopPipeline()
	case CommandSetParameter:
		cp.mu.Lock()
		running := cp.current
		cp.mu.Unlock()
		if running == nil {
			return &eegpipe.Error{Op: "ControlPlane.Dispatch", Code: eegpipe.ErrCodePipelineNotRunning}
		}
		for name, value := range cmd.Parameters {
			msg := stage.ControlMessage{Type: stage.ControlUpdateParam, Param: name, Value: value}
			if err := running.exec.SendControl(cmd.TargetStage, msg); err != nil {
				return err
			}
		}
		return nil
	default:
		return &eegpipe.Error{Op: "ControlPlane.Dispatch", Code: eegpipe.ErrCodeBadConfig}
	}
}

// GetState returns the running pipeline's configuration document, or
// false if nothing is running.
func (cp *ControlPlane) GetState() (*config.Document, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.current == nil {
		return nil, false
	}
	return cp.current.doc, true
}

// StageStates returns every running stage's lifecycle state, or nil if
// nothing is running.
func (cp *ControlPlane) StageStates() map[string]string {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.current == nil {
		return nil
	}
	return cp.current.exec.StageStates()
}

// now is a seam so tests can observe deterministic event timestamps
// without the package reaching for time.Now() at call sites directly.
var now = time.Now
