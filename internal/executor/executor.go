package executor

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/graph"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stage"
	"github.com/elata-labs/eegpipe/internal/telemetry"
)

// Policies maps a stage name to the FailurePolicy its failures should be
// handled with; a stage absent from the map uses PolicySkipPacket.
type Policies map[string]stage.FailurePolicy

// Executor runs every stage in a built graph.Graph on its own OS thread.
type Executor struct {
	g       *graph.Graph
	pool    *eegpipe.MemoryPool
	log     *logging.Logger
	fatalCh chan error

	runners map[string]*StageRunner
	wg      sync.WaitGroup
}

// New wires a Graph's stages into an Executor. instances must contain a
// constructed-but-uninitialized stage.Stage for every stage in g (the
// caller is expected to have built these via stage.New(cfg.Type) using
// g.Configs). New calls Init on each stage with its resolved Config.
func New(g *graph.Graph, instances map[string]stage.Stage, policies Policies, pool *eegpipe.MemoryPool, log *logging.Logger, obs telemetry.Observer) (*Executor, error) {
	if obs == nil {
		obs = telemetry.NoopObserver{}
	}
	e := &Executor{
		g:       g,
		pool:    pool,
		log:     log,
		fatalCh: make(chan error, len(g.Configs)),
		runners: make(map[string]*StageRunner, len(g.Configs)),
	}

	edgeChans := make(map[graph.Edge]chan eegpipe.Packet)
	for _, edges := range g.Out {
		for _, ed := range edges {
			edgeChans[ed] = make(chan eegpipe.Packet, constants.DefaultEdgeChannelCapacity)
		}
	}

	plan := newCPUPlan(runtime.NumCPU())
	dspIdx, sinkIdx := 0, 0

	for _, name := range g.Order {
		cfg := g.Configs[name]
		st, ok := instances[name]
		if !ok {
			return nil, &eegpipe.Error{Op: "executor.New", Code: eegpipe.ErrCodeBadConfig, StageName: name,
				Inner: fmt.Errorf("no stage instance supplied for %q", name)}
		}
		if err := st.Init(cfg); err != nil {
			return nil, &eegpipe.Error{Op: "executor.New", Code: eegpipe.ErrCodeBadConfig, StageName: name, Inner: err}
		}

		policy := policies[name]

		var cpu int
		switch {
		case st.Mode() == stage.ModeProducer:
			cpu = plan.acquisitionCore()
		case len(cfg.Outputs) == 0:
			cpu = plan.sinkCoreFor(sinkIdx)
			sinkIdx++
		default:
			cpu = plan.dspCore(dspIdx)
			dspIdx++
		}

		runner := newStageRunner(name, st, policy, cpu, pool, log, e.fatalCh, obs)
		for _, ed := range g.In[name] {
			runner.inputs = append(runner.inputs, edgeChans[ed])
		}
		for _, ed := range g.Out[name] {
			runner.outputs = append(runner.outputs, edgeChans[ed])
		}
		e.runners[name] = runner
	}

	return e, nil
}

// Start launches every stage's thread.
func (e *Executor) Start() {
	for _, r := range e.runners {
		e.wg.Add(1)
		runner := r
		go func() {
			defer e.wg.Done()
			runner.run()
		}()
	}
}

// Stop requests cooperative shutdown of every stage and blocks until all
// stage threads have exited.
func (e *Executor) Stop() {
	for _, r := range e.runners {
		r.Stop()
	}
	e.wg.Wait()
}

// FatalErrors returns the channel fatal stage errors are published on; the
// control plane selects on this alongside its own shutdown signal.
func (e *Executor) FatalErrors() <-chan error { return e.fatalCh }

// SendControl routes a control message to the named stage, if it exists.
func (e *Executor) SendControl(stageName string, msg stage.ControlMessage) error {
	r, ok := e.runners[stageName]
	if !ok {
		return &eegpipe.Error{Op: "executor.SendControl", Code: eegpipe.ErrCodeStageNotFound, StageName: stageName}
	}
	r.SendControl(msg)
	return nil
}

// StageStates returns the current lifecycle state of every stage, keyed by
// name, for the control plane's get_state operation.
func (e *Executor) StageStates() map[string]string {
	states := make(map[string]string, len(e.runners))
	for name, r := range e.runners {
		states[name] = r.State()
	}
	return states
}
