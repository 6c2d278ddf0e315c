// Package executor runs a validated stage graph: one pinned OS thread per
// stage, bounded channels between them for back pressure, cooperative
// shutdown, and fatal-error propagation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stage"
	"github.com/elata-labs/eegpipe/internal/telemetry"
)

// runnerState mirrors the running/draining/halted state a stage thread
// passes through during cooperative shutdown.
type runnerState int32

const (
	stateRunning runnerState = iota
	stateDraining
	stateHalted
)

// failureAction is handleFailure's verdict on a Process/Produce error,
// translating a stage.FailurePolicy into what the calling loop should do
// next.
type failureAction int

const (
	failureContinue failureAction = iota // PolicySkipPacket: drop and keep going
	failureDrain                         // PolicyDrainThenStop: stop accepting new work, finish what's queued
	failureHalt                          // PolicyFatal: stop immediately
)

// StageRunner owns one stage's dedicated OS thread: its input/output edge
// channels, its control channel, and the cooperative-stop machinery.
type StageRunner struct {
	name   string
	st     stage.Stage
	mode   stage.Mode
	policy stage.FailurePolicy

	inputs  []chan eegpipe.Packet
	outputs []chan eegpipe.Packet

	cpu       int
	pool      *eegpipe.MemoryPool
	log       *logging.Logger
	fatalCh   chan<- error
	controlCh chan stage.ControlMessage
	stopCh    chan struct{}
	doneCh    chan struct{}
	obs       telemetry.Observer

	state atomic.Int32
}

func newStageRunner(name string, st stage.Stage, policy stage.FailurePolicy, cpu int, pool *eegpipe.MemoryPool, log *logging.Logger, fatalCh chan<- error, obs telemetry.Observer) *StageRunner {
	return &StageRunner{
		name:      name,
		st:        st,
		mode:      st.Mode(),
		policy:    policy,
		cpu:       cpu,
		pool:      pool,
		log:       log.WithStage(name),
		fatalCh:   fatalCh,
		obs:       obs,
		controlCh: make(chan stage.ControlMessage, 8),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// State reports the runner's current lifecycle state.
func (r *StageRunner) State() string {
	switch runnerState(r.state.Load()) {
	case stateDraining:
		return "draining"
	case stateHalted:
		return "halted"
	default:
		return "running"
	}
}

// Stop requests cooperative shutdown; it does not block until the thread
// has actually exited (see Done).
func (r *StageRunner) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

// Done returns a channel closed once the stage's thread has returned.
func (r *StageRunner) Done() <-chan struct{} { return r.doneCh }

// SendControl delivers a control message to the stage, non-blocking; if
// the stage's control channel is full the message is dropped and logged
// rather than blocking the submission path on a backed-up consumer.
func (r *StageRunner) SendControl(msg stage.ControlMessage) {
	select {
	case r.controlCh <- msg:
	default:
		r.log.Warn("control channel full, dropping message", "stage", r.name)
	}
}

func (r *StageRunner) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.doneCh)
	defer func() {
		r.state.Store(int32(stateHalted))
		if err := r.st.Close(); err != nil {
			r.log.Warn("stage Close returned an error", "error", err)
		}
	}()
	// Registered last so it runs first during unwind: a panicking
	// Process/Produce call must not crash the daemon process, it becomes a
	// fatal error on fatalCh like any other PolicyFatal failure.
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("stage panicked", "stage", r.name, "panic", fmt.Sprint(p))
			select {
			case r.fatalCh <- &eegpipe.Error{Op: "executor.Run", Code: eegpipe.ErrCodeStagePanicked, StageName: r.name, Inner: fmt.Errorf("%v", p)}:
			default:
			}
		}
	}()

	if r.cpu >= 0 {
		pinToCPU(r.cpu, r.log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stopCh
		cancel()
	}()

	switch r.mode {
	case stage.ModeProducer:
		r.runProducer(ctx)
	default:
		r.runWorker(ctx)
	}
}

func (r *StageRunner) runProducer(ctx context.Context) {
	producer := r.st.(stage.Producer)
	for {
		select {
		case <-r.stopCh:
			return
		case msg := <-r.controlCh:
			r.handleControl(msg)
			continue
		default:
		}

		pkt, err := producer.Produce(ctx, r.pool)
		if err != nil {
			if errors.Is(err, stage.ErrNoMorePackets) {
				return
			}
			// A producer has no queued input to drain, so Drain and Halt
			// are the same outcome for it: stop producing.
			if r.handleFailure(err) != failureContinue {
				return
			}
			continue
		}
		if pkt == nil {
			continue
		}
		if !r.fanOut(pkt) {
			return
		}
	}
}

func (r *StageRunner) runWorker(ctx context.Context) {
	worker := r.st.(stage.Worker)
	merged := mergeInputs(r.inputs, r.stopCh)

	for {
		if runnerState(r.state.Load()) == stateDraining {
			// Draining: stop selecting on stopCh/controlCh and only keep
			// consuming whatever is already queued on merged. A fan-in
			// goroutine may still be mid-forward of an already-buffered
			// packet, so give it one StopPollInterval grace window rather
			// than checking with a bare non-blocking default; silence past
			// that window means the input is empty and the stage halts.
			select {
			case pkt, ok := <-merged:
				if !ok {
					return
				}
				if r.processPacket(ctx, worker, pkt) {
					return
				}
			case <-time.After(constants.StopPollInterval):
				return
			}
			continue
		}

		select {
		case <-r.stopCh:
			return
		case msg := <-r.controlCh:
			r.handleControl(msg)
		case pkt, ok := <-merged:
			if !ok {
				return
			}
			if r.processPacket(ctx, worker, pkt) {
				return
			}
		}
	}
}

// processPacket runs worker.Process on pkt and fans out its result. It
// returns true if the stage thread should halt immediately (a
// PolicyFatal failure); a PolicyDrainThenStop failure instead leaves the
// runner in stateDraining for runWorker's loop to wind down on its own.
func (r *StageRunner) processPacket(ctx context.Context, worker stage.Worker, pkt eegpipe.Packet) bool {
	r.obs.ObservePacketIn(r.name)
	start := time.Now()
	out, err := worker.Process(ctx, r.pool, pkt)
	r.obs.ObserveProcessLatency(r.name, uint64(time.Since(start)))
	if err != nil {
		r.obs.ObserveError(r.name)
		return r.handleFailure(err) == failureHalt
	}
	if out == nil {
		return false
	}
	return !r.fanOut(out)
}

// fanOut sends pkt to every output edge, retaining one extra reference per
// additional recipient beyond the first. It returns false if shutdown was
// requested mid-send.
func (r *StageRunner) fanOut(pkt eegpipe.Packet) bool {
	if len(r.outputs) == 0 {
		pkt.Release()
		return true
	}
	for i, ch := range r.outputs {
		if i < len(r.outputs)-1 {
			pkt.Retain()
		}
		select {
		case ch <- pkt:
			r.obs.ObservePacketOut(r.name)
		case <-r.stopCh:
			r.obs.ObservePacketDropped(r.name)
			pkt.Release()
			return false
		}
	}
	return true
}

// handleFailure applies the stage's FailurePolicy to a Process/Produce
// error and reports what the caller's loop should do next.
func (r *StageRunner) handleFailure(err error) failureAction {
	r.log.WithError(err).Error("stage reported an error")
	switch r.policy {
	case stage.PolicyFatal:
		select {
		case r.fatalCh <- &eegpipe.Error{Op: "executor.Run", Code: eegpipe.ErrCodeStageProcessFailed, StageName: r.name, Inner: err}:
		default:
		}
		return failureHalt
	case stage.PolicyDrainThenStop:
		r.state.Store(int32(stateDraining))
		return failureDrain
	default: // PolicySkipPacket
		return failureContinue
	}
}

func (r *StageRunner) handleControl(msg stage.ControlMessage) {
	switch msg.Type {
	case stage.ControlPause:
		if p, ok := r.st.(stage.Pausable); ok {
			if err := p.Pause(); err != nil {
				r.log.WithError(err).Warn("stage Pause failed")
			}
		}
	case stage.ControlResume:
		if p, ok := r.st.(stage.Pausable); ok {
			if err := p.Resume(); err != nil {
				r.log.WithError(err).Warn("stage Resume failed")
			}
		}
	case stage.ControlUpdateParam:
		if u, ok := r.st.(stage.ParamUpdater); ok {
			if err := u.UpdateParam(msg.Param, msg.Value); err != nil {
				r.log.WithError(err).Warn("stage UpdateParam failed", "param", msg.Param)
			}
		}
	}
}
