package executor

import (
	"golang.org/x/sys/unix"

	"github.com/elata-labs/eegpipe/internal/logging"
)

// pinToCPU pins the calling OS thread to cpu. The caller must already hold
// the OS thread (runtime.LockOSThread) before calling this. Failure to set
// affinity is logged and otherwise ignored: a stage still runs correctly
// without pinning, just with weaker cache-locality/jitter guarantees.
func pinToCPU(cpu int, log *logging.Logger) {
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		if log != nil {
			log.Warn("failed to set CPU affinity", "cpu", cpu, "error", err)
		}
		return
	}
	if log != nil {
		log.Debug("pinned stage thread to CPU", "cpu", cpu)
	}
}

// cpuPlan assigns CPU cores to stage roles: core 0 for acquisition
// producers, cores 1..N-2 round-robin for DSP workers, and the last core
// for sink workers. On machines with fewer than 3 usable cores,
// pinning is disabled entirely (role returns -1 for everything) rather than
// pinning every stage to core 0 and serializing them.
type cpuPlan struct {
	numCPU   int
	dsp      []int
	sinkCore int
	enabled  bool
}

func newCPUPlan(numCPU int) *cpuPlan {
	if numCPU < 3 {
		return &cpuPlan{numCPU: numCPU, enabled: false}
	}
	dsp := make([]int, 0, numCPU-2)
	for c := 1; c <= numCPU-2; c++ {
		dsp = append(dsp, c)
	}
	return &cpuPlan{numCPU: numCPU, dsp: dsp, sinkCore: numCPU - 1, enabled: true}
}

func (p *cpuPlan) acquisitionCore() int {
	if !p.enabled {
		return -1
	}
	return 0
}

func (p *cpuPlan) dspCore(index int) int {
	if !p.enabled || len(p.dsp) == 0 {
		return -1
	}
	return p.dsp[index%len(p.dsp)]
}

func (p *cpuPlan) sinkCoreFor(index int) int {
	if !p.enabled {
		return -1
	}
	return p.sinkCore
}
