package stage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/elata-labs/eegpipe"
)

// Factory constructs a fresh, uninitialized Stage instance. Built-in stage
// types register their Factory from an init() function in internal/stages;
// user code can register additional types the same way before building a
// graph.
type Factory func() Stage

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds stageType to the process-wide registry. It panics on a
// duplicate registration: programming errors like this should fail fast
// at startup, not surface later as a confusing runtime lookup miss.
func Register(stageType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[stageType]; exists {
		panic(fmt.Sprintf("stage: duplicate registration for type %q", stageType))
	}
	registry[stageType] = factory
}

// New constructs a Stage instance for the given registered type.
func New(stageType string) (Stage, error) {
	registryMu.RLock()
	factory, ok := registry[stageType]
	registryMu.RUnlock()
	if !ok {
		return nil, &eegpipe.Error{Op: "stage.New", Code: eegpipe.ErrCodeUnknownStageType, StageName: stageType}
	}
	return factory(), nil
}

// Registered returns the sorted list of currently registered stage types,
// used by the control plane's introspection endpoint and by config
// validation error messages.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsRegistered reports whether stageType has a registered factory.
func IsRegistered(stageType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[stageType]
	return ok
}
