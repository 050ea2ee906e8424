package sink

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/model"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps carries what a sink factory may need to build its sink.
type Deps struct {
	Config     *config.Config
	Logger     *log.Logger
	Out        io.Writer
	Registerer prometheus.Registerer
}

// Factory builds a sink from its dependencies.
type Factory func(deps Deps) (model.Sink, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a sink type available to Build under name.
// It panics if the name is registered twice.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("sink type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the known sink names in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the named sinks in order. A single name returns that sink
// directly; several are wrapped in a Multi.
func Build(names []string, deps Deps) (model.Sink, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no sinks requested")
	}

	var sinks Multi
	for _, name := range names {
		registryMu.RLock()
		factory, ok := registry[name]
		registryMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown sink type: '%s'", name)
		}

		s, err := factory(deps)
		if err != nil {
			return nil, fmt.Errorf("error creating sink '%s': %w", name, err)
		}
		if deps.Logger != nil {
			deps.Logger.Debug("Sink created", "sink", s.Name())
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}
