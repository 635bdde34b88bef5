package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/atomhq/atomgw/internal/config"
	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/taskapi"
)

// Env is everything a channel factory needs to construct a channel.
type Env struct {
	Descriptor config.ChannelDescriptor
	Global     config.GlobalConfig
	ServerURL  string
	Runtime    *taskapi.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Factory builds a channel from its resolved environment.
type Factory func(env Env) (Channel, error)

var (
	factories   = make(map[config.ChannelType]Factory)
	factoriesMu sync.RWMutex
)

// Register binds a channel type to its factory. It panics on a duplicate
// registration or a nil factory. Intended to be called from init()
// functions of channel packages.
func Register(t config.ChannelType, f Factory) {
	if t == "" {
		panic("plugin: channel type must not be empty")
	}
	if f == nil {
		panic(fmt.Sprintf("plugin: factory for %s must not be nil", t))
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[t]; exists {
		panic(fmt.Sprintf("plugin: channel type already registered: %s", t))
	}
	factories[t] = f
}

// factoryFor returns the factory registered for t, or false.
func factoryFor(t config.ChannelType) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[t]
	return f, ok
}

// resetFactories clears the registry. Only for testing.
func resetFactories() {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories = make(map[config.ChannelType]Factory)
}
