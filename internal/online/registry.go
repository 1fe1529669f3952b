package online

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/mpsessions/internal/core"
)

// Deps are the shared resources handed to a subsystem factory.
type Deps struct {
	Config *core.Config
	Logger *logrus.Logger
	Poster Poster
}

// Factory builds a Subsystem. It is called once, when the subsystem is opened.
type Factory func(deps Deps) (Subsystem, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a subsystem available under name. Names are case-insensitive.
// It panics if called twice with the same name.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	key := strings.ToUpper(name)
	if factory == nil {
		panic("online: Register factory is nil")
	}
	if _, dup := factories[key]; dup {
		panic("online: Register called twice for subsystem " + name)
	}
	factories[key] = factory
}

// Subsystems returns the sorted names of the registered subsystems.
func Subsystems() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves the subsystem registered under name.
func Open(name string, deps Deps) (Subsystem, error) {
	factoriesMu.RLock()
	factory, ok := factories[strings.ToUpper(name)]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown online subsystem %q (registered: %s)", name, strings.Join(Subsystems(), ", "))
	}
	subsystem, err := factory(deps)
	if err != nil {
		return nil, fmt.Errorf("opening online subsystem %s: %w", name, err)
	}
	return subsystem, nil
}

// IsLAN reports whether sessions on the subsystem are LAN matches.
func IsLAN(s Subsystem) bool {
	return s != nil && strings.EqualFold(s.Name(), NullSubsystem)
}
