package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/luxfi/log"
)

// Registry maps protocol names to handlers. It is process-scoped state
// built once at startup and passed by reference to consumers; there is
// no package-level registry.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Default returns a registry with the built-in handlers registered.
func Default(logger log.Logger) *Registry {
	r := NewRegistry()
	r.Register(NewFIX(logger))
	r.Register(NewByteHeaderXML(logger))
	return r
}

// Register adds a handler under its upper-cased name. Registering the
// same name twice keeps the last handler.
func (r *Registry) Register(h Handler) {
	r.handlers[strings.ToUpper(h.Name())] = h
}

// Resolve looks a handler up case-insensitively, failing with
// ErrUnsupportedProtocol when absent.
func (r *Registry) Resolve(name string) (Handler, error) {
	h, ok := r.handlers[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, name)
	}
	return h, nil
}

// Supported reports whether a handler is registered for name.
func (r *Registry) Supported(name string) bool {
	_, ok := r.handlers[strings.ToUpper(name)]
	return ok
}

// Names returns the registered protocol names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
