package extension

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownAction is returned by handlers for action strings they do not
// recognize. The dispatcher converts it into a structured failure result.
var ErrUnknownAction = errors.New("unknown action")

// Handler is the behavior entry point of an extension. Invoke services one
// action with its parameter payload and returns a result value for the
// dispatch response, or an error.
//
// Long-running handlers must poll API.IsStopped between steps so the
// emergency stop can interrupt them.
type Handler interface {
	Invoke(ctx context.Context, action string, params map[string]any) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action string, params map[string]any) (any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, action string, params map[string]any) (any, error) {
	return f(ctx, action, params)
}

// Factory builds a Handler bound to the capability surface of its extension.
// Factories run once per scan, when the owning bundle registers.
type Factory func(api *API) Handler

var handlerTable = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{m: make(map[string]Factory)}

// RegisterHandler records the handler factory for an extension id. Bundled
// extensions call this from their init functions; the registry resolves ids
// against this table at scan time.
func RegisterHandler(id string, f Factory) {
	handlerTable.mu.Lock()
	defer handlerTable.mu.Unlock()
	handlerTable.m[id] = f
}

// lookupHandler returns the registered factory for an extension id, if any.
func lookupHandler(id string) (Factory, bool) {
	handlerTable.mu.RLock()
	defer handlerTable.mu.RUnlock()
	f, ok := handlerTable.m[id]
	return f, ok
}
