package extension

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Result is the structured outcome of one action dispatch. It is returned to
// callers instead of an error so a misbehaving extension can never crash the
// runtime or a concurrent dispatch.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// failure builds a failed Result with an error detail.
func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Dispatcher invokes extension handlers. The handler call is a failure
// isolation boundary: panics and errors inside a handler are caught, logged
// and converted into failure Results.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes action on the extension with the given id. A missing or
// disabled extension, a missing handler, an unrecognized action, and a
// handler fault all produce failure Results; Dispatch never panics and never
// returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, id, action string, params map[string]any) Result {
	ext, ok := d.registry.Get(id)
	if !ok {
		return failure("extension %q not found", id)
	}
	if !ext.Enabled() {
		return failure("extension %q is disabled", id)
	}
	if ext.Handler == nil {
		return failure("extension %q has no action handler", id)
	}
	if params == nil {
		params = make(map[string]any)
	}

	return invoke(ctx, ext, action, params)
}

// invoke runs the handler inside a recover scope so one extension's fault
// cannot propagate past the dispatch boundary.
func invoke(ctx context.Context, ext *Extension, action string, params map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("extension: %s panicked handling %q: %v", ext.ID(), action, r)
			res = failure("handler panic: %v", r)
		}
	}()

	value, err := ext.Handler.Invoke(ctx, action, params)
	if err != nil {
		if errors.Is(err, ErrUnknownAction) {
			return failure("extension %q does not recognize action %q", ext.ID(), action)
		}
		log.Printf("extension: %s failed handling %q: %v", ext.ID(), action, err)
		return failure("%v", err)
	}

	res = Result{Success: true}
	if msg, ok := value.(string); ok {
		res.Message = msg
	} else if m, ok := value.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			res.Message = msg
		}
	}
	return res
}
