package extension

import "sync"

// StopFlags holds the cooperative emergency-stop flags, one per extension.
// Setting a flag does not interrupt a running handler; handlers running
// repeated actions are expected to poll IsStopped between steps.
type StopFlags struct {
	mu    sync.Mutex
	flags map[string]bool
}

// NewStopFlags creates an empty flag set.
func NewStopFlags() *StopFlags {
	return &StopFlags{flags: make(map[string]bool)}
}

// Stop raises the stop flag for one extension.
func (s *StopFlags) Stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[id] = true
}

// StopAll raises the stop flag for every extension id given. Used by the
// emergency stop to halt all running loops at once.
func (s *StopFlags) StopAll(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.flags[id] = true
	}
}

// IsStopped reports whether the stop flag for an extension is raised.
func (s *StopFlags) IsStopped(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[id]
}

// Clear lowers the stop flag for one extension. Handlers call this before
// starting a new repeated action.
func (s *StopFlags) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, id)
}
