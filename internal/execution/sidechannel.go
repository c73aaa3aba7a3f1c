package execution

import (
	"strings"
	"sync"
)

// sideChannel collects what a transition writes to its side output.
// Writes made only of whitespace are dropped.
type sideChannel struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (s *sideChannel) Write(p []byte) (int, error) {
	if len(strings.TrimSpace(string(p))) == 0 {
		return len(p), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *sideChannel) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
