package memory

import (
	"sync"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Loader implements ports.MountLoader over an in-memory MountConfig.
// Set replaces the config, which is handy in tests of hot reload.
type Loader struct {
	mu  sync.RWMutex
	cfg domain.MountConfig
}

// NewLoader creates a loader serving cfg.
func NewLoader(cfg domain.MountConfig) *Loader {
	l := &Loader{}
	l.Set(cfg)
	return l
}

// Set replaces the served config.
func (l *Loader) Set(cfg domain.MountConfig) {
	if cfg == nil {
		cfg = domain.MountConfig{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = deepcopy.Copy(cfg).(domain.MountConfig)
}

// LoadMounts returns a copy of the current config.
func (l *Loader) LoadMounts() (domain.MountConfig, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return deepcopy.Copy(l.cfg).(domain.MountConfig), nil
}
