package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SceneStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks, in the custom values
// of a scene, every secret content and every config, stored-state or
// relation data key matching one of the patterns. Redaction is one-way:
// loaded scenes keep the mask.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.SceneStore) ports.SceneStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, name string, scene *domain.SceneSpec) error {
	// Copy the node slice so the caller's spec is left as is.
	cloned := *scene
	cloned.Nodes = make([]domain.NodeSpec, len(scene.Nodes))
	for i, n := range scene.Nodes {
		if n.Custom != nil {
			n.Custom = n.Custom.Replace(m.redact)
		}
		cloned.Nodes[i] = n
	}
	return m.next.Save(ctx, name, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, name string) (*domain.SceneSpec, error) {
	return m.next.Load(ctx, name)
}

func (m *redactMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) redact(s *domain.State) {
	maskMap(s.Config, m.patterns)
	maskMap(s.StoredState, m.patterns)
	for i := range s.Secrets {
		for k := range s.Secrets[i].Contents {
			s.Secrets[i].Contents[k] = Mask
		}
	}
	for i := range s.Relations {
		r := &s.Relations[i]
		maskStrings(r.LocalAppData, m.patterns)
		maskStrings(r.RemoteAppData, m.patterns)
		maskStrings(r.LocalUnitData, m.patterns)
		for _, data := range r.RemoteUnitsData {
			maskStrings(data, m.patterns)
		}
	}
}

func matches(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matches(k, patterns) {
			m[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
		}
	}
}

func maskStrings(m map[string]string, patterns []*regexp.Regexp) {
	for k := range m {
		if matches(k, patterns) {
			m[k] = Mask
		}
	}
}
