// Package script turns Go source files into deltas by interpreting them
// with yaegi. A delta script declares:
//
//	func Apply(state map[string]interface{}) interface{}
//
// The state is handed over in its JSON shape (the keys of domain.State's
// json tags). Apply must return a map in the same shape; any other result
// surfaces as domain.ErrDeltaType when the delta is evaluated.
package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// EntryPoint is the function every delta script must declare.
const EntryPoint = "Apply"

type applyFunc func(map[string]interface{}) interface{}

// Compile interprets src and returns a delta named name.
func Compile(name, src string) (domain.Delta, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return domain.Delta{}, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if _, err := i.Eval(wrap(src)); err != nil {
		return domain.Delta{}, fmt.Errorf("delta %s: evaluation failed: %w", name, err)
	}
	v, err := i.Eval("main." + EntryPoint)
	if err != nil {
		return domain.Delta{}, fmt.Errorf("delta %s: %s not found: %w", name, EntryPoint, err)
	}
	fn, ok := v.Interface().(func(map[string]interface{}) interface{})
	if !ok {
		return domain.Delta{}, fmt.Errorf("delta %s: %s has incorrect signature (expected: func(map[string]interface{}) interface{})", name, EntryPoint)
	}
	return domain.NewDelta(name, adapt(name, fn)), nil
}

func wrap(src string) string {
	if strings.Contains(src, "package main") {
		return src
	}
	return "package main\n\n" + src
}

func adapt(name string, fn applyFunc) domain.DeltaFunc {
	return func(s *domain.State) (*domain.State, error) {
		in, err := toMap(s)
		if err != nil {
			return nil, err
		}
		out := fn(in)
		m, ok := out.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("delta %s returned %T: %w", name, out, domain.ErrDeltaType)
		}
		return fromMap(m)
	}
}

func toMap(s *domain.State) (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return m, nil
}

func fromMap(m map[string]interface{}) (*domain.State, error) {
	next := domain.NewState()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           next,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrDeltaType)
	}
	return next, nil
}
