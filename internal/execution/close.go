package execution

import (
	"fmt"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// closeArgs are the EventSpec arguments that help complete an event.
type closeArgs struct {
	RelationID   *int   `mapstructure:"relation_id"`
	RemoteUnitID *int   `mapstructure:"remote_unit_id"`
	SecretID     string `mapstructure:"secret_id"`
	StorageIndex *int   `mapstructure:"storage_index"`
}

func decodeArgs(args map[string]any, out any) error {
	if len(args) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// CloseEvent fills in the references an event needs from the state it will
// be fired on: the relation of a relation event, the container of a workload
// event, the storage of a storage event and the secret of a secret event.
// References already present on the event are kept. The input event is not
// modified.
func CloseEvent(state *domain.State, event domain.Event, args map[string]any) (domain.Event, error) {
	var a closeArgs
	if err := decodeArgs(args, &a); err != nil {
		return event, fmt.Errorf("%w: invalid args: %v", domain.ErrCloseEvent, err)
	}
	if state == nil {
		state = domain.NewState()
	}

	switch event.Kind() {
	case domain.KindRelation:
		if a.RemoteUnitID != nil && event.RemoteUnitID == nil {
			id := *a.RemoteUnitID
			event.RemoteUnitID = &id
		}
		if event.Relation != nil {
			return event, nil
		}
		rel, err := pickRelation(state, domain.Prefix(event.Name), a.RelationID)
		if err != nil {
			return event, err
		}
		event.Relation = rel

	case domain.KindWorkload:
		if event.Container != nil {
			return event, nil
		}
		name := domain.Prefix(event.Name)
		c, ok := state.Container(name)
		if !ok {
			return event, fmt.Errorf("%w: no container %q in state", domain.ErrCloseEvent, name)
		}
		cp := *c
		event.Container = &cp

	case domain.KindStorage:
		if event.Storage != nil {
			return event, nil
		}
		name := domain.Prefix(event.Name)
		st, err := pickStorage(state, name, a.StorageIndex)
		if err != nil {
			return event, err
		}
		event.Storage = st

	case domain.KindSecret:
		if event.Secret != nil {
			return event, nil
		}
		sec, err := pickSecret(state, a.SecretID)
		if err != nil {
			return event, err
		}
		event.Secret = sec
	}
	return event, nil
}

func pickRelation(state *domain.State, endpoint string, id *int) (*domain.Relation, error) {
	candidates := state.RelationsFor(endpoint)
	if id != nil {
		for _, r := range candidates {
			if r.ID == *id {
				return &r, nil
			}
		}
		return nil, fmt.Errorf("%w: no relation %d on endpoint %q", domain.ErrCloseEvent, *id, endpoint)
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: no relation on endpoint %q", domain.ErrCloseEvent, endpoint)
	case 1:
		return &candidates[0], nil
	default:
		return nil, fmt.Errorf("%w: %d relations on endpoint %q, pass relation_id", domain.ErrCloseEvent, len(candidates), endpoint)
	}
}

func pickStorage(state *domain.State, name string, index *int) (*domain.Storage, error) {
	for _, st := range state.Storages {
		if st.Name != name {
			continue
		}
		if index != nil && st.Index != *index {
			continue
		}
		return &st, nil
	}
	return nil, fmt.Errorf("%w: no storage %q in state", domain.ErrCloseEvent, name)
}

func pickSecret(state *domain.State, idOrLabel string) (*domain.Secret, error) {
	if idOrLabel != "" {
		sec, ok := state.Secret(idOrLabel)
		if !ok {
			return nil, fmt.Errorf("%w: no secret %q in state", domain.ErrCloseEvent, idOrLabel)
		}
		cp := *sec
		return &cp, nil
	}
	if len(state.Secrets) == 1 {
		cp := state.Secrets[0]
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %d secrets in state, pass secret_id", domain.ErrCloseEvent, len(state.Secrets))
}
