package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CloneIsDeep(t *testing.T) {
	s := &State{
		Config: map[string]any{"port": 8080},
		Containers: []Container{{
			Name:   "workload",
			Mounts: map[string]Mount{"/etc/app": {Location: "/etc/app", Src: "/tmp/a"}},
		}},
	}

	c := s.Clone()
	c.Config["port"] = 9090
	c.Containers[0].Mounts["/etc/app"] = Mount{Location: "/etc/app", Src: "/tmp/b"}

	assert.Equal(t, 8080, s.Config["port"])
	assert.Equal(t, "/tmp/a", s.Containers[0].Mounts["/etc/app"].Src)
	assert.Nil(t, (*State)(nil).Clone())
}

func TestState_Replace(t *testing.T) {
	s := &State{Leader: false}
	next := s.Replace(func(n *State) { n.Leader = true })

	assert.False(t, s.Leader)
	assert.True(t, next.Leader)
}

func TestState_Lookups(t *testing.T) {
	s := &State{
		Containers: []Container{{Name: "foo"}},
		Relations:  []Relation{{ID: 1, Endpoint: "db"}, {ID: 2, Endpoint: "db"}, {ID: 3, Endpoint: "ingress"}},
		Storages:   []Storage{{Name: "data"}},
		Secrets:    []Secret{{ID: "secret:1", Label: "creds"}},
	}

	c, ok := s.Container("foo")
	require.True(t, ok)
	assert.Equal(t, "foo", c.Name)
	_, ok = s.Container("bar")
	assert.False(t, ok)

	assert.Len(t, s.RelationsFor("db"), 2)
	assert.Empty(t, s.RelationsFor("nope"))

	_, ok = s.Storage("data")
	assert.True(t, ok)

	sec, ok := s.Secret("creds")
	require.True(t, ok)
	assert.Equal(t, "secret:1", sec.ID)
}
