package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		kind   EventKind
		prefix string
	}{
		{"install", KindLifecycle, ""},
		{"config-changed", KindLifecycle, ""},
		{"update-status", KindLifecycle, ""},
		{"db-relation-changed", KindRelation, "db"},
		{"ingress-per-unit-relation-joined", KindRelation, "ingress-per-unit"},
		{"secret-changed", KindSecret, ""},
		{"secret-rotate", KindSecret, ""},
		{"data-storage-attached", KindStorage, "data"},
		{"workload-pebble-ready", KindWorkload, "workload"},
		{"backup-action", KindAction, "backup"},
		{"custom-thing", KindGeneric, ""},
		{"-relation-changed", KindGeneric, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.name))
			assert.Equal(t, tt.prefix, Prefix(tt.name))
		})
	}
}

func TestEvent_Label(t *testing.T) {
	assert.Equal(t, "update-status", Event{Name: "update-status"}.Label())
	assert.Equal(t, "leader", Event{Name: "leader-elected"}.Label())
	assert.Equal(t, "relation", Event{Name: "db-relation-broken"}.Label())
	assert.Equal(t, "generic", Event{Name: "foo"}.Label())
}
