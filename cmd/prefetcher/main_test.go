package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geowhisper/towers/internal/core/domain"
)

func TestWorkflowID_StableAcrossOrder(t *testing.T) {
	a := workflowID("s1", []domain.Zone{{ID: "z1"}, {ID: "z2"}})
	b := workflowID("s1", []domain.Zone{{ID: "z2"}, {ID: "z1"}})

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "label-prefetch-"))
}

func TestWorkflowID_DiffersBySessionAndZones(t *testing.T) {
	base := workflowID("s1", []domain.Zone{{ID: "z1"}})

	assert.NotEqual(t, base, workflowID("s2", []domain.Zone{{ID: "z1"}}))
	assert.NotEqual(t, base, workflowID("s1", []domain.Zone{{ID: "z1"}, {ID: "z2"}}))
}
