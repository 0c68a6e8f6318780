package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/pkg/util"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
	off    light = "off"
)

func newLights() *Machine[light] {
	return New("light", map[light][]light{
		red:    {green, off},
		green:  {yellow, off},
		yellow: {red, yellow, off},
	})
}

func TestMachine_TerminalStatesRegistered(t *testing.T) {
	m := newLights()

	assert.True(t, m.Known(off))
	assert.True(t, m.IsTerminal(off))
	assert.False(t, m.IsTerminal(red))
	assert.Equal(t, []light{green, off, red, yellow}, m.States())
}

func TestMachine_Validate(t *testing.T) {
	m := newLights()

	require.NoError(t, m.Validate(red, green))
	require.NoError(t, m.Validate(yellow, yellow), "listed self transition is allowed")

	err := m.Validate(red, yellow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))
	de := util.ToDomainError(err)
	assert.Equal(t, "red", de.Details["from"])
	assert.Equal(t, "yellow", de.Details["to"])
	assert.Equal(t, "light", de.Details["entity"])
}

func TestMachine_TerminalRejectsSelf(t *testing.T) {
	m := newLights()

	err := m.Validate(off, off)
	require.Error(t, err)
	assert.Equal(t, "source state is terminal", util.ToDomainError(err).Details["reason"])
}

func TestMachine_UnknownTarget(t *testing.T) {
	m := newLights()

	err := m.Validate(red, light("blue"))
	assert.Equal(t, "unknown target state", util.ToDomainError(err).Details["reason"])
}
