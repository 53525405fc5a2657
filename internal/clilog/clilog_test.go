package clilog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveModePassesThroughExplicitModes(t *testing.T) {
	assert.Equal(t, ModeJSON, resolveMode(ModeJSON, true))
	assert.Equal(t, ModePlain, resolveMode(ModePlain, false))
}

func TestResolveModeAutoPicksByTerminal(t *testing.T) {
	assert.Equal(t, ModePlain, resolveMode(ModeAuto, true))
	assert.Equal(t, ModeJSON, resolveMode(ModeAuto, false))
}
