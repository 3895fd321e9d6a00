package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistersStartsInARMState(t *testing.T) {
	r := NewRegisters()
	assert.False(t, r.IsThumb())
}

func TestGetSetPC(t *testing.T) {
	r := NewRegisters()
	r.SetPC(0x08000100)
	assert.Equal(t, uint32(0x08000100), r.GetPC())
}

func TestSetThumbState(t *testing.T) {
	r := NewRegisters()
	require := assert.New(t)
	require.False(r.IsThumb())
	r.SetThumbState(true)
	require.True(r.IsThumb())
	r.SetThumbState(false)
	require.False(r.IsThumb())
}
