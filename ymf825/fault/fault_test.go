package fault

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange(t *testing.T) {
	err := Range("attack rate", 16, 0, 15)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "attack rate = 16")
}

func TestInvalid(t *testing.T) {
	err := Invalid("nested section")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.False(t, errors.Is(err, ErrOutOfRange))
}

func TestComm(t *testing.T) {
	assert.NoError(t, Comm("write", nil))

	err := Comm("write", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
}
