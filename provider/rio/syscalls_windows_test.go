//go:build windows

package rio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretDequeueResult_CorruptCQIsFatal(t *testing.T) {
	n, err := interpretDequeueResult(uintptr(rioCorruptCQ))
	assert.Equal(t, uint32(0), n)
	assert.True(t, errors.Is(err, errCorruptCQ))
}

func TestInterpretDequeueResult_NormalCount(t *testing.T) {
	n, err := interpretDequeueResult(3)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), n)
}

func TestInterpretDequeueResult_Zero(t *testing.T) {
	n, err := interpretDequeueResult(0)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), n)
}
