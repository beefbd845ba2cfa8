package werrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessingError(t *testing.T) {
	err := NewProcessingError(CodeFormat, "missing field", "SubjectCode", "DateTime")
	require.Error(t, err)
	assert.True(t, IsProcessing(err))
	assert.False(t, IsProtocol(err))
	assert.Contains(t, err.Error(), CodeFormat)
	assert.Contains(t, err.Error(), "SubjectCode")
}

func TestNewProtocolError(t *testing.T) {
	err := NewProtocolError(CodeReference, "referenced message not found")
	assert.True(t, IsProtocol(err))
	assert.False(t, IsProcessing(err))
}

func TestPlainErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPlainError("failed to persist snapshot", cause)
	assert.True(t, IsPlain(err))
	assert.ErrorIs(t, err, cause)
}

func TestIsPlainDefaultsNonWFError(t *testing.T) {
	assert.True(t, IsPlain(errors.New("boom")))
}

func TestWithCause(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := NewProcessingError(CodeNotAvailable, "adapter unreachable").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}
