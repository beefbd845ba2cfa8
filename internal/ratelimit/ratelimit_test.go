package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowUpToMaxAttemptsThenBlocks(t *testing.T) {
	l := New(2, time.Minute)
	assert.True(t, l.Allow("k1"))
	assert.True(t, l.Allow("k1"))
	assert.False(t, l.Allow("k1"))
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("k1"))
	assert.True(t, l.Allow("k2"))
}

func TestResetClearsAttempts(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("k1"))
	assert.False(t, l.Allow("k1"))
	l.Reset("k1")
	assert.True(t, l.Allow("k1"))
}

func TestRemainingTracksConsumedAttempts(t *testing.T) {
	l := New(3, time.Minute)
	assert.Equal(t, 3, l.Remaining("k1"))
	l.Allow("k1")
	assert.Equal(t, 2, l.Remaining("k1"))
}

func TestExpiredAttemptsAreNotCounted(t *testing.T) {
	l := New(1, time.Millisecond)
	assert.True(t, l.Allow("k1"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow("k1"))
}
