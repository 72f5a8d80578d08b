package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("opensanctions")
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
	assert.Equal(t, "opensanctions", b.Name())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, StateOpen, b.State())
	assert.True(t, b.IsOpen())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures are not enough after the reset.
	b.RecordFailure()
	_, change := b.RecordFailure()
	assert.False(t, change.Opened)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeAfterRetryWindow(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithRetryAfter(10*time.Millisecond))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, b.IsOpen(), "retry window elapsed, probe allowed")
	assert.Equal(t, StateOpen, b.State(), "still open until a probe succeeds")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerFailedProbeRestartsWindow(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithRetryAfter(50*time.Millisecond))

	b.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	assert.False(t, b.IsOpen())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open, no transition")
	assert.True(t, b.IsOpen(), "window restarted")
}

func TestBreakerSuccessThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2), WithRetryAfter(time.Millisecond))

	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}
