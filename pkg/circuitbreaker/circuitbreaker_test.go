package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:        "test",
		MaxRequests: 3,
		Timeout:     time.Minute,
	})
	failing := errors.New("backend down")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return failing })
		assert.ErrorIs(t, err, failing)
	}

	// Open: calls are rejected without invoking the function.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, failing)
	assert.False(t, called)
}

func TestExecute_ClosesAfterSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:        "test",
		MaxRequests: 1,
		Timeout:     time.Nanosecond,
	})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	// Past the timeout the breaker half-opens and a success closes it.
	time.Sleep(time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
}
