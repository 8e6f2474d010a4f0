// internal/recovery/controller_test.go
package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController(t *testing.T) {
	newController := func(d *Dispatcher) *Controller {
		return NewController("stock-dashboard", faults.NewClassifier(), d, nil)
	}

	t.Run("successful recovery clears the failure state", func(t *testing.T) {
		d := NewDispatcher()
		d.Register(faults.TypeNetwork, alwaysHandle("fix", Result{Success: true}))
		c := newController(d)

		perr := c.CaptureFailure(errors.New("connection refused"), "render")
		require.True(t, c.Failed())
		require.Equal(t, faults.TypeNetwork, perr.Type)

		result := c.TryRecover(context.Background())

		assert.True(t, result.Success)
		assert.False(t, c.Failed())
		assert.Nil(t, c.LastError())
	})

	t.Run("continue signal clears state without full success", func(t *testing.T) {
		d := NewDispatcher()
		d.Register(faults.TypeValidation, NewValidationStrategy())
		c := newController(d)

		c.CaptureFailure(errors.New("validation failed: name required"), "submit")
		result := c.TryRecover(context.Background())

		assert.Equal(t, ContinueSignal, result.Data)
		assert.False(t, c.Failed())
	})

	t.Run("attempts are capped at three", func(t *testing.T) {
		d := NewDispatcher(WithGlobalRetryCap(100))
		d.Register(faults.TypeNetwork, alwaysHandle("never-works", Result{Success: false}))
		c := newController(d)

		c.CaptureFailure(errors.New("connection refused"), "render")

		for i := 0; i < 3; i++ {
			require.True(t, c.CanRetry())
			result := c.TryRecover(context.Background())
			assert.False(t, result.Success)
		}

		assert.False(t, c.CanRetry(), "cap reached, only reload remains")
		result := c.TryRecover(context.Background())
		assert.False(t, result.Success)
		assert.True(t, result.FallbackRequired)
		assert.True(t, c.Failed(), "failure stays visible")
	})

	t.Run("reset restores a usable boundary", func(t *testing.T) {
		d := NewDispatcher()
		c := newController(d)

		c.CaptureFailure(errors.New("connection refused"), "render")
		for i := 0; i < 3; i++ {
			_ = c.TryRecover(context.Background())
		}
		require.False(t, c.CanRetry())

		c.Reset()

		assert.False(t, c.Failed())
		assert.True(t, c.CanRetry())
	})

	t.Run("recovering with no failure is a no-op", func(t *testing.T) {
		c := newController(NewDispatcher())

		result := c.TryRecover(context.Background())

		assert.True(t, result.Success)
	})
}
