package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vetlabhq/vetnotify/pkg/queue"
)

func TestBackoffNextDelay(t *testing.T) {
	t.Parallel()

	t.Run("doubles from base without jitter", func(t *testing.T) {
		t.Parallel()

		b := queue.Backoff{BaseDelay: time.Minute, MaxDelay: 10 * time.Minute, Factor: 2}

		assert.Equal(t, time.Minute, b.NextDelay(1))
		assert.Equal(t, 2*time.Minute, b.NextDelay(2))
		assert.Equal(t, 4*time.Minute, b.NextDelay(3))
	})

	t.Run("caps at max delay", func(t *testing.T) {
		t.Parallel()

		b := queue.Backoff{BaseDelay: time.Minute, MaxDelay: 10 * time.Minute, Factor: 2}

		assert.Equal(t, 10*time.Minute, b.NextDelay(20))
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		t.Parallel()

		b := queue.DefaultBackoff()
		for range 100 {
			d := b.NextDelay(1)
			assert.GreaterOrEqual(t, d, 54*time.Second)
			assert.LessOrEqual(t, d, 66*time.Second)
		}
	})

	t.Run("non-positive attempts behave like the first", func(t *testing.T) {
		t.Parallel()

		b := queue.Backoff{BaseDelay: time.Minute, MaxDelay: 10 * time.Minute, Factor: 2}

		assert.Equal(t, b.NextDelay(1), b.NextDelay(0))
		assert.Equal(t, b.NextDelay(1), b.NextDelay(-3))
	})
}
