package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/config"
)

type workerTestConfig struct {
	PollInterval string `env:"TEST_WORKER_POLL" envDefault:"5s"`
	Queue        string `env:"TEST_WORKER_QUEUE" envDefault:"notifications"`
}

type requiredTestConfig struct {
	Token string `env:"TEST_REQUIRED_TOKEN_MISSING,required"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when env is unset", func(t *testing.T) {
		var cfg workerTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "5s", cfg.PollInterval)
		assert.Equal(t, "notifications", cfg.Queue)
	})

	t.Run("returns cached value on second call", func(t *testing.T) {
		var first workerTestConfig
		require.NoError(t, config.Load(&first))

		// The cache must serve the same struct even if the environment
		// changed after the first load.
		t.Setenv("TEST_WORKER_QUEUE", "changed")

		var second workerTestConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("nil destination", func(t *testing.T) {
		err := config.Load[workerTestConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredTestConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		var cfg requiredTestConfig
		config.MustLoad(&cfg)
	})
}
