package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		logger, err := New("debug", true)
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New("loud", false)
		assert.Error(t, err)
	})
}
