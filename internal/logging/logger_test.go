package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevelopmentLogger(t *testing.T) {
	logger, err := New("development")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(-1), "development logger should enable debug level")
}

func TestNewProductionLogger(t *testing.T) {
	logger, err := New("production")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "production logger should not enable debug level")
}

func TestMust(t *testing.T) {
	assert.NotNil(t, Must("test"))
}
