package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)

	logger.WithField("cart", "cart:abc").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "cart:abc", entry["cart"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
