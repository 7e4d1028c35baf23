package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isochk/isochk/internal/logging"
)

func TestNewEmitsJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, false)
	log.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestNewVerboseUsesTextHandlerAndDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, true)
	log.Debug("debugging", "n", 1)
	assert.Contains(t, buf.String(), "msg=debugging")
	assert.Contains(t, buf.String(), "n=1")
}

func TestNewNonVerboseSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, false)
	log.Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestDiscardDropsEverything(t *testing.T) {
	log := logging.Discard()
	assert.NotPanics(t, func() { log.Info("noop") })
}
