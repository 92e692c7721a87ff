package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json at info drops debug", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithWriter(&buf, "info", "json")
		require.NoError(t, err)

		log.Debug("hidden")
		log.Info("pool reconciled", "license_pool_id", 7)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "pool reconciled", entry["msg"])
		assert.EqualValues(t, 7, entry["license_pool_id"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithWriter(&buf, "debug", "text")
		require.NoError(t, err)
		log.Debug("visible")
		assert.Contains(t, buf.String(), "msg=visible")
	})

	t.Run("rejects unknown level and format", func(t *testing.T) {
		_, err := NewWithWriter(&bytes.Buffer{}, "loud", "json")
		assert.Error(t, err)
		_, err = NewWithWriter(&bytes.Buffer{}, "info", "xml")
		assert.Error(t, err)
	})
}
