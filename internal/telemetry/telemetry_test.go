package telemetry

import (
	"io"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetrace/labeller/internal/logging"
)

func TestConnect_DisabledByConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(logging.NewZerolog(io.Discard, "error"))
	err := m.Connect()
	require.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestWriteCommit_NoopWhenInvalid(t *testing.T) {
	m := NewManager(logging.NewZerolog(io.Discard, "error"))

	// must not panic without a connection
	m.WriteCommit("S101", 1, "bltd0", -8, "oe", "RElbow", "insert", 101.56, 90.2, 3*time.Millisecond)
	m.Close()
}
